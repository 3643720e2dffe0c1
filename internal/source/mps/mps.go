// Package mps implements the C4 member-of-parliament roster source
// adapter: a flat paginated JSON listing with no bilingual cross-check,
// the simplest of the four upstream feeds.
package mps

import (
	"encoding/json"
	neturl "net/url"
	"time"

	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/internal/httpadapter"
)

// Record is one normalized member-of-parliament roster entry.
type Record struct {
	ID        string
	Name      string
	Party     string
	Riding    string
	UpdatedAt time.Time
}

type listJSON struct {
	Results    []item `json:"results"`
	Pagination struct {
		NextURL string `json:"next_url"`
	} `json:"pagination"`
}

type item struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Party     string `json:"party"`
	Riding    string `json:"riding"`
	UpdatedAt string `json:"updated_at"`
}

// Adapter paginates the member roster listing.
type Adapter struct {
	Core *httpadapter.Core
}

// New constructs an mps Adapter.
func New(core *httpadapter.Core) *Adapter { return &Adapter{Core: core} }

// List walks every page starting at startURL.
func (a *Adapter) List(ctx domain.Context, startURL string) (httpadapter.Response[Record], error) {
	resp := httpadapter.Response[Record]{Status: httpadapter.StatusSuccess, Source: "mps", FetchTimestamp: time.Now().UTC()}

	url := startURL
	for url != "" {
		fr, err := a.Core.Get(ctx, url, "mps:"+url)
		if err != nil {
			resp.Status = httpadapter.StatusPartialSuccess
			resp.Errors = append(resp.Errors, httpadapter.AdapterError{
				Timestamp: time.Now().UTC(), ErrorType: "http", Message: err.Error(), Retryable: true,
			})
			break
		}
		resp.Metrics.HTTPRequestCount += fr.Metrics.HTTPRequestCount
		if fr.NotModified {
			break
		}

		var page listJSON
		if err := json.Unmarshal(fr.Body, &page); err != nil {
			resp.Status = httpadapter.StatusPartialSuccess
			resp.Errors = append(resp.Errors, httpadapter.AdapterError{Timestamp: time.Now().UTC(), ErrorType: "parse", Message: err.Error()})
			break
		}
		for _, it := range page.Results {
			updatedAt, _ := time.Parse(time.RFC3339, it.UpdatedAt)
			resp.Data = append(resp.Data, Record{ID: it.ID, Name: it.Name, Party: it.Party, Riding: it.Riding, UpdatedAt: updatedAt})
			resp.Metrics.RecordsSucceeded++
		}
		resp.Metrics.RecordsAttempted += len(page.Results)
		next := page.Pagination.NextURL
		if base, perr := neturl.Parse(url); perr == nil && next != "" {
			if ref, rerr := neturl.Parse(next); rerr == nil {
				next = base.ResolveReference(ref).String()
			}
		}
		url = next
	}
	return resp, nil
}
