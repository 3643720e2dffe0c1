// Package publicationsearch implements the C4 publication-search source
// adapter: paginated listing, dedup, and PDF/publication id derivation,
// ported from original_source/parliament/imports/publication_search.py.
package publicationsearch

import (
	"encoding/json"
	"fmt"
	neturl "net/url"
	"regexp"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/internal/httpadapter"
)

// Record is one normalized publication search hit.
type Record struct {
	PublicationID string
	Title         string
	PublishedAt   time.Time
	PDFURL        string
	SourceURL     string
}

var (
	hansardPDFPattern = regexp.MustCompile(`HAN(?P<issue>[^/-]+)-[EF]\.PDF`)
	publicationIDPattern = regexp.MustCompile(`/(\d+)(?:[#/?]|$)`)
)

type searchPage struct {
	Results    []searchHit `json:"results"`
	Pagination struct {
		NextURL string `json:"next_url"`
	} `json:"pagination"`
}

type searchHit struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	PublishedAt string `json:"published_at"`
}

// Adapter paginates the publication search endpoint until next_url is empty
// or a seen publication id repeats, whichever comes first.
type Adapter struct {
	Core    *httpadapter.Core
	BaseURL string
}

// New constructs a publicationsearch Adapter.
func New(core *httpadapter.Core, baseURL string) *Adapter {
	return &Adapter{Core: core, BaseURL: baseURL}
}

// Search walks every page starting at startURL, deduplicating by derived
// publication id, and returns the normalized, deduplicated record set.
func (a *Adapter) Search(ctx domain.Context, startURL string) (httpadapter.Response[Record], error) {
	resp := httpadapter.Response[Record]{Status: httpadapter.StatusSuccess, Source: "publicationsearch", FetchTimestamp: time.Now().UTC()}
	seen := make(map[string]bool)

	url := startURL
	for url != "" {
		fr, err := a.Core.Get(ctx, url, "publicationsearch:"+url)
		if err != nil {
			resp.Status = httpadapter.StatusPartialSuccess
			resp.Errors = append(resp.Errors, httpadapter.AdapterError{
				Timestamp: time.Now().UTC(), ErrorType: "http", Message: err.Error(), Retryable: true,
			})
			break
		}
		resp.Metrics.HTTPRequestCount += fr.Metrics.HTTPRequestCount
		resp.Metrics.RetryCount += fr.Metrics.RetryCount
		if fr.NotModified {
			break
		}

		var page searchPage
		if err := json.Unmarshal(fr.Body, &page); err != nil {
			resp.Status = httpadapter.StatusPartialSuccess
			resp.Errors = append(resp.Errors, httpadapter.AdapterError{
				Timestamp: time.Now().UTC(), ErrorType: "parse", Message: err.Error(),
			})
			break
		}

		stop := false
		for _, hit := range page.Results {
			pubID := derivePublicationID(hit.URL)
			if pubID == "" || seen[pubID] {
				stop = stop || seen[pubID]
				continue
			}
			seen[pubID] = true

			publishedAt, _ := time.Parse(time.RFC3339, hit.PublishedAt)
			resp.Data = append(resp.Data, Record{
				PublicationID: pubID,
				Title:         hit.Title,
				PublishedAt:   publishedAt,
				PDFURL:        derivePDFURL(hit.URL),
				SourceURL:     hit.URL,
			})
			resp.Metrics.RecordsSucceeded++
		}
		resp.Metrics.RecordsAttempted += len(page.Results)

		if stop {
			break
		}
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

// FetchPDF downloads the document at pdfURL and verifies, by content
// sniffing rather than trusting the derived .PDF suffix, that the response
// actually is a PDF. The search endpoint occasionally serves an HTML error
// page at a URL that matches the PDF naming convention; this rejects that
// case before the bytes reach the RAG ingestion pipeline.
func (a *Adapter) FetchPDF(ctx domain.Context, pdfURL string) ([]byte, error) {
	fr, err := a.Core.Get(ctx, pdfURL, "publicationsearch:pdf:"+pdfURL)
	if err != nil {
		return nil, fmt.Errorf("op=publicationsearch.fetch_pdf: %w", err)
	}
	mime := mimetype.Detect(fr.Body)
	if !mime.Is("application/pdf") {
		return nil, fmt.Errorf("op=publicationsearch.fetch_pdf url=%s mime=%s: %w", pdfURL, mime.String(), domain.ErrNoDocument)
	}
	return fr.Body, nil
}

// derivePublicationID extracts the trailing numeric publication id segment
// from a publication URL, e.g. ".../publication/12345#abc" -> "12345".
func derivePublicationID(rawURL string) string {
	m := publicationIDPattern.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// derivePDFURL returns rawURL unchanged when it already names a Hansard PDF
// under the HAN<issue>-[EF].PDF naming convention, and otherwise appends a
// ".PDF" suffix to it.
func derivePDFURL(rawURL string) string {
	if hansardPDFPattern.MatchString(rawURL) {
		return rawURL
	}
	return fmt.Sprintf("%s.PDF", rawURL)
}
