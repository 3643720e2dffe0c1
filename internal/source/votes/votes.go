// Package votes implements the C4 vote-list source adapter: import_votes,
// ported from original_source/parliament/imports/parlvotes.py.
package votes

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"time"

	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/internal/httpadapter"
)

// Record is one normalized vote.
type Record struct {
	Parliament      int
	Session         int
	VoteNumber      int
	EventDateTime   time.Time
	Description     string
	FrenchDesc      string
	Result          string
	DecisionDivision string
}

// voteListXML mirrors the upstream `/members/{lang}/votes/xml` feed shape
// closely enough to decode the fields import_votes needs.
type voteListXML struct {
	XMLName xml.Name   `xml:"VoteParticipantList"`
	Votes   []voteItem `xml:"VoteParticipant"`
}

type voteItem struct {
	ParliamentNumber int    `xml:"ParliamentNumber"`
	SessionNumber    int    `xml:"SessionNumber"`
	DecisionDivisionNumber int `xml:"DecisionDivisionNumber"`
	DecisionEventDateTime string `xml:"DecisionEventDateTime"`
	DecisionResultName     string `xml:"DecisionResultName"`
	Description            string `xml:"Description"`
}

// Adapter wraps the House of Commons vote-list HTTP adapter with watermark
// comparison and a token format of "<parliament>:<session>:<votenumber>".
type Adapter struct {
	Core       *httpadapter.Core
	Watermarks domain.WatermarkStore
	BaseURLEN  string
	BaseURLFR  string
}

// New constructs a votes Adapter.
func New(core *httpadapter.Core, watermarks domain.WatermarkStore) *Adapter {
	return &Adapter{
		Core:       core,
		Watermarks: watermarks,
		BaseURLEN:  "https://www.ourcommons.ca/members/en/votes/xml",
		BaseURLFR:  "https://www.ourcommons.ca/members/fr/votes/xml",
	}
}

// ImportVotes fetches the current vote list, skips anything already covered
// by the watermark, and advances the watermark once after the run — the
// exact algorithm of parlvotes.py's import_votes.
func (a *Adapter) ImportVotes(ctx domain.Context) (httpadapter.Response[Record], error) {
	jobName := "votes"
	wm, err := a.Watermarks.Get(ctx, jobName)
	if err != nil {
		return httpadapter.Response[Record]{}, fmt.Errorf("op=votes.import watermark.get: %w", err)
	}

	resp := httpadapter.Response[Record]{Status: httpadapter.StatusSuccess, Source: jobName, FetchTimestamp: time.Now().UTC()}

	frDoc, frErr := a.fetchXML(ctx, a.BaseURLFR, "votes:fr")
	if frErr != nil {
		slog.Warn("french vote list lookup failed, continuing without french descriptions",
			slog.String("job", jobName), slog.Any("error", frErr))
	}
	frDescByKey := indexFrenchDescriptions(frDoc)

	enDoc, fr, err := a.fetchVoteList(ctx)
	if err != nil {
		resp.Status = httpadapter.StatusSourceUnavailable
		resp.Errors = append(resp.Errors, httpadapter.AdapterError{
			Timestamp: time.Now().UTC(), ErrorType: "http", Message: err.Error(), Retryable: true,
		})
		return resp, nil
	}
	resp.Metrics = fr.Metrics
	if fr.NotModified {
		resp.Metadata = map[string]string{"not_modified": "true"}
		return resp, nil
	}

	var latestTS time.Time
	var latestVote int
	var latestKey string

	for _, v := range enDoc.Votes {
		eventDT, parseErr := time.Parse(time.RFC3339, v.DecisionEventDateTime)
		if parseErr != nil {
			resp.Status = httpadapter.StatusPartialSuccess
			resp.Errors = append(resp.Errors, httpadapter.AdapterError{
				Timestamp: time.Now().UTC(), ErrorType: "parse", Message: parseErr.Error(),
				Context: map[string]string{"raw": v.DecisionEventDateTime},
			})
			continue
		}

		if wm.Timestamp.After(eventDT) {
			continue
		}
		if wm.Timestamp.Equal(eventDT) {
			if prevVote, ok := wm.Metadata["vote"]; ok {
				var prevNum int
				_, _ = fmt.Sscanf(prevVote, "%d", &prevNum)
				if v.DecisionDivisionNumber <= prevNum {
					continue
				}
			}
		}

		key := fmt.Sprintf("%d-%d-%d", v.ParliamentNumber, v.SessionNumber, v.DecisionDivisionNumber)
		rec := Record{
			Parliament:      v.ParliamentNumber,
			Session:         v.SessionNumber,
			VoteNumber:      v.DecisionDivisionNumber,
			EventDateTime:   eventDT,
			Description:     v.Description,
			Result:          v.DecisionResultName,
			DecisionDivision: key,
		}
		rec.FrenchDesc = frDescByKey[key] // empty if lookup failed or missing; log-and-continue per DESIGN.md

		resp.Data = append(resp.Data, rec)
		resp.Metrics.RecordsSucceeded++

		if eventDT.After(latestTS) || (eventDT.Equal(latestTS) && v.DecisionDivisionNumber > latestVote) {
			latestTS = eventDT
			latestVote = v.DecisionDivisionNumber
			latestKey = fmt.Sprintf("%d:%d:%d", v.ParliamentNumber, v.SessionNumber, v.DecisionDivisionNumber)
		}
	}
	resp.Metrics.RecordsAttempted = len(enDoc.Votes)

	if !latestTS.IsZero() {
		if err := a.Watermarks.Update(ctx, domain.Watermark{
			JobName:   jobName,
			Timestamp: latestTS,
			Token:     latestKey,
			Metadata:  map[string]string{"vote": fmt.Sprintf("%d", latestVote)},
		}); err != nil {
			return resp, fmt.Errorf("op=votes.import watermark.update: %w", err)
		}
	}

	return resp, nil
}

func (a *Adapter) fetchVoteList(ctx domain.Context) (voteListXML, httpadapter.FetchResult, error) {
	fr, err := a.Core.Get(ctx, a.BaseURLEN, "votes:en")
	if err != nil {
		return voteListXML{}, fr, err
	}
	if fr.NotModified {
		return voteListXML{}, fr, nil
	}
	var doc voteListXML
	if err := xml.Unmarshal(fr.Body, &doc); err != nil {
		return voteListXML{}, fr, fmt.Errorf("op=votes.fetch parse: %w", domain.ErrParseFailure)
	}
	return doc, fr, nil
}

func (a *Adapter) fetchXML(ctx domain.Context, url, cacheKey string) (voteListXML, error) {
	fr, err := a.Core.Get(ctx, url, cacheKey)
	if err != nil {
		return voteListXML{}, err
	}
	var doc voteListXML
	if err := xml.Unmarshal(fr.Body, &doc); err != nil {
		return voteListXML{}, fmt.Errorf("op=votes.fetch_fr parse: %w", domain.ErrParseFailure)
	}
	return doc, nil
}

// indexFrenchDescriptions builds a lookup of "<parl>-<sess>-<vote>" to the
// French description text, tolerant of a nil/empty document (the lookup is
// wrapped in its own error-swallowing path by the caller; this function
// itself never errors).
func indexFrenchDescriptions(doc voteListXML) map[string]string {
	out := make(map[string]string, len(doc.Votes))
	for _, v := range doc.Votes {
		key := fmt.Sprintf("%d-%d-%d", v.ParliamentNumber, v.SessionNumber, v.DecisionDivisionNumber)
		out[key] = v.Description
	}
	return out
}
