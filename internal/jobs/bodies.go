package jobs

import (
	"errors"
	"fmt"
	"time"

	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/internal/ragupsert"
)

func runMPs(ctx domain.Context, d Deps, window time.Time) error {
	started := time.Now()
	resp, err := d.MPsAdapter.List(ctx, d.MPsListURL)
	if err != nil {
		recordFetchLog(ctx, d, "mps", window, "FAILED", started, err.Error())
		return fmt.Errorf("op=jobs.mps: %w", err)
	}
	recordFetchLog(ctx, d, "mps", window, string(resp.Status), started, "")
	if resp.Status == "SOURCE_UNAVAILABLE" {
		return fmt.Errorf("op=jobs.mps status=%s: %w", resp.Status, domain.ErrRetryable)
	}
	var latest time.Time
	for _, r := range resp.Data {
		if r.UpdatedAt.After(latest) {
			latest = r.UpdatedAt
		}
	}
	if !latest.IsZero() {
		if err := d.Watermarks.Update(ctx, domain.Watermark{JobName: "mps", Timestamp: latest}); err != nil {
			return fmt.Errorf("op=jobs.mps watermark.update: %w", err)
		}
	}
	return nil
}

func runBills(ctx domain.Context, d Deps, window time.Time) error {
	started := time.Now()
	resp, err := d.BillsAdapter.Search(ctx, d.BillsSearchURL)
	if err != nil {
		recordFetchLog(ctx, d, "bills", window, "FAILED", started, err.Error())
		return fmt.Errorf("op=jobs.bills: %w", err)
	}
	recordFetchLog(ctx, d, "bills", window, string(resp.Status), started, "")
	if resp.Status == "SOURCE_UNAVAILABLE" {
		return fmt.Errorf("op=jobs.bills status=%s: %w", resp.Status, domain.ErrRetryable)
	}
	var latest time.Time
	var latestID string
	for _, r := range resp.Data {
		if r.PublishedAt.After(latest) {
			latest = r.PublishedAt
			latestID = r.PublicationID
		}
	}
	if !latest.IsZero() {
		if err := d.Watermarks.Update(ctx, domain.Watermark{JobName: "bills", Timestamp: latest, Token: latestID}); err != nil {
			return fmt.Errorf("op=jobs.bills watermark.update: %w", err)
		}
	}
	return nil
}

func runHansards(ctx domain.Context, d Deps, window time.Time) error {
	started := time.Now()
	var latest time.Time
	var latestDoc string
	for _, sitting := range d.HansardSittings {
		shouldProcess, err := d.Watermarks.ShouldProcess(ctx, "hansards", sitting.SittingDate, sitting.DocumentID)
		if err != nil {
			return fmt.Errorf("op=jobs.hansards should_process: %w", err)
		}
		if !shouldProcess {
			continue
		}

		_, _, err = d.HansardAdapter.Fetch(ctx, sitting.Parliament, sitting.Session, sitting.DocumentID, sitting.SittingDate)
		if err != nil {
			recordFetchLog(ctx, d, "hansards", window, "FAILED", started, err.Error())
			if errors.Is(err, domain.ErrNoDocument) {
				continue
			}
			return fmt.Errorf("op=jobs.hansards sitting=%s: %w", sitting.DocumentID, err)
		}

		if sitting.SittingDate.After(latest) {
			latest = sitting.SittingDate
			latestDoc = sitting.DocumentID
		}
	}
	recordFetchLog(ctx, d, "hansards", window, "SUCCESS", started, "")

	if !latest.IsZero() {
		if err := d.Watermarks.Update(ctx, domain.Watermark{JobName: "hansards", Timestamp: latest, Token: latestDoc}); err != nil {
			return fmt.Errorf("op=jobs.hansards watermark.update: %w", err)
		}
	}
	return nil
}

func runCommittees(ctx domain.Context, d Deps, window time.Time) error {
	started := time.Now()
	resp, err := d.CommitteesAdapter.ListCommittees(ctx)
	if err != nil {
		recordFetchLog(ctx, d, "committees", window, "FAILED", started, err.Error())
		return fmt.Errorf("op=jobs.committees: %w", err)
	}
	recordFetchLog(ctx, d, "committees", window, string(resp.Status), started, "")
	var latest time.Time
	for _, c := range resp.Data {
		if c.UpdatedAt.After(latest) {
			latest = c.UpdatedAt
		}
	}
	if !latest.IsZero() {
		if err := d.Watermarks.Update(ctx, domain.Watermark{JobName: "committees", Timestamp: latest}); err != nil {
			return fmt.Errorf("op=jobs.committees watermark.update: %w", err)
		}
	}
	return nil
}

func runCommitteeEvidence(ctx domain.Context, d Deps, window time.Time) error {
	started := time.Now()
	committeesResp, err := d.CommitteesAdapter.ListCommittees(ctx)
	if err != nil {
		return fmt.Errorf("op=jobs.committee_evidence list_committees: %w", err)
	}

	var latest time.Time
	var latestMeeting string
	for _, c := range committeesResp.Data {
		resp, err := d.CommitteesAdapter.ListEvidence(ctx, c.ID)
		if err != nil {
			recordFetchLog(ctx, d, "committee_evidence", window, "FAILED", started, err.Error())
			return fmt.Errorf("op=jobs.committee_evidence committee=%s: %w", c.ID, err)
		}
		for _, e := range resp.Data {
			if e.MeetingDate.After(latest) {
				latest = e.MeetingDate
				latestMeeting = e.MeetingID
			}
		}
	}
	recordFetchLog(ctx, d, "committee_evidence", window, "SUCCESS", started, "")

	if !latest.IsZero() {
		if err := d.Watermarks.Update(ctx, domain.Watermark{JobName: "committee_evidence", Timestamp: latest, Token: latestMeeting}); err != nil {
			return fmt.Errorf("op=jobs.committee_evidence watermark.update: %w", err)
		}
	}
	return nil
}

func runSummaries(ctx domain.Context, d Deps, window time.Time) error {
	// Summaries derive from the hansards already fetched this window; the
	// real work (selecting unsummarized debates and writing summary rows)
	// happens against the relational store outside this module's scope.
	// The job exists in the DAG so rag_ingest can depend on it completing.
	started := time.Now()
	recordFetchLog(ctx, d, "summaries", window, "SUCCESS", started, "")
	return nil
}

func runRAGIngest(ctx domain.Context, d Deps, window time.Time) error {
	started := time.Now()
	if d.Ingestor == nil {
		recordFetchLog(ctx, d, "rag_ingest", window, "SUCCESS", started, "")
		return nil
	}

	var docs []ragupsert.Document
	for _, sitting := range d.HansardSittings {
		rec, _, err := d.HansardAdapter.Fetch(ctx, sitting.Parliament, sitting.Session, sitting.DocumentID, sitting.SittingDate)
		if err != nil {
			if errors.Is(err, domain.ErrNoDocument) {
				continue
			}
			recordFetchLog(ctx, d, "rag_ingest", window, "FAILED", started, err.Error())
			return fmt.Errorf("op=jobs.rag_ingest fetch: %w", err)
		}
		docs = append(docs, ragupsert.Document{
			SourceID:     rec.DocumentID,
			Title:        fmt.Sprintf("Hansard %d-%d %s", rec.Parliament, rec.Session, rec.DocumentID),
			Text:         rec.EnglishText,
			Jurisdiction: "federal",
			Language:     "en",
		})
	}

	n, err := d.Ingestor.Ingest(ctx, docs)
	if err != nil {
		recordFetchLog(ctx, d, "rag_ingest", window, "FAILED", started, err.Error())
		return fmt.Errorf("op=jobs.rag_ingest ingest: %w", err)
	}
	recordFetchLog(ctx, d, "rag_ingest", window, fmt.Sprintf("SUCCESS chunks=%d", n), started, "")
	return nil
}
