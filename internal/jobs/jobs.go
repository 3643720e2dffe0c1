// Package jobs wires the C4 source adapters, the watermark store, the
// fetch log, and the RAG ingestion pipeline into the eight domain.Job closures
// the coordinator schedules each hourly window.
package jobs

import (
	"fmt"
	"time"

	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/internal/ragupsert"
	"github.com/truecivic/ingestor/internal/source/committees"
	"github.com/truecivic/ingestor/internal/source/hansard"
	"github.com/truecivic/ingestor/internal/source/mps"
	"github.com/truecivic/ingestor/internal/source/publicationsearch"
	"github.com/truecivic/ingestor/internal/source/votes"
)

// Deps bundles every collaborator a job closure might need. Not every job
// uses every field.
type Deps struct {
	Watermarks         domain.WatermarkStore
	FetchLogs          domain.FetchLogRepository
	MPsAdapter         *mps.Adapter
	VotesAdapter       *votes.Adapter
	HansardAdapter     *hansard.Adapter
	BillsAdapter       *publicationsearch.Adapter
	CommitteesAdapter  *committees.Adapter
	Ingestor           *ragupsert.Ingestor

	MPsListURL        string
	BillsSearchURL    string
	HansardListingURL string
	HansardSittings   []HansardSitting
}

// HansardSitting identifies one sitting the hansards job should fetch for
// the window; the scheduler/cmd layer is responsible for enumerating these
// (e.g. from a publication-search pass) before invoking the coordinator.
type HansardSitting struct {
	Parliament  int
	Session     int
	DocumentID  string
	SittingDate time.Time
}

func recordFetchLog(ctx domain.Context, d Deps, jobName string, window time.Time, status string, started time.Time, errMsg string) {
	if d.FetchLogs == nil {
		return
	}
	_ = d.FetchLogs.Create(ctx, domain.FetchLog{
		JobName:     jobName,
		WindowStart: window,
		Status:      status,
		AttemptedAt: started,
		DurationMS:  time.Since(started).Milliseconds(),
		Error:       errMsg,
	})
}

// Default8 builds the eight jobs: mps, votes (deps=mps), bills, hansards,
// committees, committee_evidence (deps=committees), summaries
// (deps=hansards), and rag_ingest (deps=all seven others).
func Default8(d Deps) []domain.Job {
	return []domain.Job{
		{
			Name:        "mps",
			MaxAttempts: 2,
			Run:         func(ctx domain.Context, window time.Time) error { return runMPs(ctx, d, window) },
		},
		{
			Name:        "votes",
			DependsOn:   []string{"mps"},
			MaxAttempts: 3,
			Run:         func(ctx domain.Context, window time.Time) error { return runVotes(ctx, d, window) },
		},
		{
			Name:        "bills",
			MaxAttempts: 2,
			Run:         func(ctx domain.Context, window time.Time) error { return runBills(ctx, d, window) },
		},
		{
			Name:        "hansards",
			MaxAttempts: 3,
			Run:         func(ctx domain.Context, window time.Time) error { return runHansards(ctx, d, window) },
		},
		{
			Name:        "committees",
			MaxAttempts: 2,
			Run:         func(ctx domain.Context, window time.Time) error { return runCommittees(ctx, d, window) },
		},
		{
			Name:        "committee_evidence",
			DependsOn:   []string{"committees"},
			MaxAttempts: 2,
			Run:         func(ctx domain.Context, window time.Time) error { return runCommitteeEvidence(ctx, d, window) },
		},
		{
			Name:        "summaries",
			DependsOn:   []string{"hansards"},
			MaxAttempts: 2,
			Run:         func(ctx domain.Context, window time.Time) error { return runSummaries(ctx, d, window) },
		},
		{
			Name: "rag_ingest",
			DependsOn: []string{
				"mps", "votes", "bills", "hansards", "committees", "committee_evidence", "summaries",
			},
			MaxAttempts: 2,
			Run:         func(ctx domain.Context, window time.Time) error { return runRAGIngest(ctx, d, window) },
		},
	}
}

func runVotes(ctx domain.Context, d Deps, window time.Time) error {
	started := time.Now()
	resp, err := d.VotesAdapter.ImportVotes(ctx)
	if err != nil {
		recordFetchLog(ctx, d, "votes", window, "FAILED", started, err.Error())
		return fmt.Errorf("op=jobs.votes: %w", err)
	}
	recordFetchLog(ctx, d, "votes", window, string(resp.Status), started, "")
	if resp.Status == "FAILURE" || resp.Status == "SOURCE_UNAVAILABLE" {
		return fmt.Errorf("op=jobs.votes status=%s: %w", resp.Status, domain.ErrRetryable)
	}
	return nil
}
