// Package wiring assembles the concrete dependency graph shared by every
// cmd/ binary: config, logging, tracing, Postgres, the C1/C2/owned stores,
// the C3 HTTP adapter cores, the C4 source adapters, and the C5 job list.
package wiring

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/truecivic/ingestor/internal/adapter/repo/postgres"
	"github.com/truecivic/ingestor/internal/checkpointstore"
	"github.com/truecivic/ingestor/internal/circuitbreaker"
	"github.com/truecivic/ingestor/internal/config"
	"github.com/truecivic/ingestor/internal/coordinator"
	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/internal/httpadapter"
	"github.com/truecivic/ingestor/internal/jobs"
	"github.com/truecivic/ingestor/internal/observability"
	"github.com/truecivic/ingestor/internal/ragupsert"
	"github.com/truecivic/ingestor/internal/ratelimit"
	"github.com/truecivic/ingestor/internal/source/committees"
	"github.com/truecivic/ingestor/internal/source/hansard"
	"github.com/truecivic/ingestor/internal/source/mps"
	"github.com/truecivic/ingestor/internal/source/publicationsearch"
	"github.com/truecivic/ingestor/internal/source/votes"
	"github.com/truecivic/ingestor/internal/watermarkstore"
)

// App bundles every constructed component a cmd/ binary might need.
type App struct {
	Config      config.Config
	Pool        *pgxpool.Pool
	Watermarks  domain.WatermarkStore
	Checkpoints domain.CheckpointStore
	FetchLogs   domain.FetchLogRepository
	Jobs        []domain.Job
	Coordinator *coordinator.Coordinator
	Shutdown    func(context.Context) error
}

// Build constructs the full App graph from environment configuration.
func Build(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("op=wiring.build config: %w", err)
	}
	_ = observability.SetupLogger(cfg)
	tracingShutdown, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("op=wiring.build tracing: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("op=wiring.build postgres: %w", err)
	}

	watermarks := watermarkstore.NewPostgresStore(pool)
	checkpoints := checkpointstore.NewPostgresStore(pool)
	fetchLogs := postgres.NewFetchLogRepo(pool)

	sourceOverrides, err := config.LoadSourceOverrides(cfg.SourceOverridesPath)
	if err != nil {
		return nil, fmt.Errorf("op=wiring.build source_overrides: %w", err)
	}

	core := func(source string) *httpadapter.Core {
		rateLimit, burst := cfg.HouseRateLimitPerSecond, cfg.HouseRateLimitBurst
		breakerThreshold, breakerCooldown := cfg.HouseCircuitBreakerThreshold, cfg.HouseCircuitBreakerCooldown
		maxRetries := cfg.HouseMaxRetries
		if o, ok := sourceOverrides[source]; ok {
			if o.RateLimitPerSecond > 0 {
				rateLimit = o.RateLimitPerSecond
			}
			if o.RateLimitBurst > 0 {
				burst = o.RateLimitBurst
			}
			if o.MaxRetries > 0 {
				maxRetries = o.MaxRetries
			}
			if o.CircuitBreakerThreshold > 0 {
				breakerThreshold = o.CircuitBreakerThreshold
			}
			if o.CircuitBreakerCooldown > 0 {
				breakerCooldown = o.CircuitBreakerCooldown
			}
		}
		limiter := ratelimit.NewTokenBucket(rateLimit, burst)
		breaker := circuitbreaker.New(source, breakerThreshold, breakerCooldown)
		client := &http.Client{Timeout: cfg.HTTPRequestTimeout}
		c := httpadapter.NewCore(source, client, limiter, breaker, cfg.OTELServiceName+"/1.0")
		c.MaxRetries = maxRetries
		return c
	}

	votesAdapter := votes.New(core("votes"), watermarks)
	hansardAdapter := hansard.New(core("hansard"), watermarks,
		"https://www.ourcommons.ca/documentviewer/en/house/latest",
		"https://www.ourcommons.ca/documentviewer/fr/house/latest")
	billsAdapter := publicationsearch.New(core("bills"), "https://www.ourcommons.ca/publicationsearch/en/?Type=Bill")
	committeesAdapter := committees.New(core("committees"),
		"https://www.ourcommons.ca/Committees/en/List", "https://www.ourcommons.ca/Committees/en",
		"https://www.ourcommons.ca/Committees/en/Meetings")
	mpsAdapter := mps.New(core("mps"))

	embedder := ragupsert.NewOpenAIEmbedder(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingsModel)
	vectorStore := ragupsert.NewQdrantStore(cfg.QdrantURL, cfg.QdrantAPIKey, "Cosine", cfg.QdrantCollection)
	ingestor := ragupsert.NewIngestor(embedder, vectorStore, cfg.RAGChunkMaxChars, cfg.RAGChunkMaxTokens, 1536, cfg.QdrantCollection)

	deps := jobs.Deps{
		Watermarks:        watermarks,
		FetchLogs:         fetchLogs,
		MPsAdapter:        mpsAdapter,
		VotesAdapter:      votesAdapter,
		HansardAdapter:    hansardAdapter,
		BillsAdapter:      billsAdapter,
		CommitteesAdapter: committeesAdapter,
		Ingestor:          ingestor,
		MPsListURL:        "https://www.ourcommons.ca/members/en/search/json",
	}
	jobList := jobs.Default8(deps)
	coord := coordinator.New(jobList, checkpoints)
	coord.MaxParallel = cfg.ETLSchedulerMaxWorkers
	if coord.MaxParallel < 1 {
		coord.MaxParallel = 1
	}

	return &App{
		Config:      cfg,
		Pool:        pool,
		Watermarks:  watermarks,
		Checkpoints: checkpoints,
		FetchLogs:   fetchLogs,
		Jobs:        jobList,
		Coordinator: coord,
		Shutdown:    tracingShutdown,
	}, nil
}

// JobNames extracts the name of every wired job, for admin introspection.
func (a *App) JobNames() []string {
	names := make([]string, len(a.Jobs))
	for i, j := range a.Jobs {
		names[i] = j.Name
	}
	return names
}

// ExitCode translates a coordinator result map into a process exit code:
// 0 if every job SUCCEEDED, 1 otherwise.
func ExitCode(results map[string]coordinator.Result) int {
	for _, r := range results {
		if r.Status != coordinator.ResultSuccess {
			return 1
		}
	}
	return 0
}

// Window truncates now to the top of the hour, in UTC.
func Window(now time.Time) time.Time {
	return now.UTC().Truncate(time.Hour)
}
