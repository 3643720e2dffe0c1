// Package coordinator implements the C6 hourly run coordinator: a single
// pass over a dependency-aware DAG of jobs for one window, ported from
// the reference implementation's HourlyRunCoordinator.
package coordinator

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/internal/observability"
)

// ResultStatus is the terminal outcome the coordinator records for one job
// in one window.
type ResultStatus string

// Result statuses.
const (
	ResultSuccess ResultStatus = "SUCCESS"
	ResultFailed  ResultStatus = "FAILED"
	ResultSkipped ResultStatus = "SKIPPED"
)

// Result is one job's outcome for the run.
type Result struct {
	Status   ResultStatus
	Attempt  int
	Duration time.Duration
	Reason   string
}

// Coordinator runs a fixed set of jobs once per window, honoring
// dependencies, retrying within each job per its MaxAttempts, and bounding
// concurrency to spec.md §4.5's min(len(jobs), 4) default.
type Coordinator struct {
	Jobs        []domain.Job
	Checkpoints domain.CheckpointStore
	MaxParallel int
	BaseDelay   time.Duration
	Logger      *slog.Logger
	sleep       func(time.Duration)
}

// New constructs a Coordinator with spec.md's default parallelism and a
// 60-second base retry delay (spec.md §3 Job.retry_delay_seconds default).
func New(jobs []domain.Job, checkpoints domain.CheckpointStore) *Coordinator {
	maxParallel := len(jobs)
	if maxParallel > 4 {
		maxParallel = 4
	}
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Coordinator{
		Jobs:        jobs,
		Checkpoints: checkpoints,
		MaxParallel: maxParallel,
		BaseDelay:   60 * time.Second,
		Logger:      slog.Default(),
		sleep:       time.Sleep,
	}
}

type jobOutcome struct {
	name   string
	result Result
}

// Run executes every job for window, returning a map of job name to Result.
// It never returns an error for job-level failure/skip; the caller (a CLI
// main) is responsible for translating the returned map into an exit code.
func (c *Coordinator) Run(ctx domain.Context, window time.Time) map[string]Result {
	runID := uuid.New().String()
	logger := c.Logger.With(slog.String("run_id", runID), slog.Time("window", window))

	byName := make(map[string]domain.Job, len(c.Jobs))
	pending := make(map[string]bool, len(c.Jobs))
	for _, j := range c.Jobs {
		byName[j.Name] = j
		pending[j.Name] = true
	}

	results := make(map[string]Result, len(c.Jobs))
	resultsMu := sync.Mutex{}
	outcomes := make(chan jobOutcome, len(c.Jobs))
	inFlight := 0

	submit := func(j domain.Job) {
		inFlight++
		go func() {
			start := time.Now()
			res := c.runJobWithRetries(ctx, j, window, logger)
			outcomes <- jobOutcome{name: j.Name, result: res}
			_ = start
		}()
	}

	for len(pending) > 0 {
		progressed := false
		for name := range pending {
			if inFlight >= c.MaxParallel {
				break
			}
			j := byName[name]
			unmet, failedDeps := c.unmetDependencies(j, results)
			if len(failedDeps) > 0 {
				reason := fmt.Sprintf("unmet dependencies: %v", failedDeps)
				if err := c.Checkpoints.MarkSkipped(ctx, name, window, reason); err != nil {
					logger.Error("mark skipped failed", slog.String("job", name), slog.Any("error", err))
				}
				observability.CheckpointTransitions.WithLabelValues(name, string(domain.StatusSkipped)).Inc()
				resultsMu.Lock()
				results[name] = Result{Status: ResultSkipped, Reason: reason}
				resultsMu.Unlock()
				delete(pending, name)
				progressed = true
				continue
			}
			if unmet {
				continue
			}

			cp, ok, err := c.Checkpoints.PrepareRun(ctx, name, window)
			if err != nil {
				logger.Error("prepare run failed", slog.String("job", name), slog.Any("error", err))
				continue
			}
			if !ok && cp.Status == domain.StatusSuccess {
				resultsMu.Lock()
				results[name] = Result{Status: ResultSuccess, Duration: 0}
				resultsMu.Unlock()
				delete(pending, name)
				progressed = true
				continue
			}
			delete(pending, name)
			submit(j)
			progressed = true
		}

		if inFlight == 0 && len(pending) > 0 && !progressed {
			// Every remaining job is blocked on a dependency that will
			// never complete (cyclic or unresolved): drain here.
			break
		}
		if inFlight > 0 {
			out := <-outcomes
			inFlight--
			resultsMu.Lock()
			results[out.name] = out.result
			resultsMu.Unlock()
		}
	}

	for inFlight > 0 {
		out := <-outcomes
		inFlight--
		resultsMu.Lock()
		results[out.name] = out.result
		resultsMu.Unlock()
	}

	for name := range pending {
		if err := c.Checkpoints.MarkSkipped(ctx, name, window, "unresolved or cyclic dependency"); err != nil {
			logger.Error("mark skipped failed", slog.String("job", name), slog.Any("error", err))
		}
		observability.CheckpointTransitions.WithLabelValues(name, string(domain.StatusSkipped)).Inc()
		results[name] = Result{Status: ResultSkipped, Reason: "unresolved or cyclic dependency"}
	}

	return results
}

// unmetDependencies reports whether j has a dependency with no recorded
// result yet (unmet=true, wait), and separately the names of any
// dependencies that already completed but did not succeed (failedDeps,
// propagate as a skip).
func (c *Coordinator) unmetDependencies(j domain.Job, results map[string]Result) (unmet bool, failedDeps []string) {
	for _, dep := range j.DependsOn {
		r, done := results[dep]
		if !done {
			unmet = true
			continue
		}
		if r.Status != ResultSuccess {
			failedDeps = append(failedDeps, dep)
		}
	}
	return unmet, failedDeps
}

const maxErrorLen = 2000

func truncateError(msg string) string {
	if len(msg) <= maxErrorLen {
		return msg
	}
	return msg[:maxErrorLen-1] + "…"
}

// runJobWithRetries executes j.Run for attempts 1..MaxAttempts, persisting
// checkpoint transitions per spec.md §4.5's per-job executor algorithm.
func (c *Coordinator) runJobWithRetries(ctx domain.Context, j domain.Job, window time.Time, logger *slog.Logger) Result {
	maxAttempts := j.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 2
	}

	cp, _, err := c.Checkpoints.Get(ctx, j.Name, window)
	startAttempt := 1
	if err == nil && cp.WindowStart.Equal(window) {
		startAttempt = cp.Attempts
		if startAttempt < 1 {
			startAttempt = 1
		}
	}

	for a := startAttempt; a <= maxAttempts; a++ {
		start := time.Now()
		runErr := j.Run(ctx, window)
		elapsed := time.Since(start)
		observability.JobDurationSeconds.WithLabelValues(j.Name).Observe(elapsed.Seconds())

		if runErr == nil {
			if err := c.Checkpoints.MarkSuccess(ctx, j.Name, window, elapsed.Seconds()); err != nil {
				logger.Error("mark success failed", slog.String("job", j.Name), slog.Any("error", err))
			}
			observability.JobAttempts.WithLabelValues(j.Name, string(ResultSuccess)).Inc()
			observability.CheckpointTransitions.WithLabelValues(j.Name, string(domain.StatusSuccess)).Inc()
			return Result{Status: ResultSuccess, Attempt: a, Duration: elapsed}
		}

		observability.JobAttempts.WithLabelValues(j.Name, string(ResultFailed)).Inc()
		final := a == maxAttempts
		exhausted, cpErr := c.Checkpoints.RecordAttemptFailure(ctx, j.Name, window, truncateError(runErr.Error()), maxAttempts, elapsed.Seconds())
		if cpErr != nil {
			logger.Error("record attempt failure failed", slog.String("job", j.Name), slog.Any("error", cpErr))
		}
		if final || exhausted {
			observability.CheckpointTransitions.WithLabelValues(j.Name, string(domain.StatusFailed)).Inc()
			return Result{Status: ResultFailed, Attempt: a, Duration: elapsed, Reason: runErr.Error()}
		}

		// Persist the retry preparation so the stored attempt counter
		// advances to the next attempt before it runs.
		if _, _, err := c.Checkpoints.PrepareRun(ctx, j.Name, window); err != nil {
			logger.Error("prepare retry failed", slog.String("job", j.Name), slog.Any("error", err))
		}
		retryIndex := a - startAttempt + 1
		delay := c.BaseDelay * time.Duration(1<<uint(retryIndex-1))
		logger.Warn("job attempt failed, retrying",
			slog.String("job", j.Name), slog.Int("attempt", a), slog.Duration("delay", delay), slog.Any("error", runErr))
		c.sleep(delay)
	}
	return Result{Status: ResultFailed, Attempt: maxAttempts}
}
