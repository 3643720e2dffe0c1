// Package scheduler implements the C7 weekday-hourly scheduler: Mon-Fri,
// minute 0, in a configured IANA timezone, with misfire coalescing and a
// process-wide singleton so at most one ticker ever runs per process.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/truecivic/ingestor/internal/domain"
)

var (
	singletonMu       sync.Mutex
	singletonStarted  bool
)

// RunFunc is invoked once per scheduled tick with the hourly window it
// represents (truncated to the hour, in the scheduler's configured zone).
type RunFunc func(ctx domain.Context, window time.Time)

// Scheduler wraps a cron.Cron configured for Mon-Fri, minute 0.
type Scheduler struct {
	cron   *cron.Cron
	run    RunFunc
	logger *slog.Logger
	mu     sync.Mutex
	busy   bool
}

// New constructs a Scheduler in the named IANA zone (e.g. "America/Toronto").
// Only one Scheduler may be started per process; New itself is cheap and may
// be called repeatedly, but Start enforces the singleton.
func New(timeZone string, run RunFunc) (*Scheduler, error) {
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, fmt.Errorf("op=scheduler.new zone=%s: %w", timeZone, err)
	}
	c := cron.New(cron.WithLocation(loc))
	return &Scheduler{cron: c, run: run, logger: slog.Default()}, nil
}

// Start registers the Mon-Fri minute-0 job and starts the cron loop, then
// runs the current window immediately (matching scheduler.py's
// start() -> run_now()), subject to the same weekend guard a cron-triggered
// tick would have anyway. It returns an error if a Scheduler has already
// been started in this process (the init-mutex singleton of spec.md §4.6).
func (s *Scheduler) Start(ctx domain.Context) error {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singletonStarted {
		return fmt.Errorf("op=scheduler.start: %w: scheduler already running in this process", domain.ErrConflict)
	}

	_, err := s.cron.AddFunc("0 * * * 1-5", func() {
		s.tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("op=scheduler.start: %w", err)
	}
	s.cron.Start()
	singletonStarted = true

	if window := time.Now().In(s.cron.Location()).Truncate(time.Hour); isWeekday(window) {
		s.tick(ctx)
	} else if s.logger != nil {
		s.logger.Debug("scheduler start: skipping immediate run-now, window falls on a weekend", slog.Time("window", window))
	}
	return nil
}

// tick coalesces overlapping fires: if the previous window is still
// running when the next tick lands, the new tick is skipped and logged
// rather than queued, per spec.md §4.6's coalescing requirement.
func (s *Scheduler) tick(ctx domain.Context) {
	s.tickWithLocation(ctx, s.cron.Location())
}

// tickWithLocation runs one tick for the hourly window in loc, coalescing
// with any tick already in flight. Split out from tick so tests can drive
// the coalescing logic without a live cron.Cron.
func (s *Scheduler) tickWithLocation(ctx domain.Context, loc *time.Location) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.Warn("scheduler tick skipped: previous window still running")
		}
		return
	}
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	window := time.Now().In(loc).Truncate(time.Hour)
	s.run(ctx, window)
}

// isWeekday reports whether window falls on a Monday-Friday, in whatever
// zone it was computed in.
func isWeekday(window time.Time) bool {
	d := window.Weekday()
	return d != time.Saturday && d != time.Sunday
}

// RunNow invokes run synchronously for the current hour, bypassing the
// cron schedule entirely (used by the run-hourly-once CLI).
func RunNow(run RunFunc, ctx domain.Context) time.Time {
	window := time.Now().UTC().Truncate(time.Hour)
	run(ctx, window)
	return window
}

// Shutdown stops the cron loop and waits for any in-flight tick to finish.
func (s *Scheduler) Shutdown() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// WaitForever blocks until ctx is canceled; callers use this after Start to
// keep the process alive.
func (s *Scheduler) WaitForever(ctx domain.Context) {
	<-ctx.Done()
}
