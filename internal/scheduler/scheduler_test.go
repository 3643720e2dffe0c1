package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/truecivic/ingestor/internal/domain"
)

func TestSchedulerSingletonRejectsSecondStart(t *testing.T) {
	var firstRunCount int32
	first, err := New("UTC", func(ctx domain.Context, window time.Time) {
		atomic.AddInt32(&firstRunCount, 1)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("expected first Start to succeed, got %v", err)
	}
	defer first.Shutdown()
	if isWeekday(time.Now()) && atomic.LoadInt32(&firstRunCount) != 1 {
		t.Fatalf("expected Start to run the current window immediately, got %d runs", firstRunCount)
	}

	second, err := New("UTC", func(ctx domain.Context, window time.Time) {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = second.Start(context.Background())
	if err == nil {
		t.Fatalf("expected second Start in the same process to fail")
	}
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSchedulerRejectsUnknownTimeZone(t *testing.T) {
	_, err := New("Not/AZone", func(ctx domain.Context, window time.Time) {})
	if err == nil {
		t.Fatalf("expected an error for an unknown IANA zone")
	}
}

func TestSchedulerTickCoalescesOverlappingFires(t *testing.T) {
	var runCount int32
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	s := &Scheduler{
		run: func(ctx domain.Context, window time.Time) {
			atomic.AddInt32(&runCount, 1)
			started <- struct{}{}
			<-release
		},
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tickWithLocation(context.Background(), time.UTC)
	}()
	<-started

	// A second fire while the first is still running must be skipped, not
	// queued: runCount stays at 1.
	s.tickWithLocation(context.Background(), time.UTC)
	if got := atomic.LoadInt32(&runCount); got != 1 {
		t.Fatalf("expected overlapping tick to be coalesced (runCount=1), got %d", got)
	}

	close(release)
	wg.Wait()
}

func TestRunNowInvokesSynchronously(t *testing.T) {
	var called bool
	window := RunNow(func(ctx domain.Context, w time.Time) {
		called = true
	}, context.Background())
	if !called {
		t.Fatalf("expected RunNow to invoke run synchronously")
	}
	if window.IsZero() {
		t.Fatalf("expected RunNow to return a non-zero window")
	}
}
