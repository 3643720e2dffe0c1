package watermarkstore

import (
	"context"
	"testing"
	"time"

	"github.com/truecivic/ingestor/internal/domain"
)

func TestGetReturnsZeroValueWatermarkForUnknownJob(t *testing.T) {
	s := NewMemoryStore()
	w, err := s.Get(context.Background(), "mps")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.Timestamp.IsZero() || w.JobName != "mps" {
		t.Fatalf("unexpected watermark: %+v", w)
	}
}

func TestUpdateAdvancesTimestampButNeverRegresses(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	later := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	earlier := later.Add(-24 * time.Hour)

	if err := s.Update(ctx, domain.Watermark{JobName: "votes", Timestamp: later, Token: "v2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Update(ctx, domain.Watermark{JobName: "votes", Timestamp: earlier, Token: "v1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Get(ctx, "votes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Timestamp.Equal(later) || got.Token != "v2" {
		t.Fatalf("expected the watermark to hold at the later value, got %+v", got)
	}
}

func TestShouldProcessAdvancesOnLaterCandidateOrDifferentToken(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ok, err := s.ShouldProcess(ctx, "mps", base, "tok-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected ShouldProcess to be true when no watermark exists yet")
	}

	if err := s.Update(ctx, domain.Watermark{JobName: "mps", Timestamp: base, Token: "tok-a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err = s.ShouldProcess(ctx, "mps", base, "tok-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ShouldProcess to be false for the identical timestamp and token")
	}

	ok, err = s.ShouldProcess(ctx, "mps", base, "tok-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected ShouldProcess to be true when the token differs at the same timestamp")
	}

	ok, err = s.ShouldProcess(ctx, "mps", base.Add(time.Hour), "tok-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected ShouldProcess to be true for a strictly later candidate")
	}
}
