package fetchlogstore

import (
	"context"
	"testing"
	"time"

	"github.com/truecivic/ingestor/internal/domain"
)

func TestCreateAppendsRows(t *testing.T) {
	s := NewMemoryStore()
	rec := domain.FetchLog{
		JobName:     "mps",
		WindowStart: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		Status:      "success",
		AttemptedAt: time.Now().UTC(),
	}
	if err := s.Create(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Create(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Rows) != 2 {
		t.Fatalf("expected 2 rows recorded, got %d", len(s.Rows))
	}
	if s.Rows[0].JobName != "mps" {
		t.Fatalf("unexpected row: %+v", s.Rows[0])
	}
}
