// Package fetchlogstore provides a test-friendly in-memory implementation of
// the owned fetch_log audit trail, mirroring internal/adapter/repo/postgres's
// FetchLogRepo.
package fetchlogstore

import (
	"sync"

	"github.com/truecivic/ingestor/internal/domain"
)

// MemoryStore records fetch_log rows in-process, for tests.
type MemoryStore struct {
	mu   sync.Mutex
	Rows []domain.FetchLog
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Create appends rec to the in-memory log.
func (s *MemoryStore) Create(_ domain.Context, rec domain.FetchLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Rows = append(s.Rows, rec)
	return nil
}
