// Package watermarkstore implements the C1 watermark persistence contract:
// get/update/should_process with the monotonic merge rules of spec.md §4.1.
package watermarkstore

import (
	"sync"
	"time"

	"github.com/truecivic/ingestor/internal/domain"
)

// MemoryStore is an in-process, mutex-guarded implementation, used by tests
// and any single-process deployment that doesn't need cross-process
// exclusion (the watermark row lock only matters when multiple coordinator
// replicas can race, per spec.md §5).
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]domain.Watermark
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]domain.Watermark)}
}

// Get returns the stored watermark for jobName, or a zero-value watermark
// (Timestamp.IsZero()==true) if absent.
func (s *MemoryStore) Get(_ domain.Context, jobName string) (domain.Watermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.rows[jobName]
	if !ok {
		return domain.Watermark{JobName: jobName}, nil
	}
	return w, nil
}

// Update applies the merge rules of spec.md §4.1 atomically.
func (s *MemoryStore) Update(_ domain.Context, w domain.Watermark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior, existed := s.rows[w.JobName]

	merged := prior
	merged.JobName = w.JobName
	changed := !existed

	timestampAdvanced := false
	if !w.Timestamp.IsZero() {
		if prior.Timestamp.IsZero() || w.Timestamp.After(prior.Timestamp) {
			merged.Timestamp = w.Timestamp
			timestampAdvanced = true
			changed = true
		}
	}

	if w.Token != "" {
		sameTimestamp := !prior.Timestamp.IsZero() && !w.Timestamp.IsZero() && w.Timestamp.Equal(prior.Timestamp)
		if timestampAdvanced || (sameTimestamp && w.Token != prior.Token) || prior.Timestamp.IsZero() {
			if merged.Token != w.Token {
				merged.Token = w.Token
				changed = true
			}
		}
	}

	if len(w.Metadata) > 0 {
		mergedMeta := make(map[string]string, len(prior.Metadata)+len(w.Metadata))
		for k, v := range prior.Metadata {
			mergedMeta[k] = v
		}
		for k, v := range w.Metadata {
			if mergedMeta[k] != v {
				changed = true
			}
			mergedMeta[k] = v
		}
		merged.Metadata = mergedMeta
	}

	if !changed {
		return nil
	}
	merged.UpdatedAt = time.Now().UTC()
	s.rows[w.JobName] = merged
	return nil
}

// ShouldProcess returns true if the stored timestamp is absent, candidate is
// strictly later, or the timestamps are equal but the tokens differ.
func (s *MemoryStore) ShouldProcess(_ domain.Context, jobName string, candidate time.Time, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.rows[jobName]
	if !ok || w.Timestamp.IsZero() {
		return true, nil
	}
	if candidate.After(w.Timestamp) {
		return true, nil
	}
	if candidate.Equal(w.Timestamp) && token != w.Token {
		return true, nil
	}
	return false, nil
}
