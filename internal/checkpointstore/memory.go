// Package checkpointstore implements the C2 checkpoint persistence and
// row-level exclusion contract: the IDLE/RUNNING/SUCCESS/FAILED/SKIPPED
// state machine of spec.md §4.2.
package checkpointstore

import (
	"strings"
	"sync"
	"time"

	"github.com/truecivic/ingestor/internal/domain"
)

const maxErrorLen = 2000

func truncateError(msg string) string {
	if len(msg) <= maxErrorLen {
		return msg
	}
	return msg[:maxErrorLen-1] + "…"
}

type rowKey struct {
	job    string
	window time.Time
}

// MemoryStore is an in-process checkpoint store for tests and single-process
// deployments; exclusion is a plain mutex rather than a database row lock.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]domain.Checkpoint // keyed by job name; one row per job
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]domain.Checkpoint)}
}

// PrepareRun attempts to transition jobName's checkpoint into RUNNING for
// window, per spec.md §4.2 steps 1-3. ok is false when the job already
// succeeded for this window.
func (s *MemoryStore) PrepareRun(_ domain.Context, jobName string, window time.Time) (domain.Checkpoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, existed := s.rows[jobName]
	if existed && cp.WindowStart.Equal(window) && cp.Status == domain.StatusSuccess {
		return cp, false, nil
	}

	attempt := 1
	if existed && cp.WindowStart.Equal(window) {
		attempt = cp.Attempts + 1
	}

	cp = domain.Checkpoint{
		JobName:     jobName,
		WindowStart: window,
		Status:      domain.StatusRunning,
		Attempts:    attempt,
		StartedAt:   time.Now().UTC(),
	}
	s.rows[jobName] = cp
	return cp, true, nil
}

// MarkSuccess records a terminal SUCCESS for jobName's current window.
func (s *MemoryStore) MarkSuccess(_ domain.Context, jobName string, window time.Time, durationSeconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.rows[jobName]
	cp.JobName = jobName
	cp.WindowStart = window
	cp.Status = domain.StatusSuccess
	cp.LastError = ""
	cp.FinishedAt = time.Now().UTC()
	cp.LastDurationSeconds = durationSeconds
	s.rows[jobName] = cp
	return nil
}

// RecordAttemptFailure records a failed attempt. If attempts have reached
// maxAttempts, the checkpoint transitions to terminal FAILED (exhausted);
// otherwise it remains RUNNING, awaiting the next PrepareRun call.
func (s *MemoryStore) RecordAttemptFailure(_ domain.Context, jobName string, window time.Time, errMsg string, maxAttempts int, durationSeconds float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.rows[jobName]
	cp.JobName = jobName
	cp.WindowStart = window
	cp.LastError = truncateError(errMsg)
	cp.LastDurationSeconds = durationSeconds
	exhausted := cp.Attempts >= maxAttempts
	if exhausted {
		cp.Status = domain.StatusFailed
		cp.FinishedAt = time.Now().UTC()
	}
	s.rows[jobName] = cp
	return exhausted, nil
}

// MarkSkipped records a SKIPPED outcome (unmet dependencies, or cyclic/
// unresolved at drain time), with attempts reset to 0 per spec.md §4.2.
func (s *MemoryStore) MarkSkipped(_ domain.Context, jobName string, window time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.rows[jobName] = domain.Checkpoint{
		JobName:     jobName,
		WindowStart: window,
		Status:      domain.StatusSkipped,
		Attempts:    0,
		LastError:   truncateError(strings.TrimSpace(reason)),
		StartedAt:   now,
		FinishedAt:  now,
	}
	return nil
}

// Get returns the stored checkpoint for jobName's window, if it matches.
func (s *MemoryStore) Get(_ domain.Context, jobName string, window time.Time) (domain.Checkpoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.rows[jobName]
	if !ok || !cp.WindowStart.Equal(window) {
		return domain.Checkpoint{}, false, nil
	}
	return cp, true, nil
}
