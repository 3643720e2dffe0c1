// Package domain defines core entities, ports, and domain-specific errors
// shared by the coordinator, source adapters, and persistence layers.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels). Adapter and store errors wrap one of these so
// callers can branch with errors.Is without string matching.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRetryable       = errors.New("retryable upstream error")
	ErrCircuitOpen     = errors.New("circuit open")
	ErrParseFailure    = errors.New("upstream payload parse failure")
	ErrNoDocument      = errors.New("no document at source")
	ErrInternal        = errors.New("internal error")
)

// Context is a type alias to stdlib context.Context, matched across layers
// so adapters and stores share one import-free signature.
type Context = context.Context

// CheckpointStatus is the lifecycle state of one job's most recent window.
type CheckpointStatus string

// Checkpoint status values, per the coordinator's state machine.
const (
	StatusIdle    CheckpointStatus = "idle"
	StatusRunning CheckpointStatus = "running"
	StatusSuccess CheckpointStatus = "success"
	StatusFailed  CheckpointStatus = "failed"
	StatusSkipped CheckpointStatus = "skipped"
)

// Checkpoint is the persistent per-job execution record for the most recent
// window it was attempted in.
type Checkpoint struct {
	JobName             string
	WindowStart         time.Time
	Status              CheckpointStatus
	Attempts            int
	LastError           string
	StartedAt           time.Time
	FinishedAt          time.Time
	LastDurationSeconds float64
}

// HasCompleted reports whether the checkpoint already reached a terminal,
// non-retryable state for its window.
func (c Checkpoint) HasCompleted() bool {
	return c.Status == StatusSuccess || c.Status == StatusSkipped
}

// Watermark is the persistent per-job high-water mark that makes source
// adapters idempotent across repeated runs.
type Watermark struct {
	JobName   string
	Timestamp time.Time
	Token     string
	Metadata  map[string]string
	UpdatedAt time.Time
}

// Job describes one node of the dependency-aware DAG the coordinator runs
// once per hourly window.
type Job struct {
	Name        string
	DependsOn   []string
	MaxAttempts int
	Run         func(ctx Context, window time.Time) error
}

// FetchLog is one row of the owned audit trail recording an adapter
// invocation's outcome and metrics, independent of the checkpoint state
// machine (a checkpoint is one row per job per window; a job can make many
// HTTP fetches, each logged here).
type FetchLog struct {
	ID          string
	JobName     string
	WindowStart time.Time
	Status      string
	HTTPStatus  int
	AttemptedAt time.Time
	DurationMS  int64
	Error       string
}

// WatermarkStore is the C1 persistence port.
type WatermarkStore interface {
	Get(ctx Context, jobName string) (Watermark, error)
	Update(ctx Context, w Watermark) error
	ShouldProcess(ctx Context, jobName string, candidate time.Time, token string) (bool, error)
}

// CheckpointStore is the C2 persistence and exclusion port.
type CheckpointStore interface {
	// PrepareRun attempts to transition a job's checkpoint for window into
	// RUNNING, returning ok=false when the job already succeeded for this
	// window. A row that is RUNNING, FAILED or SKIPPED for the same window is
	// taken over with the attempt counter incremented.
	PrepareRun(ctx Context, jobName string, window time.Time) (cp Checkpoint, ok bool, err error)
	MarkSuccess(ctx Context, jobName string, window time.Time, durationSeconds float64) error
	RecordAttemptFailure(ctx Context, jobName string, window time.Time, errMsg string, maxAttempts int, durationSeconds float64) (exhausted bool, err error)
	MarkSkipped(ctx Context, jobName string, window time.Time, reason string) error
	Get(ctx Context, jobName string, window time.Time) (Checkpoint, bool, error)
}

// FetchLogRepository is the owned audit-trail persistence port.
type FetchLogRepository interface {
	Create(ctx Context, rec FetchLog) error
}

// ChunkRecord is one token-bounded, jurisdiction/language-tagged unit of
// normalized parliamentary text ready for embedding and vector upsert.
type ChunkRecord struct {
	ID           string
	SourceID     string
	Title        string
	Text         string
	Jurisdiction string
	Language     string
	Metadata     map[string]string
}

// Embedder is the ingestion-side port onto an embedding provider. Only the
// call contract needed by rag_ingest is exposed; ranking/retrieval is out of
// scope.
type Embedder interface {
	Embed(ctx Context, texts []string) ([][]float32, error)
}

// VectorUpserter is the ingestion-side port onto the vector index.
type VectorUpserter interface {
	EnsureCollection(ctx Context, name string, dims int) error
	ExistingIDs(ctx Context, ids []string) (map[string]bool, error)
	Upsert(ctx Context, records []ChunkRecord, vectors [][]float32) error
}
