package checkpointstore

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/truecivic/ingestor/internal/domain"
)

// PgxPool is the minimal pgxpool surface the store needs.
type PgxPool interface {
	QueryRow(ctx domain.Context, sql string, args ...any) pgx.Row
	Exec(ctx domain.Context, sql string, args ...any) (pgconn.CommandTag, error)
	BeginTx(ctx domain.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PostgresStore persists checkpoints and uses `SELECT ... FOR UPDATE` to
// give row-level exclusion across coordinator replicas, per spec.md §5.
type PostgresStore struct{ Pool PgxPool }

// NewPostgresStore constructs a PostgresStore over pool.
func NewPostgresStore(pool PgxPool) *PostgresStore { return &PostgresStore{Pool: pool} }

// PrepareRun implements the row-locked read-modify-write of spec.md §4.2
// steps 1-3, all inside one transaction held for the duration of this call;
// the row lock is released when the transaction commits, not for the
// duration of the job's execution (the RUNNING status row is the signal,
// not an open transaction).
func (s *PostgresStore) PrepareRun(ctx domain.Context, jobName string, window time.Time) (domain.Checkpoint, bool, error) {
	tracer := otel.Tracer("repo.checkpoints")
	ctx, span := tracer.Start(ctx, "checkpoints.PrepareRun")
	defer span.End()
	span.SetAttributes(attribute.String("db.sql.table", "checkpoints"))

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.Checkpoint{}, false, fmt.Errorf("op=checkpoint.prepare_run.begin_tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	var lastWindow *time.Time
	var status string
	var attempts int
	row := tx.QueryRow(ctx,
		`SELECT last_window_start, status, last_attempt FROM checkpoints WHERE job_name=$1 FOR UPDATE`, jobName)
	err = row.Scan(&lastWindow, &status, &attempts)
	existed := err == nil
	if err != nil && err != pgx.ErrNoRows {
		return domain.Checkpoint{}, false, fmt.Errorf("op=checkpoint.prepare_run.select: %w", err)
	}

	sameWindow := existed && lastWindow != nil && lastWindow.Equal(window)
	if sameWindow && domain.CheckpointStatus(status) == domain.StatusSuccess {
		cp := domain.Checkpoint{JobName: jobName, WindowStart: window, Status: domain.StatusSuccess, Attempts: attempts}
		return cp, false, tx.Commit(ctx)
	}

	attempt := 1
	if sameWindow {
		attempt = attempts + 1
	}
	now := time.Now().UTC()
	q := `INSERT INTO checkpoints (job_name, last_window_start, last_started_at, last_attempt, status, last_error, updated_at)
	      VALUES ($1,$2,$3,$4,$5,'',$3)
	      ON CONFLICT (job_name) DO UPDATE SET
	        last_window_start=$2, last_started_at=$3, last_attempt=$4, status=$5, last_error='', updated_at=$3`
	if _, err := tx.Exec(ctx, q, jobName, window, now, attempt, string(domain.StatusRunning)); err != nil {
		return domain.Checkpoint{}, false, fmt.Errorf("op=checkpoint.prepare_run.upsert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Checkpoint{}, false, fmt.Errorf("op=checkpoint.prepare_run.commit: %w", err)
	}
	committed = true
	return domain.Checkpoint{JobName: jobName, WindowStart: window, Status: domain.StatusRunning, Attempts: attempt, StartedAt: now}, true, nil
}

// MarkSuccess writes a terminal SUCCESS row.
func (s *PostgresStore) MarkSuccess(ctx domain.Context, jobName string, window time.Time, durationSeconds float64) error {
	tracer := otel.Tracer("repo.checkpoints")
	ctx, span := tracer.Start(ctx, "checkpoints.MarkSuccess")
	defer span.End()
	now := time.Now().UTC()
	q := `UPDATE checkpoints SET status=$3, last_completed_at=$2, last_error='', last_duration_seconds=$5, updated_at=$2
	      WHERE job_name=$1 AND last_window_start=$4`
	_, err := s.Pool.Exec(ctx, q, jobName, now, string(domain.StatusSuccess), window, durationSeconds)
	if err != nil {
		return fmt.Errorf("op=checkpoint.mark_success: %w", err)
	}
	return nil
}

// RecordAttemptFailure writes the truncated error and, if attempts are
// exhausted, transitions to terminal FAILED.
func (s *PostgresStore) RecordAttemptFailure(ctx domain.Context, jobName string, window time.Time, errMsg string, maxAttempts int, durationSeconds float64) (bool, error) {
	tracer := otel.Tracer("repo.checkpoints")
	ctx, span := tracer.Start(ctx, "checkpoints.RecordAttemptFailure")
	defer span.End()

	var attempts int
	row := s.Pool.QueryRow(ctx, `SELECT last_attempt FROM checkpoints WHERE job_name=$1 AND last_window_start=$2`, jobName, window)
	_ = row.Scan(&attempts)
	exhausted := attempts >= maxAttempts

	now := time.Now().UTC()
	status := string(domain.StatusRunning)
	if exhausted {
		status = string(domain.StatusFailed)
	}
	q := `UPDATE checkpoints SET status=$3, last_error=$4, last_duration_seconds=$7, last_completed_at=CASE WHEN $3=$5 THEN $2 ELSE last_completed_at END, updated_at=$2
	      WHERE job_name=$1 AND last_window_start=$6`
	_, err := s.Pool.Exec(ctx, q, jobName, now, status, truncateError(errMsg), string(domain.StatusFailed), window, durationSeconds)
	if err != nil {
		return false, fmt.Errorf("op=checkpoint.record_attempt_failure: %w", err)
	}
	return exhausted, nil
}

// MarkSkipped writes a terminal SKIPPED row with attempts reset to 0.
func (s *PostgresStore) MarkSkipped(ctx domain.Context, jobName string, window time.Time, reason string) error {
	tracer := otel.Tracer("repo.checkpoints")
	ctx, span := tracer.Start(ctx, "checkpoints.MarkSkipped")
	defer span.End()
	now := time.Now().UTC()
	q := `INSERT INTO checkpoints (job_name, last_window_start, last_started_at, last_completed_at, last_attempt, status, last_error, updated_at)
	      VALUES ($1,$2,$3,$3,0,$4,$5,$3)
	      ON CONFLICT (job_name) DO UPDATE SET
	        last_window_start=$2, last_started_at=$3, last_completed_at=$3, last_attempt=0, status=$4, last_error=$5, updated_at=$3`
	_, err := s.Pool.Exec(ctx, q, jobName, window, now, string(domain.StatusSkipped), truncateError(reason))
	if err != nil {
		return fmt.Errorf("op=checkpoint.mark_skipped: %w", err)
	}
	return nil
}

// Get returns the stored checkpoint, if its window matches.
func (s *PostgresStore) Get(ctx domain.Context, jobName string, window time.Time) (domain.Checkpoint, bool, error) {
	tracer := otel.Tracer("repo.checkpoints")
	ctx, span := tracer.Start(ctx, "checkpoints.Get")
	defer span.End()
	var cp domain.Checkpoint
	var status string
	row := s.Pool.QueryRow(ctx,
		`SELECT last_window_start, status, last_attempt, COALESCE(last_error,''), last_duration_seconds FROM checkpoints WHERE job_name=$1`, jobName)
	if err := row.Scan(&cp.WindowStart, &status, &cp.Attempts, &cp.LastError, &cp.LastDurationSeconds); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Checkpoint{}, false, nil
		}
		return domain.Checkpoint{}, false, fmt.Errorf("op=checkpoint.get: %w", err)
	}
	if !cp.WindowStart.Equal(window) {
		return domain.Checkpoint{}, false, nil
	}
	cp.JobName = jobName
	cp.Status = domain.CheckpointStatus(status)
	return cp, true, nil
}
