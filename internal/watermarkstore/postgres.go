package watermarkstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/truecivic/ingestor/internal/domain"
)

// PgxPool is the minimal pgxpool surface the store needs.
type PgxPool interface {
	QueryRow(ctx domain.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx domain.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PostgresStore persists watermarks with row-level exclusion for Update,
// grounded on the teacher's jobs_repo.go transaction shape.
type PostgresStore struct{ Pool PgxPool }

// NewPostgresStore constructs a PostgresStore over pool.
func NewPostgresStore(pool PgxPool) *PostgresStore { return &PostgresStore{Pool: pool} }

// Get loads the watermark row for jobName, or a zero-value watermark if
// absent.
func (s *PostgresStore) Get(ctx domain.Context, jobName string) (domain.Watermark, error) {
	tracer := otel.Tracer("repo.watermarks")
	ctx, span := tracer.Start(ctx, "watermarks.Get")
	defer span.End()
	span.SetAttributes(attribute.String("db.sql.table", "watermarks"))

	q := `SELECT token, timestamp, metadata FROM watermarks WHERE job_name=$1`
	row := s.Pool.QueryRow(ctx, q, jobName)
	var token string
	var ts *time.Time
	var metaRaw []byte
	if err := row.Scan(&token, &ts, &metaRaw); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Watermark{JobName: jobName}, nil
		}
		return domain.Watermark{}, fmt.Errorf("op=watermark.get: %w", err)
	}
	w := domain.Watermark{JobName: jobName, Token: token}
	if ts != nil {
		w.Timestamp = *ts
	}
	if len(metaRaw) > 0 {
		_ = json.Unmarshal(metaRaw, &w.Metadata)
	}
	return w, nil
}

// Update applies the spec.md §4.1 merge rules inside a single transaction
// that holds the row lock for the duration of the read-modify-write.
func (s *PostgresStore) Update(ctx domain.Context, w domain.Watermark) error {
	tracer := otel.Tracer("repo.watermarks")
	ctx, span := tracer.Start(ctx, "watermarks.Update")
	defer span.End()
	span.SetAttributes(attribute.String("db.sql.table", "watermarks"))

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("op=watermark.update.begin_tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	var priorToken string
	var priorTS *time.Time
	var priorMetaRaw []byte
	row := tx.QueryRow(ctx, `SELECT token, timestamp, metadata FROM watermarks WHERE job_name=$1 FOR UPDATE`, w.JobName)
	err = row.Scan(&priorToken, &priorTS, &priorMetaRaw)
	existed := err == nil
	if err != nil && err != pgx.ErrNoRows {
		return fmt.Errorf("op=watermark.update.select: %w", err)
	}

	var priorMeta map[string]string
	if len(priorMetaRaw) > 0 {
		_ = json.Unmarshal(priorMetaRaw, &priorMeta)
	}

	newToken := priorToken
	newTS := priorTS
	changed := !existed
	timestampAdvanced := false

	if !w.Timestamp.IsZero() {
		if priorTS == nil || w.Timestamp.After(*priorTS) {
			t := w.Timestamp
			newTS = &t
			timestampAdvanced = true
			changed = true
		}
	}
	if w.Token != "" {
		sameTimestamp := priorTS != nil && !w.Timestamp.IsZero() && w.Timestamp.Equal(*priorTS)
		if timestampAdvanced || (sameTimestamp && w.Token != priorToken) || priorTS == nil {
			if newToken != w.Token {
				newToken = w.Token
				changed = true
			}
		}
	}
	mergedMeta := priorMeta
	if len(w.Metadata) > 0 {
		if mergedMeta == nil {
			mergedMeta = make(map[string]string, len(w.Metadata))
		}
		for k, v := range w.Metadata {
			if mergedMeta[k] != v {
				changed = true
			}
			mergedMeta[k] = v
		}
	}

	if !changed {
		return tx.Commit(ctx)
	}

	metaRaw, _ := json.Marshal(mergedMeta)
	now := time.Now().UTC()
	q := `INSERT INTO watermarks (job_name, token, timestamp, metadata, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$5)
	      ON CONFLICT (job_name) DO UPDATE SET token=$2, timestamp=$3, metadata=$4, updated_at=$5`
	if _, err := tx.Exec(ctx, q, w.JobName, newToken, newTS, metaRaw, now); err != nil {
		return fmt.Errorf("op=watermark.update.upsert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=watermark.update.commit: %w", err)
	}
	committed = true
	return nil
}

// ShouldProcess is a read-only convenience wrapper for source adapters
// deciding whether to early-skip a record during pagination.
func (s *PostgresStore) ShouldProcess(ctx domain.Context, jobName string, candidate time.Time, token string) (bool, error) {
	w, err := s.Get(ctx, jobName)
	if err != nil {
		return false, err
	}
	if w.Timestamp.IsZero() {
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
