package postgres

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/truecivic/ingestor/internal/domain"
)

// FetchLogRepo persists the owned fetch_log audit trail, grounded on
// original_source/src/db/repositories/fetch_log_repository.py.
type FetchLogRepo struct{ Pool PgxPool }

// NewFetchLogRepo constructs a FetchLogRepo over pool.
func NewFetchLogRepo(pool PgxPool) *FetchLogRepo { return &FetchLogRepo{Pool: pool} }

// Create inserts one fetch_log row, generating a ULID id if absent so that
// "most recent first" reads stay naturally sorted by id.
func (r *FetchLogRepo) Create(ctx domain.Context, rec domain.FetchLog) error {
	tracer := otel.Tracer("repo.fetchlog")
	ctx, span := tracer.Start(ctx, "fetchlog.Create")
	defer span.End()
	span.SetAttributes(attribute.String("db.sql.table", "fetch_log"))

	id := rec.ID
	if id == "" {
		id = ulid.Make().String()
	}
	attemptedAt := rec.AttemptedAt
	if attemptedAt.IsZero() {
		attemptedAt = time.Now().UTC()
	}
	q := `INSERT INTO fetch_log (id, job_name, window_start, status, http_status, attempted_at, duration_ms, error)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.Pool.Exec(ctx, q, id, rec.JobName, rec.WindowStart, rec.Status, rec.HTTPStatus, attemptedAt, rec.DurationMS, rec.Error)
	if err != nil {
		return fmt.Errorf("op=fetchlog.create: %w", err)
	}
	return nil
}
