package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lakerun/lakerun/internal/evidence"
)

// Run is one persisted execution record, mirroring the manifest entry.
type Run struct {
	RunID          int64
	QueryName      string
	Mode           string
	Status         string
	ResultLocation string
	RowCount       int64
	Diagnostic     string
	StartedAt      time.Time
	EndedAt        time.Time
}

// Repository keeps the run history in Postgres so outcomes survive the
// evidence directory. It is an optional sink; the JSONL manifest stays the
// source of truth for a single run.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

// EnsureSchema creates the query_run table when it does not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS query_run (
    run_id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    query_name      TEXT NOT NULL,
    mode            TEXT NOT NULL,
    status          TEXT NOT NULL,
    result_location TEXT NOT NULL DEFAULT '',
    row_count       BIGINT NOT NULL DEFAULT -1,
    diagnostic      TEXT NOT NULL DEFAULT '',
    started_at      TIMESTAMPTZ NOT NULL,
    ended_at        TIMESTAMPTZ NOT NULL
)`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure query_run table: %w", err)
	}
	return nil
}

// RecordRun inserts one manifest record and returns the assigned run id.
func (r *Repository) RecordRun(ctx context.Context, rec evidence.ManifestRecord) (int64, error) {
	query := `
INSERT INTO query_run (query_name, mode, status, result_location, row_count, diagnostic, started_at, ended_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING run_id`
	var runID int64
	if err := r.db.QueryRowContext(ctx, query,
		rec.QueryName,
		rec.Mode,
		rec.Status,
		rec.ResultLocation,
		rec.RowCount,
		rec.Diagnostic,
		rec.StartedAt,
		rec.EndedAt,
	).Scan(&runID); err != nil {
		return 0, fmt.Errorf("record run for %q: %w", rec.QueryName, err)
	}
	return runID, nil
}

// ListRecentRuns returns the newest runs first, capped at limit.
func (r *Repository) ListRecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT run_id, query_name, mode, status, result_location, row_count, diagnostic, started_at, ended_at
FROM query_run
ORDER BY run_id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]Run, 0)
	for rows.Next() {
		var run Run
		if err := rows.Scan(
			&run.RunID,
			&run.QueryName,
			&run.Mode,
			&run.Status,
			&run.ResultLocation,
			&run.RowCount,
			&run.Diagnostic,
			&run.StartedAt,
			&run.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}
