// Package history keeps a PostgreSQL log of conversion runs.
//
// Only run summaries are stored (counts, status, output location); the
// converted products themselves are never persisted. Storage is optional:
// callers that run without a database simply do not construct a Store.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrNotFound is returned by Get when no run has the given ID.
var ErrNotFound = errors.New("conversion run not found")

// DefaultListLimit and MaxListLimit bound List.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Run summarizes one conversion.
type Run struct {
	ID         string    `json:"id"`
	SourceFile string    `json:"sourceFile"`
	Format     string    `json:"format,omitempty"`
	Status     string    `json:"status"`
	Total      int       `json:"total"`
	Valid      int       `json:"valid"`
	Inferred   int       `json:"inferred"`
	Ignored    int       `json:"ignored"`
	OutputPath string    `json:"outputPath,omitempty"`
	Message    string    `json:"message,omitempty"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

const createTable = `
CREATE TABLE IF NOT EXISTS conversion_runs (
    id          UUID PRIMARY KEY,
    source_file TEXT NOT NULL,
    format      TEXT,
    status      TEXT NOT NULL,
    total       INTEGER NOT NULL DEFAULT 0,
    valid       INTEGER NOT NULL DEFAULT 0,
    inferred    INTEGER NOT NULL DEFAULT 0,
    ignored     INTEGER NOT NULL DEFAULT 0,
    output_path TEXT,
    message     TEXT,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS conversion_runs_created_at_idx ON conversion_runs (created_at DESC);
`

const insertRun = `
INSERT INTO conversion_runs (
    id, source_file, format, status, total, valid, inferred, ignored,
    output_path, message, duration_ms, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

const selectRuns = `
SELECT id, source_file, format, status, total, valid, inferred, ignored,
       output_path, message, duration_ms, created_at
FROM conversion_runs
`

// Store reads and writes conversion runs.
type Store struct {
	db DBTX
}

// NewStore creates a store backed by db.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the runs table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create conversion_runs: %w", err)
	}
	return nil
}

// Record inserts run. A zero CreatedAt is stored as the current time.
func (s *Store) Record(ctx context.Context, run Run) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("record run: invalid id %q: %w", run.ID, err)
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.Exec(ctx, insertRun,
		pgtype.UUID{Bytes: id, Valid: true},
		run.SourceFile,
		textOrNull(run.Format),
		run.Status,
		run.Total,
		run.Valid,
		run.Inferred,
		run.Ignored,
		textOrNull(run.OutputPath),
		textOrNull(run.Message),
		run.DurationMs,
		pgtype.Timestamptz{Time: createdAt, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.db.Query(ctx, selectRuns+"ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Get returns the run with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Run{}, ErrNotFound
	}

	row := s.db.QueryRow(ctx, selectRuns+"WHERE id = $1", pgtype.UUID{Bytes: parsed, Valid: true})
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// scanRun scans one conversion_runs row. pgx.Rows satisfies pgx.Row.
func scanRun(row pgx.Row) (Run, error) {
	var (
		id         pgtype.UUID
		format     pgtype.Text
		outputPath pgtype.Text
		message    pgtype.Text
		createdAt  pgtype.Timestamptz
		run        Run
	)

	err := row.Scan(
		&id, &run.SourceFile, &format, &run.Status,
		&run.Total, &run.Valid, &run.Inferred, &run.Ignored,
		&outputPath, &message, &run.DurationMs, &createdAt,
	)
	if err != nil {
		return Run{}, err
	}

	if id.Valid {
		run.ID = uuid.UUID(id.Bytes).String()
	}
	run.Format = format.String
	run.OutputPath = outputPath.String
	run.Message = message.String
	run.CreatedAt = createdAt.Time
	return run, nil
}

func textOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
