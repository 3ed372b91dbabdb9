package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docflow/internal/common"
)

// Run is one RUNNING phase from fresh start to stop, with its final
// counters. Pause/resume cycles stay within a single run.
type Run struct {
	ID         uuid.UUID    `json:"id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt sql.NullTime `json:"finished_at,omitempty"`
	Processed  int          `json:"processed"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
	Elapsed    int64        `json:"elapsed_ms"`
}

type RunRepository interface {
	Start(ctx context.Context, startedAt time.Time) (uuid.UUID, error)
	Finish(ctx context.Context, id uuid.UUID, processed, failed, skipped int, elapsed time.Duration, finishedAt time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*Run, error)
	ListRecent(ctx context.Context, limit int) ([]*Run, error)
}

type runRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewRunRepository(db *DB, logger *slog.Logger) RunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &runRepository{db: db, logger: logger}
}

func (r *runRepository) Start(ctx context.Context, startedAt time.Time) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.db.SQL.ExecContext(ctx, `
INSERT INTO runs (id, started_at) VALUES ($1,$2)
`, id, startedAt.UTC())
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	r.logger.Debug("run.start.ok", "run_id", id)
	return id, nil
}

func (r *runRepository) Finish(ctx context.Context, id uuid.UUID, processed, failed, skipped int, elapsed time.Duration, finishedAt time.Time) error {
	// placeholders stay in first-appearance order so the statement binds
	// the same way on sqlite and postgres
	_, err := r.db.SQL.ExecContext(ctx, `
UPDATE runs
SET finished_at = $1, processed = $2, failed = $3, skipped = $4, elapsed_ms = $5
WHERE id = $6
`, finishedAt.UTC(), processed, failed, skipped, elapsed.Milliseconds(), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	r.logger.Debug("run.finish.ok", "run_id", id, "processed", processed, "failed", failed, "skipped", skipped)
	return nil
}

const runColumns = `id, started_at, finished_at, processed, failed, skipped, elapsed_ms`

func (r *runRepository) GetByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := r.db.SQL.QueryRowContext(ctx, `
SELECT `+runColumns+`
FROM runs
WHERE id = $1
`, id)
	return scanRun(row)
}

func (r *runRepository) ListRecent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.SQL.QueryContext(ctx, `
SELECT `+runColumns+`
FROM runs
ORDER BY started_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	err := row.Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt,
		&run.Processed, &run.Failed, &run.Skipped, &run.Elapsed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &run, nil
}
