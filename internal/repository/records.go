package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docflow/internal/common"
)

// Record is one processed document: where it came from, what was extracted,
// and how it was classified.
type Record struct {
	ID          uuid.UUID     `json:"id"`
	Path        string        `json:"path"`
	Kind        string        `json:"kind"`
	ContentHash string        `json:"content_hash"`
	Category    string        `json:"category"`
	Tags        []string      `json:"tags,omitempty"`
	Summary     string        `json:"summary,omitempty"`
	Language    string        `json:"language,omitempty"`
	Confidence  float32       `json:"confidence,omitempty"`
	PageCount   int           `json:"page_count"`
	Content     string        `json:"content,omitempty"`
	RunID       uuid.NullUUID `json:"run_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// RecordRepository is the persistence boundary the orchestrator writes
// results through.
type RecordRepository interface {
	Insert(ctx context.Context, rec *Record) (uuid.UUID, error)
	FindByHash(ctx context.Context, hash string) (*Record, error)
	ListRecent(ctx context.Context, limit int) ([]*Record, error)
	CountByCategory(ctx context.Context) (map[string]int, error)
}

type recordRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewRecordRepository(db *DB, logger *slog.Logger) RecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &recordRepository{db: db, logger: logger}
}

const recordColumns = `id, path, kind, content_hash, category, tags, summary, language, confidence, page_count, content, run_id, created_at`

func (r *recordRepository) Insert(ctx context.Context, rec *Record) (uuid.UUID, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal tags: %w", err)
	}

	_, err = r.db.SQL.ExecContext(ctx, `
INSERT INTO records (`+recordColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		rec.ID, rec.Path, rec.Kind, rec.ContentHash, rec.Category, string(tagsJSON),
		rec.Summary, rec.Language, rec.Confidence, rec.PageCount, rec.Content,
		rec.RunID, rec.CreatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert record: %w", err)
	}

	r.logger.Debug("record.insert.ok", "record_id", rec.ID, "path", rec.Path, "category", rec.Category)
	return rec.ID, nil
}

func (r *recordRepository) FindByHash(ctx context.Context, hash string) (*Record, error) {
	row := r.db.SQL.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM records
WHERE content_hash = $1
`, hash)
	return scanRecord(row)
}

func (r *recordRepository) ListRecent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.SQL.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM records
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (r *recordRepository) CountByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.SQL.QueryContext(ctx, `
SELECT category, COUNT(*)
FROM records
GROUP BY category
`)
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		out[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var tagsRaw []byte
	err := row.Scan(
		&rec.ID, &rec.Path, &rec.Kind, &rec.ContentHash, &rec.Category, &tagsRaw,
		&rec.Summary, &rec.Language, &rec.Confidence, &rec.PageCount, &rec.Content,
		&rec.RunID, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	if len(tagsRaw) > 0 {
		if err := json.Unmarshal(tagsRaw, &rec.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	return &rec, nil
}
