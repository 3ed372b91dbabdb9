package repository

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docflow/internal/common"
)

func newDBWithMock(t *testing.T) (*DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	db := &DB{
		SQL:    mockDB,
		driver: "sqlite",
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return db, mock, func() { _ = mockDB.Close() }
}

func recordRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "path", "kind", "content_hash", "category", "tags", "summary",
		"language", "confidence", "page_count", "content", "run_id", "created_at",
	})
}

func TestInsertRecordFillsIDAndMarshalsTags(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewRecordRepository(db, db.logger)

	mock.ExpectExec("INSERT INTO records").
		WithArgs(sqlmock.AnyArg(), "/in/a.pdf", "PDF", "hash-1", "Invoice",
			`["utilities","power"]`, "Power bill.", "en", float32(0.5), 2,
			"page one\fpage two", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := &Record{
		Path:        "/in/a.pdf",
		Kind:        "PDF",
		ContentHash: "hash-1",
		Category:    "Invoice",
		Tags:        []string{"utilities", "power"},
		Summary:     "Power bill.",
		Language:    "en",
		Confidence:  0.5,
		PageCount:   2,
		Content:     "page one\fpage two",
	}
	id, err := repo.Insert(context.Background(), rec)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id == uuid.Nil {
		t.Error("expected a generated id")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be filled")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertRecordPropagatesError(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewRecordRepository(db, db.logger)

	mock.ExpectExec("INSERT INTO records").
		WillReturnError(errors.New("UNIQUE constraint failed: records.content_hash"))

	if _, err := repo.Insert(context.Background(), &Record{Path: "/a", ContentHash: "h"}); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindByHashReturnsNotFound(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewRecordRepository(db, db.logger)

	mock.ExpectQuery("SELECT id, path, kind, content_hash").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByHash(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindByHashScansRecord(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewRecordRepository(db, db.logger)

	id := uuid.New()
	runID := uuid.New()
	created := time.Now().UTC().Truncate(time.Second)
	mock.ExpectQuery("SELECT id, path, kind, content_hash").
		WithArgs("h1").
		WillReturnRows(recordRows().AddRow(
			id.String(), "/in/a.pdf", "PDF", "h1", "Invoice",
			`["utilities","power"]`, "Power bill.", "en", 0.5, 2,
			"body", runID.String(), created,
		))

	rec, err := repo.FindByHash(context.Background(), "h1")
	if err != nil {
		t.Fatalf("FindByHash: %v", err)
	}
	if rec.ID != id {
		t.Errorf("id = %s, want %s", rec.ID, id)
	}
	if len(rec.Tags) != 2 || rec.Tags[0] != "utilities" {
		t.Errorf("tags = %v", rec.Tags)
	}
	if !rec.RunID.Valid || rec.RunID.UUID != runID {
		t.Errorf("run id = %+v, want %s", rec.RunID, runID)
	}
	if !rec.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", rec.CreatedAt, created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRecentAppliesDefaultLimit(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewRecordRepository(db, db.logger)

	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs(50).
		WillReturnRows(recordRows())

	out, err := repo.ListRecent(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("got %d records, want 0", len(out))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCountByCategory(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewRecordRepository(db, db.logger)

	mock.ExpectQuery("SELECT category, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).
			AddRow("Invoice", 3).
			AddRow("Other", 1))

	counts, err := repo.CountByCategory(context.Background())
	if err != nil {
		t.Fatalf("CountByCategory: %v", err)
	}
	if counts["Invoice"] != 3 || counts["Other"] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
