package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docflow/internal/common"
)

func TestRunStartAndFinish(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewRunRepository(db, db.logger)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := repo.Start(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("expected a generated run id")
	}

	mock.ExpectExec("UPDATE runs").
		WithArgs(sqlmock.AnyArg(), 5, 1, 2, int64(90000), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Finish(context.Background(), id, 5, 1, 2, 90*time.Second, time.Now()); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetRunByIDReturnsNotFound(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewRunRepository(db, db.logger)

	id := uuid.New()
	mock.ExpectQuery("SELECT id, started_at").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), id)
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

func TestListRecentRunsScansOpenRun(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()
	repo := NewRunRepository(db, db.logger)

	id := uuid.New()
	started := time.Now().UTC().Truncate(time.Second)
	rows := sqlmock.NewRows([]string{
		"id", "started_at", "finished_at", "processed", "failed", "skipped", "elapsed_ms",
	}).AddRow(id.String(), started, nil, 0, 0, 0, int64(0))

	mock.ExpectQuery("ORDER BY started_at DESC").
		WithArgs(20).
		WillReturnRows(rows)

	out, err := repo.ListRecent(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d runs, want 1", len(out))
	}
	if out[0].ID != id {
		t.Errorf("id = %s, want %s", out[0].ID, id)
	}
	if out[0].FinishedAt.Valid {
		t.Error("open run must have a null finished_at")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
