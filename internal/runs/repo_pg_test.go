package runs

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"code-analyzer/internal/pipeline"
	"code-analyzer/internal/shared/errkind"
)

var pgColumns = []string{
	"id", "request_id", "source_container", "source_key", "destination_container", "model_id", "status",
	"output_key", "summary", "detected_language", "error_kind", "error_message",
	"processing_time_seconds", "tokens_used", "model_attempts", "created_at", "completed_at",
}

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateWritesNullsForEmptyOutcome(t *testing.T) {
	repo, mock := newMockRepo(t)
	run := Run{
		ID:                   "run-1",
		RequestID:            "req-1",
		SourceContainer:      "src",
		SourceKey:            "code/calc.py",
		DestinationContainer: "dst",
		ModelID:              "model-a",
		Status:               StatusQueued,
		CreatedAt:            time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO analysis_runs").
		WithArgs(
			run.ID,
			run.RequestID,
			run.SourceContainer,
			run.SourceKey,
			run.DestinationContainer,
			run.ModelID,
			run.Status,
			nil, // output_key
			nil, // summary
			nil, // detected_language
			nil, // error_kind
			nil, // error_message
			0.0,
			nil, // tokens_used
			0,
			run.CreatedAt,
			nil, // completed_at
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), run); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetScansNullableColumns(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	completed := created.Add(3 * time.Second)

	rows := sqlmock.NewRows(pgColumns).AddRow(
		"run-1", "req-1", "src", "calc.py", "dst", "model-a", StatusSuccess,
		"analyses/calc.py_20261016T120003Z.md", "Adds numbers.", "python", nil, nil,
		2.5, int64(812), 2, created, completed,
	)
	mock.ExpectQuery("SELECT (.+) FROM analysis_runs WHERE id = \\$1").
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := repo.Get(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.OutputKey != "analyses/calc.py_20261016T120003Z.md" || run.DetectedLanguage != "python" {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.TokensUsed == nil || *run.TokensUsed != 812 {
		t.Fatalf("expected tokens 812, got %v", run.TokensUsed)
	}
	if run.CompletedAt == nil || !run.CompletedAt.Equal(completed) {
		t.Fatalf("expected completed_at %v, got %v", completed, run.CompletedAt)
	}
	if run.ErrorKind != "" {
		t.Fatalf("expected empty error kind, got %q", run.ErrorKind)
	}
}

func TestPGRepoGetMissingReturnsNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM analysis_runs").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoMarkProcessingChecksExistence(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE analysis_runs").
		WithArgs("run-1", StatusProcessing, StatusQueued).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM analysis_runs").
		WithArgs("run-1").
		WillReturnError(sql.ErrNoRows)

	err := repo.MarkProcessing(context.Background(), "run-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkProcessingLeavesTerminalRun(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE analysis_runs").
		WithArgs("run-1", StatusProcessing, StatusQueued).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM analysis_runs").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	if err := repo.MarkProcessing(context.Background(), "run-1"); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
}

func TestPGRepoCompleteWritesOutcome(t *testing.T) {
	repo, mock := newMockRepo(t)
	completed := time.Date(2026, 10, 16, 12, 0, 5, 0, time.UTC)
	out := pipeline.AnalysisOutcome{
		RequestID:             "req-1",
		Status:                pipeline.StatusError,
		ProcessingTimeSeconds: 0.25,
		ErrorKind:             errkind.NotFound,
		ErrorMessage:          "object not found",
		ModelAttempts:         0,
	}

	mock.ExpectExec("UPDATE analysis_runs").
		WithArgs(
			"run-1",
			"error",
			nil,
			nil,
			nil,
			"NotFound",
			"object not found",
			0.25,
			nil,
			0,
			"",
			"req-1",
			completed,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Complete(context.Background(), "run-1", out, completed); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCompleteMissingRun(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE analysis_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Complete(context.Background(), "missing", pipeline.AnalysisOutcome{Status: pipeline.StatusSuccess}, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoListPassesLimitAndOffset(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(pgColumns).
		AddRow("run-2", "req-2", "src", "b.go", "dst", "", StatusQueued, nil, nil, nil, nil, nil, 0.0, nil, 0, created.Add(time.Minute), nil).
		AddRow("run-1", "req-1", "src", "a.go", "dst", "", StatusQueued, nil, nil, nil, nil, nil, 0.0, nil, 0, created, nil)
	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs(2, 0).
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), 2, -5)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "run-2" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list[1].CompletedAt != nil || list[1].TokensUsed != nil {
		t.Fatalf("expected nil nullable fields, got %+v", list[1])
	}
}
