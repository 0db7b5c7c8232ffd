package runs

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"code-analyzer/internal/pipeline"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const runColumns = `id, request_id, source_container, source_key, destination_container, model_id, status,
       output_key, summary, detected_language, error_kind, error_message,
       processing_time_seconds, tokens_used, model_attempts, created_at, completed_at`

// Create inserts a new run.
func (r *PGRepo) Create(ctx context.Context, run Run) error {
	const query = `
INSERT INTO analysis_runs (
	id, request_id, source_container, source_key, destination_container, model_id, status,
	output_key, summary, detected_language, error_kind, error_message,
	processing_time_seconds, tokens_used, model_attempts, created_at, completed_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.DB.ExecContext(ctx, query,
		run.ID,
		run.RequestID,
		run.SourceContainer,
		run.SourceKey,
		run.DestinationContainer,
		run.ModelID,
		run.Status,
		nullString(run.OutputKey),
		nullString(run.Summary),
		nullString(run.DetectedLanguage),
		nullString(run.ErrorKind),
		nullString(run.ErrorMessage),
		run.ProcessingTimeSeconds,
		nullInt(run.TokensUsed),
		run.ModelAttempts,
		run.CreatedAt,
		nullTime(run.CompletedAt),
	)
	return err
}

// Get returns a run by ID.
func (r *PGRepo) Get(ctx context.Context, id string) (Run, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs WHERE id = $1 LIMIT 1`
	run, err := scanRun(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return run, err
}

// MarkProcessing moves a queued run to processing. Terminal runs are left
// untouched.
func (r *PGRepo) MarkProcessing(ctx context.Context, id string) error {
	const query = `
UPDATE analysis_runs
SET status = $2
WHERE id = $1 AND status IN ($3, $2)`
	res, err := r.DB.ExecContext(ctx, query, id, StatusProcessing, StatusQueued)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	var exists int
	if err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM analysis_runs WHERE id = $1`, id).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Complete records the outcome of a run.
func (r *PGRepo) Complete(ctx context.Context, id string, outcome pipeline.AnalysisOutcome, completedAt time.Time) error {
	const query = `
UPDATE analysis_runs
SET status = $2,
    output_key = $3,
    summary = $4,
    detected_language = $5,
    error_kind = $6,
    error_message = $7,
    processing_time_seconds = $8,
    tokens_used = $9,
    model_attempts = $10,
    model_id = COALESCE(NULLIF($11, ''), model_id),
    request_id = COALESCE(NULLIF(request_id, ''), $12),
    completed_at = $13
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query,
		id,
		string(outcome.Status),
		nullString(outcome.OutputKey),
		nullString(outcome.Summary),
		nullString(outcome.DetectedLanguage),
		nullString(string(outcome.ErrorKind)),
		nullString(outcome.ErrorMessage),
		outcome.ProcessingTimeSeconds,
		nullInt(outcome.TokensUsed),
		outcome.ModelAttempts,
		outcome.ModelID,
		outcome.RequestID,
		completedAt.UTC(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns runs newest first. A zero limit returns all rows.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Run, error) {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + runColumns + `
FROM analysis_runs
ORDER BY created_at DESC, id DESC
LIMIT NULLIF($1, 0) OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var outputKey, summary, language, errorKind, errorMessage sql.NullString
	var tokensUsed sql.NullInt64
	var completedAt sql.NullTime
	err := row.Scan(
		&run.ID,
		&run.RequestID,
		&run.SourceContainer,
		&run.SourceKey,
		&run.DestinationContainer,
		&run.ModelID,
		&run.Status,
		&outputKey,
		&summary,
		&language,
		&errorKind,
		&errorMessage,
		&run.ProcessingTimeSeconds,
		&tokensUsed,
		&run.ModelAttempts,
		&run.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return Run{}, err
	}
	run.OutputKey = outputKey.String
	run.Summary = summary.String
	run.DetectedLanguage = language.String
	run.ErrorKind = errorKind.String
	run.ErrorMessage = errorMessage.String
	if tokensUsed.Valid {
		v := int(tokensUsed.Int64)
		run.TokensUsed = &v
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		run.CompletedAt = &t
	}
	return run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
