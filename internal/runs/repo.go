package runs

import (
	"context"
	"errors"
	"time"

	"code-analyzer/internal/pipeline"
)

var ErrNotFound = errors.New("not found")

// Repo persists runs.
type Repo interface {
	Create(ctx context.Context, run Run) error
	Get(ctx context.Context, id string) (Run, error)
	MarkProcessing(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, outcome pipeline.AnalysisOutcome, completedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]Run, error)
}
