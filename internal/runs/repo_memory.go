package runs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"code-analyzer/internal/pipeline"
)

// MemoryRepo stores runs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Run
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Run)}
}

// Create stores the run.
func (r *MemoryRepo) Create(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[run.ID] = run
	return nil
}

// Get returns a run by its ID.
func (r *MemoryRepo) Get(ctx context.Context, id string) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.byID[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return run, nil
}

// MarkProcessing moves a queued run to processing.
func (r *MemoryRepo) MarkProcessing(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if !run.Terminal() {
		run.Status = StatusProcessing
		r.byID[id] = run
	}
	return nil
}

// Complete records the outcome of a run.
func (r *MemoryRepo) Complete(ctx context.Context, id string, outcome pipeline.AnalysisOutcome, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	r.byID[id] = run.applyOutcome(outcome, completedAt)
	return nil
}

// List returns runs newest first with limit/offset.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	all := lo.Values(r.byID)
	r.mu.RUnlock()

	if offset >= len(all) {
		return []Run{}, nil
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}
