package workerproc

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"code-analyzer/internal/shared/metrics"
	"code-analyzer/internal/shared/telemetry"
)

// Record is one queue delivery.
type Record struct {
	ID   string
	Body string
}

// HandleBatch processes records with at most limit in flight and returns the
// IDs that should be redelivered. Unrecoverable messages are dropped.
func HandleBatch(ctx context.Context, proc Processor, records []Record, limit int) []string {
	if limit < 1 {
		limit = 1
	}
	var (
		mu     sync.Mutex
		failed []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, rec := range records {
		g.Go(func() error {
			metrics.IncJobsReceived()
			err := HandleMessage(gctx, proc, rec.Body)
			switch {
			case err == nil:
				metrics.IncJobsCompleted()
			case Unrecoverable(err):
				meta := ComputeMeta(rec.Body)
				telemetry.Error("worker.run.dropped", map[string]any{
					"message_id":  rec.ID,
					"body_len":    meta.BodyLen,
					"body_sha256": meta.BodySHA,
					"error":       err.Error(),
				})
				metrics.IncJobsDeletedUnrecoverable()
			default:
				telemetry.Error("worker.run.failed", map[string]any{
					"message_id": rec.ID,
					"error":      err.Error(),
				})
				metrics.IncJobsFailed()
				mu.Lock()
				failed = append(failed, rec.ID)
				mu.Unlock()
			}
			// Failures are reported per record; the group never cancels.
			return nil
		})
	}
	_ = g.Wait()
	return failed
}
