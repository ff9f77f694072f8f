package outbox

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// DispatchFunc delivers one pending record. A non-nil error leaves the record
// pending; it is retried on the next poll.
type DispatchFunc func(ctx context.Context, rec Record) error

// Worker polls the store and dispatches pending records in insertion order.
type Worker struct {
	store     Store
	dispatch  DispatchFunc
	interval  time.Duration
	batchSize int
}

// NewWorker creates a Worker polling at the given interval.
func NewWorker(store Store, dispatch DispatchFunc, interval time.Duration) *Worker {
	return &Worker{
		store:     store,
		dispatch:  dispatch,
		interval:  interval,
		batchSize: 100,
	}
}

// Run drains the outbox until the context is cancelled. It always returns
// nil so a shutdown is never reported as a worker failure.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.drainOnce(ctx)
		}
	}
}

// drainOnce dispatches one batch. Per-record failures are logged and left
// pending; a fetch failure skips the whole tick.
func (w *Worker) drainOnce(ctx context.Context) {
	lg := zctx.From(ctx)

	records, err := w.store.FetchPending(ctx, w.batchSize)
	if err != nil {
		lg.Warn("Fetch pending outbox records", zap.Error(err))
		return
	}

	for _, rec := range records {
		if err := w.dispatch(ctx, rec); err != nil {
			lg.Warn("Dispatch outbox record",
				zap.Int64("id", rec.ID),
				zap.String("kind", string(rec.Kind)),
				zap.Error(err),
			)
			continue
		}
		if err := w.store.MarkSent(ctx, rec.ID); err != nil {
			lg.Warn("Mark outbox record sent", zap.Int64("id", rec.ID), zap.Error(err))
		}
	}
}
