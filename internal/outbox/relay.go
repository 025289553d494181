package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/urolovforever/Brand-Store/internal/model"
)

type Store interface {
	FetchPending(ctx context.Context, limit int, maxRetries int) ([]*model.OutboxEvent, error)
	MarkSent(ctx context.Context, ids []uint, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uint, errMsg string, maxRetries int) error
}

type Relay struct {
	log        *slog.Logger
	store      Store
	dispatch   *Dispatcher
	batchSize  int
	maxRetries int
	interval   time.Duration
}

func NewRelay(log *slog.Logger, store Store, dispatch *Dispatcher) *Relay {
	return &Relay{
		log:        log,
		store:      store,
		dispatch:   dispatch,
		batchSize:  100,
		maxRetries: 10,
		interval:   500 * time.Millisecond,
	}
}

// Run polls the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping")
			return nil
		case <-t.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Error("relay batch error", "err", err)
			}
		}
	}
}

// RunOnce publishes one batch and returns how many events were sent.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.store.FetchPending(ctx, r.batchSize, r.maxRetries)
	if err != nil {
		return 0, err
	}

	ids := make([]uint, 0, len(events))
	for _, e := range events {
		if err := r.dispatch.Dispatch(ctx, e); err != nil {
			if markErr := r.store.MarkFailed(ctx, e.ID, err.Error(), r.maxRetries); markErr != nil {
				r.log.Error("relay mark failed error", "event_id", e.ID, "err", markErr)
			}
			continue
		}
		ids = append(ids, e.ID)
	}

	if len(ids) > 0 {
		if err := r.store.MarkSent(ctx, ids, time.Now()); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}
