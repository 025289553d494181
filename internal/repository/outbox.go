package repository

import (
	"context"
	"time"

	"github.com/urolovforever/Brand-Store/internal/model"

	"gorm.io/gorm"
)

type OutboxRepository interface {
	Add(ctx context.Context, tx *gorm.DB, event *model.OutboxEvent) error
	FetchPending(ctx context.Context, limit int, maxRetries int) ([]*model.OutboxEvent, error)
	MarkSent(ctx context.Context, ids []uint, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uint, errMsg string, maxRetries int) error
}

type outboxRepoImpl struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepoImpl{
		db: db,
	}
}

func (r *outboxRepoImpl) Add(ctx context.Context, tx *gorm.DB, event *model.OutboxEvent) error {
	if event.Status == "" {
		event.Status = model.OutboxStatusPending
	}
	return conn(ctx, r.db, tx).Create(event).Error
}

func (r *outboxRepoImpl) FetchPending(ctx context.Context, limit int, maxRetries int) ([]*model.OutboxEvent, error) {
	var events []*model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ? AND retry_count < ?", model.OutboxStatusPending, maxRetries).
		Order("id").
		Limit(limit).
		Find(&events).Error

	if err != nil {
		return nil, err
	}

	return events, nil
}

func (r *outboxRepoImpl) MarkSent(ctx context.Context, ids []uint, sentAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":  model.OutboxStatusSent,
			"sent_at": sentAt,
		}).Error
}

// MarkFailed records the error; the event stays pending until it runs out of retries.
func (r *outboxRepoImpl) MarkFailed(ctx context.Context, id uint, errMsg string, maxRetries int) error {
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  errMsg,
			"status": gorm.Expr("CASE WHEN retry_count + 1 >= ? THEN ? ELSE status END",
				maxRetries, model.OutboxStatusFailed),
		}).Error
}
