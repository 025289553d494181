package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/urolovforever/Brand-Store/internal/model"
	"github.com/urolovforever/Brand-Store/internal/repository"

	"gorm.io/gorm"
)

// eventRecorder appends lifecycle events to the outbox inside the caller's transaction.
type eventRecorder struct {
	outboxRepo repository.OutboxRepository
}

func (r eventRecorder) record(ctx context.Context, tx *gorm.DB, eventType string, order *model.Order, payment *model.Payment, stockRestored bool, at time.Time) error {
	event := model.PaymentEvent{
		OrderID:        order.ID,
		OrderReference: order.Reference,
		Method:         order.PaymentMethod,
		Status:         order.PaymentStatus,
		Amount:         order.Total.StringFixed(2),
		StockRestored:  stockRestored,
		OccurredAt:     at.UTC(),
	}
	if payment != nil {
		event.PaymentID = payment.ID
		event.TransactionID = payment.TransactionID()
		event.Method = payment.Method
		event.Status = payment.Status
		event.Amount = payment.Amount.StringFixed(2)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	err = r.outboxRepo.Add(ctx, tx, &model.OutboxEvent{
		AggregateType: "order",
		AggregateID:   strconv.FormatUint(uint64(order.ID), 10),
		Type:          eventType,
		Payload:       payload,
		Status:        model.OutboxStatusPending,
	})
	if err != nil {
		return fmt.Errorf("store %s event: %w", eventType, err)
	}
	return nil
}
