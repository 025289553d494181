// Package outbox publishes payment lifecycle events that were committed to
// the outbox table together with the transition they describe.
package outbox

import (
	"context"
	"log/slog"

	"github.com/urolovforever/Brand-Store/internal/model"

	"github.com/segmentio/kafka-go"
)

// Producer is satisfied by *kafka.Writer. The writer owns the topic.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Dispatcher struct {
	log      *slog.Logger
	producer Producer
}

func NewDispatcher(log *slog.Logger, producer Producer) *Dispatcher {
	return &Dispatcher{log: log, producer: producer}
}

// Dispatch keys the message by order so one order's events stay in one partition.
func (d *Dispatcher) Dispatch(ctx context.Context, event *model.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "aggregate_type", Value: []byte(event.AggregateType)},
		},
		Time: event.CreatedAt,
	}
	if err := d.producer.WriteMessages(ctx, msg); err != nil {
		d.log.Error("outbox dispatch failed", "event_id", event.ID, "err", err)
		return err
	}
	d.log.Debug("outbox dispatched", "event_id", event.ID, "type", event.Type)
	return nil
}
