package model

import (
	"time"

	"gorm.io/datatypes"
)

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSent    OutboxStatus = "sent"
	OutboxStatusFailed  OutboxStatus = "failed"
)

const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentCancelled = "payment.cancelled"
	EventOrderCancelled   = "order.cancelled"
)

type OutboxEvent struct {
	ID            uint           `gorm:"primaryKey"`
	AggregateType string         `gorm:"size:32;not null"`
	AggregateID   string         `gorm:"size:64;index;not null"`
	Type          string         `gorm:"size:64;index;not null"`
	Payload       datatypes.JSON `gorm:"not null"`
	Status        OutboxStatus   `gorm:"size:16;index;not null"`
	RetryCount    int            `gorm:"not null;default:0"`
	LastError     *string
	CreatedAt     time.Time
	SentAt        *time.Time
}

// PaymentEvent is the payload published for every applied payment transition.
type PaymentEvent struct {
	OrderID        uint          `json:"order_id"`
	OrderReference string        `json:"order_reference"`
	PaymentID      uint          `json:"payment_id,omitempty"`
	TransactionID  string        `json:"transaction_id,omitempty"`
	Method         PaymentMethod `json:"payment_method"`
	Status         PaymentStatus `json:"status"`
	Amount         string        `json:"amount"`
	StockRestored  bool          `json:"stock_restored"`
	OccurredAt     time.Time     `json:"occurred_at"`
}
