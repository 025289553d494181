package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

// OpenPaymentStatuses are the states a gateway callback may still move.
var OpenPaymentStatuses = []PaymentStatus{PaymentStatusPending, PaymentStatusProcessing}

func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodClick PaymentMethod = "CLICK"
	PaymentMethodPayme PaymentMethod = "PAYME"
	PaymentMethodCOD   PaymentMethod = "COD"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodClick, PaymentMethodPayme, PaymentMethodCOD:
		return true
	}
	return false
}

const DefaultCurrency = "UZS"

type Payment struct {
	ID      uint          `gorm:"primaryKey" json:"id"`
	OrderID uint          `gorm:"index:idx_payments_order_created,priority:1;not null" json:"order_id"`
	Method  PaymentMethod `gorm:"size:10;not null" json:"payment_method"`

	Amount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency string          `gorm:"size:3;not null;default:UZS" json:"currency"`
	Status   PaymentStatus   `gorm:"size:20;index;not null" json:"status"`

	// at most one payment per gateway transaction
	GatewayTransactionID *string        `gorm:"size:255;uniqueIndex" json:"transaction_id,omitempty"`
	GatewayResponse      datatypes.JSON `json:"-"`

	CancelReason *int `json:"cancel_reason,omitempty"`

	CreatedAt   time.Time  `gorm:"index:idx_payments_order_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

func (p *Payment) TransactionID() string {
	if p.GatewayTransactionID == nil {
		return ""
	}
	return *p.GatewayTransactionID
}
