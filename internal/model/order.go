package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

type Order struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Reference string `gorm:"size:36;uniqueIndex;not null" json:"reference"` // opaque token handed to gateways
	UserID    string `gorm:"size:64;index" json:"user_id"`

	Status        OrderStatus   `gorm:"size:20;index;not null" json:"status"`
	PaymentStatus PaymentStatus `gorm:"size:20;index;not null" json:"payment_status"`
	PaymentMethod PaymentMethod `gorm:"size:10;not null" json:"payment_method"`

	Subtotal decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Discount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount"`
	Total    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`

	PromoCodeID *uint `json:"promo_code_id,omitempty"`

	PaymentTransactionID *string    `gorm:"size:255" json:"payment_transaction_id,omitempty"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`
	StockRestoredAt      *time.Time `json:"-"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanBeCancelled reports whether the customer-facing flow may cancel the order.
func (o *Order) CanBeCancelled() bool {
	if o.PaymentStatus == PaymentStatusCompleted {
		return false
	}
	return o.Status == OrderStatusPending || o.Status == OrderStatusProcessing
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusCompleted
}

// OrderItem is a snapshot of the product at placement time.
type OrderItem struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OrderID uint `gorm:"index;not null" json:"order_id"`
	// nil once the product has been removed from the catalog
	ProductID *uint `gorm:"index" json:"product_id"`

	ProductName        string          `gorm:"size:255;not null" json:"product_name"`
	ProductPrice       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"product_price"`
	Quantity           int             `gorm:"not null" json:"quantity"`
	DiscountPercentage int             `gorm:"not null;default:0" json:"discount_percentage"`
	Subtotal           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`

	CreatedAt time.Time `json:"created_at"`
}

// LineSubtotal is price minus the item discount, times quantity.
func LineSubtotal(price decimal.Decimal, discountPercentage, quantity int) decimal.Decimal {
	unit := price
	if discountPercentage > 0 {
		off := price.Mul(decimal.NewFromInt(int64(discountPercentage))).Div(decimal.NewFromInt(100))
		unit = price.Sub(off)
	}
	return unit.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

type PromoCode struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	Code               string          `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Description        string          `gorm:"size:255" json:"description"`
	DiscountPercentage int             `gorm:"not null;default:0" json:"discount_percentage"`
	DiscountFixed      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_fixed"`
	MaxUses            *int            `json:"max_uses,omitempty"`
	TimesUsed          int             `gorm:"not null;default:0" json:"times_used"`
	ValidFrom          time.Time       `json:"valid_from"`
	ValidUntil         time.Time       `json:"valid_until"`
	MinOrderAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"min_order_amount"`
	IsActive           bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt          time.Time       `json:"created_at"`
}

func (p *PromoCode) IsValid(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if now.Before(p.ValidFrom) || now.After(p.ValidUntil) {
		return false
	}
	if p.MaxUses != nil && p.TimesUsed >= *p.MaxUses {
		return false
	}
	return true
}
