package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	Name               string          `gorm:"size:255;not null" json:"name"`
	Price              decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	DiscountPercentage int             `gorm:"not null;default:0" json:"discount_percentage"`
	Stock              int             `gorm:"not null;default:0" json:"stock"`
	IsActive           bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}
