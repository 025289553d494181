package service

import (
	"fmt"
	"strings"

	"github.com/urolovforever/Brand-Store/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// AmountMatches compares an order total with a gateway amount expressed in
// minor units (scale 100).
func AmountMatches(total, minorUnits decimal.Decimal) bool {
	return total.Equal(minorUnits.Div(hundred))
}

func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// ParseMinorUnits reads a gateway amount. Only whole, non-negative values are
// accepted; a fractional minor unit can never match a two-decimal total anyway.
func ParseMinorUnits(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("empty amount: %w", ErrMalformedRequest)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, ErrMalformedRequest)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount %q: %w", raw, ErrMalformedRequest)
	}
	return amount, nil
}

// ApplyDiscount returns the discount a promo grants on subtotal, clamped to
// [0, subtotal], and the resulting total.
func ApplyDiscount(subtotal decimal.Decimal, promo *model.PromoCode) (discount, total decimal.Decimal) {
	if promo != nil {
		if promo.DiscountPercentage > 0 {
			discount = subtotal.Mul(decimal.NewFromInt(int64(promo.DiscountPercentage))).Div(hundred)
		} else {
			discount = promo.DiscountFixed
		}
	}

	discount = decimal.Max(decimal.Zero, decimal.Min(discount, subtotal)).Round(2)
	return discount, subtotal.Sub(discount)
}
