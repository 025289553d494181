// Package cod is cash on delivery: nothing to redirect to, the payment stays
// PENDING until the courier collects it.
package cod

import (
	"github.com/urolovforever/Brand-Store/internal/model"
)

type Gateway struct{}

func New() *Gateway {
	return &Gateway{}
}

func (g *Gateway) Method() model.PaymentMethod {
	return model.PaymentMethodCOD
}

func (g *Gateway) CheckoutURL(*model.Order, string) (string, error) {
	return "", nil
}
