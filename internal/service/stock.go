package service

import (
	"context"
	"fmt"
	"time"

	"github.com/urolovforever/Brand-Store/internal/model"
	"github.com/urolovforever/Brand-Store/internal/repository"

	"gorm.io/gorm"
)

// stockRestorer puts an order's line items back on the shelf at most once.
// Customer cancellation and gateway abort both go through it.
type stockRestorer struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
}

func (r stockRestorer) restoreOnce(ctx context.Context, tx *gorm.DB, order *model.Order, at time.Time) (bool, error) {
	claimed, err := r.orderRepo.MarkStockRestored(ctx, tx, order.ID, at)
	if err != nil {
		return false, fmt.Errorf("mark stock restored: %w", err)
	}
	if !claimed {
		return false, nil
	}

	if err := r.productRepo.RestoreStock(ctx, tx, order.Items); err != nil {
		return false, fmt.Errorf("restore stock: %w", err)
	}
	return true, nil
}
