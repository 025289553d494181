package repository

import (
	"context"
	"time"

	"github.com/urolovforever/Brand-Store/internal/model"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Order, error)
	FindByReference(ctx context.Context, tx *gorm.DB, reference string) (*model.Order, error)
	LockByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Order, error)
	LockByReference(ctx context.Context, tx *gorm.DB, reference string) (*model.Order, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, orderID uint, transactionID string, paidAt time.Time) (bool, error)
	UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, orderID uint, status model.PaymentStatus) error
	MarkStockRestored(ctx context.Context, tx *gorm.DB, orderID uint, at time.Time) (bool, error)
	Cancel(ctx context.Context, tx *gorm.DB, orderID uint) (bool, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return conn(ctx, r.db, tx).Create(order).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Order, error) {
	return r.first(conn(ctx, r.db, tx), "id = ?", id)
}

func (r *orderRepoImpl) FindByReference(ctx context.Context, tx *gorm.DB, reference string) (*model.Order, error) {
	return r.first(conn(ctx, r.db, tx), "reference = ?", reference)
}

func (r *orderRepoImpl) LockByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Order, error) {
	return r.first(forUpdate(conn(ctx, r.db, tx)), "id = ?", id)
}

func (r *orderRepoImpl) LockByReference(ctx context.Context, tx *gorm.DB, reference string) (*model.Order, error) {
	return r.first(forUpdate(conn(ctx, r.db, tx)), "reference = ?", reference)
}

func (r *orderRepoImpl) first(db *gorm.DB, query string, arg any) (*model.Order, error) {
	var order model.Order
	err := db.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).
		Where(query, arg).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

// MarkPaid moves the order to COMPLETED unless it already is.
func (r *orderRepoImpl) MarkPaid(ctx context.Context, tx *gorm.DB, orderID uint, transactionID string, paidAt time.Time) (bool, error) {
	result := conn(ctx, r.db, tx).Model(&model.Order{}).
		Where("id = ? AND payment_status <> ?", orderID, model.PaymentStatusCompleted).
		Updates(map[string]interface{}{
			"payment_status":         model.PaymentStatusCompleted,
			"payment_transaction_id": transactionID,
			"paid_at":                paidAt,
			"updated_at":             time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

func (r *orderRepoImpl) UpdatePaymentStatus(ctx context.Context, tx *gorm.DB, orderID uint, status model.PaymentStatus) error {
	result := conn(ctx, r.db, tx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"payment_status": status,
			"updated_at":     time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkStockRestored stamps the restore guard; false means it was already stamped.
func (r *orderRepoImpl) MarkStockRestored(ctx context.Context, tx *gorm.DB, orderID uint, at time.Time) (bool, error) {
	result := conn(ctx, r.db, tx).Model(&model.Order{}).
		Where("id = ? AND stock_restored_at IS NULL", orderID).
		Update("stock_restored_at", at)

	return result.RowsAffected > 0, result.Error
}

func (r *orderRepoImpl) Cancel(ctx context.Context, tx *gorm.DB, orderID uint) (bool, error) {
	result := conn(ctx, r.db, tx).Model(&model.Order{}).
		Where(`
			id = ?
			AND status IN ?
			AND payment_status <> ?
		`,
			orderID,
			[]model.OrderStatus{model.OrderStatusPending, model.OrderStatusProcessing},
			model.PaymentStatusCompleted,
		).
		Updates(map[string]interface{}{
			"status":         model.OrderStatusCancelled,
			"payment_status": model.PaymentStatusCancelled,
			"updated_at":     time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}
