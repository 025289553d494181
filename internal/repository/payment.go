package repository

import (
	"context"
	"time"

	"github.com/urolovforever/Brand-Store/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Payment, error)
	FindByGatewayTransactionID(ctx context.Context, tx *gorm.DB, transactionID string) (*model.Payment, error)
	LockByGatewayTransactionID(ctx context.Context, tx *gorm.DB, transactionID string) (*model.Payment, error)
	FindLatestOpen(ctx context.Context, tx *gorm.DB, orderID uint, method model.PaymentMethod) (*model.Payment, error)
	ListByOrder(ctx context.Context, tx *gorm.DB, orderID uint) ([]*model.Payment, error)
	SumCompleted(ctx context.Context, tx *gorm.DB, orderID uint) (decimal.Decimal, error)

	AttachTransaction(ctx context.Context, tx *gorm.DB, paymentID uint, transactionID string, status model.PaymentStatus, payload datatypes.JSON) (bool, error)
	MarkCompleted(ctx context.Context, tx *gorm.DB, paymentID uint, payload datatypes.JSON, completedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, tx *gorm.DB, paymentID uint, payload datatypes.JSON) (bool, error)
	MarkCancelled(ctx context.Context, tx *gorm.DB, paymentID uint, reason *int, payload datatypes.JSON, cancelledAt time.Time) (bool, error)
	CancelOpenByOrder(ctx context.Context, tx *gorm.DB, orderID uint, cancelledAt time.Time) (int64, error)
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{
		db: db,
	}
}

func (r *paymentRepoImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	return conn(ctx, r.db, tx).Create(payment).Error
}

func (r *paymentRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Payment, error) {
	var payment model.Payment
	err := conn(ctx, r.db, tx).
		Where("id = ?", id).
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) FindByGatewayTransactionID(ctx context.Context, tx *gorm.DB, transactionID string) (*model.Payment, error) {
	var payment model.Payment
	err := conn(ctx, r.db, tx).
		Where("gateway_transaction_id = ?", transactionID).
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) LockByGatewayTransactionID(ctx context.Context, tx *gorm.DB, transactionID string) (*model.Payment, error) {
	var payment model.Payment
	err := forUpdate(conn(ctx, r.db, tx)).
		Where("gateway_transaction_id = ?", transactionID).
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

// FindLatestOpen returns the most recent payment attempt of the order that no
// gateway transaction has claimed yet.
func (r *paymentRepoImpl) FindLatestOpen(ctx context.Context, tx *gorm.DB, orderID uint, method model.PaymentMethod) (*model.Payment, error) {
	var payment model.Payment
	err := conn(ctx, r.db, tx).
		Where(`
			order_id = ?
			AND method = ?
			AND status IN ?
			AND gateway_transaction_id IS NULL
		`,
			orderID,
			method,
			model.OpenPaymentStatuses,
		).
		Order("created_at DESC").
		Order("id DESC").
		First(&payment).Error

	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) ListByOrder(ctx context.Context, tx *gorm.DB, orderID uint) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := conn(ctx, r.db, tx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&payments).Error

	if err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *paymentRepoImpl) SumCompleted(ctx context.Context, tx *gorm.DB, orderID uint) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := conn(ctx, r.db, tx).
		Model(&model.Payment{}).
		Where("order_id = ? AND status = ?", orderID, model.PaymentStatusCompleted).
		Pluck("amount", &amounts).Error

	if err != nil {
		return decimal.Zero, err
	}

	return decimal.Sum(decimal.Zero, amounts...), nil
}

// AttachTransaction claims an unclaimed payment for a gateway transaction.
// A collision on the unique index surfaces as gorm.ErrDuplicatedKey.
func (r *paymentRepoImpl) AttachTransaction(ctx context.Context, tx *gorm.DB, paymentID uint, transactionID string, status model.PaymentStatus, payload datatypes.JSON) (bool, error) {
	result := conn(ctx, r.db, tx).Model(&model.Payment{}).
		Where("id = ? AND gateway_transaction_id IS NULL AND status IN ?", paymentID, model.OpenPaymentStatuses).
		Updates(map[string]interface{}{
			"gateway_transaction_id": transactionID,
			"status":                 status,
			"gateway_response":       payload,
			"updated_at":             time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

func (r *paymentRepoImpl) MarkCompleted(ctx context.Context, tx *gorm.DB, paymentID uint, payload datatypes.JSON, completedAt time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":       model.PaymentStatusCompleted,
		"completed_at": completedAt,
		"updated_at":   time.Now(),
	}
	if payload != nil {
		updates["gateway_response"] = payload
	}

	result := conn(ctx, r.db, tx).Model(&model.Payment{}).
		Where("id = ? AND status IN ?", paymentID, model.OpenPaymentStatuses).
		Updates(updates)

	return result.RowsAffected > 0, result.Error
}

func (r *paymentRepoImpl) MarkFailed(ctx context.Context, tx *gorm.DB, paymentID uint, payload datatypes.JSON) (bool, error) {
	updates := map[string]interface{}{
		"status":     model.PaymentStatusFailed,
		"updated_at": time.Now(),
	}
	if payload != nil {
		updates["gateway_response"] = payload
	}

	result := conn(ctx, r.db, tx).Model(&model.Payment{}).
		Where("id = ? AND status IN ?", paymentID, model.OpenPaymentStatuses).
		Updates(updates)

	return result.RowsAffected > 0, result.Error
}

func (r *paymentRepoImpl) MarkCancelled(ctx context.Context, tx *gorm.DB, paymentID uint, reason *int, payload datatypes.JSON, cancelledAt time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":        model.PaymentStatusCancelled,
		"cancel_reason": reason,
		"cancelled_at":  cancelledAt,
		"updated_at":    time.Now(),
	}
	if payload != nil {
		updates["gateway_response"] = payload
	}

	result := conn(ctx, r.db, tx).Model(&model.Payment{}).
		Where("id = ? AND status NOT IN ?", paymentID, []model.PaymentStatus{
			model.PaymentStatusCancelled,
			model.PaymentStatusRefunded,
		}).
		Updates(updates)

	return result.RowsAffected > 0, result.Error
}

func (r *paymentRepoImpl) CancelOpenByOrder(ctx context.Context, tx *gorm.DB, orderID uint, cancelledAt time.Time) (int64, error) {
	result := conn(ctx, r.db, tx).Model(&model.Payment{}).
		Where("order_id = ? AND status IN ?", orderID, model.OpenPaymentStatuses).
		Updates(map[string]interface{}{
			"status":       model.PaymentStatusCancelled,
			"cancelled_at": cancelledAt,
			"updated_at":   time.Now(),
		})

	return result.RowsAffected, result.Error
}
