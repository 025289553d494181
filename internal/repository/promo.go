package repository

import (
	"context"
	"strings"

	"github.com/urolovforever/Brand-Store/internal/model"

	"gorm.io/gorm"
)

type PromoCodeRepository interface {
	Create(ctx context.Context, tx *gorm.DB, promo *model.PromoCode) error
	FindActiveByCode(ctx context.Context, tx *gorm.DB, code string) (*model.PromoCode, error)
	IncrementUsage(ctx context.Context, tx *gorm.DB, promoID uint) (bool, error)
}

type promoRepoImpl struct {
	db *gorm.DB
}

func NewPromoCodeRepository(db *gorm.DB) PromoCodeRepository {
	return &promoRepoImpl{
		db: db,
	}
}

func (r *promoRepoImpl) Create(ctx context.Context, tx *gorm.DB, promo *model.PromoCode) error {
	return conn(ctx, r.db, tx).Create(promo).Error
}

func (r *promoRepoImpl) FindActiveByCode(ctx context.Context, tx *gorm.DB, code string) (*model.PromoCode, error) {
	var promo model.PromoCode
	err := forUpdate(conn(ctx, r.db, tx)).
		Where("code = ? AND is_active = ?", strings.ToUpper(strings.TrimSpace(code)), true).
		First(&promo).Error

	if err != nil {
		return nil, err
	}

	return &promo, nil
}

// IncrementUsage counts one redemption unless the usage cap is reached.
func (r *promoRepoImpl) IncrementUsage(ctx context.Context, tx *gorm.DB, promoID uint) (bool, error) {
	result := conn(ctx, r.db, tx).Model(&model.PromoCode{}).
		Where("id = ? AND (max_uses IS NULL OR times_used < max_uses)", promoID).
		Update("times_used", gorm.Expr("times_used + 1"))

	return result.RowsAffected > 0, result.Error
}
