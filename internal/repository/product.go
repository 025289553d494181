package repository

import (
	"context"
	"time"

	"github.com/urolovforever/Brand-Store/internal/model"

	"gorm.io/gorm"
)

type ProductRepository interface {
	Create(ctx context.Context, tx *gorm.DB, product *model.Product) error
	FindByID(ctx context.Context, tx *gorm.DB, productID uint) (*model.Product, error)
	LockMany(ctx context.Context, tx *gorm.DB, productIDs []uint) ([]*model.Product, error)
	DeductStock(ctx context.Context, tx *gorm.DB, productID uint, quantity int) (bool, error)
	RestoreStock(ctx context.Context, tx *gorm.DB, items []model.OrderItem) error
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) Create(ctx context.Context, tx *gorm.DB, product *model.Product) error {
	return conn(ctx, r.db, tx).Create(product).Error
}

func (r *productRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, productID uint) (*model.Product, error) {
	var product model.Product
	err := conn(ctx, r.db, tx).
		Where("id = ?", productID).
		First(&product).Error

	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *productRepoImpl) LockMany(ctx context.Context, tx *gorm.DB, productIDs []uint) ([]*model.Product, error) {
	var products []*model.Product
	err := forUpdate(conn(ctx, r.db, tx)).
		Where("id IN ? AND is_active = ?", productIDs, true).
		Order("id").
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}

// DeductStock takes quantity off the shelf; false when not enough is left.
func (r *productRepoImpl) DeductStock(ctx context.Context, tx *gorm.DB, productID uint, quantity int) (bool, error) {
	result := conn(ctx, r.db, tx).Model(&model.Product{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock - ?", quantity),
			"updated_at": time.Now(),
		})

	return result.RowsAffected > 0, result.Error
}

// RestoreStock puts every line item's quantity back on its product. Items
// whose product was removed are skipped.
func (r *productRepoImpl) RestoreStock(ctx context.Context, tx *gorm.DB, items []model.OrderItem) error {
	db := conn(ctx, r.db, tx)
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}

		err := db.Model(&model.Product{}).
			Where("id = ?", *item.ProductID).
			Updates(map[string]interface{}{
				"stock":      gorm.Expr("stock + ?", item.Quantity),
				"updated_at": time.Now(),
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
