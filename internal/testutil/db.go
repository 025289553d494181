// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/urolovforever/Brand-Store/internal/client"
	"github.com/urolovforever/Brand-Store/internal/config"
	"github.com/urolovforever/Brand-Store/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB returns a migrated in-memory sqlite database private to the test.
// A single connection serializes all access, so code running inside a
// transaction must use the transaction handle.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := client.OpenDatabase(config.Database{
		Driver:       "sqlite",
		URL:          dsn,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, client.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func SeedProduct(t *testing.T, db *gorm.DB, name, price string, stock int) *model.Product {
	t.Helper()

	product := &model.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

// SeedOrder stores a placed, unpaid order for quantity units of product.
// Stock is not touched; seed the product with its post-deduction level.
func SeedOrder(t *testing.T, db *gorm.DB, userID string, product *model.Product, quantity int, method model.PaymentMethod) *model.Order {
	t.Helper()

	productID := product.ID
	line := model.LineSubtotal(product.Price, product.DiscountPercentage, quantity)
	order := &model.Order{
		Reference:     uuid.NewString(),
		UserID:        userID,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
		PaymentMethod: method,
		Subtotal:      line,
		Discount:      decimal.Zero,
		Total:         line,
		Items: []model.OrderItem{{
			ProductID:          &productID,
			ProductName:        product.Name,
			ProductPrice:       product.Price,
			Quantity:           quantity,
			DiscountPercentage: product.DiscountPercentage,
			Subtotal:           line,
		}},
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func SeedPayment(t *testing.T, db *gorm.DB, order *model.Order, method model.PaymentMethod, status model.PaymentStatus) *model.Payment {
	t.Helper()

	payment := &model.Payment{
		OrderID:  order.ID,
		Method:   method,
		Amount:   order.Total,
		Currency: model.DefaultCurrency,
		Status:   status,
	}
	require.NoError(t, db.Create(payment).Error)
	return payment
}

func ReloadOrder(t *testing.T, db *gorm.DB, id uint) *model.Order {
	t.Helper()

	var order model.Order
	require.NoError(t, db.Preload("Items").First(&order, id).Error)
	return &order
}

func ReloadProduct(t *testing.T, db *gorm.DB, id uint) *model.Product {
	t.Helper()

	var product model.Product
	require.NoError(t, db.First(&product, id).Error)
	return &product
}

func Payments(t *testing.T, db *gorm.DB, orderID uint) []model.Payment {
	t.Helper()

	var payments []model.Payment
	require.NoError(t, db.Where("order_id = ?", orderID).Order("id").Find(&payments).Error)
	return payments
}

func OutboxEvents(t *testing.T, db *gorm.DB, eventType string) []model.OutboxEvent {
	t.Helper()

	var events []model.OutboxEvent
	require.NoError(t, db.Where("type = ?", eventType).Order("id").Find(&events).Error)
	return events
}
