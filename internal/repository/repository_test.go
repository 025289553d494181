package repository

import (
	"context"
	"testing"
	"time"

	"github.com/urolovforever/Brand-Store/internal/model"
	"github.com/urolovforever/Brand-Store/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestProductRepository_Stock(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	product := testutil.SeedProduct(t, db, "Scarf", "30.00", 4)

	ok, err := repo.DeductStock(ctx, nil, product.ID, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DeductStock(ctx, nil, product.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, testutil.ReloadProduct(t, db, product.ID).Stock)

	productID := product.ID
	require.NoError(t, repo.RestoreStock(ctx, nil, []model.OrderItem{
		{ProductID: &productID, Quantity: 3},
		{ProductID: nil, Quantity: 10},
	}))
	assert.Equal(t, 4, testutil.ReloadProduct(t, db, product.ID).Stock)
}

func TestProductRepository_LockManySkipsInactive(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewProductRepository(db)

	active := testutil.SeedProduct(t, db, "Scarf", "30.00", 4)
	retired := testutil.SeedProduct(t, db, "Gloves", "20.00", 4)
	require.NoError(t, db.Model(retired).Update("is_active", false).Error)

	products, err := repo.LockMany(context.Background(), nil, []uint{retired.ID, active.ID})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, active.ID, products[0].ID)
}

func TestOrderRepository_Guards(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	product := testutil.SeedProduct(t, db, "Scarf", "30.00", 4)
	order := testutil.SeedOrder(t, db, "user-1", product, 1, model.PaymentMethodClick)

	found, err := repo.FindByReference(ctx, nil, order.Reference)
	require.NoError(t, err)
	assert.Len(t, found.Items, 1)

	_, err = repo.FindByReference(ctx, nil, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	now := time.Now()
	ok, err := repo.MarkStockRestored(ctx, nil, order.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkStockRestored(ctx, nil, order.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.MarkPaid(ctx, nil, order.ID, "t-1", now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkPaid(ctx, nil, order.ID, "t-2", now)
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded := testutil.ReloadOrder(t, db, order.ID)
	require.NotNil(t, reloaded.PaymentTransactionID)
	assert.Equal(t, "t-1", *reloaded.PaymentTransactionID)

	ok, err = repo.Cancel(ctx, nil, order.ID)
	require.NoError(t, err)
	assert.False(t, ok, "paid orders are not cancellable")
}

func TestPaymentRepository_Transitions(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	product := testutil.SeedProduct(t, db, "Scarf", "30.00", 4)
	order := testutil.SeedOrder(t, db, "user-1", product, 1, model.PaymentMethodPayme)

	older := testutil.SeedPayment(t, db, order, model.PaymentMethodPayme, model.PaymentStatusPending)
	newer := testutil.SeedPayment(t, db, order, model.PaymentMethodPayme, model.PaymentStatusPending)

	latest, err := repo.FindLatestOpen(ctx, nil, order.ID, model.PaymentMethodPayme)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)

	_, err = repo.FindLatestOpen(ctx, nil, order.ID, model.PaymentMethodClick)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	payload := datatypes.JSON(`{"id":"g-1"}`)
	ok, err := repo.AttachTransaction(ctx, nil, newer.ID, "g-1", model.PaymentStatusProcessing, payload)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AttachTransaction(ctx, nil, older.ID, "g-1", model.PaymentStatusProcessing, payload)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	assert.False(t, ok)

	byTx, err := repo.FindByGatewayTransactionID(ctx, nil, "g-1")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, byTx.ID)

	now := time.Now()
	ok, err = repo.MarkCompleted(ctx, nil, newer.ID, payload, now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkFailed(ctx, nil, newer.ID, payload)
	require.NoError(t, err)
	assert.False(t, ok)

	sum, err := repo.SumCompleted(ctx, nil, order.ID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.RequireFromString("30")), sum.String())

	cancelled, err := repo.CancelOpenByOrder(ctx, nil, order.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cancelled)

	all, err := repo.ListByOrder(ctx, nil, order.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	statuses := map[uint]model.PaymentStatus{}
	for _, p := range all {
		statuses[p.ID] = p.Status
	}
	assert.Equal(t, model.PaymentStatusCompleted, statuses[newer.ID])
	assert.Equal(t, model.PaymentStatusCancelled, statuses[older.ID])
}

func TestPromoCodeRepository_Usage(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPromoCodeRepository(db)
	ctx := context.Background()

	maxUses := 1
	promo := &model.PromoCode{
		Code:               "WINTER",
		DiscountPercentage: 10,
		MaxUses:            &maxUses,
		ValidFrom:          time.Now().Add(-time.Hour),
		ValidUntil:         time.Now().Add(time.Hour),
		IsActive:           true,
	}
	require.NoError(t, repo.Create(ctx, nil, promo))

	found, err := repo.FindActiveByCode(ctx, nil, " winter ")
	require.NoError(t, err)
	assert.Equal(t, promo.ID, found.ID)

	ok, err := repo.IncrementUsage(ctx, nil, promo.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.IncrementUsage(ctx, nil, promo.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
