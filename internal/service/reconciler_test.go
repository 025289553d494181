package service

import (
	"context"
	"testing"

	"github.com/urolovforever/Brand-Store/internal/lock"
	"github.com/urolovforever/Brand-Store/internal/logging"
	"github.com/urolovforever/Brand-Store/internal/model"
	"github.com/urolovforever/Brand-Store/internal/repository"
	"github.com/urolovforever/Brand-Store/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const testUser = "user-1"

func newTestReconciler(db *gorm.DB) Reconciler {
	return NewReconciler(
		db, lock.NewLocal(), logging.Discard(), decimal.Zero,
		repository.NewOrderRepository(db),
		repository.NewPaymentRepository(db),
		repository.NewProductRepository(db),
		repository.NewOutboxRepository(db),
	)
}

func minor(order *model.Order) decimal.Decimal {
	return decimal.NewFromInt(ToMinorUnits(order.Total))
}

func openTx(t *testing.T, r Reconciler, order *model.Order, transactionID string) *Transition {
	t.Helper()

	result, err := r.Open(context.Background(), OpenRequest{
		Method:        model.PaymentMethodPayme,
		TransactionID: transactionID,
		OrderRef:      order.Reference,
		Amount:        minor(order),
		Payload:       datatypes.JSON(`{"id":"` + transactionID + `"}`),
	})
	require.NoError(t, err)
	return result
}

func TestReconciler_CheckFeasibleNeverMutates(t *testing.T) {
	db := testutil.NewDB(t)
	r := newTestReconciler(db)
	ctx := context.Background()

	product := testutil.SeedProduct(t, db, "Hoodie", "50000.00", 5)
	order := testutil.SeedOrder(t, db, testUser, product, 2, model.PaymentMethodPayme)

	got, err := r.CheckFeasible(ctx, order.Reference, decimal.NewFromInt(10000000))
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = r.CheckFeasible(ctx, "missing", decimal.NewFromInt(10000000))
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = r.CheckFeasible(ctx, order.Reference, decimal.NewFromInt(9999999))
	assert.ErrorIs(t, err, ErrAmountMismatch)

	reloaded := testutil.ReloadOrder(t, db, order.ID)
	assert.Equal(t, model.PaymentStatusPending, reloaded.PaymentStatus)
	assert.Empty(t, testutil.Payments(t, db, order.ID))

	require.NoError(t, db.Model(&model.Order{}).Where("id = ?", order.ID).
		Update("payment_status", model.PaymentStatusCompleted).Error)
	_, err = r.CheckFeasible(ctx, order.Reference, decimal.NewFromInt(10000000))
	assert.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestReconciler_OpenIsCreateOrFetch(t *testing.T) {
	db := testutil.NewDB(t)
	r := newTestReconciler(db)

	product := testutil.SeedProduct(t, db, "Cap", "100000.00", 10)
	order := testutil.SeedOrder(t, db, testUser, product, 1, model.PaymentMethodPayme)
	initiated := testutil.SeedPayment(t, db, order, model.PaymentMethodPayme, model.PaymentStatusPending)

	first := openTx(t, r, order, "tx-1")
	assert.False(t, first.Replayed)
	assert.Equal(t, initiated.ID, first.Payment.ID, "the initiated attempt is adopted")
	assert.Equal(t, model.PaymentStatusProcessing, first.Payment.Status)

	second := openTx(t, r, order, "tx-1")
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)

	payments := testutil.Payments(t, db, order.ID)
	require.Len(t, payments, 1)
	assert.Equal(t, "tx-1", payments[0].TransactionID())
	assert.Equal(t, model.PaymentStatusProcessing, testutil.ReloadOrder(t, db, order.ID).PaymentStatus)
}

func TestReconciler_OpenRejectsTerminalTransaction(t *testing.T) {
	db := testutil.NewDB(t)
	r := newTestReconciler(db)
	ctx := context.Background()

	product := testutil.SeedProduct(t, db, "Cap", "100000.00", 10)
	order := testutil.SeedOrder(t, db, testUser, product, 1, model.PaymentMethodPayme)

	openTx(t, r, order, "tx-1")
	_, err := r.Abort(ctx, "tx-1", nil, nil)
	require.NoError(t, err)

	_, err = r.Open(ctx, OpenRequest{
		Method:        model.PaymentMethodPayme,
		TransactionID: "tx-1",
		OrderRef:      order.Reference,
		Amount:        minor(order),
	})
	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
	assert.Len(t, testutil.Payments(t, db, order.ID), 1)
}

func TestReconciler_CommitIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	r := newTestReconciler(db)
	ctx := context.Background()

	product := testutil.SeedProduct(t, db, "Jacket", "75000.00", 4)
	order := testutil.SeedOrder(t, db, testUser, product, 2, model.PaymentMethodPayme)
	openTx(t, r, order, "tx-1")

	first, err := r.Commit(ctx, "tx-1", nil)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	require.NotNil(t, first.Payment.CompletedAt)
	assert.Equal(t, model.PaymentStatusCompleted, first.Payment.Status)
	assert.Equal(t, model.PaymentStatusCompleted, first.Order.PaymentStatus)
	require.NotNil(t, first.Order.PaidAt)
	require.NotNil(t, first.Order.PaymentTransactionID)
	assert.Equal(t, "tx-1", *first.Order.PaymentTransactionID)

	second, err := r.Commit(ctx, "tx-1", nil)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	require.NotNil(t, second.Payment.CompletedAt)
	assert.True(t, first.Payment.CompletedAt.Equal(*second.Payment.CompletedAt))

	assert.Len(t, testutil.OutboxEvents(t, db, model.EventPaymentCompleted), 1)
	assert.Equal(t, 4, testutil.ReloadProduct(t, db, product.ID).Stock)
}

func TestReconciler_CommitUnknownTransaction(t *testing.T) {
	db := testutil.NewDB(t)
	r := newTestReconciler(db)

	_, err := r.Commit(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	_, err = r.Abort(context.Background(), "nope", nil, nil)
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	_, err = r.Query(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestReconciler_CommitRefusesSecondPayment(t *testing.T) {
	db := testutil.NewDB(t)
	r := newTestReconciler(db)
	ctx := context.Background()

	product := testutil.SeedProduct(t, db, "Scarf", "30000.00", 10)
	order := testutil.SeedOrder(t, db, testUser, product, 1, model.PaymentMethodPayme)
	openTx(t, r, order, "tx-1")
	openTx(t, r, order, "tx-2")

	_, err := r.Commit(ctx, "tx-1", nil)
	require.NoError(t, err)

	_, err = r.Commit(ctx, "tx-2", nil)
	assert.ErrorIs(t, err, ErrAlreadyPaid)

	payment, err := r.Query(ctx, "tx-2")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusProcessing, payment.Status)
}

func TestReconciler_AbortRestoresStockOnce(t *testing.T) {
	db := testutil.NewDB(t)
	r := newTestReconciler(db)
	ctx := context.Background()

	// stock is 7 after the order took 3
	product := testutil.SeedProduct(t, db, "Sneakers", "120000.00", 7)
	order := testutil.SeedOrder(t, db, testUser, product, 3, model.PaymentMethodPayme)
	openTx(t, r, order, "tx-1")

	reason := 3
	first, err := r.Abort(ctx, "tx-1", &reason, nil)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.True(t, first.StockRestored)
	assert.Equal(t, model.PaymentStatusCancelled, first.Payment.Status)
	require.NotNil(t, first.Payment.CancelledAt)
	require.NotNil(t, first.Payment.CancelReason)
	assert.Equal(t, 3, *first.Payment.CancelReason)
	assert.Equal(t, model.PaymentStatusFailed, first.Order.PaymentStatus)
	assert.Equal(t, 10, testutil.ReloadProduct(t, db, product.ID).Stock)

	second, err := r.Abort(ctx, "tx-1", &reason, nil)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.True(t, first.Payment.CancelledAt.Equal(*second.Payment.CancelledAt))
	assert.Equal(t, 10, testutil.ReloadProduct(t, db, product.ID).Stock)

	assert.Len(t, testutil.OutboxEvents(t, db, model.EventPaymentCancelled), 1)
}

func TestReconciler_AbortKeepsOrderPaidByAnotherTransaction(t *testing.T) {
	db := testutil.NewDB(t)
	r := newTestReconciler(db)
	ctx := context.Background()

	product := testutil.SeedProduct(t, db, "Belt", "20000.00", 9)
	order := testutil.SeedOrder(t, db, testUser, product, 1, model.PaymentMethodPayme)
	openTx(t, r, order, "tx-1")
	openTx(t, r, order, "tx-2")

	_, err := r.Commit(ctx, "tx-1", nil)
	require.NoError(t, err)

	result, err := r.Abort(ctx, "tx-2", nil, nil)
	require.NoError(t, err)
	assert.False(t, result.StockRestored)
	assert.Equal(t, model.PaymentStatusCancelled, result.Payment.Status)
	assert.Equal(t, model.PaymentStatusCompleted, result.Order.PaymentStatus)
	assert.Equal(t, 9, testutil.ReloadProduct(t, db, product.ID).Stock)
}

func TestReconciler_CommitAfterAbortIsRejected(t *testing.T) {
	db := testutil.NewDB(t)
	r := newTestReconciler(db)
	ctx := context.Background()

	product := testutil.SeedProduct(t, db, "Belt", "20000.00", 9)
	order := testutil.SeedOrder(t, db, testUser, product, 1, model.PaymentMethodPayme)
	openTx(t, r, order, "tx-1")

	_, err := r.Abort(ctx, "tx-1", nil, nil)
	require.NoError(t, err)

	_, err = r.Commit(ctx, "tx-1", nil)
	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
	assert.Equal(t, model.PaymentStatusFailed, testutil.ReloadOrder(t, db, order.ID).PaymentStatus)
}

func TestReconciler_Complete(t *testing.T) {
	t.Run("success completes the latest open attempt", func(t *testing.T) {
		db := testutil.NewDB(t)
		r := newTestReconciler(db)

		product := testutil.SeedProduct(t, db, "Tee", "100000.00", 5)
		order := testutil.SeedOrder(t, db, testUser, product, 1, model.PaymentMethodClick)
		testutil.SeedPayment(t, db, order, model.PaymentMethodClick, model.PaymentStatusPending)
		latest := testutil.SeedPayment(t, db, order, model.PaymentMethodClick, model.PaymentStatusPending)

		result, err := r.Complete(context.Background(), CompleteRequest{
			OrderRef:      order.Reference,
			TransactionID: "555",
			Success:       true,
			Amount:        minor(order),
			Payload:       datatypes.JSON(`{"click_trans_id":"555"}`),
		})
		require.NoError(t, err)
		assert.Equal(t, latest.ID, result.Payment.ID)
		assert.Equal(t, model.PaymentStatusCompleted, result.Payment.Status)
		assert.JSONEq(t, `{"click_trans_id":"555"}`, string(result.Payment.GatewayResponse))
		assert.Equal(t, model.PaymentStatusCompleted, result.Order.PaymentStatus)
		assert.NotNil(t, result.Order.PaidAt)
	})

	t.Run("failure fails the order and keeps the payload", func(t *testing.T) {
		db := testutil.NewDB(t)
		r := newTestReconciler(db)

		product := testutil.SeedProduct(t, db, "Tee", "100000.00", 5)
		order := testutil.SeedOrder(t, db, testUser, product, 1, model.PaymentMethodClick)

		result, err := r.Complete(context.Background(), CompleteRequest{
			OrderRef:      order.Reference,
			TransactionID: "556",
			Success:       false,
			Amount:        minor(order),
			Payload:       datatypes.JSON(`{"error":"-5017"}`),
		})
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusFailed, result.Payment.Status)
		assert.Equal(t, model.PaymentStatusFailed, result.Order.PaymentStatus)
		assert.Nil(t, result.Payment.CompletedAt)
		assert.Len(t, testutil.OutboxEvents(t, db, model.EventPaymentFailed), 1)
	})

	t.Run("contradicting replay is rejected", func(t *testing.T) {
		db := testutil.NewDB(t)
		r := newTestReconciler(db)
		ctx := context.Background()

		product := testutil.SeedProduct(t, db, "Tee", "100000.00", 5)
		order := testutil.SeedOrder(t, db, testUser, product, 1, model.PaymentMethodClick)
		req := CompleteRequest{OrderRef: order.Reference, TransactionID: "557", Success: true, Amount: minor(order)}

		_, err := r.Complete(ctx, req)
		require.NoError(t, err)

		replay, err := r.Complete(ctx, req)
		require.NoError(t, err)
		assert.True(t, replay.Replayed)

		req.Success = false
		_, err = r.Complete(ctx, req)
		assert.ErrorIs(t, err, ErrTransitionNotAllowed)

		assert.Len(t, testutil.OutboxEvents(t, db, model.EventPaymentCompleted), 1)
		assert.Equal(t, model.PaymentStatusCompleted, testutil.ReloadOrder(t, db, order.ID).PaymentStatus)
	})

	t.Run("another transaction cannot pay twice", func(t *testing.T) {
		db := testutil.NewDB(t)
		r := newTestReconciler(db)
		ctx := context.Background()

		product := testutil.SeedProduct(t, db, "Tee", "100000.00", 5)
		order := testutil.SeedOrder(t, db, testUser, product, 1, model.PaymentMethodClick)

		_, err := r.Complete(ctx, CompleteRequest{OrderRef: order.Reference, TransactionID: "1", Success: true, Amount: minor(order)})
		require.NoError(t, err)

		_, err = r.Complete(ctx, CompleteRequest{OrderRef: order.Reference, TransactionID: "2", Success: true, Amount: minor(order)})
		assert.ErrorIs(t, err, ErrAlreadyPaid)
		assert.Len(t, testutil.Payments(t, db, order.ID), 1)
	})

	t.Run("amount is checked again", func(t *testing.T) {
		db := testutil.NewDB(t)
		r := newTestReconciler(db)

		product := testutil.SeedProduct(t, db, "Tee", "100000.00", 5)
		order := testutil.SeedOrder(t, db, testUser, product, 1, model.PaymentMethodClick)

		_, err := r.Complete(context.Background(), CompleteRequest{
			OrderRef:      order.Reference,
			TransactionID: "558",
			Success:       true,
			Amount:        decimal.NewFromInt(100),
		})
		assert.ErrorIs(t, err, ErrAmountMismatch)
		assert.Empty(t, testutil.Payments(t, db, order.ID))
	})

	t.Run("unknown order", func(t *testing.T) {
		db := testutil.NewDB(t)
		r := newTestReconciler(db)

		_, err := r.Complete(context.Background(), CompleteRequest{OrderRef: "missing", TransactionID: "1", Success: true})
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}
