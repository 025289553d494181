package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/urolovforever/Brand-Store/internal/lock"
	"github.com/urolovforever/Brand-Store/internal/model"
	"github.com/urolovforever/Brand-Store/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Reconciler is the order/payment state machine shared by every gateway
// adapter. Each transition runs under a per-order lock and inside one
// database transaction; replays are detected and acknowledged without
// re-applying anything.
type Reconciler interface {
	CheckFeasible(ctx context.Context, orderRef string, amount decimal.Decimal) (*model.Order, error)
	Open(ctx context.Context, req OpenRequest) (*Transition, error)
	Commit(ctx context.Context, transactionID string, payload datatypes.JSON) (*Transition, error)
	Abort(ctx context.Context, transactionID string, reason *int, payload datatypes.JSON) (*Transition, error)
	Query(ctx context.Context, transactionID string) (*model.Payment, error)
	Complete(ctx context.Context, req CompleteRequest) (*Transition, error)
}

type OpenRequest struct {
	Method        model.PaymentMethod
	TransactionID string
	OrderRef      string
	Amount        decimal.Decimal // minor units
	Payload       datatypes.JSON
}

type CompleteRequest struct {
	OrderRef      string
	TransactionID string
	Success       bool
	Amount        decimal.Decimal // minor units
	Payload       datatypes.JSON
}

// Transition is the outcome of a gateway-driven operation. Replayed is set
// when the operation had already been applied and nothing was written.
type Transition struct {
	Order         *model.Order
	Payment       *model.Payment
	Replayed      bool
	StockRestored bool
}

type reconcilerImpl struct {
	db          *gorm.DB
	locker      lock.Locker
	logger      *slog.Logger
	epsilon     decimal.Decimal
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentRepository
	events      eventRecorder
	stock       stockRestorer
	now         func() time.Time
}

func NewReconciler(
	db *gorm.DB,
	locker lock.Locker,
	logger *slog.Logger,
	epsilon decimal.Decimal,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	productRepo repository.ProductRepository,
	outboxRepo repository.OutboxRepository,
) Reconciler {
	return &reconcilerImpl{
		db:          db,
		locker:      locker,
		logger:      logger,
		epsilon:     epsilon,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		events:      eventRecorder{outboxRepo: outboxRepo},
		stock:       stockRestorer{orderRepo: orderRepo, productRepo: productRepo},
		now:         time.Now,
	}
}

// CheckFeasible runs the order existence, payment and amount checks. It never writes.
func (r *reconcilerImpl) CheckFeasible(ctx context.Context, orderRef string, amount decimal.Decimal) (*model.Order, error) {
	order, err := r.findOrder(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if err := checkPayable(order, amount); err != nil {
		return nil, err
	}
	return order, nil
}

func checkPayable(order *model.Order, amount decimal.Decimal) error {
	if order.IsPaid() {
		return ErrAlreadyPaid
	}
	if order.Status == model.OrderStatusCancelled {
		return fmt.Errorf("order %s is cancelled: %w", order.Reference, ErrTransitionNotAllowed)
	}
	if !AmountMatches(order.Total, amount) {
		return ErrAmountMismatch
	}
	return nil
}

// Open creates or fetches the payment bound to a gateway transaction.
func (r *reconcilerImpl) Open(ctx context.Context, req OpenRequest) (*Transition, error) {
	if req.TransactionID == "" {
		return nil, fmt.Errorf("empty transaction id: %w", ErrMalformedRequest)
	}

	existing, err := r.findPayment(ctx, nil, req.TransactionID)
	if err == nil {
		return r.reopen(ctx, nil, existing, req)
	}
	if !errors.Is(err, ErrTransactionNotFound) {
		return nil, err
	}

	order, err := r.findOrder(ctx, req.OrderRef)
	if err != nil {
		return nil, err
	}

	var result *Transition
	err = r.withOrderLock(ctx, order.ID, func(tx *gorm.DB) error {
		order, err := r.orderRepo.LockByID(ctx, tx, order.ID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}

		// another delivery may have opened it while we waited for the lock
		existing, err := r.findPayment(ctx, tx, req.TransactionID)
		if err == nil {
			result, err = r.reopen(ctx, tx, existing, req)
			return err
		}
		if !errors.Is(err, ErrTransactionNotFound) {
			return err
		}

		if err := checkPayable(order, req.Amount); err != nil {
			return err
		}

		payment, err := r.claimPayment(ctx, tx, order, req.Method, req.TransactionID, req.Payload)
		if err != nil {
			return err
		}

		if err := r.orderRepo.UpdatePaymentStatus(ctx, tx, order.ID, model.PaymentStatusProcessing); err != nil {
			return fmt.Errorf("update order payment status: %w", err)
		}

		result = &Transition{Order: order, Payment: payment}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, findErr := r.findPayment(ctx, nil, req.TransactionID)
		if findErr != nil {
			return nil, findErr
		}
		return r.reopen(ctx, nil, existing, req)
	}
	if err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "payment transaction opened",
		slog.String("order", result.Order.Reference),
		slog.String("transaction_id", req.TransactionID),
		slog.Uint64("payment_id", uint64(result.Payment.ID)),
	)
	return result, nil
}

// reopen acknowledges a re-delivered open. The delivery must name the same
// order and amount the transaction was opened with.
func (r *reconcilerImpl) reopen(ctx context.Context, tx *gorm.DB, payment *model.Payment, req OpenRequest) (*Transition, error) {
	if payment.Status.IsTerminal() {
		return nil, fmt.Errorf("transaction %s is %s: %w", payment.TransactionID(), payment.Status, ErrTransitionNotAllowed)
	}
	order, err := r.orderRepo.FindByID(ctx, tx, payment.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", payment.OrderID, err)
	}
	if order.Reference != req.OrderRef {
		return nil, fmt.Errorf("transaction %s belongs to another order: %w", req.TransactionID, ErrTransitionNotAllowed)
	}
	if !AmountMatches(payment.Amount, req.Amount) {
		return nil, ErrAmountMismatch
	}
	return &Transition{Order: order, Payment: payment, Replayed: true}, nil
}

// claimPayment binds a gateway transaction to the order's most recent
// unclaimed attempt of the method, or to a new one.
func (r *reconcilerImpl) claimPayment(ctx context.Context, tx *gorm.DB, order *model.Order, method model.PaymentMethod, transactionID string, payload datatypes.JSON) (*model.Payment, error) {
	open, err := r.paymentRepo.FindLatestOpen(ctx, tx, order.ID, method)
	switch {
	case err == nil:
		attached, err := r.paymentRepo.AttachTransaction(ctx, tx, open.ID, transactionID, model.PaymentStatusProcessing, payload)
		if err != nil {
			return nil, fmt.Errorf("attach transaction: %w", err)
		}
		if attached {
			return r.paymentRepo.FindByID(ctx, tx, open.ID)
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("find open payment: %w", err)
	}

	payment := &model.Payment{
		OrderID:              order.ID,
		Method:               method,
		Amount:               order.Total,
		Currency:             model.DefaultCurrency,
		Status:               model.PaymentStatusProcessing,
		GatewayTransactionID: &transactionID,
		GatewayResponse:      payload,
	}
	if err := r.paymentRepo.Create(ctx, tx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return payment, nil
}

// Commit completes an opened transaction and marks the order paid.
func (r *reconcilerImpl) Commit(ctx context.Context, transactionID string, payload datatypes.JSON) (*Transition, error) {
	payment, err := r.findPayment(ctx, nil, transactionID)
	if err != nil {
		return nil, err
	}

	var result *Transition
	err = r.withOrderLock(ctx, payment.OrderID, func(tx *gorm.DB) error {
		order, payment, err := r.lockPair(ctx, tx, payment.OrderID, transactionID)
		if err != nil {
			return err
		}

		switch {
		case payment.Status == model.PaymentStatusCompleted:
			result = &Transition{Order: order, Payment: payment, Replayed: true}
			return nil
		case payment.Status.IsTerminal():
			return fmt.Errorf("transaction %s is %s: %w", transactionID, payment.Status, ErrTransitionNotAllowed)
		}

		if err := r.checkNotOverpaid(ctx, tx, order, payment); err != nil {
			return err
		}

		result, err = r.complete(ctx, tx, order, payment, payload)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		r.logger.InfoContext(ctx, "payment completed",
			slog.String("order", result.Order.Reference),
			slog.String("transaction_id", transactionID),
		)
	}
	return result, nil
}

func (r *reconcilerImpl) checkNotOverpaid(ctx context.Context, tx *gorm.DB, order *model.Order, payment *model.Payment) error {
	if order.IsPaid() && (order.PaymentTransactionID == nil || *order.PaymentTransactionID != payment.TransactionID()) {
		return ErrAlreadyPaid
	}

	paid, err := r.paymentRepo.SumCompleted(ctx, tx, order.ID)
	if err != nil {
		return fmt.Errorf("sum completed payments: %w", err)
	}
	if paid.Add(payment.Amount).GreaterThan(order.Total.Add(r.epsilon)) {
		return ErrAlreadyPaid
	}
	return nil
}

// complete moves an open payment and its order to COMPLETED and records the event.
func (r *reconcilerImpl) complete(ctx context.Context, tx *gorm.DB, order *model.Order, payment *model.Payment, payload datatypes.JSON) (*Transition, error) {
	at := r.now()

	ok, err := r.paymentRepo.MarkCompleted(ctx, tx, payment.ID, payload, at)
	if err != nil {
		return nil, fmt.Errorf("mark payment completed: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("payment %d left the open state: %w", payment.ID, ErrTransitionNotAllowed)
	}

	if _, err := r.orderRepo.MarkPaid(ctx, tx, order.ID, payment.TransactionID(), at); err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	return r.finish(ctx, tx, model.EventPaymentCompleted, order.ID, payment.ID, false, at)
}

// Abort cancels a transaction. Unless another transaction already paid the
// order, the order fails and its stock goes back on the shelf.
func (r *reconcilerImpl) Abort(ctx context.Context, transactionID string, reason *int, payload datatypes.JSON) (*Transition, error) {
	payment, err := r.findPayment(ctx, nil, transactionID)
	if err != nil {
		return nil, err
	}

	var result *Transition
	err = r.withOrderLock(ctx, payment.OrderID, func(tx *gorm.DB) error {
		order, payment, err := r.lockPair(ctx, tx, payment.OrderID, transactionID)
		if err != nil {
			return err
		}

		switch payment.Status {
		case model.PaymentStatusCancelled:
			result = &Transition{Order: order, Payment: payment, Replayed: true}
			return nil
		case model.PaymentStatusRefunded:
			return fmt.Errorf("transaction %s is refunded: %w", transactionID, ErrTransitionNotAllowed)
		}

		at := r.now()
		ok, err := r.paymentRepo.MarkCancelled(ctx, tx, payment.ID, reason, payload, at)
		if err != nil {
			return fmt.Errorf("mark payment cancelled: %w", err)
		}
		if !ok {
			return fmt.Errorf("payment %d already closed: %w", payment.ID, ErrTransitionNotAllowed)
		}

		paidByOther := order.IsPaid() &&
			(order.PaymentTransactionID == nil || *order.PaymentTransactionID != transactionID)

		restored := false
		if !paidByOther {
			if err := r.orderRepo.UpdatePaymentStatus(ctx, tx, order.ID, model.PaymentStatusFailed); err != nil {
				return fmt.Errorf("update order payment status: %w", err)
			}
			restored, err = r.stock.restoreOnce(ctx, tx, order, at)
			if err != nil {
				return err
			}
		}

		result, err = r.finish(ctx, tx, model.EventPaymentCancelled, order.ID, payment.ID, restored, at)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		r.logger.InfoContext(ctx, "payment cancelled",
			slog.String("order", result.Order.Reference),
			slog.String("transaction_id", transactionID),
			slog.Bool("stock_restored", result.StockRestored),
		)
	}
	return result, nil
}

func (r *reconcilerImpl) Query(ctx context.Context, transactionID string) (*model.Payment, error) {
	return r.findPayment(ctx, nil, transactionID)
}

// Complete applies the final callback of a two-phase gateway: success
// completes the order's current attempt, failure fails it. A repeated
// callback with the same outcome is acknowledged as a replay.
func (r *reconcilerImpl) Complete(ctx context.Context, req CompleteRequest) (*Transition, error) {
	if req.TransactionID == "" {
		return nil, fmt.Errorf("empty transaction id: %w", ErrMalformedRequest)
	}

	order, err := r.findOrder(ctx, req.OrderRef)
	if err != nil {
		return nil, err
	}

	var result *Transition
	err = r.withOrderLock(ctx, order.ID, func(tx *gorm.DB) error {
		order, err := r.orderRepo.LockByID(ctx, tx, order.ID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}

		payment, err := r.paymentRepo.LockByGatewayTransactionID(ctx, tx, req.TransactionID)
		switch {
		case err == nil:
			if payment.OrderID != order.ID {
				return fmt.Errorf("transaction %s belongs to another order: %w", req.TransactionID, ErrTransitionNotAllowed)
			}
			if payment.Status.IsTerminal() {
				result, err = replayOf(order, payment, req.Success)
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			payment = nil
		default:
			return fmt.Errorf("get payment: %w", err)
		}

		if req.Success {
			if err := checkPayable(order, req.Amount); err != nil {
				return err
			}
		}

		if payment == nil {
			payment, err = r.claimPayment(ctx, tx, order, model.PaymentMethodClick, req.TransactionID, req.Payload)
			if err != nil {
				return err
			}
		}

		if req.Success {
			if err := r.checkNotOverpaid(ctx, tx, order, payment); err != nil {
				return err
			}
			result, err = r.complete(ctx, tx, order, payment, req.Payload)
			return err
		}

		result, err = r.fail(ctx, tx, order, payment, req.Payload)
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return r.replayAfterRace(ctx, order, req)
	}
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		r.logger.InfoContext(ctx, "payment callback applied",
			slog.String("order", result.Order.Reference),
			slog.String("transaction_id", req.TransactionID),
			slog.String("status", string(result.Payment.Status)),
		)
	}
	return result, nil
}

func (r *reconcilerImpl) fail(ctx context.Context, tx *gorm.DB, order *model.Order, payment *model.Payment, payload datatypes.JSON) (*Transition, error) {
	ok, err := r.paymentRepo.MarkFailed(ctx, tx, payment.ID, payload)
	if err != nil {
		return nil, fmt.Errorf("mark payment failed: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("payment %d left the open state: %w", payment.ID, ErrTransitionNotAllowed)
	}

	// a paid or customer-cancelled order keeps its status
	if !order.IsPaid() && order.Status != model.OrderStatusCancelled {
		if err := r.orderRepo.UpdatePaymentStatus(ctx, tx, order.ID, model.PaymentStatusFailed); err != nil {
			return nil, fmt.Errorf("update order payment status: %w", err)
		}
	}

	return r.finish(ctx, tx, model.EventPaymentFailed, order.ID, payment.ID, false, r.now())
}

// replayAfterRace handles a concurrent duplicate that lost on the unique
// transaction index: the winner's outcome is acknowledged if it matches.
func (r *reconcilerImpl) replayAfterRace(ctx context.Context, order *model.Order, req CompleteRequest) (*Transition, error) {
	payment, err := r.findPayment(ctx, nil, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if payment.OrderID != order.ID {
		return nil, fmt.Errorf("transaction %s belongs to another order: %w", req.TransactionID, ErrTransitionNotAllowed)
	}
	fresh, err := r.orderRepo.FindByID(ctx, nil, order.ID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return replayOf(fresh, payment, req.Success)
}

func replayOf(order *model.Order, payment *model.Payment, success bool) (*Transition, error) {
	want := model.PaymentStatusFailed
	if success {
		want = model.PaymentStatusCompleted
	}
	if payment.Status != want {
		return nil, fmt.Errorf("transaction %s is already %s: %w", payment.TransactionID(), payment.Status, ErrTransitionNotAllowed)
	}
	return &Transition{Order: order, Payment: payment, Replayed: true}, nil
}

// finish reloads the pair after a transition and appends its outbox event.
func (r *reconcilerImpl) finish(ctx context.Context, tx *gorm.DB, eventType string, orderID, paymentID uint, restored bool, at time.Time) (*Transition, error) {
	order, err := r.orderRepo.FindByID(ctx, tx, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	payment, err := r.paymentRepo.FindByID(ctx, tx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("reload payment: %w", err)
	}

	if err := r.events.record(ctx, tx, eventType, order, payment, restored, at); err != nil {
		return nil, err
	}
	return &Transition{Order: order, Payment: payment, StockRestored: restored}, nil
}

func (r *reconcilerImpl) lockPair(ctx context.Context, tx *gorm.DB, orderID uint, transactionID string) (*model.Order, *model.Payment, error) {
	order, err := r.orderRepo.LockByID(ctx, tx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("lock order: %w", err)
	}
	payment, err := r.paymentRepo.LockByGatewayTransactionID(ctx, tx, transactionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lock payment: %w", err)
	}
	return order, payment, nil
}

func (r *reconcilerImpl) withOrderLock(ctx context.Context, orderID uint, fn func(tx *gorm.DB) error) error {
	unlock, err := r.locker.Lock(ctx, fmt.Sprintf("order:%d", orderID))
	if err != nil {
		return fmt.Errorf("lock order %d: %w", orderID, err)
	}
	defer unlock()

	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *reconcilerImpl) findOrder(ctx context.Context, reference string) (*model.Order, error) {
	if reference == "" {
		return nil, ErrOrderNotFound
	}
	order, err := r.orderRepo.FindByReference(ctx, nil, reference)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (r *reconcilerImpl) findPayment(ctx context.Context, tx *gorm.DB, transactionID string) (*model.Payment, error) {
	payment, err := r.paymentRepo.FindByGatewayTransactionID(ctx, tx, transactionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return payment, nil
}
