package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/urolovforever/Brand-Store/internal/dto"
	"github.com/urolovforever/Brand-Store/internal/model"
	"github.com/urolovforever/Brand-Store/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, userID string, req *dto.PlaceOrderRequest) (*model.Order, error)
	GetOrder(ctx context.Context, userID string, orderID uint) (*model.Order, error)
	CancelOrder(ctx context.Context, userID string, orderID uint) (*model.Order, error)
}

type orderServiceImpl struct {
	db          *gorm.DB
	logger      *slog.Logger
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	promoRepo   repository.PromoCodeRepository
	paymentRepo repository.PaymentRepository
	events      eventRecorder
	stock       stockRestorer
	now         func() time.Time
}

func NewOrderService(
	db *gorm.DB,
	logger *slog.Logger,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	promoRepo repository.PromoCodeRepository,
	paymentRepo repository.PaymentRepository,
	outboxRepo repository.OutboxRepository,
) OrderService {
	return &orderServiceImpl{
		db:          db,
		logger:      logger,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		promoRepo:   promoRepo,
		paymentRepo: paymentRepo,
		events:      eventRecorder{outboxRepo: outboxRepo},
		stock:       stockRestorer{orderRepo: orderRepo, productRepo: productRepo},
		now:         time.Now,
	}
}

// PlaceOrder snapshots the requested products into a new order, takes the
// quantities off stock and applies the promo code, all in one transaction.
func (s *orderServiceImpl) PlaceOrder(ctx context.Context, userID string, req *dto.PlaceOrderRequest) (*model.Order, error) {
	method := model.PaymentMethod(strings.ToUpper(req.PaymentMethod))
	if method == "" {
		method = model.PaymentMethodCOD
	}
	if !method.Valid() {
		return nil, ErrInvalidPaymentMethod
	}

	if len(req.Items) == 0 {
		return nil, fmt.Errorf("order has no items: %w", ErrMalformedRequest)
	}

	quantities := make(map[uint]int)
	productIDs := make([]uint, 0, len(req.Items))
	for _, item := range req.Items {
		if item == nil || item.Quantity <= 0 {
			return nil, fmt.Errorf("item quantity must be positive: %w", ErrMalformedRequest)
		}
		if _, seen := quantities[item.ProductID]; !seen {
			productIDs = append(productIDs, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	var order *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products, err := s.productRepo.LockMany(ctx, tx, productIDs)
		if err != nil {
			return fmt.Errorf("get products: %w", err)
		}
		if len(products) != len(productIDs) {
			return ErrProductNotFound
		}

		subtotal := decimal.Zero
		items := make([]model.OrderItem, 0, len(products))
		for _, product := range products {
			quantity := quantities[product.ID]

			ok, err := s.productRepo.DeductStock(ctx, tx, product.ID, quantity)
			if err != nil {
				return fmt.Errorf("deduct stock: %w", err)
			}
			if !ok {
				return fmt.Errorf("%s: %w", product.Name, ErrInsufficientStock)
			}

			productID := product.ID
			line := model.LineSubtotal(product.Price, product.DiscountPercentage, quantity)
			subtotal = subtotal.Add(line)
			items = append(items, model.OrderItem{
				ProductID:          &productID,
				ProductName:        product.Name,
				ProductPrice:       product.Price,
				Quantity:           quantity,
				DiscountPercentage: product.DiscountPercentage,
				Subtotal:           line,
			})
		}

		var promo *model.PromoCode
		if req.PromoCode != "" {
			promo, err = s.redeemPromo(ctx, tx, req.PromoCode, subtotal)
			if err != nil {
				return err
			}
		}
		discount, total := ApplyDiscount(subtotal, promo)

		order = &model.Order{
			Reference:     uuid.NewString(),
			UserID:        userID,
			Status:        model.OrderStatusPending,
			PaymentStatus: model.PaymentStatusPending,
			PaymentMethod: method,
			Subtotal:      subtotal,
			Discount:      discount,
			Total:         total,
			Items:         items,
		}
		if promo != nil {
			order.PromoCodeID = &promo.ID
		}

		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order in db: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("order", order.Reference),
		slog.String("user_id", userID),
		slog.String("total", order.Total.StringFixed(2)),
	)
	return order, nil
}

func (s *orderServiceImpl) redeemPromo(ctx context.Context, tx *gorm.DB, code string, subtotal decimal.Decimal) (*model.PromoCode, error) {
	promo, err := s.promoRepo.FindActiveByCode(ctx, tx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidPromoCode
	}
	if err != nil {
		return nil, fmt.Errorf("get promo code: %w", err)
	}

	if !promo.IsValid(s.now()) {
		return nil, ErrInvalidPromoCode
	}
	if subtotal.LessThan(promo.MinOrderAmount) {
		return nil, fmt.Errorf("minimum order amount is %s: %w", promo.MinOrderAmount.StringFixed(2), ErrInvalidPromoCode)
	}

	ok, err := s.promoRepo.IncrementUsage(ctx, tx, promo.ID)
	if err != nil {
		return nil, fmt.Errorf("increment promo usage: %w", err)
	}
	if !ok {
		return nil, ErrInvalidPromoCode
	}
	return promo, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, userID string, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, nil, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// CancelOrder is the customer-facing cancellation: only unpaid orders that
// have not shipped yet. Open payment attempts are cancelled with the order.
func (s *orderServiceImpl) CancelOrder(ctx context.Context, userID string, orderID uint) (*model.Order, error) {
	var cancelled *model.Order
	restored := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.LockByID(ctx, tx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if order.UserID != userID {
			return ErrOrderNotFound
		}
		if !order.CanBeCancelled() {
			return ErrOrderNotCancellable
		}

		ok, err := s.orderRepo.Cancel(ctx, tx, order.ID)
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}
		if !ok {
			return ErrOrderNotCancellable
		}

		at := s.now()
		if _, err := s.paymentRepo.CancelOpenByOrder(ctx, tx, order.ID, at); err != nil {
			return fmt.Errorf("cancel open payments: %w", err)
		}

		restored, err = s.stock.restoreOnce(ctx, tx, order, at)
		if err != nil {
			return err
		}

		cancelled, err = s.orderRepo.FindByID(ctx, tx, order.ID)
		if err != nil {
			return fmt.Errorf("reload order: %w", err)
		}

		return s.events.record(ctx, tx, model.EventOrderCancelled, cancelled, nil, restored, at)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order cancelled",
		slog.String("order", cancelled.Reference),
		slog.Bool("stock_restored", restored),
	)
	return cancelled, nil
}
