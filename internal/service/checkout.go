package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/urolovforever/Brand-Store/internal/dto"
	"github.com/urolovforever/Brand-Store/internal/model"
	"github.com/urolovforever/Brand-Store/internal/repository"

	"gorm.io/gorm"
)

// Gateway is the outbound half of a payment method: it turns an order into
// the place the customer pays at. An empty URL means nothing to redirect to.
type Gateway interface {
	Method() model.PaymentMethod
	CheckoutURL(order *model.Order, returnURL string) (string, error)
}

type CheckoutService interface {
	Initiate(ctx context.Context, userID string, req *dto.InitiatePaymentRequest) (*dto.InitiatePaymentResponse, error)
}

type checkoutServiceImpl struct {
	logger      *slog.Logger
	gateways    map[model.PaymentMethod]Gateway
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentRepository
}

func NewCheckoutService(
	logger *slog.Logger,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	gateways ...Gateway,
) CheckoutService {
	registry := make(map[model.PaymentMethod]Gateway, len(gateways))
	for _, gw := range gateways {
		registry[gw.Method()] = gw
	}
	return &checkoutServiceImpl{
		logger:      logger,
		gateways:    registry,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
	}
}

// Initiate records a PENDING payment attempt for the order and returns where
// the customer goes next. Gateway credentials are checked before anything is
// written.
func (s *checkoutServiceImpl) Initiate(ctx context.Context, userID string, req *dto.InitiatePaymentRequest) (*dto.InitiatePaymentResponse, error) {
	method := model.PaymentMethod(strings.ToUpper(req.PaymentMethod))
	gw, ok := s.gateways[method]
	if !ok {
		return nil, ErrInvalidPaymentMethod
	}

	order, err := s.orderRepo.FindByID(ctx, nil, req.OrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	if order.IsPaid() {
		return nil, ErrAlreadyPaid
	}
	if order.Status == model.OrderStatusCancelled {
		return nil, fmt.Errorf("order is cancelled: %w", ErrTransitionNotAllowed)
	}

	paymentURL, err := gw.CheckoutURL(order, req.ReturnURL)
	if err != nil {
		return nil, fmt.Errorf("build %s checkout: %w", method, err)
	}

	payment := &model.Payment{
		OrderID:  order.ID,
		Method:   method,
		Amount:   order.Total,
		Currency: model.DefaultCurrency,
		Status:   model.PaymentStatusPending,
	}
	if err := s.paymentRepo.Create(ctx, nil, payment); err != nil {
		return nil, fmt.Errorf("store payment in db: %w", err)
	}

	s.logger.InfoContext(ctx, "payment initiated",
		slog.String("order", order.Reference),
		slog.String("method", string(method)),
		slog.Uint64("payment_id", uint64(payment.ID)),
	)

	resp := &dto.InitiatePaymentResponse{
		PaymentMethod: string(method),
		OrderID:       order.ID,
		PaymentID:     payment.ID,
	}
	if paymentURL == "" {
		resp.Message = "Order will be paid on delivery"
		return resp, nil
	}
	resp.TransactionID = strconv.FormatUint(uint64(payment.ID), 10)
	resp.PaymentURL = paymentURL
	return resp, nil
}
