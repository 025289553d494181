// Package payme adapts the five-method JSON-RPC merchant protocol onto the
// payment reconciler.
package payme

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/urolovforever/Brand-Store/internal/config"
	"github.com/urolovforever/Brand-Store/internal/model"
	"github.com/urolovforever/Brand-Store/internal/service"

	"gorm.io/datatypes"
)

type Adapter struct {
	cfg        config.Payme
	reconciler service.Reconciler
	logger     *slog.Logger
}

func NewAdapter(cfg config.Payme, reconciler service.Reconciler, logger *slog.Logger) *Adapter {
	return &Adapter{
		cfg:        cfg,
		reconciler: reconciler,
		logger:     logger.With(slog.String("gateway", "payme")),
	}
}

func (a *Adapter) Method() model.PaymentMethod {
	return model.PaymentMethodPayme
}

// CheckoutURL encodes merchant, order reference and minor-unit amount into
// the hosted checkout path.
func (a *Adapter) CheckoutURL(order *model.Order, returnURL string) (string, error) {
	if !a.cfg.Configured() {
		return "", service.ErrConfigurationMissing
	}

	params := fmt.Sprintf("m=%s;ac.order_id=%s;a=%d", a.cfg.MerchantID, order.Reference, service.ToMinorUnits(order.Total))
	if returnURL != "" {
		params += ";c=" + returnURL
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(params))
	return strings.TrimRight(a.cfg.CheckoutURL, "/") + "/" + encoded, nil
}

// Handle serves one RPC call. The response is always a well-formed envelope;
// failures are reported in its error member.
func (a *Adapter) Handle(ctx context.Context, authorization string, body []byte) *Response {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return errorResponse(nil, CodeParseError, "Parse error")
	}
	if req.Method == "" {
		return errorResponse(req.ID, CodeInvalidRequest, "Invalid request")
	}

	if !VerifyAuthorization(authorization, a.cfg.Identity, a.cfg.SecretKey) {
		return errorResponse(req.ID, CodeInsufficientPrivs, "Insufficient privilege to perform this method")
	}

	var (
		result any
		err    error
	)
	switch req.Method {
	case MethodCheckPerformTransaction:
		result, err = a.checkPerform(ctx, req.Params)
	case MethodCreateTransaction:
		result, err = a.create(ctx, req.Params)
	case MethodPerformTransaction:
		result, err = a.perform(ctx, req.Params)
	case MethodCancelTransaction:
		result, err = a.cancel(ctx, req.Params)
	case MethodCheckTransaction:
		result, err = a.check(ctx, req.Params)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, "Method not found")
	}
	if err != nil {
		return a.failure(ctx, req, err)
	}

	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (a *Adapter) checkPerform(ctx context.Context, raw json.RawMessage) (any, error) {
	var params CheckPerformParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	amount, err := service.ParseMinorUnits(params.Amount.String())
	if err != nil {
		return nil, err
	}

	if _, err := a.reconciler.CheckFeasible(ctx, params.Account.OrderID, amount); err != nil {
		return nil, err
	}
	return &CheckPerformResult{Allow: true}, nil
}

func (a *Adapter) create(ctx context.Context, raw json.RawMessage) (any, error) {
	var params CreateParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	if params.ID == "" {
		return nil, fmt.Errorf("missing id: %w", service.ErrMalformedRequest)
	}
	amount, err := service.ParseMinorUnits(params.Amount.String())
	if err != nil {
		return nil, err
	}

	result, err := a.reconciler.Open(ctx, service.OpenRequest{
		Method:        model.PaymentMethodPayme,
		TransactionID: params.ID,
		OrderRef:      params.Account.OrderID,
		Amount:        amount,
		Payload:       datatypes.JSON(raw),
	})
	if err != nil {
		return nil, err
	}

	return &CreateResult{
		CreateTime:  millis(&result.Payment.CreatedAt),
		Transaction: transactionRef(result.Payment),
		State:       stateOf(result.Payment.Status),
	}, nil
}

func (a *Adapter) perform(ctx context.Context, raw json.RawMessage) (any, error) {
	var params TransactionParams
	if err := decodeTransactionParams(raw, &params, &params.ID); err != nil {
		return nil, err
	}

	result, err := a.reconciler.Commit(ctx, params.ID, datatypes.JSON(raw))
	if err != nil {
		return nil, err
	}

	return &PerformResult{
		Transaction: transactionRef(result.Payment),
		PerformTime: millis(result.Payment.CompletedAt),
		State:       StateCompleted,
	}, nil
}

func (a *Adapter) cancel(ctx context.Context, raw json.RawMessage) (any, error) {
	var params CancelParams
	if err := decodeTransactionParams(raw, &params, &params.ID); err != nil {
		return nil, err
	}

	result, err := a.reconciler.Abort(ctx, params.ID, params.Reason, datatypes.JSON(raw))
	if err != nil {
		return nil, err
	}

	return &CancelResult{
		Transaction: transactionRef(result.Payment),
		CancelTime:  millis(result.Payment.CancelledAt),
		State:       StateCancelled,
	}, nil
}

func (a *Adapter) check(ctx context.Context, raw json.RawMessage) (any, error) {
	var params TransactionParams
	if err := decodeTransactionParams(raw, &params, &params.ID); err != nil {
		return nil, err
	}

	payment, err := a.reconciler.Query(ctx, params.ID)
	if err != nil {
		return nil, err
	}

	return &CheckResult{
		CreateTime:  millis(&payment.CreatedAt),
		PerformTime: millis(payment.CompletedAt),
		CancelTime:  millis(payment.CancelledAt),
		Transaction: transactionRef(payment),
		State:       stateOf(payment.Status),
		Reason:      payment.CancelReason,
	}, nil
}

func (a *Adapter) failure(ctx context.Context, req Request, err error) *Response {
	switch {
	case errors.Is(err, service.ErrMalformedRequest):
		return errorResponse(req.ID, CodeInvalidRequest, "Invalid request")
	case errors.Is(err, service.ErrOrderNotFound):
		return errorResponse(req.ID, CodeOrderNotFound, "Order not found")
	case errors.Is(err, service.ErrAlreadyPaid):
		return errorResponse(req.ID, CodeCannotPerform, "Order already paid")
	case errors.Is(err, service.ErrTransitionNotAllowed):
		return errorResponse(req.ID, CodeCannotPerform, "Unable to perform operation")
	case errors.Is(err, service.ErrAmountMismatch):
		return errorResponse(req.ID, CodeIncorrectAmount, "Incorrect amount")
	case errors.Is(err, service.ErrTransactionNotFound):
		return errorResponse(req.ID, CodeTransactionNotFound, "Transaction not found")
	}

	a.logger.ErrorContext(ctx, "payme call failed",
		slog.String("method", req.Method),
		slog.Any("error", err),
	)
	return errorResponse(req.ID, CodeInternal, "Internal error")
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing params: %w", service.ErrMalformedRequest)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode params: %w", service.ErrMalformedRequest)
	}
	return nil
}

func decodeTransactionParams(raw json.RawMessage, v any, id *string) error {
	if err := decodeParams(raw, v); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("missing id: %w", service.ErrMalformedRequest)
	}
	return nil
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	}
}

func stateOf(status model.PaymentStatus) int {
	switch status {
	case model.PaymentStatusPending, model.PaymentStatusProcessing:
		return StateCreated
	case model.PaymentStatusCompleted:
		return StateCompleted
	case model.PaymentStatusCancelled:
		return StateCancelled
	case model.PaymentStatusFailed:
		return StateFailed
	default:
		return StateUnknown
	}
}

// transactionRef is our side of the transaction as reported to the gateway.
func transactionRef(p *model.Payment) string {
	return strconv.FormatUint(uint64(p.ID), 10)
}

func millis(t *time.Time) int64 {
	if t == nil || t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
