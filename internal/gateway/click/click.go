// Package click adapts the two-phase prepare/complete callback protocol onto
// the payment reconciler.
package click

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/urolovforever/Brand-Store/internal/config"
	"github.com/urolovforever/Brand-Store/internal/model"
	"github.com/urolovforever/Brand-Store/internal/service"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Adapter struct {
	cfg        config.Click
	reconciler service.Reconciler
	logger     *slog.Logger
}

func NewAdapter(cfg config.Click, reconciler service.Reconciler, logger *slog.Logger) *Adapter {
	return &Adapter{
		cfg:        cfg,
		reconciler: reconciler,
		logger:     logger.With(slog.String("gateway", "click")),
	}
}

func (a *Adapter) Method() model.PaymentMethod {
	return model.PaymentMethodClick
}

// CheckoutURL builds the hosted payment page link. The amount is sent in
// minor units and the order reference travels as transaction_param.
func (a *Adapter) CheckoutURL(order *model.Order, returnURL string) (string, error) {
	if !a.cfg.Configured() {
		return "", service.ErrConfigurationMissing
	}

	q := url.Values{}
	q.Set("service_id", a.cfg.ServiceID)
	q.Set("merchant_id", a.cfg.MerchantID)
	q.Set("amount", strconv.FormatInt(service.ToMinorUnits(order.Total), 10))
	q.Set("transaction_param", order.Reference)
	q.Set("return_url", returnURL)

	return a.cfg.CheckoutURL + "?" + q.Encode(), nil
}

// Prepare answers the feasibility phase. It never changes state.
func (a *Adapter) Prepare(ctx context.Context, req *Request) *Response {
	resp := newResponse(req)

	amount, code := a.check(req, ActionPrepare)
	if code != CodeSuccess {
		return resp.fail(code)
	}

	order, err := a.reconciler.CheckFeasible(ctx, req.MerchantTransID.String(), amount)
	if err != nil {
		return resp.fail(a.codeFor(ctx, req, err))
	}

	resp.MerchantPrepareID = &order.ID
	return resp.ok()
}

// Complete applies the gateway's final verdict for the transaction.
func (a *Adapter) Complete(ctx context.Context, req *Request) *Response {
	resp := newResponse(req)

	amount, code := a.check(req, ActionComplete)
	if code != CodeSuccess {
		return resp.fail(code)
	}
	if req.Error == "" {
		return resp.fail(CodeBadRequest)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return resp.fail(CodeBadRequest)
	}

	result, err := a.reconciler.Complete(ctx, service.CompleteRequest{
		OrderRef:      req.MerchantTransID.String(),
		TransactionID: req.ClickTransID.String(),
		Success:       req.Error == "0",
		Amount:        amount,
		Payload:       datatypes.JSON(payload),
	})
	if err != nil {
		return resp.fail(a.codeFor(ctx, req, err))
	}

	if result.Replayed {
		a.logger.InfoContext(ctx, "duplicate complete acknowledged",
			slog.String("click_trans_id", req.ClickTransID.String()),
			slog.String("status", string(result.Payment.Status)),
		)
	}

	resp.MerchantConfirmID = &result.Order.ID
	return resp.ok()
}

// check validates the request shape, the signature and the action before
// anything is read from storage.
func (a *Adapter) check(req *Request, action string) (decimal.Decimal, int) {
	if req.ClickTransID == "" || req.ServiceID == "" || req.MerchantTransID == "" ||
		req.Amount == "" || req.Action == "" || req.SignTime == "" || req.SignString == "" {
		return decimal.Zero, CodeBadRequest
	}
	if _, err := strconv.ParseInt(req.ClickTransID.String(), 10, 64); err != nil {
		return decimal.Zero, CodeBadRequest
	}

	if !Verify(req, a.cfg.SecretKey) {
		return decimal.Zero, CodeSignFailed
	}

	if strings.TrimSpace(req.Action.String()) != action {
		return decimal.Zero, CodeActionNotFound
	}

	amount, err := service.ParseMinorUnits(req.Amount.String())
	if err != nil {
		return decimal.Zero, CodeIncorrectAmount
	}
	return amount, CodeSuccess
}

func (a *Adapter) codeFor(ctx context.Context, req *Request, err error) int {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		return CodeOrderNotFound
	case errors.Is(err, service.ErrAlreadyPaid):
		return CodeAlreadyPaid
	case errors.Is(err, service.ErrAmountMismatch):
		return CodeIncorrectAmount
	case errors.Is(err, service.ErrTransitionNotAllowed):
		return CodeCancelled
	case errors.Is(err, service.ErrTransactionNotFound):
		return CodeTransactionAbsent
	case errors.Is(err, service.ErrMalformedRequest):
		return CodeBadRequest
	}

	a.logger.ErrorContext(ctx, "click callback failed",
		slog.String("click_trans_id", req.ClickTransID.String()),
		slog.String("merchant_trans_id", req.MerchantTransID.String()),
		slog.Any("error", err),
	)
	return CodeUpdateFailed
}

var notes = map[int]string{
	CodeSuccess:           "Success",
	CodeSignFailed:        "SIGN CHECK FAILED!",
	CodeIncorrectAmount:   "Incorrect parameter amount",
	CodeActionNotFound:    "Action not found",
	CodeAlreadyPaid:       "Already paid",
	CodeOrderNotFound:     "Order not found",
	CodeTransactionAbsent: "Transaction does not exist",
	CodeUpdateFailed:      "Failed to update order",
	CodeBadRequest:        "Error in request from click",
	CodeCancelled:         "Transaction cancelled",
}

func newResponse(req *Request) *Response {
	resp := &Response{MerchantTransID: req.MerchantTransID.String()}
	if _, err := strconv.ParseInt(req.ClickTransID.String(), 10, 64); err == nil {
		resp.ClickTransID = json.Number(req.ClickTransID)
	}
	return resp
}

func (r *Response) ok() *Response {
	r.Error = CodeSuccess
	r.ErrorNote = notes[CodeSuccess]
	return r
}

func (r *Response) fail(code int) *Response {
	r.Error = code
	r.ErrorNote = notes[code]
	r.MerchantPrepareID = nil
	r.MerchantConfirmID = nil
	return r
}

// Malformed is the reply for a body that could not be bound at all.
func Malformed() *Response {
	return (&Response{}).fail(CodeBadRequest)
}
