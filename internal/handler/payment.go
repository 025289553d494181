package handler

import (
	"io"
	"net/http"

	"github.com/urolovforever/Brand-Store/internal/dto"
	"github.com/urolovforever/Brand-Store/internal/gateway/click"
	"github.com/urolovforever/Brand-Store/internal/gateway/payme"
	"github.com/urolovforever/Brand-Store/internal/middleware"
	"github.com/urolovforever/Brand-Store/internal/service"

	"github.com/labstack/echo/v4"
)

const maxCallbackBody = 1 << 20

type PaymentHandler struct {
	click           *click.Adapter
	payme           *payme.Adapter
	checkoutService service.CheckoutService
}

func NewPaymentHandler(clickAdapter *click.Adapter, paymeAdapter *payme.Adapter, checkoutService service.CheckoutService) *PaymentHandler {
	return &PaymentHandler{
		click:           clickAdapter,
		payme:           paymeAdapter,
		checkoutService: checkoutService,
	}
}

// Initiate starts a payment attempt for one of the caller's orders.
func (h *PaymentHandler) Initiate(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.InitiatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.OrderID == 0 || req.PaymentMethod == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "order_id and payment_method are required")
	}

	result, err := h.checkoutService.Initiate(ctx, middleware.UserID(c), &req)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// gateway callbacks always answer 200; the outcome is in the body

func (h *PaymentHandler) ClickPrepare(c echo.Context) error {
	var req click.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusOK, click.Malformed())
	}

	return c.JSON(http.StatusOK, h.click.Prepare(c.Request().Context(), &req))
}

func (h *PaymentHandler) ClickComplete(c echo.Context) error {
	var req click.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusOK, click.Malformed())
	}

	return c.JSON(http.StatusOK, h.click.Complete(c.Request().Context(), &req))
}

func (h *PaymentHandler) Payme(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCallbackBody))
	if err != nil {
		body = nil
	}

	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	return c.JSON(http.StatusOK, h.payme.Handle(c.Request().Context(), auth, body))
}
