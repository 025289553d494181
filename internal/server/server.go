package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/urolovforever/Brand-Store/internal/gateway/click"
	"github.com/urolovforever/Brand-Store/internal/gateway/payme"
	"github.com/urolovforever/Brand-Store/internal/handler"
	"github.com/urolovforever/Brand-Store/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo           *echo.Echo
	auth           echo.MiddlewareFunc
	paymentHandler *handler.PaymentHandler
	orderHandler   *handler.OrderHandler
}

func NewServer(
	logger *slog.Logger,
	auth echo.MiddlewareFunc,
	clickAdapter *click.Adapter,
	paymeAdapter *payme.Adapter,
	checkoutService service.CheckoutService,
	orderService service.OrderService,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(requestLogger(logger)))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:           e,
		auth:           auth,
		paymentHandler: handler.NewPaymentHandler(clickAdapter, paymeAdapter, checkoutService),
		orderHandler:   handler.NewOrderHandler(orderService),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- storefront --------
	orders := api.Group("/orders", s.auth)
	orders.POST("", s.orderHandler.PlaceOrder)
	orders.GET("/:id", s.orderHandler.GetOrder)
	orders.POST("/:id/cancel", s.orderHandler.CancelOrder)

	payments := api.Group("/payments")
	payments.POST("/initiate", s.paymentHandler.Initiate, s.auth)

	// -------- gateway callbacks --------
	payments.POST("/click/prepare", s.paymentHandler.ClickPrepare)
	payments.POST("/click/complete", s.paymentHandler.ClickComplete)
	payments.POST("/payme", s.paymentHandler.Payme)
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) middleware.RequestLoggerConfig {
	return middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("err", v.Error.Error()))
				logger.LogAttrs(c.Request().Context(), slog.LevelError, "request", attrs...)
				return nil
			}
			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}
}
