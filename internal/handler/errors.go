package handler

import (
	"errors"
	"net/http"

	"github.com/urolovforever/Brand-Store/internal/service"

	"github.com/labstack/echo/v4"
)

// httpError maps service failures onto statuses. Anything unknown is left to
// echo's error handler and becomes a 500.
func httpError(err error) error {
	switch {
	case errors.Is(err, service.ErrConfigurationMissing):
		return echo.NewHTTPError(http.StatusInternalServerError, service.ErrConfigurationMissing.Error())
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrProductNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyPaid),
		errors.Is(err, service.ErrOrderNotCancellable),
		errors.Is(err, service.ErrTransitionNotAllowed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrInvalidPromoCode),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrMalformedRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}
