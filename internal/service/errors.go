package service

import "errors"

// Abstract failures raised by the payment core. Adapters map them onto the
// calling gateway's own code vocabulary; handlers map them onto HTTP statuses.
var (
	ErrAuthentication       = errors.New("authentication failed")
	ErrOrderNotFound        = errors.New("order not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrAlreadyPaid          = errors.New("order already paid")
	ErrAmountMismatch       = errors.New("amount mismatch")
	ErrMalformedRequest     = errors.New("malformed request")
	ErrConfigurationMissing = errors.New("payment gateway is not configured")
	ErrTransitionNotAllowed = errors.New("transition not allowed")

	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrOrderNotCancellable  = errors.New("order cannot be cancelled")
	ErrInvalidPromoCode     = errors.New("invalid promo code")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrProductNotFound      = errors.New("product not found")
)
