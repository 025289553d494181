package dto

type OrderItem struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type PlaceOrderRequest struct {
	Items         []*OrderItem `json:"items"`
	PromoCode     string       `json:"promo_code"`
	PaymentMethod string       `json:"payment_method"`
}

type InitiatePaymentRequest struct {
	OrderID       uint   `json:"order_id"`
	PaymentMethod string `json:"payment_method"`
	ReturnURL     string `json:"return_url"`
}

// InitiatePaymentResponse carries a redirect for gateway methods and a plain
// acknowledgement for cash on delivery.
type InitiatePaymentResponse struct {
	PaymentMethod string `json:"payment_method"`
	OrderID       uint   `json:"order_id"`
	PaymentID     uint   `json:"payment_id"`
	TransactionID string `json:"transaction_id,omitempty"`
	PaymentURL    string `json:"payment_url,omitempty"`
	Message       string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
