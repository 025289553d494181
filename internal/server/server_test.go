package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/urolovforever/Brand-Store/internal/config"
	"github.com/urolovforever/Brand-Store/internal/dto"
	"github.com/urolovforever/Brand-Store/internal/gateway/click"
	"github.com/urolovforever/Brand-Store/internal/gateway/cod"
	"github.com/urolovforever/Brand-Store/internal/gateway/payme"
	"github.com/urolovforever/Brand-Store/internal/lock"
	"github.com/urolovforever/Brand-Store/internal/logging"
	"github.com/urolovforever/Brand-Store/internal/middleware"
	"github.com/urolovforever/Brand-Store/internal/model"
	"github.com/urolovforever/Brand-Store/internal/repository"
	"github.com/urolovforever/Brand-Store/internal/service"
	"github.com/urolovforever/Brand-Store/internal/testutil"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	clickConfig = config.Click{
		MerchantID:  "m-1",
		ServiceID:   "777",
		SecretKey:   "click-secret",
		CheckoutURL: "https://my.click.uz/services/pay",
	}
	paymeConfig = config.Payme{
		MerchantID:  "merchant-1",
		SecretKey:   "payme-key",
		Identity:    "Paycom",
		CheckoutURL: "https://checkout.paycom.uz",
	}
)

// demo user of the development auth fallback
const demoUser = "demo-user-001"

func newTestServer(t *testing.T) (*gorm.DB, http.Handler) {
	t.Helper()

	db := testutil.NewDB(t)
	logger := logging.Discard()

	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	productRepo := repository.NewProductRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	reconciler := service.NewReconciler(db, lock.NewLocal(), logger, decimal.Zero,
		orderRepo, paymentRepo, productRepo, outboxRepo)
	clickAdapter := click.NewAdapter(clickConfig, reconciler, logger)
	paymeAdapter := payme.NewAdapter(paymeConfig, reconciler, logger)

	srv := NewServer(
		logger,
		middleware.AuthMiddleware("", true),
		clickAdapter,
		paymeAdapter,
		service.NewCheckoutService(logger, orderRepo, paymentRepo, clickAdapter, paymeAdapter, cod.New()),
		service.NewOrderService(db, logger, orderRepo, productRepo,
			repository.NewPromoCodeRepository(db), paymentRepo, outboxRepo),
	)
	return db, srv.Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func postClick(t *testing.T, h http.Handler, path string, order *model.Order, transID, action string) click.Response {
	t.Helper()

	req := &click.Request{
		ClickTransID:    click.Field(transID),
		ServiceID:       click.Field(clickConfig.ServiceID),
		MerchantTransID: click.Field(order.Reference),
		Amount:          click.Field(strconv.FormatInt(service.ToMinorUnits(order.Total), 10)),
		Action:          click.Field(action),
		SignTime:        "2024-05-01 10:00:00",
	}
	form := url.Values{
		"click_trans_id":    {req.ClickTransID.String()},
		"service_id":        {req.ServiceID.String()},
		"click_paydoc_id":   {"555"},
		"merchant_trans_id": {req.MerchantTransID.String()},
		"amount":            {req.Amount.String()},
		"action":            {action},
		"sign_time":         {req.SignTime.String()},
		"sign_string":       {click.Sign(req, clickConfig.SecretKey)},
	}
	if action == click.ActionComplete {
		form.Set("error", "0")
		form.Set("merchant_prepare_id", strconv.FormatUint(uint64(order.ID), 10))
	}

	httpReq := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	httpReq.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httpReq)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp click.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func postPayme(t *testing.T, h http.Handler, authorization, body string) map[string]any {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/payments/payme", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestServer_Health(t *testing.T) {
	_, h := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, "/api/health", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_ClickCheckoutFlow(t *testing.T) {
	db, h := newTestServer(t)
	product := testutil.SeedProduct(t, db, "Coat", "100000.00", 3)

	var order model.Order
	code := doJSON(t, h, http.MethodPost, "/api/orders", dto.PlaceOrderRequest{
		Items:         []*dto.OrderItem{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod: "click",
	}, &order)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, demoUser, order.UserID)
	assert.Equal(t, 2, testutil.ReloadProduct(t, db, product.ID).Stock)

	var initiated dto.InitiatePaymentResponse
	code = doJSON(t, h, http.MethodPost, "/api/payments/initiate", dto.InitiatePaymentRequest{
		OrderID:       order.ID,
		PaymentMethod: "click",
		ReturnURL:     "https://shop.example/done",
	}, &initiated)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, initiated.PaymentURL, "transaction_param="+order.Reference)
	assert.NotEmpty(t, initiated.TransactionID)

	prepared := postClick(t, h, "/api/payments/click/prepare", &order, "70001", click.ActionPrepare)
	assert.Equal(t, click.CodeSuccess, prepared.Error)

	completed := postClick(t, h, "/api/payments/click/complete", &order, "70001", click.ActionComplete)
	assert.Equal(t, click.CodeSuccess, completed.Error)

	var fetched model.Order
	code = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/orders/%d", order.ID), nil, &fetched)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.PaymentStatusCompleted, fetched.PaymentStatus)

	payments := testutil.Payments(t, db, order.ID)
	require.Len(t, payments, 1)
	assert.Equal(t, initiated.PaymentID, payments[0].ID)

	var failure map[string]any
	code = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/orders/%d/cancel", order.ID), nil, &failure)
	assert.Equal(t, http.StatusConflict, code)
}

func TestServer_ClickMalformedBody(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/click/prepare", strings.NewReader("{broken"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp click.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, click.CodeBadRequest, resp.Error)
}

func TestServer_Payme(t *testing.T) {
	db, h := newTestServer(t)
	product := testutil.SeedProduct(t, db, "Bag", "150000.00", 2)
	order := testutil.SeedOrder(t, db, demoUser, product, 1, model.PaymentMethodPayme)
	auth := payme.Authorization(paymeConfig.Identity, paymeConfig.SecretKey)

	resp := postPayme(t, h, "", `{"jsonrpc":"2.0","id":1,"method":"CheckTransaction","params":{"id":"x"}}`)
	require.Contains(t, resp, "error")
	assert.EqualValues(t, payme.CodeInsufficientPrivs, resp["error"].(map[string]any)["code"])

	resp = postPayme(t, h, auth, fmt.Sprintf(
		`{"jsonrpc":"2.0","id":2,"method":"CreateTransaction","params":{"id":"pm-1","time":1714550000000,"amount":15000000,"account":{"order_id":%q}}}`,
		order.Reference))
	require.NotContains(t, resp, "error")
	assert.EqualValues(t, 2, resp["id"])
	assert.EqualValues(t, payme.StateCreated, resp["result"].(map[string]any)["state"])

	resp = postPayme(t, h, auth, `{"jsonrpc":"2.0","id":3,"method":"PerformTransaction","params":{"id":"pm-1"}}`)
	require.NotContains(t, resp, "error")
	assert.EqualValues(t, payme.StateCompleted, resp["result"].(map[string]any)["state"])

	assert.Equal(t, model.PaymentStatusCompleted, testutil.ReloadOrder(t, db, order.ID).PaymentStatus)
	assert.Len(t, testutil.OutboxEvents(t, db, model.EventPaymentCompleted), 1)
}

func TestServer_StorefrontErrors(t *testing.T) {
	db, h := newTestServer(t)
	product := testutil.SeedProduct(t, db, "Bag", "150000.00", 1)
	foreign := testutil.SeedOrder(t, db, "someone-else", product, 1, model.PaymentMethodClick)

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
	}{
		{"bad order id", http.MethodGet, "/api/orders/abc", nil, http.StatusBadRequest},
		{"foreign order", http.MethodGet, fmt.Sprintf("/api/orders/%d", foreign.ID), nil, http.StatusNotFound},
		{"insufficient stock", http.MethodPost, "/api/orders", dto.PlaceOrderRequest{
			Items: []*dto.OrderItem{{ProductID: product.ID, Quantity: 5}},
		}, http.StatusBadRequest},
		{"unknown product", http.MethodPost, "/api/orders", dto.PlaceOrderRequest{
			Items: []*dto.OrderItem{{ProductID: 999, Quantity: 1}},
		}, http.StatusNotFound},
		{"initiate without order", http.MethodPost, "/api/payments/initiate", dto.InitiatePaymentRequest{
			PaymentMethod: "click",
		}, http.StatusBadRequest},
		{"initiate foreign order", http.MethodPost, "/api/payments/initiate", dto.InitiatePaymentRequest{
			OrderID:       foreign.ID,
			PaymentMethod: "click",
		}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, doJSON(t, h, tt.method, tt.path, tt.body, nil))
		})
	}
}
