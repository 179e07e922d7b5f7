package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arzanfood/api/internal/domain"
	"github.com/arzanfood/api/internal/gateway"
	"github.com/arzanfood/api/internal/platform/config"
	"github.com/arzanfood/api/internal/services"
)

func sampleOrder() domain.Order {
	created := time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)
	return domain.Order{
		ID:            "ord_01HTEST",
		UserRef:       "user-1",
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodWebMoney,
		PaymentStatus: domain.PaymentPending,
		Contact:       domain.OrderContact{Name: "Aziz", Phone: "+998901234567", Address: "Tashkent"},
		Items: []domain.OrderLineItem{
			{ProductRef: "prod-1", Name: "Plov", Quantity: 2, UnitPrice: 100000},
		},
		Subtotal:    200000,
		DeliveryFee: 50000,
		Total:       250000,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func newOrderRouter(t *testing.T, orders services.OrderService, payments services.PaymentService) http.Handler {
	t.Helper()
	h, err := NewOrderHandlers(orders, payments, config.OrdersConfig{DefaultPageSize: 20, MaxPageSize: 100})
	if err != nil {
		t.Fatalf("NewOrderHandlers: %v", err)
	}
	r := chi.NewRouter()
	r.Route("/api/v1/orders", h.Routes)
	r.Route("/api/v1/admin", h.AdminRoutes)
	r.Route("/api/v1/internal", h.InternalRoutes)
	return r
}

func TestCreateOrderEndpoint(t *testing.T) {
	orders := &stubOrderService{
		createFn: func(_ context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
			if cmd.PaymentMethod != domain.PaymentMethodWebMoney {
				t.Errorf("payment method = %q", cmd.PaymentMethod)
			}
			if len(cmd.Items) != 1 || cmd.Items[0].Quantity != 2 {
				t.Errorf("items = %+v", cmd.Items)
			}
			return sampleOrder(), nil
		},
	}
	router := newOrderRouter(t, orders, &stubPaymentService{})

	body := `{
		"paymentMethod": "webmoney",
		"userRef": "user-1",
		"contact": {"name": "Aziz", "phone": "+998901234567", "address": "Tashkent"},
		"items": [{"productRef": "prod-1", "quantity": 2}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["total"] != "2500.00" {
		t.Errorf("total = %v, want 2500.00", payload["total"])
	}
	if payload["id"] != "ord_01HTEST" {
		t.Errorf("id = %v", payload["id"])
	}
}

func TestCreateOrderEndpointMapsUnavailableProducts(t *testing.T) {
	orders := &stubOrderService{
		createFn: func(context.Context, services.CreateOrderCommand) (domain.Order, error) {
			return domain.Order{}, &services.ProductsUnavailableError{IDs: []string{"prod-9"}}
		},
	}
	router := newOrderRouter(t, orders, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"items":[{"productRef":"prod-9","quantity":1}]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "products_unavailable") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestGetOrderEndpointNotFound(t *testing.T) {
	orders := &stubOrderService{
		getFn: func(context.Context, string) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderNotFound
		},
	}
	router := newOrderRouter(t, orders, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord_nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListOrdersEndpoint(t *testing.T) {
	orders := &stubOrderService{
		listFn: func(_ context.Context, query services.ListOrdersQuery) (domain.CursorPage[domain.Order], error) {
			if query.UserRef != "user-1" {
				t.Errorf("user_ref = %q", query.UserRef)
			}
			if query.PaymentStatus != domain.PaymentPending {
				t.Errorf("payment status = %q, want pending", query.PaymentStatus)
			}
			if query.Pagination.PageSize != 5 {
				t.Errorf("page size = %d, want 5", query.Pagination.PageSize)
			}
			return domain.CursorPage[domain.Order]{
				Items:         []domain.Order{sampleOrder()},
				NextPageToken: "tok",
			}, nil
		},
	}
	router := newOrderRouter(t, orders, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?user_ref=user-1&payment_status=pending&page_size=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload struct {
		Orders        []map[string]any `json:"orders"`
		NextPageToken string           `json:"nextPageToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Orders) != 1 || payload.NextPageToken != "tok" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestCreatePaymentRedirectEndpoint(t *testing.T) {
	payments := &stubPaymentService{
		redirectFn: func(_ context.Context, orderID string) (gateway.Redirect, error) {
			if orderID != "ord_01HTEST" {
				t.Errorf("order id = %q", orderID)
			}
			return gateway.Redirect{
				URL: "https://merchant.webmoney.com/lmi/payment.asp",
				Fields: map[string]string{
					"LMI_PAYMENT_NO":     orderID,
					"LMI_PAYMENT_AMOUNT": "2500.00",
				},
			}, nil
		},
	}
	router := newOrderRouter(t, &stubOrderService{}, payments)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord_01HTEST/payment", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload struct {
		GatewayURL string            `json:"gatewayUrl"`
		Fields     map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.GatewayURL == "" || payload.Fields["LMI_PAYMENT_AMOUNT"] != "2500.00" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestUpdateStatusEndpointInvalidTransition(t *testing.T) {
	orders := &stubOrderService{
		transitionFn: func(context.Context, string, domain.OrderStatus) (domain.Order, error) {
			return domain.Order{}, services.ErrInvalidTransition
		},
	}
	router := newOrderRouter(t, orders, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/ord_1/status", strings.NewReader(`{"status":"cancelled"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestInternalPaymentFailureEndpoint(t *testing.T) {
	orders := &stubOrderService{
		markFailedFn: func(_ context.Context, orderID, reason string) (domain.Order, error) {
			if reason != "customer cancelled at gateway" {
				t.Errorf("reason = %q", reason)
			}
			failed := sampleOrder()
			failed.PaymentStatus = domain.PaymentFailed
			return failed, nil
		},
	}
	router := newOrderRouter(t, orders, &stubPaymentService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/orders/ord_01HTEST/payment-failure", strings.NewReader(`{"reason":"customer cancelled at gateway"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"paymentStatus":"failed"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
