package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/arzanfood/api/internal/domain"
	"github.com/arzanfood/api/internal/platform/config"
	"github.com/arzanfood/api/internal/platform/httpx"
	"github.com/arzanfood/api/internal/services"
)

// OrderHandlers serves the customer-facing order endpoints plus the staff and
// internal mutations.
type OrderHandlers struct {
	orders   services.OrderService
	payments services.PaymentService
	cfg      config.OrdersConfig
}

// NewOrderHandlers constructs the order HTTP handlers.
func NewOrderHandlers(orders services.OrderService, payments services.PaymentService, cfg config.OrdersConfig) (*OrderHandlers, error) {
	if orders == nil {
		return nil, errors.New("order handlers require order service")
	}
	if payments == nil {
		return nil, errors.New("order handlers require payment service")
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	return &OrderHandlers{orders: orders, payments: payments, cfg: cfg}, nil
}

// Routes registers the customer-facing order routes.
func (h *OrderHandlers) Routes(r chi.Router) {
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}/payment", h.createPaymentRedirect)
}

// AdminRoutes registers the staff fulfillment routes.
func (h *OrderHandlers) AdminRoutes(r chi.Router) {
	r.Patch("/orders/{orderID}/status", h.updateStatus)
}

// InternalRoutes registers routes reserved for trusted internal callers, such
// as the storefront backend handling the gateway failure redirect.
func (h *OrderHandlers) InternalRoutes(r chi.Router) {
	r.Post("/orders/{orderID}/payment-failure", h.markPaymentFailed)
}

type createOrderRequest struct {
	UserRef       string         `json:"userRef"`
	PaymentMethod string         `json:"paymentMethod"`
	Contact       contactPayload `json:"contact"`
	Items         []struct {
		ProductRef string `json:"productRef"`
		Quantity   int    `json:"quantity"`
	} `json:"items"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createOrderRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed request body", http.StatusBadRequest))
		return
	}

	items := make([]services.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.CartLine{
			ProductRef: item.ProductRef,
			Quantity:   item.Quantity,
		})
	}

	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		UserRef:       req.UserRef,
		PaymentMethod: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		Contact: domain.OrderContact{
			Name:    strings.TrimSpace(req.Contact.Name),
			Phone:   strings.TrimSpace(req.Contact.Phone),
			Address: strings.TrimSpace(req.Contact.Address),
		},
		Items: items,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toOrderPayload(order))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toOrderPayload(order))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	pageSize := h.cfg.DefaultPageSize
	if raw := strings.TrimSpace(query.Get("page_size")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be a positive integer", http.StatusBadRequest))
			return
		}
		pageSize = parsed
	}
	if pageSize > h.cfg.MaxPageSize {
		pageSize = h.cfg.MaxPageSize
	}

	page, err := h.orders.ListOrders(ctx, services.ListOrdersQuery{
		UserRef:       query.Get("user_ref"),
		Status:        domain.OrderStatus(strings.TrimSpace(query.Get("status"))),
		PaymentStatus: domain.PaymentStatus(strings.TrimSpace(query.Get("payment_status"))),
		Pagination: domain.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	payload := struct {
		Orders        []orderPayload `json:"orders"`
		NextPageToken string         `json:"nextPageToken,omitempty"`
	}{
		Orders:        make([]orderPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		payload.Orders = append(payload.Orders, toOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *OrderHandlers) createPaymentRedirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	redirect, err := h.payments.BuildRedirect(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, struct {
		GatewayURL string            `json:"gatewayUrl"`
		Fields     map[string]string `json:"fields"`
	}{
		GatewayURL: redirect.URL,
		Fields:     redirect.Fields,
	})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateStatusRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed request body", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, chi.URLParam(r, "orderID"), domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status))))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toOrderPayload(order))
}

type paymentFailureRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandlers) markPaymentFailed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req paymentFailureRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed request body", http.StatusBadRequest))
		return
	}

	order, err := h.orders.MarkPaymentFailed(ctx, chi.URLParam(r, "orderID"), req.Reason)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toOrderPayload(order))
}
