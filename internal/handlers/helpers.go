package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arzanfood/api/internal/domain"
	"github.com/arzanfood/api/internal/gateway"
	"github.com/arzanfood/api/internal/platform/httpx"
	"github.com/arzanfood/api/internal/services"
)

const maxRequestBody = 1 << 20 // 1 MiB

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// writeServiceError maps service-layer errors onto the JSON error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var unavailable *services.ProductsUnavailableError
	switch {
	case errors.As(err, &unavailable):
		httpErr := httpx.NewError("products_unavailable", "some products are no longer available", http.StatusConflict).
			WithDetails(map[string]any{"product_refs": unavailable.IDs})
		httpx.WriteError(ctx, w, httpErr)
	case errors.Is(err, services.ErrEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("empty_cart", "cart has no purchasable items", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_status_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrInvalidRequest):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
	}
}

type contactPayload struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type orderItemPayload struct {
	ProductRef string `json:"productRef"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unitPrice"`
}

type orderPayload struct {
	ID            string             `json:"id"`
	UserRef       string             `json:"userRef,omitempty"`
	Status        string             `json:"status"`
	PaymentMethod string             `json:"paymentMethod"`
	PaymentStatus string             `json:"paymentStatus"`
	PaymentID     string             `json:"paymentId,omitempty"`
	Contact       contactPayload     `json:"contact"`
	Items         []orderItemPayload `json:"items"`
	Subtotal      string             `json:"subtotal"`
	DeliveryFee   string             `json:"deliveryFee"`
	Total         string             `json:"total"`
	CreatedAt     string             `json:"createdAt"`
	UpdatedAt     string             `json:"updatedAt"`
	PaidAt        string             `json:"paidAt,omitempty"`
	CancelledAt   string             `json:"cancelledAt,omitempty"`
}

func toOrderPayload(order domain.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  gateway.FormatAmount(item.UnitPrice),
		})
	}

	return orderPayload{
		ID:            order.ID,
		UserRef:       order.UserRef,
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		PaymentID:     order.PaymentID,
		Contact: contactPayload{
			Name:    order.Contact.Name,
			Phone:   order.Contact.Phone,
			Address: order.Contact.Address,
		},
		Items:       items,
		Subtotal:    gateway.FormatAmount(order.Subtotal),
		DeliveryFee: gateway.FormatAmount(order.DeliveryFee),
		Total:       gateway.FormatAmount(order.Total),
		CreatedAt:   formatTime(order.CreatedAt),
		UpdatedAt:   formatTime(order.UpdatedAt),
		PaidAt:      formatTimePtr(order.PaidAt),
		CancelledAt: formatTimePtr(order.CancelledAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
