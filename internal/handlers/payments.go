package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arzanfood/api/internal/gateway"
	"github.com/arzanfood/api/internal/platform/httpx"
	"github.com/arzanfood/api/internal/services"
)

// PaymentWebhookHandlers serves the gateway callback endpoint. The gateway
// expects bare text/plain responses: "OK" acknowledges, any other body with a
// 4xx status is a final rejection, and a 5xx asks the gateway to retry.
type PaymentWebhookHandlers struct {
	payments services.PaymentService
}

// NewPaymentWebhookHandlers constructs the webhook handlers.
func NewPaymentWebhookHandlers(payments services.PaymentService) (*PaymentWebhookHandlers, error) {
	if payments == nil {
		return nil, errors.New("payment webhook handlers require payment service")
	}
	return &PaymentWebhookHandlers{payments: payments}, nil
}

// Routes registers the webhook routes.
func (h *PaymentWebhookHandlers) Routes(r chi.Router) {
	r.Post("/webmoney", h.handleWebMoney)
}

func (h *PaymentWebhookHandlers) handleWebMoney(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseForm(); err != nil {
		httpx.WritePlain(w, http.StatusBadRequest, "Invalid request")
		return
	}

	_, err := h.payments.HandleCallback(ctx, gateway.ProviderWebMoney, r.PostForm)
	if err == nil {
		httpx.WritePlain(w, http.StatusOK, "OK")
		return
	}

	switch {
	case errors.Is(err, services.ErrInvalidMerchant):
		httpx.WritePlain(w, http.StatusBadRequest, "Invalid merchant")
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WritePlain(w, http.StatusBadRequest, "Order not found")
	case errors.Is(err, services.ErrAmountMismatch):
		httpx.WritePlain(w, http.StatusBadRequest, "Amount mismatch")
	case errors.Is(err, services.ErrInvalidChecksum):
		httpx.WritePlain(w, http.StatusBadRequest, "Invalid checksum")
	case errors.Is(err, services.ErrInvalidRequest):
		httpx.WritePlain(w, http.StatusBadRequest, "Invalid request")
	default:
		// Store or transient failures: ask the gateway to retry later.
		httpx.WritePlain(w, http.StatusInternalServerError, "Service unavailable")
	}
}
