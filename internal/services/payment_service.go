package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arzanfood/api/internal/domain"
	"github.com/arzanfood/api/internal/gateway"
	"github.com/arzanfood/api/internal/platform/observability"
	"github.com/arzanfood/api/internal/platform/requestctx"
	"github.com/arzanfood/api/internal/repositories"
)

type paymentService struct {
	orders   repositories.OrderRepository
	gateways *gateway.Manager
	events   OrderEventPublisher
	metrics  *observability.PaymentMetrics
	clock    Clock
}

// PaymentServiceDeps wires the payment reconciliation dependencies.
type PaymentServiceDeps struct {
	Orders   repositories.OrderRepository
	Gateways *gateway.Manager
	Events   OrderEventPublisher
	Metrics  *observability.PaymentMetrics
	Clock    Clock
}

// NewPaymentService constructs the callback reconciliation service.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service requires order repository")
	}
	if deps.Gateways == nil {
		return nil, errors.New("payment service requires gateway manager")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &paymentService{
		orders:   deps.Orders,
		gateways: deps.Gateways,
		events:   deps.Events,
		metrics:  deps.Metrics,
		clock:    clock,
	}, nil
}

// BuildRedirect produces the gateway payment form for an unpaid gateway order.
func (s *paymentService) BuildRedirect(ctx context.Context, orderID string) (gateway.Redirect, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return gateway.Redirect{}, err
	}

	provider, err := s.gateways.ForMethod(order.PaymentMethod)
	if err != nil {
		return gateway.Redirect{}, fmt.Errorf("%w: order %s is not paid through a gateway", ErrInvalidRequest, order.ID)
	}
	if order.PaymentStatus == domain.PaymentSuccess {
		return gateway.Redirect{}, fmt.Errorf("%w: order %s is already paid", ErrInvalidRequest, order.ID)
	}
	if order.Status == domain.OrderStatusCancelled {
		return gateway.Redirect{}, fmt.Errorf("%w: order %s is cancelled", ErrInvalidRequest, order.ID)
	}

	return provider.BuildRedirect(order)
}

// HandleCallback verifies one inbound gateway notification and, for confirm
// callbacks, applies the payment outcome exactly once.
func (s *paymentService) HandleCallback(ctx context.Context, providerName string, values url.Values) (CallbackResult, error) {
	provider, err := s.gateways.ForMethod(domain.PaymentMethod(providerName))
	if err != nil {
		return CallbackResult{}, fmt.Errorf("%w: unknown gateway %q", ErrInvalidRequest, providerName)
	}

	callback, err := provider.ParseCallback(values)
	if err != nil {
		return CallbackResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	result := CallbackResult{Stage: CallbackStageConfirm, BillNumber: callback.BillNumber}
	if callback.Precheck {
		result.Stage = CallbackStagePrecheck
	}

	var handleErr error
	if callback.Precheck {
		handleErr = s.handlePrecheck(ctx, provider, callback)
	} else {
		handleErr = s.handleConfirm(ctx, provider, callback)
	}

	s.recordOutcome(ctx, result.Stage, handleErr)
	return result, handleErr
}

// handlePrecheck answers the gateway's pre-payment probe. It verifies merchant,
// order existence, and amount, and mutates nothing.
func (s *paymentService) handlePrecheck(ctx context.Context, provider gateway.Provider, callback gateway.Callback) error {
	logger := s.callbackLogger(ctx, callback)

	// The merchant account is checked before any order lookup so probes for
	// someone else's purse reveal nothing about our orders.
	if callback.MerchantAccount != provider.MerchantAccount() {
		logger.Warn("precheck rejected: merchant mismatch")
		return ErrInvalidMerchant
	}
	if callback.BillNumber == "" {
		logger.Warn("precheck rejected: missing bill number")
		return fmt.Errorf("%w: missing bill number", ErrInvalidRequest)
	}

	order, err := s.loadOrder(ctx, callback.BillNumber)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			logger.Warn("precheck rejected: order not found")
		}
		return err
	}

	if err := s.checkAmount(callback, order); err != nil {
		logger.Warn("precheck rejected: amount check failed",
			zap.String("received_amount", callback.Amount),
		)
		return err
	}

	logger.Info("precheck accepted")
	return nil
}

// handleConfirm verifies the payment notification and applies the success
// mutation. A repeated confirm for a settled order is acknowledged without
// touching the document.
func (s *paymentService) handleConfirm(ctx context.Context, provider gateway.Provider, callback gateway.Callback) error {
	logger := s.callbackLogger(ctx, callback)

	if callback.MerchantAccount != provider.MerchantAccount() {
		logger.Warn("confirm rejected: merchant mismatch")
		return ErrInvalidMerchant
	}
	if callback.BillNumber == "" || callback.PayerAccount == "" || callback.TransactionID == "" || callback.Checksum == "" {
		logger.Warn("confirm rejected: missing required fields",
			zap.Bool("has_payer", callback.PayerAccount != ""),
			zap.Bool("has_transaction", callback.TransactionID != ""),
			zap.Bool("has_checksum", callback.Checksum != ""),
		)
		return fmt.Errorf("%w: missing required confirmation fields", ErrInvalidRequest)
	}

	order, err := s.loadOrder(ctx, callback.BillNumber)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			logger.Warn("confirm rejected: order not found")
		}
		return err
	}

	if err := s.checkAmount(callback, order); err != nil {
		logger.Warn("confirm rejected: amount check failed",
			zap.String("received_amount", callback.Amount),
		)
		return err
	}

	if !provider.VerifyChecksum(callback, order.Total) {
		// Record the failure with the claimed transaction id for the audit
		// trail, then reject. The received hash is never logged.
		failed, applied, markErr := s.orders.MarkPaymentFailed(ctx, order.ID, repositories.PaymentFailure{
			TransactionID: callback.TransactionID,
			Reason:        "checksum verification failed",
			OccurredAt:    s.clock().UTC(),
		})
		switch {
		case markErr != nil:
			logger.Error("confirm: failed to record checksum failure", zap.Error(markErr))
		case applied:
			s.publishEvent(ctx, EventOrderPaymentFailed, failed)
		}
		logger.Warn("confirm rejected: checksum verification failed",
			zap.String("transaction_id", callback.TransactionID),
		)
		return ErrInvalidChecksum
	}

	updated, applied, err := s.orders.ApplyPaymentSuccess(ctx, order.ID, repositories.PaymentSuccess{
		TransactionID: callback.TransactionID,
		PayerAccount:  callback.PayerAccount,
		TransDate:     callback.TransDate,
		Amount:        callback.Amount,
		OccurredAt:    s.clock().UTC(),
	})
	if err != nil {
		return mapOrderRepositoryError(err)
	}

	if !applied {
		// Gateway retry for an order that already settled: acknowledge and move on.
		logger.Info("confirm repeated for settled order",
			zap.String("transaction_id", callback.TransactionID),
		)
		return nil
	}

	logger.Info("payment confirmed",
		zap.String("transaction_id", callback.TransactionID),
	)
	s.publishEvent(ctx, EventOrderPaymentSucceeded, updated)
	return nil
}

func (s *paymentService) checkAmount(callback gateway.Callback, order domain.Order) error {
	received, err := gateway.ParseAmount(callback.Amount)
	if err != nil {
		return fmt.Errorf("%w: unparseable amount", ErrInvalidRequest)
	}
	if !gateway.AmountMatches(received, order.Total) {
		return ErrAmountMismatch
	}
	return nil
}

func (s *paymentService) loadOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrInvalidRequest)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, mapOrderRepositoryError(err)
	}
	return order, nil
}

func (s *paymentService) callbackLogger(ctx context.Context, callback gateway.Callback) *zap.Logger {
	return requestctx.Logger(ctx).With(
		zap.String("bill_number", observability.SanitizeBillNumber(callback.BillNumber)),
	)
}

func (s *paymentService) recordOutcome(ctx context.Context, stage string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidMerchant):
		outcome = "invalid_merchant"
	case errors.Is(err, ErrOrderNotFound):
		outcome = "order_not_found"
	case errors.Is(err, ErrAmountMismatch):
		outcome = "amount_mismatch"
	case errors.Is(err, ErrInvalidChecksum):
		outcome = "invalid_checksum"
	case errors.Is(err, ErrInvalidRequest):
		outcome = "invalid_request"
	default:
		outcome = "error"
	}
	s.metrics.RecordCallback(ctx, stage, outcome)
}

func (s *paymentService) publishEvent(ctx context.Context, event string, order domain.Order) {
	if s.events == nil {
		return
	}
	message := OrderEventMessage{
		Event:         event,
		OrderID:       order.ID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Total:         order.Total,
		OccurredAt:    s.clock().UTC(),
	}
	if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
		requestctx.Logger(ctx).Warn("order event publish failed",
			zap.String("event", event),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}
}
