package handlers

import (
	"context"
	"errors"
	"net/url"

	"github.com/arzanfood/api/internal/domain"
	"github.com/arzanfood/api/internal/gateway"
	"github.com/arzanfood/api/internal/services"
)

type stubOrderService struct {
	createFn     func(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error)
	getFn        func(ctx context.Context, orderID string) (domain.Order, error)
	listFn       func(ctx context.Context, query services.ListOrdersQuery) (domain.CursorPage[domain.Order], error)
	transitionFn func(ctx context.Context, orderID string, target domain.OrderStatus) (domain.Order, error)
	markFailedFn func(ctx context.Context, orderID, reason string) (domain.Order, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
	if s.createFn == nil {
		return domain.Order{}, errors.New("unexpected CreateOrder call")
	}
	return s.createFn(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if s.getFn == nil {
		return domain.Order{}, errors.New("unexpected GetOrder call")
	}
	return s.getFn(ctx, orderID)
}

func (s *stubOrderService) ListOrders(ctx context.Context, query services.ListOrdersQuery) (domain.CursorPage[domain.Order], error) {
	if s.listFn == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("unexpected ListOrders call")
	}
	return s.listFn(ctx, query)
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, orderID string, target domain.OrderStatus) (domain.Order, error) {
	if s.transitionFn == nil {
		return domain.Order{}, errors.New("unexpected TransitionStatus call")
	}
	return s.transitionFn(ctx, orderID, target)
}

func (s *stubOrderService) MarkPaymentFailed(ctx context.Context, orderID, reason string) (domain.Order, error) {
	if s.markFailedFn == nil {
		return domain.Order{}, errors.New("unexpected MarkPaymentFailed call")
	}
	return s.markFailedFn(ctx, orderID, reason)
}

type stubPaymentService struct {
	redirectFn func(ctx context.Context, orderID string) (gateway.Redirect, error)
	callbackFn func(ctx context.Context, provider string, values url.Values) (services.CallbackResult, error)
}

func (s *stubPaymentService) BuildRedirect(ctx context.Context, orderID string) (gateway.Redirect, error) {
	if s.redirectFn == nil {
		return gateway.Redirect{}, errors.New("unexpected BuildRedirect call")
	}
	return s.redirectFn(ctx, orderID)
}

func (s *stubPaymentService) HandleCallback(ctx context.Context, provider string, values url.Values) (services.CallbackResult, error) {
	if s.callbackFn == nil {
		return services.CallbackResult{}, errors.New("unexpected HandleCallback call")
	}
	return s.callbackFn(ctx, provider, values)
}
