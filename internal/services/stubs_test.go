package services

import (
	"context"
	"errors"
	"time"

	"github.com/arzanfood/api/internal/domain"
	"github.com/arzanfood/api/internal/repositories"
)

var testTime = time.Date(2026, time.August, 29, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testTime }

type stubOrderRepository struct {
	insertFn       func(ctx context.Context, order domain.Order) error
	findFn         func(ctx context.Context, orderID string) (domain.Order, error)
	listFn         func(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	updateStatusFn func(ctx context.Context, orderID string, status domain.OrderStatus, now time.Time) (domain.Order, error)
	applySuccessFn func(ctx context.Context, orderID string, success repositories.PaymentSuccess) (domain.Order, bool, error)
	markFailedFn   func(ctx context.Context, orderID string, failure repositories.PaymentFailure) (domain.Order, bool, error)
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFn == nil {
		return errors.New("unexpected Insert call")
	}
	return s.insertFn(ctx, order)
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn == nil {
		return domain.Order{}, errors.New("unexpected FindByID call")
	}
	return s.findFn(ctx, orderID)
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFn == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("unexpected List call")
	}
	return s.listFn(ctx, filter)
}

func (s *stubOrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, now time.Time) (domain.Order, error) {
	if s.updateStatusFn == nil {
		return domain.Order{}, errors.New("unexpected UpdateStatus call")
	}
	return s.updateStatusFn(ctx, orderID, status, now)
}

func (s *stubOrderRepository) ApplyPaymentSuccess(ctx context.Context, orderID string, success repositories.PaymentSuccess) (domain.Order, bool, error) {
	if s.applySuccessFn == nil {
		return domain.Order{}, false, errors.New("unexpected ApplyPaymentSuccess call")
	}
	return s.applySuccessFn(ctx, orderID, success)
}

func (s *stubOrderRepository) MarkPaymentFailed(ctx context.Context, orderID string, failure repositories.PaymentFailure) (domain.Order, bool, error) {
	if s.markFailedFn == nil {
		return domain.Order{}, false, errors.New("unexpected MarkPaymentFailed call")
	}
	return s.markFailedFn(ctx, orderID, failure)
}

type stubCatalogRepository struct {
	findByIDsFn func(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
}

func (s *stubCatalogRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if s.findByIDsFn == nil {
		return nil, errors.New("unexpected FindByIDs call")
	}
	return s.findByIDsFn(ctx, productIDs)
}

type stubEventPublisher struct {
	messages []OrderEventMessage
	err      error
}

func (s *stubEventPublisher) PublishOrderEvent(_ context.Context, message OrderEventMessage) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.messages = append(s.messages, message)
	return "msg-1", nil
}

type stubIDGenerator struct {
	id  string
	err error
}

func (s *stubIDGenerator) NewOrderID() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.id, nil
}

// notFoundError mimics the repository error category for missing documents.
type notFoundError struct{}

func (notFoundError) Error() string       { return "document not found" }
func (notFoundError) IsNotFound() bool    { return true }
func (notFoundError) IsConflict() bool    { return false }
func (notFoundError) IsUnavailable() bool { return false }

var _ repositories.RepositoryError = notFoundError{}
