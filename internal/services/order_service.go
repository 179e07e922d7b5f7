package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arzanfood/api/internal/domain"
	"github.com/arzanfood/api/internal/platform/requestctx"
	"github.com/arzanfood/api/internal/repositories"
)

// statusTransitions is the staff fulfillment state machine. Payment callbacks
// move pending orders to confirmed separately.
var statusTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:   {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed: {domain.OrderStatusPreparing, domain.OrderStatusCancelled},
	domain.OrderStatusPreparing: {domain.OrderStatusReady, domain.OrderStatusCancelled},
	domain.OrderStatusReady:     {domain.OrderStatusDelivered},
	domain.OrderStatusDelivered: nil,
	domain.OrderStatusCancelled: nil,
}

func transitionAllowed(from, to domain.OrderStatus) bool {
	for _, candidate := range statusTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

type orderService struct {
	orders      repositories.OrderRepository
	carts       CartService
	events      OrderEventPublisher
	idGenerator IDGenerator
	clock       Clock
	deliveryFee int64
}

// OrderServiceDeps wires the order service dependencies.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Carts       CartService
	Events      OrderEventPublisher
	IDGenerator IDGenerator
	Clock       Clock
	DeliveryFee int64
}

// NewOrderService constructs the order lifecycle service.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service requires order repository")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service requires cart service")
	}
	if deps.IDGenerator == nil {
		return nil, errors.New("order service requires id generator")
	}
	if deps.DeliveryFee < 0 {
		return nil, errors.New("order service requires a non-negative delivery fee")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &orderService{
		orders:      deps.Orders,
		carts:       deps.Carts,
		events:      deps.Events,
		idGenerator: deps.IDGenerator,
		clock:       clock,
		deliveryFee: deps.DeliveryFee,
	}, nil
}

// CreateOrder re-validates the cart, snapshots catalog prices, and persists the
// order atomically. A validation failure persists nothing.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error) {
	switch cmd.PaymentMethod {
	case domain.PaymentMethodCash, domain.PaymentMethodCard, domain.PaymentMethodWebMoney:
	default:
		return domain.Order{}, fmt.Errorf("%w: unsupported payment method %q", ErrInvalidRequest, cmd.PaymentMethod)
	}
	if strings.TrimSpace(cmd.Contact.Phone) == "" || strings.TrimSpace(cmd.Contact.Address) == "" {
		return domain.Order{}, fmt.Errorf("%w: delivery contact phone and address are required", ErrInvalidRequest)
	}

	validated, err := s.carts.ValidateItems(ctx, cmd.Items)
	if err != nil {
		return domain.Order{}, err
	}

	orderID, err := s.idGenerator.NewOrderID()
	if err != nil {
		return domain.Order{}, err
	}

	now := s.clock().UTC()
	items := make([]domain.OrderLineItem, 0, len(validated))
	var subtotal int64
	for _, line := range validated {
		item := domain.OrderLineItem{
			ProductRef: line.Product.ID,
			Name:       line.Product.Name,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
		}
		subtotal += item.LineTotal()
		items = append(items, item)
	}

	order := domain.Order{
		ID:            orderID,
		UserRef:       strings.TrimSpace(cmd.UserRef),
		Status:        domain.OrderStatusPending,
		PaymentMethod: cmd.PaymentMethod,
		PaymentStatus: domain.PaymentPending,
		Contact:       cmd.Contact,
		Items:         items,
		Subtotal:      subtotal,
		DeliveryFee:   s.deliveryFee,
		Total:         subtotal + s.deliveryFee,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("order service: persist order: %w", err)
	}

	s.publishEvent(ctx, EventOrderCreated, order)
	return order, nil
}

// GetOrder loads one order.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrInvalidRequest)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, mapOrderRepositoryError(err)
	}
	return order, nil
}

// ListOrders returns a page of orders, newest first.
func (s *orderService) ListOrders(ctx context.Context, query ListOrdersQuery) (domain.CursorPage[domain.Order], error) {
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		UserRef:       strings.TrimSpace(query.UserRef),
		Status:        query.Status,
		PaymentStatus: query.PaymentStatus,
		Pagination:    query.Pagination,
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, fmt.Errorf("order service: list orders: %w", err)
	}
	return page, nil
}

// TransitionStatus moves the order through the fulfillment state machine.
func (s *orderService) TransitionStatus(ctx context.Context, orderID string, target domain.OrderStatus) (domain.Order, error) {
	if _, ok := statusTransitions[target]; !ok {
		return domain.Order{}, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, target)
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !transitionAllowed(order.Status, target) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, target, s.clock().UTC())
	if err != nil {
		return domain.Order{}, mapOrderRepositoryError(err)
	}

	s.publishEvent(ctx, EventOrderStatusChanged, updated)
	return updated, nil
}

// MarkPaymentFailed records a failed settlement attempt, e.g. when the gateway
// redirects the customer to the failure URL. A settled order is left untouched.
func (s *orderService) MarkPaymentFailed(ctx context.Context, orderID, reason string) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrInvalidRequest)
	}

	updated, applied, err := s.orders.MarkPaymentFailed(ctx, orderID, repositories.PaymentFailure{
		Reason:     strings.TrimSpace(reason),
		OccurredAt: s.clock().UTC(),
	})
	if err != nil {
		return domain.Order{}, mapOrderRepositoryError(err)
	}
	if applied {
		s.publishEvent(ctx, EventOrderPaymentFailed, updated)
	}
	return updated, nil
}

// publishEvent fans the event out best-effort: a publish failure is logged but
// never fails the order mutation that already committed.
func (s *orderService) publishEvent(ctx context.Context, event string, order domain.Order) {
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

func mapOrderRepositoryError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return ErrOrderNotFound
	}
	return err
}
