package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arzanfood/api/internal/domain"
	"github.com/arzanfood/api/internal/repositories"
)

func newTestOrderService(t *testing.T, orders *stubOrderRepository, events *stubEventPublisher) OrderService {
	t.Helper()
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:      orders,
		Carts:       mustCartService(t),
		Events:      events,
		IDGenerator: &stubIDGenerator{id: "ord_01HTEST"},
		Clock:       fixedClock,
		DeliveryFee: 50000,
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return svc
}

func mustCartService(t *testing.T) CartService {
	t.Helper()
	svc, err := NewCartService(CartServiceDeps{Catalog: testCatalog()})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return svc
}

func TestCreateOrderSnapshotsPricesAndTotals(t *testing.T) {
	var inserted *domain.Order
	orders := &stubOrderRepository{
		insertFn: func(_ context.Context, order domain.Order) error {
			inserted = &order
			return nil
		},
	}
	events := &stubEventPublisher{}
	svc := newTestOrderService(t, orders, events)

	order, err := svc.CreateOrder(context.Background(), CreateOrderCommand{
		UserRef:       "user-1",
		PaymentMethod: domain.PaymentMethodWebMoney,
		Contact:       domain.OrderContact{Name: "Aziz", Phone: "+998901234567", Address: "Tashkent"},
		Items: []CartLine{
			{ProductRef: "prod-1", Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if order.ID != "ord_01HTEST" {
		t.Errorf("order id = %q", order.ID)
	}
	if order.Subtotal != 200000 {
		t.Errorf("subtotal = %d, want 200000", order.Subtotal)
	}
	if order.DeliveryFee != 50000 {
		t.Errorf("delivery fee = %d, want 50000", order.DeliveryFee)
	}
	if order.Total != 250000 {
		t.Errorf("total = %d, want 250000", order.Total)
	}
	if order.Status != domain.OrderStatusPending || order.PaymentStatus != domain.PaymentPending {
		t.Errorf("fresh order state = %s/%s, want pending/pending", order.Status, order.PaymentStatus)
	}
	if inserted == nil {
		t.Fatal("order was not persisted")
	}
	if len(inserted.Items) != 1 || inserted.Items[0].UnitPrice != 100000 {
		t.Errorf("persisted items = %+v, want snapshotted unit price 100000", inserted.Items)
	}
	if len(events.messages) != 1 || events.messages[0].Event != EventOrderCreated {
		t.Errorf("events = %+v, want one order.created", events.messages)
	}
}

func TestCreateOrderAbortsWhenProductsUnavailable(t *testing.T) {
	orders := &stubOrderRepository{
		insertFn: func(_ context.Context, order domain.Order) error {
			t.Fatal("nothing must be persisted when validation fails")
			return nil
		},
	}
	svc := newTestOrderService(t, orders, &stubEventPublisher{})

	_, err := svc.CreateOrder(context.Background(), CreateOrderCommand{
		PaymentMethod: domain.PaymentMethodCash,
		Contact:       domain.OrderContact{Phone: "+998", Address: "Tashkent"},
		Items:         []CartLine{{ProductRef: "prod-missing", Quantity: 1}},
	})

	var unavailable *ProductsUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("got %v, want ProductsUnavailableError", err)
	}
}

func TestCreateOrderRejectsUnknownPaymentMethod(t *testing.T) {
	svc := newTestOrderService(t, &stubOrderRepository{}, &stubEventPublisher{})

	_, err := svc.CreateOrder(context.Background(), CreateOrderCommand{
		PaymentMethod: "bitcoin",
		Contact:       domain.OrderContact{Phone: "+998", Address: "Tashkent"},
		Items:         []CartLine{{ProductRef: "prod-1", Quantity: 1}},
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("got %v, want ErrInvalidRequest", err)
	}
}

func TestGetOrderMapsNotFound(t *testing.T) {
	orders := &stubOrderRepository{
		findFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return domain.Order{}, notFoundError{}
		},
	}
	svc := newTestOrderService(t, orders, &stubEventPublisher{})

	if _, err := svc.GetOrder(context.Background(), "ord_nope"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("got %v, want ErrOrderNotFound", err)
	}
}

func TestTransitionStatusFollowsStateMachine(t *testing.T) {
	current := domain.Order{ID: "ord_1", Status: domain.OrderStatusConfirmed}
	orders := &stubOrderRepository{
		findFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return current, nil
		},
		updateStatusFn: func(_ context.Context, orderID string, status domain.OrderStatus, now time.Time) (domain.Order, error) {
			updated := current
			updated.Status = status
			updated.UpdatedAt = now
			return updated, nil
		},
	}
	events := &stubEventPublisher{}
	svc := newTestOrderService(t, orders, events)

	updated, err := svc.TransitionStatus(context.Background(), "ord_1", domain.OrderStatusPreparing)
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if updated.Status != domain.OrderStatusPreparing {
		t.Errorf("status = %s, want preparing", updated.Status)
	}
	if len(events.messages) != 1 || events.messages[0].Event != EventOrderStatusChanged {
		t.Errorf("events = %+v", events.messages)
	}

	// Delivered orders are terminal.
	current = domain.Order{ID: "ord_1", Status: domain.OrderStatusDelivered}
	if _, err := svc.TransitionStatus(context.Background(), "ord_1", domain.OrderStatusCancelled); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
}

func TestMarkPaymentFailedDoesNotDowngradeSuccess(t *testing.T) {
	settled := domain.Order{ID: "ord_1", PaymentStatus: domain.PaymentSuccess}
	orders := &stubOrderRepository{
		markFailedFn: func(_ context.Context, orderID string, failure repositories.PaymentFailure) (domain.Order, bool, error) {
			return settled, false, nil
		},
	}
	events := &stubEventPublisher{}
	svc := newTestOrderService(t, orders, events)

	order, err := svc.MarkPaymentFailed(context.Background(), "ord_1", "customer abandoned")
	if err != nil {
		t.Fatalf("MarkPaymentFailed: %v", err)
	}
	if order.PaymentStatus != domain.PaymentSuccess {
		t.Errorf("payment status = %s, success must stay terminal", order.PaymentStatus)
	}
	if len(events.messages) != 0 {
		t.Errorf("no event expected when nothing changed, got %+v", events.messages)
	}
}

func TestMarkPaymentFailedPublishesEvent(t *testing.T) {
	orders := &stubOrderRepository{
		markFailedFn: func(_ context.Context, orderID string, failure repositories.PaymentFailure) (domain.Order, bool, error) {
			return domain.Order{ID: orderID, PaymentStatus: domain.PaymentFailed}, true, nil
		},
	}
	events := &stubEventPublisher{}
	svc := newTestOrderService(t, orders, events)

	if _, err := svc.MarkPaymentFailed(context.Background(), "ord_1", "gateway fail redirect"); err != nil {
		t.Fatalf("MarkPaymentFailed: %v", err)
	}
	if len(events.messages) != 1 || events.messages[0].Event != EventOrderPaymentFailed {
		t.Errorf("events = %+v, want one order.payment.failed", events.messages)
	}
}
