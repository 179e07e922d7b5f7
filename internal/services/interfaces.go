package services

import (
	"context"
	"net/url"
	"time"

	"github.com/arzanfood/api/internal/domain"
	"github.com/arzanfood/api/internal/gateway"
)

// Clock supplies the current time so services stay deterministic under test.
type Clock func() time.Time

// IDGenerator mints order identifiers. The order ID is also the bill number
// echoed to the payment gateway, so it must be safe to expose.
type IDGenerator interface {
	NewOrderID() (string, error)
}

// CartLine is one requested cart entry as sent by the storefront. Client-side
// prices are never trusted; only the product reference and quantity matter.
type CartLine struct {
	ProductRef string
	Quantity   int
}

// ValidatedLine is a cart entry with the authoritative catalog state attached.
type ValidatedLine struct {
	Product   domain.Product
	Quantity  int
	UnitPrice int64
}

// CartService re-validates cart contents against the live catalog.
type CartService interface {
	ValidateItems(ctx context.Context, lines []CartLine) ([]ValidatedLine, error)
}

// CreateOrderCommand carries everything needed to place an order.
type CreateOrderCommand struct {
	UserRef       string
	PaymentMethod domain.PaymentMethod
	Contact       domain.OrderContact
	Items         []CartLine
}

// ListOrdersQuery narrows and pages the order listing.
type ListOrdersQuery struct {
	UserRef       string
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	Pagination    domain.Pagination
}

// OrderService owns the order lifecycle from creation through fulfillment.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, query ListOrdersQuery) (domain.CursorPage[domain.Order], error)
	TransitionStatus(ctx context.Context, orderID string, target domain.OrderStatus) (domain.Order, error)
	MarkPaymentFailed(ctx context.Context, orderID, reason string) (domain.Order, error)
}

// CallbackResult reports which stage of the gateway handshake was handled.
type CallbackResult struct {
	Stage      string
	BillNumber string
}

// Callback handshake stages.
const (
	CallbackStagePrecheck = "precheck"
	CallbackStageConfirm  = "confirm"
)

// PaymentService reconciles gateway callbacks against stored orders and builds
// outbound redirects.
type PaymentService interface {
	// BuildRedirect produces the gateway payment form for an unpaid order.
	BuildRedirect(ctx context.Context, orderID string) (gateway.Redirect, error)
	// HandleCallback verifies and applies one inbound gateway notification.
	HandleCallback(ctx context.Context, provider string, values url.Values) (CallbackResult, error)
}

// OrderEventMessage is the payload published to the order events topic.
type OrderEventMessage struct {
	Event         string    `json:"event"`
	OrderID       string    `json:"orderId"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	Total         int64     `json:"total"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Order event names consumed by the kitchen display and notification workers.
const (
	EventOrderCreated          = "order.created"
	EventOrderPaymentSucceeded = "order.payment.succeeded"
	EventOrderPaymentFailed    = "order.payment.failed"
	EventOrderStatusChanged    = "order.status.changed"
)

// OrderEventPublisher fans order lifecycle events out to downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}
