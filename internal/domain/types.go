package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// OrderStatus enumerates fulfillment states for an order.
type OrderStatus string

const (
	// OrderStatusPending indicates the order was created and is awaiting confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates the order is accepted (payment settled for online methods).
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusPreparing indicates the kitchen started preparing the order.
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusReady indicates the order is packed and ready for courier pickup.
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled before delivery.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus enumerates payment settlement states, distinct from fulfillment.
type PaymentStatus string

const (
	// PaymentPending indicates no settlement decision has been recorded yet.
	PaymentPending PaymentStatus = "pending"
	// PaymentSuccess indicates a verified gateway confirmation was applied. Terminal.
	PaymentSuccess PaymentStatus = "success"
	// PaymentFailed indicates the last settlement attempt was rejected.
	PaymentFailed PaymentStatus = "failed"
)

// PaymentMethod enumerates supported settlement channels.
type PaymentMethod string

const (
	// PaymentMethodCash settles in cash at delivery.
	PaymentMethodCash PaymentMethod = "cash"
	// PaymentMethodCard settles via the courier's POS terminal at delivery.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodWebMoney settles online via the WebMoney redirect gateway.
	PaymentMethodWebMoney PaymentMethod = "webmoney"
)

// Order is the canonical order record. Monetary fields are minor currency units.
type Order struct {
	ID            string
	UserRef       string
	Status        OrderStatus
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	PaymentID     string
	PaymentData   map[string]any
	Contact       OrderContact
	Items         []OrderLineItem
	Subtotal      int64
	DeliveryFee   int64
	Total         int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time
	CancelledAt   *time.Time
}

// OrderLineItem captures a purchased product with its price frozen at purchase time.
type OrderLineItem struct {
	ProductRef string
	Name       string
	Quantity   int
	UnitPrice  int64
}

// OrderContact holds the delivery contact captured at order creation.
type OrderContact struct {
	Name    string
	Phone   string
	Address string
}

// Product is the catalog projection this service consumes. The catalog itself is
// owned by another service; only purchasability and pricing matter here.
type Product struct {
	ID           string
	Name         string
	RegularPrice int64
	SalePrice    int64
	Available    bool
	Published    bool
}

// CurrentPrice returns the price a purchase made right now should snapshot.
func (p Product) CurrentPrice() int64 {
	if p.SalePrice > 0 && p.SalePrice < p.RegularPrice {
		return p.SalePrice
	}
	return p.RegularPrice
}

// Purchasable reports whether the product may appear on a new order.
func (p Product) Purchasable() bool {
	return p.Available && p.Published
}

// LineTotal returns quantity times the snapshotted unit price.
func (i OrderLineItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}
