package repositories

import (
	"context"
	"time"

	"github.com/arzanfood/api/internal/domain"
)

// RepositoryError categorises persistence failures without leaking backend details.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderListFilter narrows List results.
type OrderListFilter struct {
	UserRef       string
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	Pagination    domain.Pagination
}

// PaymentSuccess carries the verified gateway confirmation applied to an order.
type PaymentSuccess struct {
	TransactionID string
	PayerAccount  string
	TransDate     string
	Amount        string
	OccurredAt    time.Time
}

// PaymentFailure records a rejected or abandoned settlement attempt.
type PaymentFailure struct {
	TransactionID string
	Reason        string
	OccurredAt    time.Time
}

// OrderRepository persists orders. Implementations must apply payment mutations
// as atomic conditional updates: read the current document, decide, write, all
// inside one transaction.
type OrderRepository interface {
	// Insert persists a new order with its line items as a single write.
	Insert(ctx context.Context, order domain.Order) error
	// FindByID loads one order.
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// List returns orders matching the filter, newest first.
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// UpdateStatus moves the order to the given fulfillment status.
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, now time.Time) (domain.Order, error)
	// ApplyPaymentSuccess marks the order paid and confirmed. When the order is
	// already in payment success the call is a no-op and applied is false.
	ApplyPaymentSuccess(ctx context.Context, orderID string, success PaymentSuccess) (order domain.Order, applied bool, err error)
	// MarkPaymentFailed records a failed settlement attempt. A success state is
	// never downgraded; applied is false in that case.
	MarkPaymentFailed(ctx context.Context, orderID string, failure PaymentFailure) (order domain.Order, applied bool, err error)
}

// CatalogRepository reads the product catalog owned by the catalog service.
type CatalogRepository interface {
	// FindByIDs returns the products that exist among the requested IDs, keyed by ID.
	FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
}
