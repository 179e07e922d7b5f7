package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/arzanfood/api/internal/domain"
	pfirestore "github.com/arzanfood/api/internal/platform/firestore"
	"github.com/arzanfood/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists orders within Firestore. Each order is one document
// with its line items embedded, so creation is a single atomic write and
// payment mutations run as document-level transactions.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil)
	return &OrderRepository{
		base:     base,
		provider: provider,
	}, nil
}

type orderDocument struct {
	UserRef       string              `firestore:"userRef,omitempty"`
	Status        string              `firestore:"status"`
	PaymentMethod string              `firestore:"paymentMethod"`
	PaymentStatus string              `firestore:"paymentStatus"`
	PaymentID     string              `firestore:"paymentId,omitempty"`
	PaymentData   map[string]any      `firestore:"paymentData,omitempty"`
	Contact       orderContactDoc     `firestore:"contact"`
	Items         []orderLineItemDoc  `firestore:"items"`
	Subtotal      int64               `firestore:"subtotal"`
	DeliveryFee   int64               `firestore:"deliveryFee"`
	Total         int64               `firestore:"total"`
	CreatedAt     time.Time           `firestore:"createdAt"`
	UpdatedAt     time.Time           `firestore:"updatedAt"`
	PaidAt        *time.Time          `firestore:"paidAt,omitempty"`
	CancelledAt   *time.Time          `firestore:"cancelledAt,omitempty"`
}

type orderContactDoc struct {
	Name    string `firestore:"name"`
	Phone   string `firestore:"phone"`
	Address string `firestore:"address"`
}

type orderLineItemDoc struct {
	ProductRef string `firestore:"productRef"`
	Name       string `firestore:"name"`
	Quantity   int    `firestore:"quantity"`
	UnitPrice  int64  `firestore:"unitPrice"`
}

// Insert persists the order document, failing when the ID already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}

	_, err := r.base.Create(ctx, orderID, toOrderDocument(order))
	return err
}

// FindByID loads the order by its identifier.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return fromOrderDocument(doc.ID, doc.Data), nil
}

// List returns orders matching the filter, newest first, with cursor paging.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	cursor, err := decodeOrderCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if userRef := strings.TrimSpace(filter.UserRef); userRef != "" {
			query = query.Where("userRef", "==", userRef)
		}
		if filter.Status != "" {
			query = query.Where("status", "==", string(filter.Status))
		}
		if filter.PaymentStatus != "" {
			query = query.Where("paymentStatus", "==", string(filter.PaymentStatus))
		}
		query = query.OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Asc)
		if cursor != nil {
			query = query.StartAfter(cursor.createdAt, cursor.orderID)
		}
		// Fetch one extra row to detect whether another page exists.
		return query.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{}
	for i, doc := range docs {
		if i == pageSize {
			last := docs[pageSize-1]
			page.NextPageToken = encodeOrderCursor(last.Data.CreatedAt, last.ID)
			break
		}
		page.Items = append(page.Items, fromOrderDocument(doc.ID, doc.Data))
	}
	return page, nil
}

// UpdateStatus moves the order to the given fulfillment status inside a transaction.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, now time.Time) (domain.Order, error) {
	var updated domain.Order

	err := r.mutate(ctx, orderID, func(current domain.Order) ([]firestore.Update, error) {
		updates := []firestore.Update{
			{Path: "status", Value: string(status)},
			{Path: "updatedAt", Value: now.UTC()},
		}
		current.Status = status
		current.UpdatedAt = now.UTC()
		if status == domain.OrderStatusCancelled && current.CancelledAt == nil {
			cancelled := now.UTC()
			current.CancelledAt = &cancelled
			updates = append(updates, firestore.Update{Path: "cancelledAt", Value: cancelled})
		}
		updated = current
		return updates, nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

// ApplyPaymentSuccess marks the order paid and confirmed exactly once. A repeat
// confirmation for an already settled order is a no-op with applied=false, so
// gateway retries never double-apply.
func (r *OrderRepository) ApplyPaymentSuccess(ctx context.Context, orderID string, success repositories.PaymentSuccess) (domain.Order, bool, error) {
	var (
		updated domain.Order
		applied bool
	)

	err := r.mutate(ctx, orderID, func(current domain.Order) ([]firestore.Update, error) {
		if current.PaymentStatus == domain.PaymentSuccess {
			updated = current
			return nil, nil
		}

		now := success.OccurredAt.UTC()
		if now.IsZero() {
			now = time.Now().UTC()
		}
		paymentData := map[string]any{
			"payerAccount": success.PayerAccount,
			"transDate":    success.TransDate,
			"amount":       success.Amount,
		}

		current.Status = domain.OrderStatusConfirmed
		current.PaymentStatus = domain.PaymentSuccess
		current.PaymentID = success.TransactionID
		current.PaymentData = paymentData
		current.PaidAt = &now
		current.UpdatedAt = now
		updated = current
		applied = true

		return []firestore.Update{
			{Path: "status", Value: string(domain.OrderStatusConfirmed)},
			{Path: "paymentStatus", Value: string(domain.PaymentSuccess)},
			{Path: "paymentId", Value: success.TransactionID},
			{Path: "paymentData", Value: paymentData},
			{Path: "paidAt", Value: now},
			{Path: "updatedAt", Value: now},
		}, nil
	})
	if err != nil {
		return domain.Order{}, false, err
	}
	return updated, applied, nil
}

// MarkPaymentFailed records a failed settlement attempt. Success is terminal
// and never downgraded.
func (r *OrderRepository) MarkPaymentFailed(ctx context.Context, orderID string, failure repositories.PaymentFailure) (domain.Order, bool, error) {
	var (
		updated domain.Order
		applied bool
	)

	err := r.mutate(ctx, orderID, func(current domain.Order) ([]firestore.Update, error) {
		if current.PaymentStatus == domain.PaymentSuccess {
			updated = current
			return nil, nil
		}

		now := failure.OccurredAt.UTC()
		if now.IsZero() {
			now = time.Now().UTC()
		}
		paymentData := map[string]any{
			"reason": failure.Reason,
		}
		if failure.TransactionID != "" {
			paymentData["transactionId"] = failure.TransactionID
		}

		current.PaymentStatus = domain.PaymentFailed
		current.PaymentData = paymentData
		current.UpdatedAt = now
		updated = current
		applied = true

		return []firestore.Update{
			{Path: "paymentStatus", Value: string(domain.PaymentFailed)},
			{Path: "paymentData", Value: paymentData},
			{Path: "updatedAt", Value: now},
		}, nil
	})
	if err != nil {
		return domain.Order{}, false, err
	}
	return updated, applied, nil
}

// mutate runs decide inside a transaction: the current order is read, decide
// returns the updates to apply (nil means leave the document untouched).
func (r *OrderRepository) mutate(ctx context.Context, orderID string, decide func(current domain.Order) ([]firestore.Update, error)) error {
	if r == nil || r.base == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		doc, err := r.base.Decode(ctx, snapshot)
		if err != nil {
			return fmt.Errorf("decode order %s: %w", id, err)
		}

		updates, err := decide(fromOrderDocument(doc.ID, doc.Data))
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Update(ref, updates)
	})
}

func toOrderDocument(order domain.Order) orderDocument {
	items := make([]orderLineItemDoc, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderLineItemDoc{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		})
	}

	return orderDocument{
		UserRef:       order.UserRef,
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		PaymentID:     order.PaymentID,
		PaymentData:   order.PaymentData,
		Contact: orderContactDoc{
			Name:    order.Contact.Name,
			Phone:   order.Contact.Phone,
			Address: order.Contact.Address,
		},
		Items:       items,
		Subtotal:    order.Subtotal,
		DeliveryFee: order.DeliveryFee,
		Total:       order.Total,
		CreatedAt:   order.CreatedAt.UTC(),
		UpdatedAt:   order.UpdatedAt.UTC(),
		PaidAt:      order.PaidAt,
		CancelledAt: order.CancelledAt,
	}
}

func fromOrderDocument(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderLineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderLineItem{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		})
	}

	return domain.Order{
		ID:            id,
		UserRef:       doc.UserRef,
		Status:        domain.OrderStatus(doc.Status),
		PaymentMethod: domain.PaymentMethod(doc.PaymentMethod),
		PaymentStatus: domain.PaymentStatus(doc.PaymentStatus),
		PaymentID:     doc.PaymentID,
		PaymentData:   doc.PaymentData,
		Contact: domain.OrderContact{
			Name:    doc.Contact.Name,
			Phone:   doc.Contact.Phone,
			Address: doc.Contact.Address,
		},
		Items:       items,
		Subtotal:    doc.Subtotal,
		DeliveryFee: doc.DeliveryFee,
		Total:       doc.Total,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		PaidAt:      doc.PaidAt,
		CancelledAt: doc.CancelledAt,
	}
}

type orderCursor struct {
	createdAt time.Time
	orderID   string
}

func encodeOrderCursor(createdAt time.Time, orderID string) string {
	raw := strconv.FormatInt(createdAt.UTC().UnixNano(), 10) + "|" + orderID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeOrderCursor(token string) (*orderCursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("order repository: invalid page token: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, errors.New("order repository: invalid page token")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("order repository: invalid page token: %w", err)
	}
	return &orderCursor{
		createdAt: time.Unix(0, nanos).UTC(),
		orderID:   parts[1],
	}, nil
}
