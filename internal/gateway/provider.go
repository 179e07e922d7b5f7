package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/arzanfood/api/internal/domain"
)

// Redirect describes the auto-submitting form the storefront renders to send
// the customer to the payment gateway.
type Redirect struct {
	URL    string
	Fields map[string]string
}

// Callback is a parsed inbound gateway notification, either a precheck probe
// or a payment confirmation.
type Callback struct {
	Precheck        bool
	MerchantAccount string
	BillNumber      string
	Amount          string
	PayerAccount    string
	TransactionID   string
	TransDate       string
	Checksum        string
}

// Provider abstracts a redirect payment gateway. Checksum algorithms, field
// names, and amount formats are provider-specific and stay behind this
// interface.
type Provider interface {
	// Name identifies the provider; it matches the order payment method.
	Name() string
	// MerchantAccount returns the configured merchant account for this provider.
	MerchantAccount() string
	// BuildRedirect produces the outbound payment form for the order.
	BuildRedirect(order domain.Order) (Redirect, error)
	// ParseCallback extracts the provider's callback fields from form values.
	ParseCallback(values url.Values) (Callback, error)
	// VerifyChecksum recomputes the callback signature over the stored order
	// total and compares it to the received one.
	VerifyChecksum(callback Callback, total int64) bool
}

// ErrUnknownProvider is returned when no provider is registered for a payment method.
var ErrUnknownProvider = errors.New("gateway: unknown provider")

// Manager routes payment operations to the provider registered for a method.
type Manager struct {
	providers map[string]Provider
}

// NewManager builds a Manager over the supplied providers.
func NewManager(providers ...Provider) (*Manager, error) {
	m := &Manager{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(p.Name()))
		if name == "" {
			return nil, errors.New("gateway: provider with empty name")
		}
		if _, exists := m.providers[name]; exists {
			return nil, fmt.Errorf("gateway: duplicate provider %q", name)
		}
		m.providers[name] = p
	}
	return m, nil
}

// ForMethod returns the provider handling the given payment method.
func (m *Manager) ForMethod(method domain.PaymentMethod) (Provider, error) {
	if m == nil {
		return nil, ErrUnknownProvider
	}
	p, ok := m.providers[strings.ToLower(strings.TrimSpace(string(method)))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, method)
	}
	return p, nil
}

// Names lists the registered provider names in stable order.
func (m *Manager) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
