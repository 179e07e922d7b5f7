package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced by the order and payment services. Handlers map
// these onto wire responses with errors.Is.
var (
	// ErrEmptyCart indicates an order attempt with no purchasable lines.
	ErrEmptyCart = errors.New("cart: empty")
	// ErrOrderNotFound indicates the referenced order does not exist.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrInvalidTransition indicates a fulfillment move the state machine forbids.
	ErrInvalidTransition = errors.New("order: invalid status transition")
	// ErrInvalidMerchant indicates a callback addressed to a different merchant account.
	ErrInvalidMerchant = errors.New("payment: invalid merchant")
	// ErrAmountMismatch indicates the callback amount disagrees with the stored total.
	ErrAmountMismatch = errors.New("payment: amount mismatch")
	// ErrInvalidRequest indicates a malformed or incomplete request.
	ErrInvalidRequest = errors.New("payment: invalid request")
	// ErrInvalidChecksum indicates the callback signature did not verify.
	ErrInvalidChecksum = errors.New("payment: invalid checksum")
)

// ProductsUnavailableError lists the cart product references that can no longer
// be purchased. The order is aborted whole; nothing is persisted.
type ProductsUnavailableError struct {
	IDs []string
}

// Error implements the error interface.
func (e *ProductsUnavailableError) Error() string {
	if e == nil || len(e.IDs) == 0 {
		return "cart: products unavailable"
	}
	return fmt.Sprintf("cart: products unavailable [%s]", strings.Join(e.IDs, ", "))
}
