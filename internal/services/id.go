package services

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const orderIDPrefix = "ord_"

// ULIDOrderIDGenerator mints lexicographically sortable order identifiers.
type ULIDOrderIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	clock   Clock
}

// NewULIDOrderIDGenerator constructs the generator with crypto/rand entropy.
func NewULIDOrderIDGenerator(clock Clock) *ULIDOrderIDGenerator {
	if clock == nil {
		clock = time.Now
	}
	return &ULIDOrderIDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		clock:   clock,
	}
}

// NewOrderID returns a fresh order identifier.
func (g *ULIDOrderIDGenerator) NewOrderID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.clock().UTC()), g.entropy)
	if err != nil {
		return "", fmt.Errorf("generate order id: %w", err)
	}
	return orderIDPrefix + id.String(), nil
}
