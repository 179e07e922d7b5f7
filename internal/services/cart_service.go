package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/arzanfood/api/internal/repositories"
)

type cartService struct {
	catalog repositories.CatalogRepository
}

// CartServiceDeps wires the cart validator dependencies.
type CartServiceDeps struct {
	Catalog repositories.CatalogRepository
}

// NewCartService constructs the cart validator.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("cart service requires catalog repository")
	}
	return &cartService{catalog: deps.Catalog}, nil
}

// ValidateItems re-reads every requested product from the catalog and returns
// the lines with authoritative current prices. A product is purchasable only
// when it exists, is available, and is published. Any unpurchasable reference
// aborts the whole validation.
func (s *cartService) ValidateItems(ctx context.Context, lines []CartLine) ([]ValidatedLine, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ref := strings.TrimSpace(line.ProductRef)
		if ref == "" {
			return nil, fmt.Errorf("%w: missing product reference", ErrInvalidRequest)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: non-positive quantity for %s", ErrInvalidRequest, ref)
		}
		ids = append(ids, ref)
	}

	products, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("cart service: load products: %w", err)
	}

	var unavailable []string
	validated := make([]ValidatedLine, 0, len(lines))
	for _, line := range lines {
		ref := strings.TrimSpace(line.ProductRef)
		product, ok := products[ref]
		if !ok || !product.Purchasable() {
			unavailable = append(unavailable, ref)
			continue
		}
		validated = append(validated, ValidatedLine{
			Product:   product,
			Quantity:  line.Quantity,
			UnitPrice: product.CurrentPrice(),
		})
	}

	if len(unavailable) > 0 {
		sort.Strings(unavailable)
		return nil, &ProductsUnavailableError{IDs: unavailable}
	}
	return validated, nil
}
