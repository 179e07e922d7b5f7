package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	"github.com/arzanfood/api/internal/domain"
	pfirestore "github.com/arzanfood/api/internal/platform/firestore"
)

const productsCollection = "products"

// CatalogRepository reads the product catalog projection maintained by the
// catalog service. Access is read-only from this side.
type CatalogRepository struct {
	provider *pfirestore.Provider
}

// NewCatalogRepository constructs a Firestore-backed catalog reader.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{provider: provider}, nil
}

type productDocument struct {
	Name         string `firestore:"name"`
	RegularPrice int64  `firestore:"regularPrice"`
	SalePrice    int64  `firestore:"salePrice,omitempty"`
	Available    bool   `firestore:"available"`
	Published    bool   `firestore:"published"`
}

// FindByIDs batch-reads the requested products. Missing documents are simply
// absent from the result map; the caller decides how to treat them.
func (r *CatalogRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("catalog repository not initialised")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	refs := make([]*firestore.DocumentRef, 0, len(productIDs))
	for _, id := range productIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		refs = append(refs, client.Collection(productsCollection).Doc(trimmed))
	}
	if len(refs) == 0 {
		return map[string]domain.Product{}, nil
	}

	snapshots, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("products.getall", err)
	}

	products := make(map[string]domain.Product, len(snapshots))
	for _, snapshot := range snapshots {
		if snapshot == nil || !snapshot.Exists() {
			continue
		}
		var doc productDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("catalog repository: decode product %s: %w", snapshot.Ref.ID, err)
		}
		products[snapshot.Ref.ID] = domain.Product{
			ID:           snapshot.Ref.ID,
			Name:         doc.Name,
			RegularPrice: doc.RegularPrice,
			SalePrice:    doc.SalePrice,
			Available:    doc.Available,
			Published:    doc.Published,
		}
	}
	return products, nil
}
