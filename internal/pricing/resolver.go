package pricing

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/merchkit/merchkit/internal/errors"
	"github.com/merchkit/merchkit/internal/models"
	"github.com/merchkit/merchkit/internal/store"
)

// Clock abstracts "now" so schedule windows are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Quote is the authoritative answer for what a variant costs in a store
// right now.
type Quote struct {
	StoreID        string `json:"store_id"`
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id"`
	PriceCents     int64  `json:"price_cents"`
	CompareAtCents *int64 `json:"compare_at_cents,omitempty"`
	Currency       string `json:"currency"`
	OnSale         bool   `json:"on_sale"`
}

// Resolver computes the effective price and purchasability of a
// (store, product, variant) tuple. Pure reads; nothing is cached, so
// concurrent price edits are simply observed at resolution time.
type Resolver struct {
	catalog store.CatalogStore
	clock   Clock
}

// NewResolver creates a price resolver. A nil clock falls back to the
// system clock.
func NewResolver(catalog store.CatalogStore, clock Clock) *Resolver {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Resolver{catalog: catalog, clock: clock}
}

// Resolve returns the effective quote for the tuple or a NotPurchasableError.
// An empty variantID selects the product's default variant.
//
// A store price row always wins over the variant base price when it
// exists, even at price 0: zero is the "not yet priced" sentinel and makes
// the item unpurchasable rather than falling back.
func (r *Resolver) Resolve(ctx context.Context, storeID, productID, variantID string) (*Quote, error) {
	attachment, err := r.catalog.GetStoreProduct(ctx, storeID, productID)
	if err != nil {
		return nil, fmt.Errorf("load store product: %w", err)
	}
	if attachment == nil || attachment.Hidden {
		return nil, apperrors.NotPurchasable(apperrors.ReasonProductUnavailable, "product is not available in this store")
	}

	product, err := r.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if product == nil || product.Deleted() {
		return nil, apperrors.NotPurchasable(apperrors.ReasonProductUnavailable, "product is not available")
	}

	variant, err := r.resolveVariant(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}

	override, err := r.catalog.GetStorePrice(ctx, storeID, productID, variant.ID)
	if err != nil {
		return nil, fmt.Errorf("load store price: %w", err)
	}

	if override != nil {
		switch override.Visibility {
		case models.VisibilityHidden:
			return nil, apperrors.NotPurchasable(apperrors.ReasonProductUnavailable, "price is hidden in this store")
		case models.VisibilityScheduled:
			if !override.ScheduleActive(r.clock.Now()) {
				return nil, apperrors.NotPurchasable(apperrors.ReasonProductUnavailable, "sale is not active")
			}
		}
		if override.PriceCents <= 0 {
			return nil, apperrors.NotPurchasable(apperrors.ReasonPriceNotConfigured, "price is not configured for this store")
		}
		return &Quote{
			StoreID:        storeID,
			ProductID:      productID,
			VariantID:      variant.ID,
			PriceCents:     override.PriceCents,
			CompareAtCents: override.CompareAtCents,
			Currency:       override.Currency,
			OnSale:         override.OnSale(),
		}, nil
	}

	if variant.BasePriceCents > 0 {
		return &Quote{
			StoreID:    storeID,
			ProductID:  productID,
			VariantID:  variant.ID,
			PriceCents: variant.BasePriceCents,
			Currency:   variant.Currency,
		}, nil
	}

	return nil, apperrors.NotPurchasable(apperrors.ReasonPriceNotConfigured, "price is not configured")
}

func (r *Resolver) resolveVariant(ctx context.Context, productID, variantID string) (*models.Variant, error) {
	var variant *models.Variant
	var err error
	if variantID == "" {
		variant, err = r.catalog.GetDefaultVariant(ctx, productID)
	} else {
		variant, err = r.catalog.GetVariant(ctx, variantID)
	}
	if err != nil {
		return nil, fmt.Errorf("load variant: %w", err)
	}
	if variant == nil || variant.ProductID != productID {
		return nil, apperrors.NotPurchasable(apperrors.ReasonProductUnavailable, "variant is not available")
	}
	return variant, nil
}

// GuardVisible rejects flipping a store price to VISIBLE when the result
// would still not be purchasable, so merchants cannot publish a broken
// listing.
func (r *Resolver) GuardVisible(ctx context.Context, price models.StorePrice) error {
	if price.Visibility != models.VisibilityVisible {
		return nil
	}
	// Evaluate as if the row were already visible: the guard asks whether
	// the rest of the configuration supports a purchase.
	if price.PriceCents <= 0 {
		return apperrors.NotPurchasable(apperrors.ReasonPriceNotConfigured, "cannot publish a price of zero")
	}
	attachment, err := r.catalog.GetStoreProduct(ctx, price.StoreID, price.ProductID)
	if err != nil {
		return fmt.Errorf("load store product: %w", err)
	}
	if attachment == nil || attachment.Hidden {
		return apperrors.NotPurchasable(apperrors.ReasonProductUnavailable, "product is not attached or hidden in this store")
	}
	product, err := r.catalog.GetProduct(ctx, price.ProductID)
	if err != nil {
		return fmt.Errorf("load product: %w", err)
	}
	if product == nil || product.Deleted() {
		return apperrors.NotPurchasable(apperrors.ReasonProductUnavailable, "product has been deleted")
	}
	if _, err := r.resolveVariant(ctx, price.ProductID, price.VariantID); err != nil {
		return err
	}
	return nil
}
