package pricing

import (
	"context"
	"fmt"

	"github.com/merchkit/merchkit/internal/store"
)

// AdjustCents applies a percentage change to a price in minor units,
// rounding half-up on the cent boundary. The result never goes below 0;
// a clamped 0 leaves the item unpurchasable rather than negative.
func AdjustCents(priceCents int64, percent float64) int64 {
	if priceCents <= 0 {
		return 0
	}
	// Work in tenths of a cent to keep the rounding exact for the usual
	// whole-percent adjustments.
	scaled := float64(priceCents) * (100 + percent)
	adjusted := int64((scaled + 50) / 100)
	if scaled < 0 {
		adjusted = 0
	}
	if adjusted < 0 {
		adjusted = 0
	}
	return adjusted
}

// BulkAdjust applies a percentage adjustment to every price override in a
// store and returns how many rows changed. Prices that round to 0 are
// written as 0, which the resolver treats as unpurchasable.
func BulkAdjust(ctx context.Context, catalog store.CatalogStore, storeID string, percent float64) (int, error) {
	prices, err := catalog.ListStorePrices(ctx, storeID)
	if err != nil {
		return 0, fmt.Errorf("list store prices: %w", err)
	}

	changed := 0
	for _, sp := range prices {
		next := AdjustCents(sp.PriceCents, percent)
		if next == sp.PriceCents {
			continue
		}
		updated := sp
		updated.PriceCents = next
		// Drop a compare-at that no longer sits above the new price; the
		// invariant compareAt > price must hold on every write.
		if updated.CompareAtCents != nil && *updated.CompareAtCents <= next {
			updated.CompareAtCents = nil
		}
		if err := catalog.UpsertStorePrice(ctx, updated); err != nil {
			return changed, fmt.Errorf("adjust price for %s/%s: %w", sp.ProductID, sp.VariantID, err)
		}
		changed++
	}
	return changed, nil
}
