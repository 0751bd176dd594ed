package models

import (
	"time"

	"github.com/merchkit/merchkit/internal/sku"
)

// Visibility controls whether a store price is live, hidden, or windowed.
type Visibility string

const (
	VisibilityVisible   Visibility = "VISIBLE"
	VisibilityHidden    Visibility = "HIDDEN"
	VisibilityScheduled Visibility = "SCHEDULED"
)

// StoreStatus is the lifecycle state of a storefront.
type StoreStatus string

const (
	StoreStatusDraft StoreStatus = "draft"
	StoreStatusLive  StoreStatus = "live"
)

// Product is a merchant-owned catalog item. Price never lives here; it is
// carried by variants and per-store overrides.
type Product struct {
	ID        string     `json:"id" db:"id"`
	OwnerID   string     `json:"owner_id" db:"owner_id"`
	Title     string     `json:"title" db:"title"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// Deleted reports whether the product has been soft-deleted.
func (p *Product) Deleted() bool {
	return p != nil && p.DeletedAt != nil
}

// Variant is a purchasable unit of a product. BasePriceCents of 0 means
// "not yet priced", not free.
type Variant struct {
	ID             string      `json:"id" db:"id"`
	ProductID      string      `json:"product_id" db:"product_id"`
	SKU            string      `json:"sku" db:"sku"`
	Options        sku.Options `json:"options" db:"options"`
	BasePriceCents int64       `json:"base_price_cents" db:"base_price_cents"`
	Currency       string      `json:"currency" db:"currency"`
	Stock          *int        `json:"stock,omitempty" db:"stock"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// Store is a merchant storefront with its own slug and catalog subset.
type Store struct {
	ID        string      `json:"id" db:"id"`
	OwnerID   string      `json:"owner_id" db:"owner_id"`
	Slug      string      `json:"slug" db:"slug"`
	Name      string      `json:"name" db:"name"`
	Status    StoreStatus `json:"status" db:"status"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// StoreProduct attaches a product to a store. Its Hidden flag is
// independent of any price-level visibility.
type StoreProduct struct {
	StoreID   string    `json:"store_id" db:"store_id"`
	ProductID string    `json:"product_id" db:"product_id"`
	Position  int       `json:"position" db:"position"`
	Hidden    bool      `json:"hidden" db:"hidden"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StorePrice is the per-store, per-variant price override. At most one row
// exists per (store, product, variant) tuple.
type StorePrice struct {
	StoreID        string     `json:"store_id" db:"store_id"`
	ProductID      string     `json:"product_id" db:"product_id"`
	VariantID      string     `json:"variant_id" db:"variant_id"`
	PriceCents     int64      `json:"price_cents" db:"price_cents"`
	CompareAtCents *int64     `json:"compare_at_cents,omitempty" db:"compare_at_cents"`
	Currency       string     `json:"currency" db:"currency"`
	Visibility     Visibility `json:"visibility" db:"visibility"`
	StartAt        *time.Time `json:"start_at,omitempty" db:"start_at"`
	EndAt          *time.Time `json:"end_at,omitempty" db:"end_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// ScheduleActive reports whether a SCHEDULED price is live at t. Both
// window bounds are required; a missing bound makes the price never live.
// The window is half-open: [StartAt, EndAt).
func (sp *StorePrice) ScheduleActive(t time.Time) bool {
	if sp.StartAt == nil || sp.EndAt == nil {
		return false
	}
	return !t.Before(*sp.StartAt) && t.Before(*sp.EndAt)
}

// OnSale reports whether the compare-at price marks this row as discounted.
func (sp *StorePrice) OnSale() bool {
	return sp.CompareAtCents != nil && *sp.CompareAtCents > sp.PriceCents
}

// Validate enforces the structural invariants on a store price row.
func (sp *StorePrice) Validate() error {
	if sp.PriceCents < 0 {
		return errNegativePrice
	}
	if sp.CompareAtCents != nil && *sp.CompareAtCents <= sp.PriceCents {
		return errCompareAtNotAbovePrice
	}
	switch sp.Visibility {
	case VisibilityVisible, VisibilityHidden, VisibilityScheduled:
	default:
		return errBadVisibility
	}
	return nil
}
