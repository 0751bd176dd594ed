package store

import (
	"context"
	"time"

	pgx "github.com/jackc/pgx/v5"
	"github.com/merchkit/merchkit/internal/models"
)

// CatalogStore reads and writes the storefront catalog entities. Full
// product CRUD lives outside this service; these are the repositories the
// pricing core needs.
type CatalogStore interface {
	GetStore(ctx context.Context, id string) (*models.Store, error)
	GetStoreBySlug(ctx context.Context, slug string) (*models.Store, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetVariant(ctx context.Context, id string) (*models.Variant, error)
	// GetDefaultVariant returns the first variant of a product, used when a
	// checkout request omits the variant id.
	GetDefaultVariant(ctx context.Context, productID string) (*models.Variant, error)
	ListVariants(ctx context.Context, productID string) ([]models.Variant, error)
	GetStoreProduct(ctx context.Context, storeID, productID string) (*models.StoreProduct, error)
	ListStoreProducts(ctx context.Context, storeID string) ([]models.StoreProduct, error)
	GetStorePrice(ctx context.Context, storeID, productID, variantID string) (*models.StorePrice, error)
	ListStorePrices(ctx context.Context, storeID string) ([]models.StorePrice, error)
	UpsertStorePrice(ctx context.Context, price models.StorePrice) error

	UpsertStore(ctx context.Context, s models.Store) error
	UpsertProduct(ctx context.Context, p models.Product) error
	UpsertVariant(ctx context.Context, v models.Variant) error
	UpsertStoreProduct(ctx context.Context, sp models.StoreProduct) error
}

// AccountStore reads and writes merchant connected accounts.
type AccountStore interface {
	GetAccountByOwner(ctx context.Context, ownerID string) (*models.ConnectedAccount, error)
	GetAccountByStripeID(ctx context.Context, stripeAccountID string) (*models.ConnectedAccount, error)
	UpsertAccount(ctx context.Context, a models.ConnectedAccount) error
}

// OrderStore holds the pending-order ledger and the permanent orders table.
type OrderStore interface {
	CreatePendingOrder(ctx context.Context, po models.PendingOrder) error
	GetPendingOrderBySession(ctx context.Context, sessionID string) (*models.PendingOrder, error)
	// ReapPendingOrders deletes pending orders created before cutoff, up to
	// limit rows, and returns how many were removed.
	ReapPendingOrders(ctx context.Context, cutoff time.Time, limit int) (int, error)

	GetOrderBySession(ctx context.Context, sessionID string) (*models.Order, error)
	// PromoteOrder inserts the order and deletes the matching pending order
	// as one unit. Returns ErrConflict if an order with the same session id
	// already exists.
	PromoteOrder(ctx context.Context, o models.Order) error
	// MarkOrderFailed flips an existing order to failed. Returns false when
	// no order exists for the session id.
	MarkOrderFailed(ctx context.Context, sessionID string) (bool, error)
}

// KeyStore holds merchant API key credentials.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, k models.APIKey) error
	// GetAPIKeyByPrefix returns the key record for a public prefix, any
	// status. Callers decide what revoked means.
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*models.APIKey, error)
	ListAPIKeysByOwner(ctx context.Context, ownerID string) ([]models.APIKey, error)
	// RevokeAPIKey flips a key to revoked. Returns false when no key has
	// that prefix.
	RevokeAPIKey(ctx context.Context, prefix string) (bool, error)
}

// Store is the combined persistence interface for the service.
type Store interface {
	CatalogStore
	AccountStore
	OrderStore
	KeyStore
	Health(ctx context.Context) error
}

// Database interface for dependency injection
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (interface{}, error)
	QueryRow(ctx context.Context, sql string, args ...any) interface{}
	InTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	Health(ctx context.Context) error
	IsConfigured() bool
}

// New creates a new store instance
func New(db Database) Store {
	if db.IsConfigured() {
		return NewPostgresStore(db)
	}
	// Fallback to in-memory store if no database
	return NewInMemoryStore()
}
