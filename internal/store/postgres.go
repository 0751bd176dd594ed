package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/merchkit/merchkit/internal/errors"
	"github.com/merchkit/merchkit/internal/models"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db Database
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db Database) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, dest []any, args ...any) (bool, error) {
	rowInterface := s.db.QueryRow(ctx, query, args...)
	row, ok := rowInterface.(pgx.Row)
	if !ok {
		return false, fmt.Errorf("invalid row type")
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) GetStore(ctx context.Context, id string) (*models.Store, error) {
	query := `
		SELECT id, owner_id, slug, name, status, created_at, updated_at
		FROM stores
		WHERE id = $1
	`
	var st models.Store
	found, err := s.scanOne(ctx, query,
		[]any{&st.ID, &st.OwnerID, &st.Slug, &st.Name, &st.Status, &st.CreatedAt, &st.UpdatedAt}, id)
	if err != nil {
		return nil, fmt.Errorf("scan store: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &st, nil
}

func (s *PostgresStore) GetStoreBySlug(ctx context.Context, slug string) (*models.Store, error) {
	query := `
		SELECT id, owner_id, slug, name, status, created_at, updated_at
		FROM stores
		WHERE slug = $1
	`
	var st models.Store
	found, err := s.scanOne(ctx, query,
		[]any{&st.ID, &st.OwnerID, &st.Slug, &st.Name, &st.Status, &st.CreatedAt, &st.UpdatedAt}, slug)
	if err != nil {
		return nil, fmt.Errorf("scan store: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &st, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	query := `
		SELECT id, owner_id, title, deleted_at, created_at, updated_at
		FROM products
		WHERE id = $1
	`
	var p models.Product
	found, err := s.scanOne(ctx, query,
		[]any{&p.ID, &p.OwnerID, &p.Title, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt}, id)
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}

func (s *PostgresStore) GetVariant(ctx context.Context, id string) (*models.Variant, error) {
	query := `
		SELECT id, product_id, sku, options, base_price_cents, currency, stock, created_at, updated_at
		FROM variants
		WHERE id = $1
	`
	var v models.Variant
	found, err := s.scanOne(ctx, query,
		[]any{&v.ID, &v.ProductID, &v.SKU, &v.Options, &v.BasePriceCents, &v.Currency, &v.Stock, &v.CreatedAt, &v.UpdatedAt}, id)
	if err != nil {
		return nil, fmt.Errorf("scan variant: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &v, nil
}

func (s *PostgresStore) GetDefaultVariant(ctx context.Context, productID string) (*models.Variant, error) {
	query := `
		SELECT id, product_id, sku, options, base_price_cents, currency, stock, created_at, updated_at
		FROM variants
		WHERE product_id = $1
		ORDER BY id
		LIMIT 1
	`
	var v models.Variant
	found, err := s.scanOne(ctx, query,
		[]any{&v.ID, &v.ProductID, &v.SKU, &v.Options, &v.BasePriceCents, &v.Currency, &v.Stock, &v.CreatedAt, &v.UpdatedAt}, productID)
	if err != nil {
		return nil, fmt.Errorf("scan variant: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &v, nil
}

func (s *PostgresStore) ListVariants(ctx context.Context, productID string) ([]models.Variant, error) {
	query := `
		SELECT id, product_id, sku, options, base_price_cents, currency, stock, created_at, updated_at
		FROM variants
		WHERE product_id = $1
		ORDER BY id
	`
	rowsInterface, err := s.db.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	var variants []models.Variant
	for rows.Next() {
		var v models.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Options, &v.BasePriceCents, &v.Currency, &v.Stock, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, nil
}

func (s *PostgresStore) GetStoreProduct(ctx context.Context, storeID, productID string) (*models.StoreProduct, error) {
	query := `
		SELECT store_id, product_id, position, hidden, created_at, updated_at
		FROM store_products
		WHERE store_id = $1 AND product_id = $2
	`
	var sp models.StoreProduct
	found, err := s.scanOne(ctx, query,
		[]any{&sp.StoreID, &sp.ProductID, &sp.Position, &sp.Hidden, &sp.CreatedAt, &sp.UpdatedAt},
		storeID, productID)
	if err != nil {
		return nil, fmt.Errorf("scan store product: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &sp, nil
}

func (s *PostgresStore) ListStoreProducts(ctx context.Context, storeID string) ([]models.StoreProduct, error) {
	query := `
		SELECT store_id, product_id, position, hidden, created_at, updated_at
		FROM store_products
		WHERE store_id = $1
		ORDER BY position
	`
	rowsInterface, err := s.db.Query(ctx, query, storeID)
	if err != nil {
		return nil, fmt.Errorf("query store products: %w", err)
	}
	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	var result []models.StoreProduct
	for rows.Next() {
		var sp models.StoreProduct
		if err := rows.Scan(&sp.StoreID, &sp.ProductID, &sp.Position, &sp.Hidden, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan store product: %w", err)
		}
		result = append(result, sp)
	}
	return result, nil
}

func (s *PostgresStore) GetStorePrice(ctx context.Context, storeID, productID, variantID string) (*models.StorePrice, error) {
	query := `
		SELECT store_id, product_id, variant_id, price_cents, compare_at_cents,
			   currency, visibility, start_at, end_at, created_at, updated_at
		FROM store_prices
		WHERE store_id = $1 AND product_id = $2 AND variant_id = $3
	`
	var sp models.StorePrice
	found, err := s.scanOne(ctx, query,
		[]any{&sp.StoreID, &sp.ProductID, &sp.VariantID, &sp.PriceCents, &sp.CompareAtCents,
			&sp.Currency, &sp.Visibility, &sp.StartAt, &sp.EndAt, &sp.CreatedAt, &sp.UpdatedAt},
		storeID, productID, variantID)
	if err != nil {
		return nil, fmt.Errorf("scan store price: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &sp, nil
}

func (s *PostgresStore) ListStorePrices(ctx context.Context, storeID string) ([]models.StorePrice, error) {
	query := `
		SELECT store_id, product_id, variant_id, price_cents, compare_at_cents,
			   currency, visibility, start_at, end_at, created_at, updated_at
		FROM store_prices
		WHERE store_id = $1
	`
	rowsInterface, err := s.db.Query(ctx, query, storeID)
	if err != nil {
		return nil, fmt.Errorf("query store prices: %w", err)
	}
	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	var result []models.StorePrice
	for rows.Next() {
		var sp models.StorePrice
		if err := rows.Scan(&sp.StoreID, &sp.ProductID, &sp.VariantID, &sp.PriceCents, &sp.CompareAtCents,
			&sp.Currency, &sp.Visibility, &sp.StartAt, &sp.EndAt, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan store price: %w", err)
		}
		result = append(result, sp)
	}
	return result, nil
}

// UpsertStorePrice keys on the (store, product, variant) natural key so
// repeated edits never orphan price history.
func (s *PostgresStore) UpsertStorePrice(ctx context.Context, price models.StorePrice) error {
	if err := price.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO store_prices (
			store_id, product_id, variant_id, price_cents, compare_at_cents,
			currency, visibility, start_at, end_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (store_id, product_id, variant_id) DO UPDATE SET
			price_cents = EXCLUDED.price_cents,
			compare_at_cents = EXCLUDED.compare_at_cents,
			currency = EXCLUDED.currency,
			visibility = EXCLUDED.visibility,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			updated_at = NOW()
	`
	err := s.db.Exec(ctx, query,
		price.StoreID, price.ProductID, price.VariantID, price.PriceCents, price.CompareAtCents,
		price.Currency, price.Visibility, price.StartAt, price.EndAt,
	)
	if err != nil {
		return fmt.Errorf("upsert store price: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertStore(ctx context.Context, st models.Store) error {
	query := `
		INSERT INTO stores (id, owner_id, slug, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			slug = EXCLUDED.slug,
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			updated_at = NOW()
	`
	if err := s.db.Exec(ctx, query, st.ID, st.OwnerID, st.Slug, st.Name, st.Status); err != nil {
		return fmt.Errorf("upsert store: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertProduct(ctx context.Context, p models.Product) error {
	query := `
		INSERT INTO products (id, owner_id, title, deleted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			deleted_at = EXCLUDED.deleted_at,
			updated_at = NOW()
	`
	if err := s.db.Exec(ctx, query, p.ID, p.OwnerID, p.Title, p.DeletedAt); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertVariant(ctx context.Context, v models.Variant) error {
	query := `
		INSERT INTO variants (id, product_id, sku, options, base_price_cents, currency, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			sku = EXCLUDED.sku,
			options = EXCLUDED.options,
			base_price_cents = EXCLUDED.base_price_cents,
			currency = EXCLUDED.currency,
			stock = EXCLUDED.stock,
			updated_at = NOW()
	`
	if err := s.db.Exec(ctx, query, v.ID, v.ProductID, v.SKU, v.Options, v.BasePriceCents, v.Currency, v.Stock); err != nil {
		return fmt.Errorf("upsert variant: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertStoreProduct(ctx context.Context, sp models.StoreProduct) error {
	query := `
		INSERT INTO store_products (store_id, product_id, position, hidden, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (store_id, product_id) DO UPDATE SET
			position = EXCLUDED.position,
			hidden = EXCLUDED.hidden,
			updated_at = NOW()
	`
	if err := s.db.Exec(ctx, query, sp.StoreID, sp.ProductID, sp.Position, sp.Hidden); err != nil {
		return fmt.Errorf("upsert store product: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccountByOwner(ctx context.Context, ownerID string) (*models.ConnectedAccount, error) {
	return s.getAccount(ctx, "owner_id", ownerID)
}

func (s *PostgresStore) GetAccountByStripeID(ctx context.Context, stripeAccountID string) (*models.ConnectedAccount, error) {
	return s.getAccount(ctx, "stripe_account_id", stripeAccountID)
}

func (s *PostgresStore) getAccount(ctx context.Context, column, value string) (*models.ConnectedAccount, error) {
	query := fmt.Sprintf(`
		SELECT owner_id, stripe_account_id, charges_enabled, payouts_enabled,
			   details_submitted, last_event_at, last_event_type, created_at, updated_at
		FROM connected_accounts
		WHERE %s = $1
	`, column)
	var a models.ConnectedAccount
	found, err := s.scanOne(ctx, query,
		[]any{&a.OwnerID, &a.StripeAccountID, &a.ChargesEnabled, &a.PayoutsEnabled,
			&a.DetailsSubmitted, &a.LastEventAt, &a.LastEventType, &a.CreatedAt, &a.UpdatedAt},
		value)
	if err != nil {
		return nil, fmt.Errorf("scan connected account: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &a, nil
}

func (s *PostgresStore) UpsertAccount(ctx context.Context, a models.ConnectedAccount) error {
	query := `
		INSERT INTO connected_accounts (
			owner_id, stripe_account_id, charges_enabled, payouts_enabled,
			details_submitted, last_event_at, last_event_type, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (owner_id) DO UPDATE SET
			stripe_account_id = EXCLUDED.stripe_account_id,
			charges_enabled = EXCLUDED.charges_enabled,
			payouts_enabled = EXCLUDED.payouts_enabled,
			details_submitted = EXCLUDED.details_submitted,
			last_event_at = EXCLUDED.last_event_at,
			last_event_type = EXCLUDED.last_event_type,
			updated_at = NOW()
	`
	err := s.db.Exec(ctx, query,
		a.OwnerID, a.StripeAccountID, a.ChargesEnabled, a.PayoutsEnabled,
		a.DetailsSubmitted, a.LastEventAt, a.LastEventType,
	)
	if err != nil {
		return fmt.Errorf("upsert connected account: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePendingOrder(ctx context.Context, po models.PendingOrder) error {
	query := `
		INSERT INTO pending_orders (
			id, store_id, product_id, variant_id, stripe_account_id,
			session_id, quantity, amount_cents, currency, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	err := s.db.Exec(ctx, query,
		po.ID, po.StoreID, po.ProductID, po.VariantID, po.StripeAccountID,
		po.SessionID, po.Quantity, po.AmountCents, po.Currency, po.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("insert pending order: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPendingOrderBySession(ctx context.Context, sessionID string) (*models.PendingOrder, error) {
	query := `
		SELECT id, store_id, product_id, variant_id, stripe_account_id,
			   session_id, quantity, amount_cents, currency, created_at
		FROM pending_orders
		WHERE session_id = $1
	`
	var po models.PendingOrder
	found, err := s.scanOne(ctx, query,
		[]any{&po.ID, &po.StoreID, &po.ProductID, &po.VariantID, &po.StripeAccountID,
			&po.SessionID, &po.Quantity, &po.AmountCents, &po.Currency, &po.CreatedAt},
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("scan pending order: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &po, nil
}

func (s *PostgresStore) ReapPendingOrders(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	query := `
		DELETE FROM pending_orders
		WHERE id IN (
			SELECT id FROM pending_orders
			WHERE created_at < $1
			ORDER BY created_at
			LIMIT $2
		)
		RETURNING id
	`
	rowsInterface, err := s.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("reap pending orders: %w", err)
	}
	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return 0, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	reaped := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return reaped, fmt.Errorf("scan reaped id: %w", err)
		}
		reaped++
	}
	return reaped, nil
}

func (s *PostgresStore) GetOrderBySession(ctx context.Context, sessionID string) (*models.Order, error) {
	query := `
		SELECT id, store_id, product_id, variant_id, stripe_account_id,
			   session_id, payment_intent_id, quantity, amount_cents, currency,
			   customer_email, status, notes, created_at, updated_at
		FROM orders
		WHERE session_id = $1
	`
	var o models.Order
	found, err := s.scanOne(ctx, query,
		[]any{&o.ID, &o.StoreID, &o.ProductID, &o.VariantID, &o.StripeAccountID,
			&o.SessionID, &o.PaymentIntentID, &o.Quantity, &o.AmountCents, &o.Currency,
			&o.CustomerEmail, &o.Status, &o.Notes, &o.CreatedAt, &o.UpdatedAt},
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &o, nil
}

// PromoteOrder inserts the permanent order and removes the pending order
// in a single transaction. The unique constraint on orders.session_id is
// the final authority against duplicate webhook delivery.
func (s *PostgresStore) PromoteOrder(ctx context.Context, o models.Order) error {
	insertOrder := `
		INSERT INTO orders (
			id, store_id, product_id, variant_id, stripe_account_id,
			session_id, payment_intent_id, quantity, amount_cents, currency,
			customer_email, status, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	`
	deletePending := `DELETE FROM pending_orders WHERE session_id = $1`

	err := s.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertOrder,
			o.ID, o.StoreID, o.ProductID, o.VariantID, o.StripeAccountID,
			o.SessionID, o.PaymentIntentID, o.Quantity, o.AmountCents, o.Currency,
			o.CustomerEmail, o.Status, o.Notes,
		); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, deletePending, o.SessionID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("promote order %s: %w", o.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) MarkOrderFailed(ctx context.Context, sessionID string) (bool, error) {
	query := `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE session_id = $2
		RETURNING id
	`
	var id string
	found, err := s.scanOne(ctx, query, []any{&id}, models.OrderStatusFailed, sessionID)
	if err != nil {
		return false, fmt.Errorf("mark order failed: %w", err)
	}
	return found, nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, k models.APIKey) error {
	query := `
		INSERT INTO api_keys (id, owner_id, label, key_prefix, key_hash, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	err := s.db.Exec(ctx, query, k.ID, k.OwnerID, k.Label, k.KeyPrefix, k.KeyHash, k.Status, k.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*models.APIKey, error) {
	query := `
		SELECT id, owner_id, label, key_prefix, key_hash, status, created_at
		FROM api_keys
		WHERE key_prefix = $1
	`
	var k models.APIKey
	found, err := s.scanOne(ctx, query,
		[]any{&k.ID, &k.OwnerID, &k.Label, &k.KeyPrefix, &k.KeyHash, &k.Status, &k.CreatedAt}, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &k, nil
}

func (s *PostgresStore) ListAPIKeysByOwner(ctx context.Context, ownerID string) ([]models.APIKey, error) {
	query := `
		SELECT id, owner_id, label, key_prefix, key_hash, status, created_at
		FROM api_keys
		WHERE owner_id = $1
		ORDER BY created_at
	`
	rowsInterface, err := s.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	var keys []models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.OwnerID, &k.Label, &k.KeyPrefix, &k.KeyHash, &k.Status, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, prefix string) (bool, error) {
	query := `
		UPDATE api_keys SET status = $1
		WHERE key_prefix = $2
		RETURNING id
	`
	var id string
	found, err := s.scanOne(ctx, query, []any{&id}, models.APIKeyStatusRevoked, prefix)
	if err != nil {
		return false, fmt.Errorf("revoke api key: %w", err)
	}
	return found, nil
}

// Health checks the database connection
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
