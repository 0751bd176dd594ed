//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/merchkit/merchkit/config"
	"github.com/merchkit/merchkit/internal/database"
	apperrors "github.com/merchkit/merchkit/internal/errors"
	"github.com/merchkit/merchkit/internal/models"
	"github.com/merchkit/merchkit/internal/sku"
	"github.com/merchkit/merchkit/internal/store"
)

// applyMigrations reads scripts/init.sql and executes it against the provided pool
func applyMigrations(ctx context.Context, pool *pgxpool.Pool, t *testing.T) {
	t.Helper()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	// tests run from the package dir; locate repo root by walking up to find go.mod
	root := cwd
	for i := 0; i < 5; i++ {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			break
		}
		root = filepath.Dir(root)
	}
	path := filepath.Join(root, "scripts", "init.sql")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read init.sql: %v", err)
	}
	if _, err := pool.Exec(ctx, string(b)); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
}

func TestPostgresStore_WithContainer(t *testing.T) {
	if !containersAvailable() {
		t.Skip("container runtime not available; skipping container-based integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image: "postgres:15-alpine",
		Env: map[string]string{
			"POSTGRES_DB":       "merchkit",
			"POSTGRES_USER":     "merchkit",
			"POSTGRES_PASSWORD": "password",
		},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start container: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	host, err := pg.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}

	dsn := "postgres://merchkit:password@" + host + ":" + port.Port() + "/merchkit?sslmode=disable"

	cfg := config.DatabaseConfig{
		URL:             dsn,
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}

	db, err := database.New(ctx, cfg)
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	defer db.Close(ctx)

	if err := db.Health(ctx); err != nil {
		t.Fatalf("db health: %v", err)
	}

	applyMigrations(ctx, dbpoolFromDB(db), t)

	st := store.New(db)

	t.Run("catalog round trip", func(t *testing.T) {
		if err := st.UpsertStore(ctx, models.Store{ID: "store-1", OwnerID: "owner-1", Slug: "tour-merch", Name: "Tour Merch", Status: models.StoreStatusLive}); err != nil {
			t.Fatalf("UpsertStore: %v", err)
		}
		if err := st.UpsertProduct(ctx, models.Product{ID: "prod-1", OwnerID: "owner-1", Title: "Tour Tee"}); err != nil {
			t.Fatalf("UpsertProduct: %v", err)
		}
		v := models.Variant{
			ID: "var-1", ProductID: "prod-1", SKU: "TEE-M",
			Options:        sku.NewOptions(map[string]string{"size": "M", "color": "black"}),
			BasePriceCents: 500, Currency: "usd",
		}
		if err := st.UpsertVariant(ctx, v); err != nil {
			t.Fatalf("UpsertVariant: %v", err)
		}

		got, err := st.GetVariant(ctx, "var-1")
		if err != nil || got == nil {
			t.Fatalf("GetVariant: %v %+v", err, got)
		}
		if !got.Options.Equal(v.Options) {
			t.Errorf("options lost in round trip: %s != %s", got.Options.Canonical(), v.Options.Canonical())
		}

		bySlug, err := st.GetStoreBySlug(ctx, "tour-merch")
		if err != nil || bySlug == nil || bySlug.ID != "store-1" {
			t.Fatalf("GetStoreBySlug: %v %+v", err, bySlug)
		}
	})

	t.Run("store price override", func(t *testing.T) {
		compareAt := int64(900)
		pr := models.StorePrice{
			StoreID: "store-1", ProductID: "prod-1", VariantID: "var-1",
			PriceCents: 700, CompareAtCents: &compareAt, Currency: "usd",
			Visibility: models.VisibilityVisible,
		}
		if err := st.UpsertStorePrice(ctx, pr); err != nil {
			t.Fatalf("UpsertStorePrice: %v", err)
		}
		got, err := st.GetStorePrice(ctx, "store-1", "prod-1", "var-1")
		if err != nil || got == nil {
			t.Fatalf("GetStorePrice: %v %+v", err, got)
		}
		if got.PriceCents != 700 || got.CompareAtCents == nil || *got.CompareAtCents != 900 {
			t.Errorf("got %d / %v", got.PriceCents, got.CompareAtCents)
		}

		// Second write replaces, not duplicates.
		pr.PriceCents = 800
		pr.CompareAtCents = nil
		if err := st.UpsertStorePrice(ctx, pr); err != nil {
			t.Fatalf("second UpsertStorePrice: %v", err)
		}
		got, _ = st.GetStorePrice(ctx, "store-1", "prod-1", "var-1")
		if got.PriceCents != 800 || got.CompareAtCents != nil {
			t.Errorf("override not replaced: %+v", got)
		}
	})

	t.Run("pending order lifecycle", func(t *testing.T) {
		po := models.PendingOrder{
			ID: "po-1", StoreID: "store-1", ProductID: "prod-1", VariantID: "var-1",
			StripeAccountID: "acct_1", SessionID: "cs_int_1", Quantity: 2,
			AmountCents: 1400, Currency: "usd", CreatedAt: time.Now().UTC(),
		}
		if err := st.CreatePendingOrder(ctx, po); err != nil {
			t.Fatalf("CreatePendingOrder: %v", err)
		}
		// The session_id unique constraint holds.
		po.ID = "po-2"
		if err := st.CreatePendingOrder(ctx, po); err != apperrors.ErrConflict {
			t.Fatalf("duplicate session: got %v, want ErrConflict", err)
		}

		order := models.Order{
			ID: "po-1", StoreID: "store-1", ProductID: "prod-1", VariantID: "var-1",
			StripeAccountID: "acct_1", SessionID: "cs_int_1", PaymentIntentID: "pi_1",
			Quantity: 2, AmountCents: 1400, Currency: "usd", Status: models.OrderStatusPaid,
		}
		if err := st.PromoteOrder(ctx, order); err != nil {
			t.Fatalf("PromoteOrder: %v", err)
		}
		// Promotion consumed the pending row.
		if left, err := st.GetPendingOrderBySession(ctx, "cs_int_1"); err != nil || left != nil {
			t.Fatalf("pending order survived promotion: %v %+v", err, left)
		}
		// Second promotion is a conflict for the dedup path.
		if err := st.PromoteOrder(ctx, order); err != apperrors.ErrConflict {
			t.Fatalf("duplicate promote: got %v, want ErrConflict", err)
		}

		ok, err := st.MarkOrderFailed(ctx, "cs_int_1")
		if err != nil || !ok {
			t.Fatalf("MarkOrderFailed: %v %v", ok, err)
		}
		got, _ := st.GetOrderBySession(ctx, "cs_int_1")
		if got.Status != models.OrderStatusFailed {
			t.Errorf("status = %s, want failed", got.Status)
		}
	})

	t.Run("pending order reaper", func(t *testing.T) {
		old := models.PendingOrder{
			ID: "po-old", StoreID: "store-1", ProductID: "prod-1", VariantID: "var-1",
			StripeAccountID: "acct_1", SessionID: "cs_int_old", Quantity: 1,
			AmountCents: 500, Currency: "usd", CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
		}
		if err := st.CreatePendingOrder(ctx, old); err != nil {
			t.Fatalf("CreatePendingOrder: %v", err)
		}
		n, err := st.ReapPendingOrders(ctx, time.Now().UTC().Add(-24*time.Hour), 100)
		if err != nil {
			t.Fatalf("ReapPendingOrders: %v", err)
		}
		if n != 1 {
			t.Errorf("reaped %d, want 1", n)
		}
	})

	t.Run("api keys", func(t *testing.T) {
		k := models.APIKey{
			ID: "key-1", OwnerID: "owner-1", Label: "integration",
			KeyPrefix: "abc123def456", KeyHash: []byte("$2a$10$hash"),
			Status: models.APIKeyStatusActive, CreatedAt: time.Now().UTC(),
		}
		if err := st.CreateAPIKey(ctx, k); err != nil {
			t.Fatalf("CreateAPIKey: %v", err)
		}
		got, err := st.GetAPIKeyByPrefix(ctx, "abc123def456")
		if err != nil || got == nil || got.OwnerID != "owner-1" {
			t.Fatalf("GetAPIKeyByPrefix: %v %+v", err, got)
		}
		ok, err := st.RevokeAPIKey(ctx, "abc123def456")
		if err != nil || !ok {
			t.Fatalf("RevokeAPIKey: %v %v", ok, err)
		}
		got, _ = st.GetAPIKeyByPrefix(ctx, "abc123def456")
		if got.Active() {
			t.Error("key still active after revoke")
		}
	})
}

// dbpoolFromDB is a small helper to access the underlying pool for migrations in tests only
func dbpoolFromDB(d *database.DB) *pgxpool.Pool {
	return dpoolAccessor(d)
}
