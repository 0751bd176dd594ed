package store

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/merchkit/merchkit/internal/errors"
	"github.com/merchkit/merchkit/internal/models"
)

func TestInMemoryStore_CatalogLookups(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.UpsertStore(ctx, models.Store{ID: "store-1", OwnerID: "merchant-1", Slug: "acme", Status: models.StoreStatusLive}); err != nil {
		t.Fatalf("Failed to upsert store: %v", err)
	}
	if err := s.UpsertProduct(ctx, models.Product{ID: "prod-1", OwnerID: "merchant-1", Title: "Mug"}); err != nil {
		t.Fatalf("Failed to upsert product: %v", err)
	}
	if err := s.UpsertVariant(ctx, models.Variant{ID: "var-1", ProductID: "prod-1", BasePriceCents: 1200, Currency: "usd"}); err != nil {
		t.Fatalf("Failed to upsert variant: %v", err)
	}
	if err := s.UpsertVariant(ctx, models.Variant{ID: "var-2", ProductID: "prod-1", BasePriceCents: 1500, Currency: "usd"}); err != nil {
		t.Fatalf("Failed to upsert variant: %v", err)
	}

	st, err := s.GetStoreBySlug(ctx, "acme")
	if err != nil || st == nil {
		t.Fatalf("Expected store by slug, got %v, %v", st, err)
	}
	if st.ID != "store-1" {
		t.Errorf("Expected store-1, got %s", st.ID)
	}

	missing, err := s.GetStore(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil,nil for missing store, got %v, %v", missing, err)
	}

	// Default variant picks the lowest id for stability
	v, err := s.GetDefaultVariant(ctx, "prod-1")
	if err != nil || v == nil {
		t.Fatalf("Expected default variant, got %v, %v", v, err)
	}
	if v.ID != "var-1" {
		t.Errorf("Expected var-1 as default, got %s", v.ID)
	}
}

func TestInMemoryStore_ListStoreProductsOrdersByPosition(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for _, sp := range []models.StoreProduct{
		{StoreID: "store-1", ProductID: "prod-b", Position: 2},
		{StoreID: "store-1", ProductID: "prod-a", Position: 1},
		{StoreID: "store-2", ProductID: "prod-c", Position: 0},
	} {
		if err := s.UpsertStoreProduct(ctx, sp); err != nil {
			t.Fatalf("Failed to upsert store product: %v", err)
		}
	}

	list, err := s.ListStoreProducts(ctx, "store-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 attachments, got %d", len(list))
	}
	if list[0].ProductID != "prod-a" || list[1].ProductID != "prod-b" {
		t.Errorf("Expected position order prod-a, prod-b, got %s, %s", list[0].ProductID, list[1].ProductID)
	}
}

func TestInMemoryStore_UpsertStorePriceValidates(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	lowCompare := int64(100)
	err := s.UpsertStorePrice(ctx, models.StorePrice{
		StoreID: "store-1", ProductID: "prod-1", VariantID: "var-1",
		PriceCents: 500, CompareAtCents: &lowCompare, Visibility: models.VisibilityVisible,
	})
	if err == nil {
		t.Fatal("Expected validation error for compare-at below price")
	}

	err = s.UpsertStorePrice(ctx, models.StorePrice{
		StoreID: "store-1", ProductID: "prod-1", VariantID: "var-1",
		PriceCents: 500, Visibility: models.VisibilityVisible, Currency: "usd",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	sp, err := s.GetStorePrice(ctx, "store-1", "prod-1", "var-1")
	if err != nil || sp == nil {
		t.Fatalf("Expected stored price, got %v, %v", sp, err)
	}
	if sp.PriceCents != 500 {
		t.Errorf("Expected 500 cents, got %d", sp.PriceCents)
	}
}

func TestInMemoryStore_PendingOrderLifecycle(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	po := models.PendingOrder{
		ID: "po-1", StoreID: "store-1", ProductID: "prod-1", VariantID: "var-1",
		StripeAccountID: "acct_1", SessionID: "cs_123",
		Quantity: 1, AmountCents: 1999, Currency: "usd",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreatePendingOrder(ctx, po); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Duplicate session id is a conflict
	if err := s.CreatePendingOrder(ctx, po); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("Expected ErrConflict on duplicate session, got %v", err)
	}

	got, err := s.GetPendingOrderBySession(ctx, "cs_123")
	if err != nil || got == nil {
		t.Fatalf("Expected pending order, got %v, %v", got, err)
	}

	order := models.Order{
		ID: "order-1", StoreID: po.StoreID, ProductID: po.ProductID, VariantID: po.VariantID,
		StripeAccountID: po.StripeAccountID, SessionID: po.SessionID,
		Quantity: po.Quantity, AmountCents: po.AmountCents, Currency: po.Currency,
		Status: models.OrderStatusPaid,
	}
	if err := s.PromoteOrder(ctx, order); err != nil {
		t.Fatalf("Expected promote to succeed, got %v", err)
	}

	// Pending order consumed
	gone, err := s.GetPendingOrderBySession(ctx, "cs_123")
	if err != nil || gone != nil {
		t.Errorf("Expected pending order to be deleted, got %v, %v", gone, err)
	}

	// Second promote is a conflict, not a second order
	if err := s.PromoteOrder(ctx, order); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("Expected ErrConflict on duplicate promote, got %v", err)
	}

	stored, err := s.GetOrderBySession(ctx, "cs_123")
	if err != nil || stored == nil {
		t.Fatalf("Expected order, got %v, %v", stored, err)
	}
	if stored.Status != models.OrderStatusPaid {
		t.Errorf("Expected paid status, got %s", stored.Status)
	}
}

func TestInMemoryStore_MarkOrderFailed(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	found, err := s.MarkOrderFailed(ctx, "cs_missing")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if found {
		t.Error("Expected no order found for unknown session")
	}

	order := models.Order{ID: "order-1", SessionID: "cs_1", Status: models.OrderStatusPaid}
	if err := s.PromoteOrder(ctx, order); err != nil {
		t.Fatalf("Expected promote to succeed, got %v", err)
	}

	found, err = s.MarkOrderFailed(ctx, "cs_1")
	if err != nil || !found {
		t.Fatalf("Expected order marked failed, got found=%v err=%v", found, err)
	}

	got, _ := s.GetOrderBySession(ctx, "cs_1")
	if got.Status != models.OrderStatusFailed {
		t.Errorf("Expected failed status, got %s", got.Status)
	}
}

func TestInMemoryStore_ReapPendingOrders(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for i, age := range []time.Duration{48 * time.Hour, 36 * time.Hour, time.Hour} {
		po := models.PendingOrder{
			ID:        "po-" + string(rune('a'+i)),
			SessionID: "cs_" + string(rune('a'+i)),
			CreatedAt: now.Add(-age),
		}
		if err := s.CreatePendingOrder(ctx, po); err != nil {
			t.Fatalf("Failed to create pending order: %v", err)
		}
	}

	reaped, err := s.ReapPendingOrders(ctx, now.Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if reaped != 2 {
		t.Errorf("Expected 2 reaped, got %d", reaped)
	}

	// Recent pending order survives
	got, _ := s.GetPendingOrderBySession(ctx, "cs_c")
	if got == nil {
		t.Error("Expected recent pending order to survive the sweep")
	}
}

func TestInMemoryStore_Accounts(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	a := models.ConnectedAccount{
		OwnerID:         "merchant-1",
		StripeAccountID: "acct_1",
		ChargesEnabled:  true,
		LastEventType:   "account.updated",
		LastEventAt:     time.Now().UTC(),
	}
	if err := s.UpsertAccount(ctx, a); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	byOwner, err := s.GetAccountByOwner(ctx, "merchant-1")
	if err != nil || byOwner == nil {
		t.Fatalf("Expected account by owner, got %v, %v", byOwner, err)
	}

	byStripe, err := s.GetAccountByStripeID(ctx, "acct_1")
	if err != nil || byStripe == nil {
		t.Fatalf("Expected account by stripe id, got %v, %v", byStripe, err)
	}

	// Re-applying the same snapshot is a no-op upsert
	a.ChargesEnabled = false
	if err := s.UpsertAccount(ctx, a); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	updated, _ := s.GetAccountByOwner(ctx, "merchant-1")
	if updated.ChargesEnabled {
		t.Error("Expected charges flag to be updated")
	}
}
