package payments

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/merchkit/merchkit/internal/models"
	"github.com/merchkit/merchkit/internal/ratelimit"
	"github.com/merchkit/merchkit/internal/store"
)

func newReconciler(s *store.InMemoryStore, gw *fakeGateway) *WebhookReconciler {
	accounts := NewAccountResolver(s, s, gw)
	return NewWebhookReconciler(s, accounts, nil, 0, "whsec_test")
}

func stagePending(t *testing.T, s *store.InMemoryStore, sessionID string) models.PendingOrder {
	t.Helper()
	pending := models.PendingOrder{
		ID:              "po-1",
		StoreID:         "store-1",
		ProductID:       "prod-1",
		VariantID:       "var-1",
		StripeAccountID: "acct_1",
		SessionID:       sessionID,
		Quantity:        3,
		AmountCents:     1500,
		Currency:        "usd",
		CreatedAt:       testTime,
	}
	if err := s.CreatePendingOrder(context.Background(), pending); err != nil {
		t.Fatalf("stage pending order: %v", err)
	}
	return pending
}

func sessionEvent(t *testing.T, eventType, sessionID string, withMetadata bool) stripe.Event {
	t.Helper()
	sess := map[string]any{
		"id":           sessionID,
		"amount_total": 1500,
		"currency":     "usd",
		"payment_intent": "pi_1",
		"customer_details": map[string]any{
			"email": "buyer@example.com",
		},
	}
	if withMetadata {
		sess["metadata"] = map[string]string{
			"store_id":   "store-1",
			"product_id": "prod-1",
			"variant_id": "var-1",
		}
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return stripe.Event{
		ID:      "evt_" + sessionID,
		Type:    stripe.EventType(eventType),
		Created: testTime.Unix(),
		Data:    &stripe.EventData{Raw: raw},
	}
}

func TestProcess_CompletedPromotesOrder(t *testing.T) {
	ctx := context.Background()
	s := seedCommerce(t)
	stagePending(t, s, "cs_test_1")
	r := newReconciler(s, &fakeGateway{})

	event := sessionEvent(t, "checkout.session.completed", "cs_test_1", true)
	if err := r.Process(ctx, event); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	order, err := s.GetOrderBySession(ctx, "cs_test_1")
	if err != nil || order == nil {
		t.Fatalf("Expected promoted order, got %v (err %v)", order, err)
	}
	if order.Status != models.OrderStatusPaid {
		t.Errorf("Expected status paid, got %s", order.Status)
	}
	if order.AmountCents != 1500 || order.Quantity != 3 {
		t.Errorf("Expected amount 1500 for quantity 3, got %+v", order)
	}
	if order.CustomerEmail != "buyer@example.com" || order.PaymentIntentID != "pi_1" {
		t.Errorf("Expected event fields carried onto the order, got %+v", order)
	}

	pending, _ := s.GetPendingOrderBySession(ctx, "cs_test_1")
	if pending != nil {
		t.Error("Pending order should be deleted after promotion")
	}
}

func TestProcess_DuplicateCompletedIsNoOp(t *testing.T) {
	ctx := context.Background()
	s := seedCommerce(t)
	stagePending(t, s, "cs_test_1")
	r := newReconciler(s, &fakeGateway{})

	event := sessionEvent(t, "checkout.session.completed", "cs_test_1", true)
	for i := 0; i < 3; i++ {
		if err := r.Process(ctx, event); err != nil {
			t.Fatalf("Delivery %d failed: %v", i, err)
		}
	}
	order, _ := s.GetOrderBySession(ctx, "cs_test_1")
	if order == nil || order.ID != "po-1" {
		t.Errorf("Expected exactly the first promoted order to survive, got %+v", order)
	}
}

func TestProcess_CompletedBeforePendingIsTerminal(t *testing.T) {
	ctx := context.Background()
	s := seedCommerce(t)
	r := newReconciler(s, &fakeGateway{})

	// Completion can race the pending-order write; no pending row is a
	// terminal log-and-stop, never an error or a crash.
	event := sessionEvent(t, "checkout.session.completed", "cs_orphan", true)
	if err := r.Process(ctx, event); err != nil {
		t.Fatalf("Orphan completion should be swallowed, got %v", err)
	}
	order, _ := s.GetOrderBySession(ctx, "cs_orphan")
	if order != nil {
		t.Error("No order should be created without a pending row")
	}
}

func TestProcess_CompletedWithoutMetadataIsTerminal(t *testing.T) {
	ctx := context.Background()
	s := seedCommerce(t)
	stagePending(t, s, "cs_test_1")
	r := newReconciler(s, &fakeGateway{})

	event := sessionEvent(t, "checkout.session.completed", "cs_test_1", false)
	if err := r.Process(ctx, event); err != nil {
		t.Fatalf("Metadata-less event should be swallowed, got %v", err)
	}
	if order, _ := s.GetOrderBySession(ctx, "cs_test_1"); order != nil {
		t.Error("Metadata-less event should not promote an order")
	}
}

func TestProcess_PaymentFailedMarksOrder(t *testing.T) {
	ctx := context.Background()
	s := seedCommerce(t)
	stagePending(t, s, "cs_test_1")
	r := newReconciler(s, &fakeGateway{})

	if err := r.Process(ctx, sessionEvent(t, "checkout.session.completed", "cs_test_1", true)); err != nil {
		t.Fatalf("Completion failed: %v", err)
	}
	if err := r.Process(ctx, sessionEvent(t, "checkout.session.async_payment_failed", "cs_test_1", true)); err != nil {
		t.Fatalf("Failure event failed: %v", err)
	}

	order, _ := s.GetOrderBySession(ctx, "cs_test_1")
	if order == nil || order.Status != models.OrderStatusFailed {
		t.Errorf("Expected order marked failed, got %+v", order)
	}
}

func TestProcess_PaymentFailedUnknownSessionIsNoOp(t *testing.T) {
	s := seedCommerce(t)
	r := newReconciler(s, &fakeGateway{})

	event := sessionEvent(t, "checkout.session.async_payment_failed", "cs_unknown", true)
	if err := r.Process(context.Background(), event); err != nil {
		t.Errorf("Failure for unknown session should be a no-op, got %v", err)
	}
}

func TestProcess_UnknownEventTypeIgnored(t *testing.T) {
	s := seedCommerce(t)
	r := newReconciler(s, &fakeGateway{})

	event := stripe.Event{ID: "evt_x", Type: "invoice.finalized", Data: &stripe.EventData{Raw: json.RawMessage(`{}`)}}
	if err := r.Process(context.Background(), event); err != nil {
		t.Errorf("Unknown event type should be accepted and ignored, got %v", err)
	}
}

func TestProcess_AccountUpdatedRefreshesFlags(t *testing.T) {
	ctx := context.Background()
	s := seedCommerce(t)
	gw := &fakeGateway{account: &stripe.Account{ID: "acct_1", ChargesEnabled: true, PayoutsEnabled: true, DetailsSubmitted: true}}
	r := newReconciler(s, gw)

	raw, _ := json.Marshal(map[string]any{"id": "acct_1", "charges_enabled": false})
	event := stripe.Event{
		ID:      "evt_acct",
		Type:    "account.updated",
		Account: "acct_1",
		Created: testTime.Unix(),
		Data:    &stripe.EventData{Raw: raw},
	}
	if err := r.Process(ctx, event); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if gw.accountCalls != 1 {
		t.Errorf("Expected one live account fetch, got %d", gw.accountCalls)
	}
	acct, _ := s.GetAccountByStripeID(ctx, "acct_1")
	if acct == nil || !acct.ChargesEnabled {
		t.Error("Live flags should win over the event payload's flags")
	}
}

func TestProcess_EventCacheMarksAndSkips(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	events, err := ratelimit.NewManager("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer events.Close()

	s := seedCommerce(t)
	stagePending(t, s, "cs_test_1")
	accounts := NewAccountResolver(s, s, &fakeGateway{})
	r := NewWebhookReconciler(s, accounts, events, time.Hour, "whsec_test")

	event := sessionEvent(t, "checkout.session.completed", "cs_test_1", true)
	if err := r.Process(ctx, event); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !mr.Exists("wh:event:" + event.ID) {
		t.Error("Processed event should be marked in the cache")
	}
	// Redelivery short-circuits on the cache without touching the store.
	if err := r.Process(ctx, event); err != nil {
		t.Errorf("Cached redelivery should be a no-op, got %v", err)
	}
}

func TestVerifyEvent(t *testing.T) {
	s := seedCommerce(t)
	r := newReconciler(s, &fakeGateway{})

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, "whsec_test")
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))

	event, err := r.VerifyEvent(payload, header)
	if err != nil {
		t.Fatalf("VerifyEvent failed: %v", err)
	}
	if event.ID != "evt_1" {
		t.Errorf("Expected evt_1, got %s", event.ID)
	}

	bad := webhook.ComputeSignature(now, payload, "whsec_wrong")
	badHeader := fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(bad))
	if _, err := r.VerifyEvent(payload, badHeader); err == nil {
		t.Error("Wrong signing secret should be rejected")
	}
}
