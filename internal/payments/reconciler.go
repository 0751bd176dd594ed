package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	apperrors "github.com/merchkit/merchkit/internal/errors"
	"github.com/merchkit/merchkit/internal/logger"
	"github.com/merchkit/merchkit/internal/metrics"
	"github.com/merchkit/merchkit/internal/models"
	"github.com/merchkit/merchkit/internal/ratelimit"
	"github.com/merchkit/merchkit/internal/store"
)

// WebhookReconciler turns verified processor events into durable order
// state. Every branch is safe under at-least-once delivery: duplicates and
// unknown events resolve to a successful no-op, and only transient storage
// failures surface as errors so the event source retries.
type WebhookReconciler struct {
	orders   store.OrderStore
	accounts *AccountResolver

	// events is an optional fast-path duplicate cache. The unique session
	// id constraint on orders stays authoritative; the cache only saves
	// work on obvious redeliveries. May be nil.
	events   *ratelimit.Manager
	eventTTL time.Duration

	webhookSecret string
}

func NewWebhookReconciler(orders store.OrderStore, accounts *AccountResolver, events *ratelimit.Manager, eventTTL time.Duration, webhookSecret string) *WebhookReconciler {
	return &WebhookReconciler{
		orders:        orders,
		accounts:      accounts,
		events:        events,
		eventTTL:      eventTTL,
		webhookSecret: webhookSecret,
	}
}

// VerifyEvent checks the payload signature and parses the event. Failures
// here mean the payload cannot be trusted and must not be processed.
func (r *WebhookReconciler) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, r.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("verify webhook signature: %w", err)
	}
	return event, nil
}

// Process handles one verified event. A nil return means the event was
// durably handled (including ignored and duplicate outcomes) and the
// sender should stop retrying; an error means processing should be retried.
func (r *WebhookReconciler) Process(ctx context.Context, event stripe.Event) error {
	if r.events != nil {
		seen, err := r.events.MarkEventSeen(ctx, event.ID, r.eventTTL)
		if err != nil {
			// Cache trouble is not a reason to drop the event.
			logger.WithContext(ctx).Warn("Event cache unavailable", "error", err)
		} else if seen {
			logger.WithContext(ctx).Info("Duplicate event skipped", "event_id", event.ID, "event_type", event.Type)
			metrics.RecordWebhookEvent(string(event.Type), "duplicate")
			return nil
		}
	}

	var err error
	switch event.Type {
	case "account.updated":
		err = r.handleAccountUpdated(ctx, event)
	case "checkout.session.completed":
		err = r.handleCheckoutCompleted(ctx, event)
	case "checkout.session.async_payment_failed":
		err = r.handlePaymentFailed(ctx, event)
	default:
		logger.WithContext(ctx).Info("Ignoring event type", "event_type", event.Type)
		metrics.RecordWebhookEvent(string(event.Type), "ignored")
		return nil
	}

	if err != nil {
		// Clear the cache marker so the redelivery is not mistaken for a
		// duplicate of an attempt that never finished.
		if r.events != nil {
			if ferr := r.events.ForgetEvent(ctx, event.ID); ferr != nil {
				logger.WithContext(ctx).Warn("Failed to clear event marker", "event_id", event.ID, "error", ferr)
			}
		}
		metrics.RecordWebhookEvent(string(event.Type), "error")
		return err
	}
	metrics.RecordWebhookEvent(string(event.Type), "processed")
	return nil
}

func (r *WebhookReconciler) handleAccountUpdated(ctx context.Context, event stripe.Event) error {
	var acct stripe.Account
	if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
		logger.WithContext(ctx).Warn("Malformed account event", "event_id", event.ID, "error", err)
		return nil
	}
	accountID := acct.ID
	if event.Account != "" {
		accountID = event.Account
	}
	if accountID == "" {
		logger.WithContext(ctx).Warn("Account event without an account id", "event_id", event.ID)
		return nil
	}
	eventAt := time.Unix(event.Created, 0).UTC()
	return r.accounts.RefreshCapabilities(ctx, accountID, string(event.Type), eventAt)
}

func (r *WebhookReconciler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		logger.WithContext(ctx).Warn("Malformed checkout session event", "event_id", event.ID, "error", err)
		return nil
	}
	if sess.Metadata["store_id"] == "" || sess.Metadata["product_id"] == "" {
		// Not one of ours, or the metadata was stripped. Terminal either way.
		logger.WithContext(ctx).Warn("Checkout session without catalog metadata", "session_id", sess.ID)
		return nil
	}

	existing, err := r.orders.GetOrderBySession(ctx, sess.ID)
	if err != nil {
		return apperrors.ReconcileError{EventType: string(event.Type), SessionID: sess.ID, Err: err}
	}
	if existing != nil {
		logger.WithContext(ctx).Info("Order already reconciled", "session_id", sess.ID, "order_id", existing.ID)
		return nil
	}

	pending, err := r.orders.GetPendingOrderBySession(ctx, sess.ID)
	if err != nil {
		return apperrors.ReconcileError{EventType: string(event.Type), SessionID: sess.ID, Err: err}
	}
	if pending == nil {
		// Intent was never staged, or a concurrent delivery already
		// promoted and cleaned up. Both are terminal.
		logger.WithContext(ctx).Warn("No pending order for completed session", "session_id", sess.ID)
		return nil
	}

	order := models.Order{
		ID:              pending.ID,
		StoreID:         pending.StoreID,
		ProductID:       pending.ProductID,
		VariantID:       pending.VariantID,
		StripeAccountID: pending.StripeAccountID,
		SessionID:       sess.ID,
		Quantity:        pending.Quantity,
		AmountCents:     pending.AmountCents,
		Currency:        pending.Currency,
		Status:          models.OrderStatusPaid,
		CreatedAt:       time.Now().UTC(),
	}
	// The event is the source of truth for what was actually charged.
	if sess.AmountTotal > 0 {
		order.AmountCents = sess.AmountTotal
	}
	if sess.Currency != "" {
		order.Currency = string(sess.Currency)
	}
	if sess.PaymentIntent != nil {
		order.PaymentIntentID = sess.PaymentIntent.ID
	}
	if sess.CustomerDetails != nil {
		order.CustomerEmail = sess.CustomerDetails.Email
	}

	if err := r.orders.PromoteOrder(ctx, order); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// A concurrent delivery won the race; the order exists.
			logger.WithContext(ctx).Info("Order promoted by concurrent delivery", "session_id", sess.ID)
			return nil
		}
		return apperrors.ReconcileError{EventType: string(event.Type), SessionID: sess.ID, Err: err}
	}

	logger.WithContext(ctx).Info("Order reconciled",
		"session_id", sess.ID,
		"order_id", order.ID,
		"store_id", order.StoreID,
		"amount_cents", order.AmountCents,
	)
	return nil
}

func (r *WebhookReconciler) handlePaymentFailed(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		logger.WithContext(ctx).Warn("Malformed checkout session event", "event_id", event.ID, "error", err)
		return nil
	}
	ok, err := r.orders.MarkOrderFailed(ctx, sess.ID)
	if err != nil {
		return apperrors.ReconcileError{EventType: string(event.Type), SessionID: sess.ID, Err: err}
	}
	if !ok {
		logger.WithContext(ctx).Info("Payment failure for unknown session", "session_id", sess.ID)
		return nil
	}
	logger.WithContext(ctx).Info("Order marked failed", "session_id", sess.ID)
	return nil
}
