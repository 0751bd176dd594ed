package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v76"

	"github.com/merchkit/merchkit/config"
	apperrors "github.com/merchkit/merchkit/internal/errors"
	"github.com/merchkit/merchkit/internal/logger"
	"github.com/merchkit/merchkit/internal/models"
	"github.com/merchkit/merchkit/internal/pricing"
	"github.com/merchkit/merchkit/internal/store"
	"github.com/merchkit/merchkit/pkg/utils"
)

// CheckoutRequest describes a single-line-item purchase intent.
type CheckoutRequest struct {
	StoreID   string `json:"store_id"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int64  `json:"quantity"`
	// RequestID, when supplied by the client, pins the idempotency key so
	// retries of the same intent reuse the same external session.
	RequestID string `json:"request_id,omitempty"`
}

// IntentCreator turns a purchase request into an external checkout session
// plus a staged pending order.
type IntentCreator struct {
	resolver *pricing.Resolver
	accounts *AccountResolver
	catalog  store.CatalogStore
	orders   store.OrderStore
	gateway  Gateway
	cfg      config.StripeConfig
	clock    pricing.Clock
}

func NewIntentCreator(resolver *pricing.Resolver, accounts *AccountResolver, catalog store.CatalogStore, orders store.OrderStore, gateway Gateway, cfg config.StripeConfig, clock pricing.Clock) *IntentCreator {
	if clock == nil {
		clock = pricing.SystemClock{}
	}
	return &IntentCreator{
		resolver: resolver,
		accounts: accounts,
		catalog:  catalog,
		orders:   orders,
		gateway:  gateway,
		cfg:      cfg,
		clock:    clock,
	}
}

// IdempotencyKey derives a stable request-level key for external session
// creation. A client request id wins; otherwise the key is a digest of the
// intent itself, so rapid retries of the same intent collapse into one
// external session instead of diverging on a clock tick.
func IdempotencyKey(req CheckoutRequest) string {
	if req.RequestID != "" {
		return utils.HashString("checkout:" + req.RequestID)
	}
	fields := strings.Join([]string{req.StoreID, req.ProductID, req.VariantID, strconv.FormatInt(req.Quantity, 10)}, "|")
	return utils.HashString("checkout:" + fields)
}

// CreateIntent resolves price and account, creates the external session
// scoped to the merchant's connected account, and stages a pending order
// keyed by the session id before handing back the redirect URL.
func (c *IntentCreator) CreateIntent(ctx context.Context, req CheckoutRequest) (string, error) {
	if req.Quantity < 1 {
		return "", apperrors.ValidationError{Field: "quantity", Message: "must be at least 1"}
	}

	quote, err := c.resolver.Resolve(ctx, req.StoreID, req.ProductID, req.VariantID)
	if err != nil {
		return "", err
	}

	acct, err := c.accounts.ResolveForStore(ctx, req.StoreID)
	if err != nil {
		return "", err
	}

	product, err := c.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return "", fmt.Errorf("load product: %w", err)
	}
	if product == nil {
		return "", apperrors.NotPurchasable(apperrors.ReasonProductUnavailable, "product is not available")
	}

	totalCents := quote.PriceCents * req.Quantity

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(c.cfg.CheckoutSuccessURL),
		CancelURL:  stripe.String(c.cfg.CheckoutCancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(quote.Currency),
					UnitAmount: stripe.Int64(quote.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(product.Title),
					},
				},
				Quantity: stripe.Int64(req.Quantity),
			},
		},
	}
	// The webhook reads these back to find the staged pending order's
	// catalog context.
	params.Metadata = map[string]string{
		"store_id":   req.StoreID,
		"product_id": req.ProductID,
		"variant_id": quote.VariantID,
	}
	params.SetStripeAccount(acct.StripeAccountID)
	params.SetIdempotencyKey(IdempotencyKey(req))

	sess, err := c.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	pending := models.PendingOrder{
		ID:              uuid.NewString(),
		StoreID:         req.StoreID,
		ProductID:       req.ProductID,
		VariantID:       quote.VariantID,
		StripeAccountID: acct.StripeAccountID,
		SessionID:       sess.ID,
		Quantity:        req.Quantity,
		AmountCents:     totalCents,
		Currency:        quote.Currency,
		CreatedAt:       c.clock.Now(),
	}
	if err := c.orders.CreatePendingOrder(ctx, pending); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// An idempotent retry already staged this session; the
			// existing pending order is the one that counts.
			logger.WithContext(ctx).Info("Pending order already staged",
				"session_id", sess.ID,
			)
			return sess.URL, nil
		}
		return "", fmt.Errorf("stage pending order: %w", err)
	}

	logger.WithContext(ctx).Info("Checkout intent created",
		"store_id", req.StoreID,
		"product_id", req.ProductID,
		"session_id", sess.ID,
		"amount_cents", totalCents,
	)
	return sess.URL, nil
}

