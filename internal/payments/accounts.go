package payments

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/merchkit/merchkit/internal/errors"
	"github.com/merchkit/merchkit/internal/logger"
	"github.com/merchkit/merchkit/internal/models"
	"github.com/merchkit/merchkit/internal/store"
)

// AccountResolver maps storefronts to merchant connected accounts and keeps
// the local capability flags in sync with the processor.
type AccountResolver struct {
	catalog  store.CatalogStore
	accounts store.AccountStore
	gateway  Gateway

	// refreshGroup collapses concurrent capability refreshes for the same
	// account into a single processor call.
	refreshGroup singleflight.Group
}

func NewAccountResolver(catalog store.CatalogStore, accounts store.AccountStore, gateway Gateway) *AccountResolver {
	return &AccountResolver{catalog: catalog, accounts: accounts, gateway: gateway}
}

// ResolveForStore returns the connected account that should receive a
// charge for the given store. It fails closed: no account, or an account
// with charges disabled, both block checkout. Capability flags flip
// asynchronously, so this is evaluated fresh on every call, never cached.
func (r *AccountResolver) ResolveForStore(ctx context.Context, storeID string) (*models.ConnectedAccount, error) {
	st, err := r.catalog.GetStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	if st == nil {
		return nil, apperrors.ErrNotFound
	}

	acct, err := r.accounts.GetAccountByOwner(ctx, st.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load connected account: %w", err)
	}
	if acct == nil {
		return nil, apperrors.NotPurchasable(apperrors.ReasonPayoutsNotConfigured, "merchant has not connected a payment account")
	}
	if !acct.ChargesEnabled {
		return nil, apperrors.NotPurchasable(apperrors.ReasonPayoutsNotConfigured, "merchant payment account cannot accept charges")
	}
	return acct, nil
}

// RefreshCapabilities re-fetches the live capability flags for a connected
// account and upserts them locally. The event payload's own flags are not
// trusted; the processor is asked for the current snapshot, which makes
// re-applying any event a no-op.
func (r *AccountResolver) RefreshCapabilities(ctx context.Context, stripeAccountID, eventType string, eventAt time.Time) error {
	_, err, _ := r.refreshGroup.Do(stripeAccountID, func() (interface{}, error) {
		return nil, r.refresh(ctx, stripeAccountID, eventType, eventAt)
	})
	return err
}

func (r *AccountResolver) refresh(ctx context.Context, stripeAccountID, eventType string, eventAt time.Time) error {
	local, err := r.accounts.GetAccountByStripeID(ctx, stripeAccountID)
	if err != nil {
		return fmt.Errorf("load connected account: %w", err)
	}
	if local == nil {
		// Account events for merchants we do not know are terminal: log
		// and accept so the event source stops retrying.
		logger.WithContext(ctx).Warn("Capability event for unknown account",
			"stripe_account_id", stripeAccountID,
			"event_type", eventType,
		)
		return nil
	}
	if eventAt.Before(local.LastEventAt) {
		// Stale out-of-order event; the stored snapshot is newer.
		return nil
	}

	live, err := r.gateway.GetAccount(ctx, stripeAccountID)
	if err != nil {
		return fmt.Errorf("fetch account %s: %w", stripeAccountID, err)
	}

	local.ChargesEnabled = live.ChargesEnabled
	local.PayoutsEnabled = live.PayoutsEnabled
	local.DetailsSubmitted = live.DetailsSubmitted
	local.LastEventAt = eventAt
	local.LastEventType = eventType

	if err := r.accounts.UpsertAccount(ctx, *local); err != nil {
		return fmt.Errorf("upsert connected account: %w", err)
	}

	logger.WithContext(ctx).Info("Connected account capabilities refreshed",
		"stripe_account_id", stripeAccountID,
		"charges_enabled", live.ChargesEnabled,
		"payouts_enabled", live.PayoutsEnabled,
	)
	return nil
}
