package payments

import (
	"context"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/account"
	"github.com/stripe/stripe-go/v76/checkout/session"

	"github.com/merchkit/merchkit/config"
)

// Gateway is the narrow slice of the payment processor this service uses.
// The split lets tests run against a fake instead of live Stripe.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetAccount(ctx context.Context, accountID string) (*stripe.Account, error)
}

// StripeGateway calls live Stripe.
type StripeGateway struct {
	cfg config.StripeConfig
}

func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	stripe.Key = cfg.SecretKey
	return &StripeGateway{cfg: cfg}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return session.New(params)
}

func (g *StripeGateway) GetAccount(ctx context.Context, accountID string) (*stripe.Account, error) {
	p := &stripe.AccountParams{}
	p.Context = ctx
	return account.GetByID(accountID, p)
}
