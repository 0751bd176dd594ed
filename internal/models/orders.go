package models

import (
	"errors"
	"time"
)

var (
	errNegativePrice          = errors.New("price must not be negative")
	errCompareAtNotAbovePrice = errors.New("compare-at price must be greater than price")
	errBadVisibility          = errors.New("unknown visibility state")
)

// OrderStatus is the final state of a reconciled purchase.
type OrderStatus string

const (
	OrderStatusPaid   OrderStatus = "paid"
	OrderStatusFailed OrderStatus = "failed"
)

// ConnectedAccount is a merchant's payment-processor sub-account. The
// capability flags flip asynchronously via webhooks, so callers must read
// them fresh at decision time.
type ConnectedAccount struct {
	OwnerID          string    `json:"owner_id" db:"owner_id"`
	StripeAccountID  string    `json:"stripe_account_id" db:"stripe_account_id"`
	ChargesEnabled   bool      `json:"charges_enabled" db:"charges_enabled"`
	PayoutsEnabled   bool      `json:"payouts_enabled" db:"payouts_enabled"`
	DetailsSubmitted bool      `json:"details_submitted" db:"details_submitted"`
	LastEventAt      time.Time `json:"last_event_at" db:"last_event_at"`
	LastEventType    string    `json:"last_event_type" db:"last_event_type"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// PendingOrder stages a checkout intent until the payment processor
// reports completion. Abandoned rows carry no money and are reaped by
// housekeeping.
type PendingOrder struct {
	ID              string    `json:"id" db:"id"`
	StoreID         string    `json:"store_id" db:"store_id"`
	ProductID       string    `json:"product_id" db:"product_id"`
	VariantID       string    `json:"variant_id" db:"variant_id"`
	StripeAccountID string    `json:"stripe_account_id" db:"stripe_account_id"`
	SessionID       string    `json:"session_id" db:"session_id"`
	Quantity        int64     `json:"quantity" db:"quantity"`
	AmountCents     int64     `json:"amount_cents" db:"amount_cents"`
	Currency        string    `json:"currency" db:"currency"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Order is the permanent record of a completed or failed purchase.
// SessionID is unique: at most one order per checkout session.
type Order struct {
	ID              string      `json:"id" db:"id"`
	StoreID         string      `json:"store_id" db:"store_id"`
	ProductID       string      `json:"product_id" db:"product_id"`
	VariantID       string      `json:"variant_id" db:"variant_id"`
	StripeAccountID string      `json:"stripe_account_id" db:"stripe_account_id"`
	SessionID       string      `json:"session_id" db:"session_id"`
	PaymentIntentID string      `json:"payment_intent_id" db:"payment_intent_id"`
	Quantity        int64       `json:"quantity" db:"quantity"`
	AmountCents     int64       `json:"amount_cents" db:"amount_cents"`
	Currency        string      `json:"currency" db:"currency"`
	CustomerEmail   string      `json:"customer_email" db:"customer_email"`
	Status          OrderStatus `json:"status" db:"status"`
	Notes           string      `json:"notes" db:"notes"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}
