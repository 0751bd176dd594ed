package errors

import (
	"errors"
	"fmt"
)

// Application-specific errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("resource conflict")
	ErrRateLimit          = errors.New("rate limit exceeded")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// Machine-readable reasons surfaced to buyers on checkout failure.
const (
	ReasonPriceNotConfigured   = "price_not_configured"
	ReasonPayoutsNotConfigured = "payouts_not_configured"
	ReasonProductUnavailable   = "product_unavailable"
)

// NotPurchasableError reports why a (store, product) pair cannot be bought.
// It is a configuration error: friendly, non-retryable, never a 5xx.
type NotPurchasableError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (e NotPurchasableError) Error() string {
	return fmt.Sprintf("not purchasable (%s): %s", e.Reason, e.Message)
}

// NotPurchasable builds a NotPurchasableError with a machine reason.
func NotPurchasable(reason, message string) NotPurchasableError {
	return NotPurchasableError{Reason: reason, Message: message}
}

// AsNotPurchasable unwraps err into a NotPurchasableError if it is one.
func AsNotPurchasable(err error) (NotPurchasableError, bool) {
	var np NotPurchasableError
	ok := errors.As(err, &np)
	return np, ok
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// DatabaseError represents a database-related error
type DatabaseError struct {
	Operation string
	Err       error
}

func (e DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Operation, e.Err)
}

func (e DatabaseError) Unwrap() error {
	return e.Err
}

// ReconcileError represents a webhook reconciliation error
type ReconcileError struct {
	EventType string
	SessionID string
	Err       error
}

func (e ReconcileError) Error() string {
	return fmt.Sprintf("reconcile error for %s session %s: %v", e.EventType, e.SessionID, e.Err)
}

func (e ReconcileError) Unwrap() error {
	return e.Err
}
