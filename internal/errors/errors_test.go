package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "quantity",
		Message: "must be at least 1",
	}

	expected := "validation error on field 'quantity': must be at least 1"
	if err.Error() != expected {
		t.Errorf("Expected %s, got %s", expected, err.Error())
	}
}

func TestNotPurchasableError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      NotPurchasableError
		expected string
	}{
		{
			name:     "Price not configured",
			err:      NotPurchasable(ReasonPriceNotConfigured, "no price set for variant"),
			expected: "not purchasable (price_not_configured): no price set for variant",
		},
		{
			name:     "Payouts not configured",
			err:      NotPurchasable(ReasonPayoutsNotConfigured, "charges disabled"),
			expected: "not purchasable (payouts_not_configured): charges disabled",
		},
		{
			name:     "Product unavailable",
			err:      NotPurchasable(ReasonProductUnavailable, "hidden in store"),
			expected: "not purchasable (product_unavailable): hidden in store",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.err.Error())
			}
		})
	}
}

func TestAsNotPurchasable(t *testing.T) {
	np := NotPurchasable(ReasonProductUnavailable, "deleted")
	wrapped := fmt.Errorf("resolve price: %w", np)

	got, ok := AsNotPurchasable(wrapped)
	if !ok {
		t.Fatal("Expected wrapped NotPurchasableError to be recognized")
	}
	if got.Reason != ReasonProductUnavailable {
		t.Errorf("Expected reason %s, got %s", ReasonProductUnavailable, got.Reason)
	}

	if _, ok := AsNotPurchasable(errors.New("plain")); ok {
		t.Error("Expected plain error not to be recognized")
	}
}

func TestDatabaseError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := DatabaseError{Operation: "insert order", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("Expected DatabaseError to unwrap to inner error")
	}

	expected := "database error during insert order: connection refused"
	if err.Error() != expected {
		t.Errorf("Expected %s, got %s", expected, err.Error())
	}
}

func TestReconcileError_Unwrap(t *testing.T) {
	inner := ErrConflict
	err := ReconcileError{EventType: "checkout.session.completed", SessionID: "cs_123", Err: inner}

	if !errors.Is(err, ErrConflict) {
		t.Error("Expected ReconcileError to unwrap to sentinel")
	}

	expected := "reconcile error for checkout.session.completed session cs_123: resource conflict"
	if err.Error() != expected {
		t.Errorf("Expected %s, got %s", expected, err.Error())
	}
}
