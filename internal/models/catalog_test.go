package models

import (
	"testing"
	"time"
)

func TestStorePrice_ScheduleActive(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		startAt  *time.Time
		endAt    *time.Time
		at       time.Time
		expected bool
	}{
		{
			name:     "Before window",
			startAt:  &start,
			endAt:    &end,
			at:       start.Add(-time.Second),
			expected: false,
		},
		{
			name:     "Exactly at start",
			startAt:  &start,
			endAt:    &end,
			at:       start,
			expected: true,
		},
		{
			name:     "Inside window",
			startAt:  &start,
			endAt:    &end,
			at:       start.Add(24 * time.Hour),
			expected: true,
		},
		{
			name:     "Exactly at end",
			startAt:  &start,
			endAt:    &end,
			at:       end,
			expected: false,
		},
		{
			name:     "Missing start",
			startAt:  nil,
			endAt:    &end,
			at:       start.Add(time.Hour),
			expected: false,
		},
		{
			name:     "Missing end",
			startAt:  &start,
			endAt:    nil,
			at:       start.Add(time.Hour),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp := StorePrice{Visibility: VisibilityScheduled, StartAt: tt.startAt, EndAt: tt.endAt}
			if got := sp.ScheduleActive(tt.at); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestStorePrice_OnSale(t *testing.T) {
	compareAt := int64(2999)
	sp := StorePrice{PriceCents: 1999, CompareAtCents: &compareAt}
	if !sp.OnSale() {
		t.Error("Expected price with higher compare-at to be on sale")
	}

	sp.CompareAtCents = nil
	if sp.OnSale() {
		t.Error("Expected price without compare-at not to be on sale")
	}
}

func TestStorePrice_Validate(t *testing.T) {
	lowCompare := int64(100)

	tests := []struct {
		name        string
		price       StorePrice
		expectError bool
	}{
		{
			name:        "Valid visible price",
			price:       StorePrice{PriceCents: 500, Visibility: VisibilityVisible},
			expectError: false,
		},
		{
			name:        "Negative price",
			price:       StorePrice{PriceCents: -1, Visibility: VisibilityVisible},
			expectError: true,
		},
		{
			name:        "Compare-at below price",
			price:       StorePrice{PriceCents: 500, CompareAtCents: &lowCompare, Visibility: VisibilityVisible},
			expectError: true,
		},
		{
			name:        "Unknown visibility",
			price:       StorePrice{PriceCents: 500, Visibility: Visibility("SOMETIMES")},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.price.Validate()
			if tt.expectError && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestProduct_Deleted(t *testing.T) {
	now := time.Now().UTC()
	p := &Product{ID: "prod-1"}
	if p.Deleted() {
		t.Error("Expected live product not to be deleted")
	}

	p.DeletedAt = &now
	if !p.Deleted() {
		t.Error("Expected soft-deleted product to report deleted")
	}
}
