package utils

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Simple name", input: "Store One", expected: "store-one"},
		{name: "Punctuation collapsed", input: "Tour Tee -- 2024!", expected: "tour-tee-2024"},
		{name: "Leading and trailing junk", input: "  --Merch Kit--  ", expected: "merch-kit"},
		{name: "Already a slug", input: "already-a-slug", expected: "already-a-slug"},
		{name: "Empty", input: "", expected: ""},
		{name: "Only punctuation", input: "!!!", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 3); got != "hel" {
		t.Errorf("Expected 'hel', got %q", got)
	}
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("Expected 'hello', got %q", got)
	}
	if got := Truncate("héllo", 2); got != "hé" {
		t.Errorf("Expected rune-safe truncation, got %q", got)
	}
	if got := Truncate("hello", 0); got != "" {
		t.Errorf("Expected empty string, got %q", got)
	}
}
