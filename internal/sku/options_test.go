package sku

import (
	"encoding/json"
	"testing"
)

func TestCanonicalOrderIndependent(t *testing.T) {
	a := Options{}
	a.Set("size", "M")
	a.Set("color", "black")

	b := Options{}
	b.Set("color", "black")
	b.Set("size", "M")

	if a.Canonical() != b.Canonical() {
		t.Errorf("Canonical forms differ: %q vs %q", a.Canonical(), b.Canonical())
	}
	if a.Canonical() != "color=black;size=M" {
		t.Errorf("Unexpected canonical form: %q", a.Canonical())
	}
	if a.Hash() != b.Hash() {
		t.Error("Equal option sets should hash identically")
	}
	if !a.Equal(b) {
		t.Error("Equal option sets should compare equal")
	}
}

func TestDifferentValuesDiffer(t *testing.T) {
	a := NewOptions(map[string]string{"size": "M"})
	b := NewOptions(map[string]string{"size": "L"})
	c := NewOptions(map[string]string{"size": "M", "color": "black"})

	if a.Hash() == b.Hash() {
		t.Error("Different values should hash differently")
	}
	if a.Equal(b) || a.Equal(c) {
		t.Error("Different option sets should not compare equal")
	}
}

func TestSetNormalizes(t *testing.T) {
	o := Options{}
	o.Set("  Size ", " M ")
	o.Set("SIZE", "L")

	if o.Len() != 1 {
		t.Fatalf("Case-folded names should collapse, got %d options", o.Len())
	}
	if v, _ := o.Get("size"); v != "L" {
		t.Errorf("Expected latest value L, got %q", v)
	}
	o.Set("", "x")
	if o.Len() != 1 {
		t.Error("Empty names should be ignored")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	o := NewOptions(map[string]string{"size": "M", "color": "black"})

	data, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"color":"black","size":"M"}` {
		t.Errorf("Expected sorted-key JSON, got %s", data)
	}

	var back Options
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !o.Equal(back) {
		t.Error("Round-trip should preserve the option set")
	}
}
