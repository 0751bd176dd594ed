// Package sku gives variant option maps a canonical form so that equality
// and hashing are deterministic regardless of the order options were
// supplied or stored in.
package sku

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/merchkit/merchkit/pkg/utils"
)

// Options is a variant's option assignment, e.g. {size: M, color: black}.
// The zero value is usable.
type Options struct {
	names  []string
	values map[string]string
}

// NewOptions builds an option set from a plain map.
func NewOptions(m map[string]string) Options {
	o := Options{}
	for name, value := range m {
		o.Set(name, value)
	}
	return o
}

// Set adds or replaces one option. Names are case-insensitive and stored
// lowercase.
func (o *Options) Set(name, value string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return
	}
	if o.values == nil {
		o.values = make(map[string]string)
	}
	if _, exists := o.values[name]; !exists {
		o.names = append(o.names, name)
	}
	o.values[name] = strings.TrimSpace(value)
}

// Get returns the value for an option name.
func (o Options) Get(name string) (string, bool) {
	v, ok := o.values[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

// Len returns the number of options.
func (o Options) Len() int { return len(o.values) }

// Names returns the option names sorted into canonical order.
func (o Options) Names() []string {
	names := make([]string, len(o.names))
	copy(names, o.names)
	sort.Strings(names)
	return names
}

// Canonical serializes the options with sorted keys, so two equal option
// sets always produce the same string no matter their insertion order.
func (o Options) Canonical() string {
	names := o.Names()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", name, o.values[name]))
	}
	return strings.Join(parts, ";")
}

// Hash returns a stable digest of the canonical form, used to detect
// duplicate variant creation.
func (o Options) Hash() string {
	return utils.HashString("sku:" + o.Canonical())
}

// Equal reports whether two option sets assign the same values to the
// same names.
func (o Options) Equal(other Options) bool {
	if len(o.values) != len(other.values) {
		return false
	}
	for name, value := range o.values {
		if ov, ok := other.values[name]; !ok || ov != value {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the options as an object with sorted keys.
func (o Options) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, name := range o.Names() {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(o.values[name])
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// UnmarshalJSON decodes a plain JSON object.
func (o *Options) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*o = NewOptions(m)
	return nil
}
