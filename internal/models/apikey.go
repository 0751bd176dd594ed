package models

import "time"

// APIKeyStatus is the lifecycle state of a merchant API key.
type APIKeyStatus string

const (
	APIKeyStatusActive  APIKeyStatus = "active"
	APIKeyStatusRevoked APIKeyStatus = "revoked"
)

// APIKey is a merchant credential. Only the bcrypt hash of the secret is
// stored; the raw key is shown once at creation and never again.
type APIKey struct {
	ID        string       `json:"id" db:"id"`
	OwnerID   string       `json:"owner_id" db:"owner_id"`
	Label     string       `json:"label" db:"label"`
	KeyPrefix string       `json:"key_prefix" db:"key_prefix"`
	KeyHash   []byte       `json:"-" db:"key_hash"`
	Status    APIKeyStatus `json:"status" db:"status"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// Active reports whether the key may authenticate requests.
func (k *APIKey) Active() bool {
	return k != nil && k.Status == APIKeyStatusActive
}
