package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/merchkit/merchkit/internal/errors"
	"github.com/merchkit/merchkit/internal/models"
	"github.com/merchkit/merchkit/internal/store"
)

// Service issues and verifies merchant API keys on top of the key store.
type Service struct {
	keys store.KeyStore
	env  string
}

func NewService(keys store.KeyStore, env string) *Service {
	return &Service{keys: keys, env: env}
}

// IssueKey mints a new key for a merchant. The raw key is returned exactly
// once; only its prefix and bcrypt hash are persisted.
func (s *Service) IssueKey(ctx context.Context, ownerID, label string) (rawKey string, key *models.APIKey, err error) {
	prefix, raw, hash, err := GenerateAPIKey(s.env)
	if err != nil {
		return "", nil, err
	}
	k := models.APIKey{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Label:     label,
		KeyPrefix: prefix,
		KeyHash:   hash,
		Status:    models.APIKeyStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.keys.CreateAPIKey(ctx, k); err != nil {
		return "", nil, err
	}
	return raw, &k, nil
}

// VerifyKey authenticates a raw API key and returns the merchant principal.
// All failure modes collapse to ErrUnauthorized so callers cannot probe
// which part of the key was wrong.
func (s *Service) VerifyKey(ctx context.Context, rawKey string) (*Principal, error) {
	env, prefix, secret, ok := ParseAPIKey(rawKey)
	if !ok || env != s.env {
		return nil, apperrors.ErrUnauthorized
	}
	rec, err := s.keys.GetAPIKeyByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if !rec.Active() {
		return nil, apperrors.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(rec.KeyHash, []byte(secret)); err != nil {
		return nil, apperrors.ErrUnauthorized
	}
	return &Principal{OwnerID: rec.OwnerID, APIKeyID: rec.ID}, nil
}

// Revoke deactivates a key by prefix, but only for its own merchant.
func (s *Service) Revoke(ctx context.Context, ownerID, prefix string) error {
	rec, err := s.keys.GetAPIKeyByPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	if rec == nil {
		return apperrors.ErrNotFound
	}
	if rec.OwnerID != ownerID {
		return apperrors.ErrForbidden
	}
	if _, err := s.keys.RevokeAPIKey(ctx, prefix); err != nil {
		return err
	}
	return nil
}

// ListKeys returns a merchant's keys, hashes omitted by the model's JSON
// encoding.
func (s *Service) ListKeys(ctx context.Context, ownerID string) ([]models.APIKey, error) {
	return s.keys.ListAPIKeysByOwner(ctx, ownerID)
}
