// Package apikeys manages programmatic credentials: issuance, rotation,
// revocation, and authentication. Secrets are shown once at issuance;
// only a sha256 hash and a displayable prefix are stored.
package apikeys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"subburner/internal/models"
	"subburner/internal/pkg/errors"
	"subburner/internal/pkg/logger"
	"subburner/internal/store"
)

// secretPrefix marks every issued secret; the stored keyPrefix is the
// first prefixLen characters of the secret and doubles as the lookup key.
const (
	secretPrefix = "sbk_"
	prefixLen    = 12
	secretBytes  = 20
)

// DefaultRateLimitPerMinute applies when issuance does not specify one.
const DefaultRateLimitPerMinute = 60

type Service struct {
	keys store.APIKeyStore
	log  *logger.Logger
	now  func() time.Time
}

func New(keys store.APIKeyStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Service{
		keys: keys,
		log:  log.WithComponent("apikeys"),
		now:  time.Now,
	}
}

// IssueParams describes a new credential.
type IssueParams struct {
	Name               string
	Scopes             []string
	RateLimitPerMinute int
	ExpiresAt          *time.Time
}

// Issue creates a key and returns it together with the full secret. The
// secret is not retrievable afterwards.
func (s *Service) Issue(ctx context.Context, userID string, p IssueParams) (*models.APIKey, string, error) {
	if len(p.Scopes) == 0 {
		p.Scopes = []string{models.ScopeRendersWrite, models.ScopeRendersRead}
	}
	if p.RateLimitPerMinute <= 0 {
		p.RateLimitPerMinute = DefaultRateLimitPerMinute
	}

	var (
		key    *models.APIKey
		secret string
	)
	// A prefix collision is a fresh-randomness problem; retry with a new
	// secret rather than surfacing it.
	for attempt := 0; ; attempt++ {
		var err error
		secret, err = generateSecret()
		if err != nil {
			return nil, "", errors.Wrap(err, "apikeys.issue", "secret generation failed")
		}

		key = &models.APIKey{
			ID:                 models.NewID("key"),
			UserID:             userID,
			Name:               p.Name,
			KeyPrefix:          secret[:prefixLen],
			KeyHash:            hashSecret(secret),
			Scopes:             p.Scopes,
			RateLimitPerMinute: p.RateLimitPerMinute,
			ExpiresAt:          p.ExpiresAt,
			IsActive:           true,
		}

		err = s.keys.InsertKey(ctx, key)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrDuplicate) && attempt < 2 {
			continue
		}
		return nil, "", errors.Wrap(err, "apikeys.issue", "key insert failed")
	}

	s.log.FromContext(ctx).Info("api key issued",
		"key_id", key.ID, "user_id", userID, "prefix", key.KeyPrefix)
	return key, secret, nil
}

// Rotate replaces a key: the new key inherits name, scopes, rate limit
// and expiry; the old key is revoked with reason "Rotated" in the same
// store transaction. A revoked key cannot be rotated.
func (s *Service) Rotate(ctx context.Context, userID, keyID string) (*models.APIKey, string, error) {
	old, err := s.keys.KeyByID(ctx, keyID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", errors.NotFound("api key", keyID)
		}
		return nil, "", errors.Wrap(err, "apikeys.rotate", "key lookup failed")
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, "", errors.Wrap(err, "apikeys.rotate", "secret generation failed")
	}

	replacement := &models.APIKey{
		ID:                 models.NewID("key"),
		UserID:             userID,
		Name:               old.Name,
		KeyPrefix:          secret[:prefixLen],
		KeyHash:            hashSecret(secret),
		Scopes:             old.Scopes,
		RateLimitPerMinute: old.RateLimitPerMinute,
		ExpiresAt:          old.ExpiresAt,
		IsActive:           true,
	}

	if err := s.keys.RotateKey(ctx, keyID, userID, replacement); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", errors.NotFound("api key", keyID)
		}
		return nil, "", errors.Wrap(err, "apikeys.rotate", "rotation failed")
	}

	s.log.FromContext(ctx).Info("api key rotated",
		"old_key_id", keyID, "new_key_id", replacement.ID, "user_id", userID)
	return replacement, secret, nil
}

// Revoke terminally disables a key. A revoked key id is never reactivated.
func (s *Service) Revoke(ctx context.Context, userID, keyID, reason string) error {
	if reason == "" {
		reason = "Revoked by owner"
	}
	if err := s.keys.RevokeKey(ctx, keyID, userID, reason); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFound("api key", keyID)
		}
		return errors.Wrap(err, "apikeys.revoke", "revocation failed")
	}

	s.log.FromContext(ctx).Info("api key revoked", "key_id", keyID, "user_id", userID)
	return nil
}

// List returns the caller's keys, hashes excluded by the model's JSON
// shape.
func (s *Service) List(ctx context.Context, userID string) ([]models.APIKey, error) {
	keys, err := s.keys.KeysByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "apikeys.list", "key listing failed")
	}
	return keys, nil
}

// Authenticate resolves a presented secret to its key. Lookup is by
// prefix; the stored hash is compared in constant time. Invalid, revoked,
// and expired keys all fail the same way.
func (s *Service) Authenticate(ctx context.Context, secret string) (*models.APIKey, error) {
	if len(secret) < prefixLen || secret[:len(secretPrefix)] != secretPrefix {
		return nil, errors.Unauthorized("invalid api key")
	}

	key, err := s.keys.KeyByPrefix(ctx, secret[:prefixLen])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.Unauthorized("invalid api key")
		}
		return nil, errors.Wrap(err, "apikeys.authenticate", "key lookup failed")
	}

	if subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(hashSecret(secret))) != 1 {
		return nil, errors.Unauthorized("invalid api key")
	}
	if !key.Usable(s.now()) {
		return nil, errors.Unauthorized("api key is revoked or expired")
	}
	return key, nil
}

func generateSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return secretPrefix + hex.EncodeToString(b), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
