package apikeys

import (
	"context"
	"strings"
	"testing"
	"time"

	"subburner/internal/models"
	"subburner/internal/pkg/errors"
	"subburner/internal/store/memory"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return New(memory.New(), nil)
}

func TestIssueReturnsSecretOnce(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	key, secret, err := svc.Issue(ctx, "usr_1", IssueParams{Name: "ci"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if !strings.HasPrefix(secret, "sbk_") {
		t.Errorf("secret = %q, want sbk_ prefix", secret)
	}
	if key.KeyPrefix != secret[:12] {
		t.Errorf("KeyPrefix = %q, want first 12 chars of secret %q", key.KeyPrefix, secret)
	}
	if key.KeyHash == secret || key.KeyHash == "" {
		t.Error("stored hash must not be the secret itself")
	}
	if !key.IsActive {
		t.Error("issued key should be active")
	}
	if key.RateLimitPerMinute != DefaultRateLimitPerMinute {
		t.Errorf("RateLimitPerMinute = %d, want default %d", key.RateLimitPerMinute, DefaultRateLimitPerMinute)
	}
	if !key.HasScope(models.ScopeRendersWrite) || !key.HasScope(models.ScopeRendersRead) {
		t.Errorf("default scopes missing, got %v", key.Scopes)
	}

	// The listing view never exposes the secret.
	keys, err := svc.List(ctx, "usr_1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("List returned %d keys, want 1", len(keys))
	}
}

func TestAuthenticate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	expired := time.Now().Add(-time.Hour)
	_, goodSecret, err := svc.Issue(ctx, "usr_1", IssueParams{Name: "good"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	expiredKey, expiredSecret, err := svc.Issue(ctx, "usr_1", IssueParams{Name: "old", ExpiresAt: &expired})
	if err != nil {
		t.Fatalf("Issue expired: %v", err)
	}
	revokedKey, revokedSecret, err := svc.Issue(ctx, "usr_1", IssueParams{Name: "dead"})
	if err != nil {
		t.Fatalf("Issue revoked: %v", err)
	}
	if err := svc.Revoke(ctx, "usr_1", revokedKey.ID, "compromised"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	_ = expiredKey

	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{"valid secret", goodSecret, false},
		{"wrong suffix same prefix", goodSecret[:12] + strings.Repeat("0", len(goodSecret)-12), true},
		{"unknown prefix", "sbk_ffffffffffffffffffffffffffffffffffffffff", true},
		{"missing marker", "tok_" + goodSecret[4:], true},
		{"too short", "sbk_ab", true},
		{"expired key", expiredSecret, true},
		{"revoked key", revokedSecret, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := svc.Authenticate(ctx, tt.secret)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected authentication failure")
				}
				if errors.GetCode(err) != errors.CodeUnauthorized {
					t.Errorf("code = %v, want %v", errors.GetCode(err), errors.CodeUnauthorized)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate: %v", err)
			}
			if key.UserID != "usr_1" {
				t.Errorf("UserID = %q, want usr_1", key.UserID)
			}
		})
	}
}

func TestRotate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	old, oldSecret, err := svc.Issue(ctx, "usr_1", IssueParams{
		Name:               "deploy",
		Scopes:             []string{models.ScopeRendersWrite},
		RateLimitPerMinute: 10,
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	fresh, freshSecret, err := svc.Rotate(ctx, "usr_1", old.ID)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	if fresh.ID == old.ID {
		t.Error("rotation must mint a new key id")
	}
	if fresh.Name != old.Name || fresh.RateLimitPerMinute != 10 {
		t.Errorf("replacement did not inherit settings: %+v", fresh)
	}
	if len(fresh.Scopes) != 1 || fresh.Scopes[0] != models.ScopeRendersWrite {
		t.Errorf("replacement scopes = %v, want inherited %v", fresh.Scopes, old.Scopes)
	}

	if _, err := svc.Authenticate(ctx, freshSecret); err != nil {
		t.Errorf("new secret rejected: %v", err)
	}
	if _, err := svc.Authenticate(ctx, oldSecret); err == nil {
		t.Error("old secret still authenticates after rotation")
	}

	// A revoked key is terminal: it cannot be rotated again.
	if _, _, err := svc.Rotate(ctx, "usr_1", old.ID); err == nil {
		t.Error("rotating an already revoked key should fail")
	}
}

func TestRevokeScopedToOwner(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	key, _, err := svc.Issue(ctx, "usr_1", IssueParams{Name: "mine"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := svc.Revoke(ctx, "usr_2", key.ID, "not yours"); err == nil {
		t.Fatal("revoking another user's key should fail")
	} else if errors.GetCode(err) != errors.CodeNotFound {
		t.Errorf("code = %v, want %v", errors.GetCode(err), errors.CodeNotFound)
	}

	if err := svc.Revoke(ctx, "usr_1", key.ID, "done"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	// Revocation is terminal and idempotence is not offered.
	if err := svc.Revoke(ctx, "usr_1", key.ID, "again"); err == nil {
		t.Error("second revoke should report not found")
	}
}
