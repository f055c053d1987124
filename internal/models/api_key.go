package models

import "time"

// Scopes checked by the API-key middleware before executing an operation.
const (
	ScopeRendersWrite = "renders:write"
	ScopeRendersRead  = "renders:read"
	ScopeKeysManage   = "keys:manage"
)

// APIKey is one issued programmatic credential. The secret itself is
// returned exactly once at issuance; only its hash is kept.
type APIKey struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Name               string     `json:"name,omitempty"`
	KeyPrefix          string     `json:"key_prefix"`
	KeyHash            string     `json:"-"`
	Scopes             []string   `json:"scopes"`
	RateLimitPerMinute int        `json:"rate_limit_per_minute"`
	CreatedAt          time.Time  `json:"created_at"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	RevokedAt          *time.Time `json:"revoked_at,omitempty"`
	RevokedReason      string     `json:"revoked_reason,omitempty"`
	IsActive           bool       `json:"is_active"`
}

// Usable reports whether the key may authenticate requests right now.
func (k *APIKey) Usable(now time.Time) bool {
	if !k.IsActive || k.RevokedAt != nil {
		return false
	}
	if k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
		return false
	}
	return true
}

// HasScope reports whether the key carries the named capability.
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
