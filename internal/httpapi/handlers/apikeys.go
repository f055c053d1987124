package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"subburner/internal/apikeys"
	"subburner/internal/httpkit"
	"subburner/internal/models"
	"subburner/internal/pkg/errors"
	"subburner/internal/pkg/middleware"
)

type createKeyRequest struct {
	Name               string     `json:"name"`
	Scopes             []string   `json:"scopes,omitempty"`
	RateLimitPerMinute int        `json:"rate_limit_per_minute,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
}

var knownScopes = map[string]bool{
	models.ScopeRendersWrite: true,
	models.ScopeRendersRead:  true,
	models.ScopeKeysManage:   true,
}

func (h *Handler) PostKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := principalFrom(ctx)

	var req createKeyRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		middleware.HandleError(w, r, h.log, errors.Validation("invalid json body"))
		return
	}
	for _, s := range req.Scopes {
		if !knownScopes[s] {
			middleware.HandleError(w, r, h.log,
				errors.Validation("unknown scope").WithField("scope", s))
			return
		}
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		middleware.HandleError(w, r, h.log, errors.Validation("expires_at must be in the future"))
		return
	}

	key, secret, err := h.keys.Issue(ctx, p.userID, apikeys.IssueParams{
		Name:               strings.TrimSpace(req.Name),
		Scopes:             req.Scopes,
		RateLimitPerMinute: req.RateLimitPerMinute,
		ExpiresAt:          req.ExpiresAt,
	})
	if err != nil {
		middleware.HandleError(w, r, h.log, err)
		return
	}

	// The only response that ever carries the secret.
	httpkit.WriteJSON(w, http.StatusCreated, map[string]any{
		"key":    key,
		"secret": secret,
	})
}

func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := principalFrom(ctx)

	keys, err := h.keys.List(ctx, p.userID)
	if err != nil {
		middleware.HandleError(w, r, h.log, err)
		return
	}
	if keys == nil {
		keys = []models.APIKey{}
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (h *Handler) RotateKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := principalFrom(ctx)

	key, secret, err := h.keys.Rotate(ctx, p.userID, chi.URLParam(r, "keyID"))
	if err != nil {
		middleware.HandleError(w, r, h.log, err)
		return
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"key":    key,
		"secret": secret,
	})
}

type revokeKeyRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := principalFrom(ctx)

	var req revokeKeyRequest
	if r.ContentLength > 0 {
		if err := httpkit.DecodeJSON(r, &req); err != nil {
			middleware.HandleError(w, r, h.log, errors.Validation("invalid json body"))
			return
		}
	}

	if err := h.keys.Revoke(ctx, p.userID, chi.URLParam(r, "keyID"), req.Reason); err != nil {
		middleware.HandleError(w, r, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
