package handlers

import (
	"context"
	"net/http"
	"time"

	"subburner/internal/httpkit"
)

// Health reports liveness and, with ?deep=1, the state of each
// dependency. Deep checks run with a short budget so a stuck dependency
// cannot hang the probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"service": "subburner",
		"backend": h.backend.Name(),
	}

	if r.URL.Query().Get("deep") == "1" {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]any{
			"postgres": h.checkPostgres(ctx),
			"redis":    h.checkRedis(ctx),
		}
		body["checks"] = checks
		for _, c := range checks {
			if m, ok := c.(map[string]any); ok && m["status"] == "down" {
				body["status"] = "degraded"
			}
		}
	}

	status := http.StatusOK
	if body["status"] == "degraded" {
		status = http.StatusServiceUnavailable
	}
	httpkit.WriteJSON(w, status, body)
}

func (h *Handler) checkPostgres(ctx context.Context) map[string]any {
	if h.pool == nil {
		return map[string]any{"status": "skipped"}
	}
	start := time.Now()
	if err := h.pool.Ping(ctx); err != nil {
		return map[string]any{"status": "down", "error": err.Error()}
	}
	return map[string]any{"status": "up", "latency_ms": time.Since(start).Milliseconds()}
}

func (h *Handler) checkRedis(ctx context.Context) map[string]any {
	if h.rdb == nil {
		return map[string]any{"status": "skipped"}
	}
	start := time.Now()
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		return map[string]any{"status": "down", "error": err.Error()}
	}
	return map[string]any{"status": "up", "latency_ms": time.Since(start).Milliseconds()}
}
