package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"subburner/internal/httpkit"
	"subburner/internal/models"
	"subburner/internal/pkg/errors"
	"subburner/internal/pkg/middleware"
	"subburner/internal/store"
)

// downloadTTL bounds how long a signed output link stays valid.
const downloadTTL = 15 * time.Minute

type createRenderRequest struct {
	VideoID string `json:"video_id"`
}

func (h *Handler) PostRender(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := principalFrom(ctx)

	var req createRenderRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		middleware.HandleError(w, r, h.log, errors.Validation("invalid json body"))
		return
	}
	if strings.TrimSpace(req.VideoID) == "" {
		middleware.HandleError(w, r, h.log,
			errors.Validation("video_id is required").WithField("field", "video_id"))
		return
	}

	user, err := h.users.UserByID(ctx, p.userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.HandleError(w, r, h.log, errors.Unauthorized("unknown user"))
			return
		}
		middleware.HandleError(w, r, h.log, errors.Wrap(err, "handlers.post_render", "user lookup failed"))
		return
	}

	job, err := h.renders.Submit(ctx, user.ID, req.VideoID, user.Tier.RendersPerDay())
	if err != nil {
		middleware.HandleError(w, r, h.log, err)
		return
	}

	httpkit.WriteJSON(w, http.StatusAccepted, map[string]any{"job": jobView(job)})
}

func (h *Handler) GetRender(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := principalFrom(ctx)

	job, err := h.renders.Job(ctx, chi.URLParam(r, "jobID"), p.userID)
	if err != nil {
		middleware.HandleError(w, r, h.log, err)
		return
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"job": jobView(job)})
}

func (h *Handler) GetRenderDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := principalFrom(ctx)

	url, err := h.renders.DownloadURL(ctx, chi.URLParam(r, "jobID"), p.userID, downloadTTL)
	if err != nil {
		middleware.HandleError(w, r, h.log, err)
		return
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"url":        url,
		"expires_in": int(downloadTTL.Seconds()),
	})
}

// jobView is the wire shape of a render job. Internal bookkeeping fields
// stay off the wire.
func jobView(j *models.RenderJob) map[string]any {
	out := map[string]any{
		"id":         j.ID,
		"video_id":   j.VideoID,
		"status":     string(j.Status),
		"progress":   j.Progress,
		"created_at": j.CreatedAt,
	}
	if j.StartedAt != nil {
		out["started_at"] = j.StartedAt
	}
	if j.CompletedAt != nil {
		out["completed_at"] = j.CompletedAt
	}
	if j.Error != "" {
		out["error"] = j.Error
	}
	if j.OutputKey != "" && j.Status == models.JobCompleted {
		out["output_key"] = j.OutputKey
	}
	return out
}
