// Package httpapi wires the HTTP routes, middleware chain, and CORS
// policy for the dispatch API.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"subburner/internal/config"
	"subburner/internal/httpapi/handlers"
	"subburner/internal/httpkit"
	"subburner/internal/models"
	"subburner/internal/pkg/logger"
	"subburner/internal/pkg/middleware"
)

func NewRouter(cfg *config.Config, d handlers.Deps) http.Handler {
	r := chi.NewRouter()

	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logging(log))
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", handlers.UserIDHeader},
		AllowCredentials: false,
		MaxAgeSeconds:    600,
	}))

	h := handlers.New(d)

	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(h.Authenticate)

		r.Route("/renders", func(r chi.Router) {
			r.With(h.RequireScope(models.ScopeRendersWrite)).Post("/", h.PostRender)
			r.With(h.RequireScope(models.ScopeRendersRead)).Get("/{jobID}", h.GetRender)
			r.With(h.RequireScope(models.ScopeRendersRead)).Get("/{jobID}/download", h.GetRenderDownload)
		})

		r.Route("/keys", func(r chi.Router) {
			r.Use(h.RequireScope(models.ScopeKeysManage))
			r.Post("/", h.PostKey)
			r.Get("/", h.ListKeys)
			r.Post("/{keyID}/rotate", h.RotateKey)
			r.Delete("/{keyID}", h.RevokeKey)
		})
	})

	return r
}
