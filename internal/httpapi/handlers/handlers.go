// Package handlers implements the HTTP surface of the dispatch API.
package handlers

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"subburner/internal/apikeys"
	"subburner/internal/pkg/logger"
	"subburner/internal/queue"
	"subburner/internal/ratelimit"
	"subburner/internal/render"
	"subburner/internal/store"
)

type Deps struct {
	Renders *render.Service
	Keys    *apikeys.Service
	Users   store.UserStore
	Limiter *ratelimit.Limiter
	Backend queue.Backend
	Log     *logger.Logger

	// Pool and RDB are only touched by the health endpoint; either may be
	// nil, in which case its check reports skipped.
	Pool *pgxpool.Pool
	RDB  *redis.Client
}

type Handler struct {
	renders *render.Service
	keys    *apikeys.Service
	users   store.UserStore
	limiter *ratelimit.Limiter
	backend queue.Backend
	log     *logger.Logger
	pool    *pgxpool.Pool
	rdb     *redis.Client
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		renders: d.Renders,
		keys:    d.Keys,
		users:   d.Users,
		limiter: d.Limiter,
		backend: d.Backend,
		log:     log.WithComponent("httpapi"),
		pool:    d.Pool,
		rdb:     d.RDB,
	}
}
