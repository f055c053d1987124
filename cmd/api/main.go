package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"subburner/internal/apikeys"
	"subburner/internal/config"
	"subburner/internal/credit"
	"subburner/internal/httpapi"
	"subburner/internal/httpapi/handlers"
	"subburner/internal/pkg/logger"
	"subburner/internal/pkg/shutdown"
	"subburner/internal/queue"
	"subburner/internal/ratelimit"
	"subburner/internal/render"
	"subburner/internal/storage/factory"
	"subburner/internal/store/postgres"
)

func main() {
	// A missing .env is fine in deployed environments.
	_ = godotenv.Load()

	cfgLog := logger.DefaultConfig()
	cfgLog.ServiceName = "subburner-api"
	log := logger.New(cfgLog)

	cfg, err := config.Load()
	if err != nil {
		log.LogFatal("invalid configuration", err)
	}

	log.Info("starting API", "version", "0.1.0")

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.LogFatal("postgres connection failed", err)
	}
	shutdownMgr.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})
	if err := pool.Ping(ctx); err != nil {
		log.LogFatal("postgres ping failed", err)
	}
	log.Info("postgres connected")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("redis ping failed", err)
	}
	log.Info("redis connected")

	sp, err := factory.NewProvider(cfg)
	if err != nil {
		log.LogFatal("storage provider init failed", err)
	}
	log.Info("storage provider ready", "provider", sp.Provider())

	loc, err := time.LoadLocation(cfg.CreditTimezone)
	if err != nil {
		log.LogFatal("invalid CREDIT_TIMEZONE", err)
	}

	db := postgres.New(pool)
	backend := queue.NewBackend(cfg, rdb)
	log.Info("queue backend selected", "backend", backend.Name())

	renders := render.New(render.Deps{
		Jobs:           db,
		Videos:         db,
		Credits:        credit.New(db, loc),
		Backend:        backend,
		Storage:        sp,
		EnqueueTimeout: cfg.EnqueueTimeout,
		Log:            log,
	})

	router := httpapi.NewRouter(cfg, handlers.Deps{
		Renders: renders,
		Keys:    apikeys.New(db, log),
		Users:   db,
		Limiter: ratelimit.New(ratelimit.NewRedisCounter(rdb), cfg.QueuePrefix+":rl", log),
		Backend: backend,
		Log:     log,
		Pool:    pool,
		RDB:     rdb,
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}
