package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"subburner/internal/config"
	"subburner/internal/pkg/logger"
	"subburner/internal/pkg/shutdown"
	"subburner/internal/queue"
	"subburner/internal/queue/redisq"
	"subburner/internal/store/postgres"
	"subburner/internal/worker"
	"subburner/internal/worker/renderer"
)

func main() {
	_ = godotenv.Load()

	cfgLog := logger.DefaultConfig()
	cfgLog.ServiceName = "subburner-worker"
	log := logger.New(cfgLog)

	cfg, err := config.Load()
	if err != nil {
		log.LogFatal("invalid configuration", err)
	}

	log.Info("starting worker", "version", "0.1.0")

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

	db := postgres.New(pool)
	backend := queue.NewBackend(cfg, rdb)
	log.Info("queue backend selected", "backend", backend.Name())

	// Bus-mode deliveries are consumed by external subscribers; this
	// process then only runs the orphan sweep.
	var q *redisq.Queue
	if cfg.EventBusTopicARN == "" {
		q = redisq.New(rdb, redisq.Options{
			Prefix:             cfg.QueuePrefix,
			CompletedRetention: cfg.QueueCompletedRetention,
			FailedRetention:    cfg.QueueFailedRetention,
		})
	}

	deps := worker.Deps{
		Jobs:            db,
		Videos:          db,
		Queue:           q,
		Backend:         backend,
		Renderer:        renderer.NewHTTPClient(cfg.RendererBaseURL),
		WorkerCount:     cfg.WorkerCount,
		OrphanThreshold: cfg.OrphanThreshold,
		Log:             log,
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	workerDone := make(chan struct{})

	// Registered last so it runs first: stop consuming before the redis
	// and postgres connections are torn down.
	shutdownMgr.Register("worker", func(ctx context.Context) error {
		cancelRun()
		select {
		case <-workerDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	go func() {
		defer close(workerDone)
		if err := worker.Run(runCtx, deps); err != nil && err != context.Canceled {
			log.Error("worker stopped", "error", err.Error())
		}
	}()

	shutdownMgr.Wait()
}
