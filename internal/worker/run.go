// Package worker consumes the render queue and keeps the job records
// honest: each consumer drives one job at a time through the processor,
// and a background sweep re-dispatches QUEUED rows whose enqueue was
// lost.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"subburner/internal/pkg/logger"
	"subburner/internal/queue"
	"subburner/internal/queue/redisq"
	"subburner/internal/store"
	"subburner/internal/worker/processor"
	"subburner/internal/worker/renderer"
)

type Deps struct {
	Jobs   store.JobStore
	Videos store.VideoStore

	// Queue is the consumable transport. It is nil when the process runs
	// against the event bus backend, whose consumers live elsewhere; in
	// that mode only the orphan sweep runs here.
	Queue *redisq.Queue
	// Backend re-dispatches orphaned jobs, whichever transport is active.
	Backend queue.Backend

	Renderer        renderer.Client
	WorkerCount     int
	OrphanThreshold time.Duration
	Log             *logger.Logger
}

const dequeueWindow = 30 * time.Second

func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	if d.WorkerCount <= 0 {
		d.WorkerCount = 1
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		runSweep(ctx, d, log)
	}()

	if d.Queue != nil {
		p := processor.New(processor.Deps{
			Jobs:     d.Jobs,
			Renderer: d.Renderer,
			Acker:    d.Queue,
			Log:      log,
		})
		for i := 0; i < d.WorkerCount; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				consume(ctx, d.Queue, p, &logger.Logger{Logger: log.Logger.With("consumer", n)})
			}(i)
		}
	} else {
		log.Info("no consumable queue configured, running sweep only")
	}

	wg.Wait()
	return ctx.Err()
}

func consume(ctx context.Context, q *redisq.Queue, p *processor.Processor, log *logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			log.Info("consumer stopping")
			return
		default:
		}

		jobID, payload, err := q.Dequeue(ctx, dequeueWindow)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer stopping")
				return
			}
			if err == redis.Nil {
				continue
			}
			log.Warn("dequeue error, retrying", "error", err.Error())
			time.Sleep(time.Second)
			continue
		}

		jobCtx := logger.ContextWithJobID(ctx, jobID)
		jobLog := log.WithJobID(jobID)

		jobLog.Info("processing job")
		start := time.Now()

		err = p.Process(jobCtx, jobID, queue.Payload{
			JobID:     payload.JobID,
			UserID:    payload.UserID,
			VideoID:   payload.VideoID,
			SourceKey: payload.SourceKey,
		})
		if err != nil {
			jobLog.Error("job failed",
				"error", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		} else {
			jobLog.Info("job done",
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
	}
}
