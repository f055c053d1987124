// Package queue abstracts the transport that hands render jobs to the
// worker fleet. Two backends exist: a self-hosted durable Redis queue
// with per-job state, and a managed SNS event bus with none. The choice
// is made once per process from configuration.
package queue

import (
	"context"

	"github.com/redis/go-redis/v9"

	"subburner/internal/config"
	"subburner/internal/queue/eventbus"
	"subburner/internal/queue/redisq"
)

// Status is the transport-level view of a job. Backends that cannot
// observe per-message state always report StatusQueued; job truth lives
// in the job record store.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Payload is the unit of work handed to a backend, keyed by JobID.
type Payload struct {
	JobID     string `json:"job_id"`
	UserID    string `json:"user_id"`
	VideoID   string `json:"video_id"`
	SourceKey string `json:"source_key"`
}

// Backend is the uniform contract over both transports. Enqueue must be
// idempotent per JobID: a duplicate enqueue may be deduped or deliver a
// harmless duplicate, but never yields a second independent job.
type Backend interface {
	Name() string
	Enqueue(ctx context.Context, jobID string, p Payload) error
	Status(ctx context.Context, jobID string) (Status, error)
}

// NewBackend selects the backend for this process: the event bus when a
// topic credential is configured, otherwise the self-hosted Redis queue.
// The choice is a pure function of config and is never revisited per
// request.
func NewBackend(cfg *config.Config, rdb *redis.Client) Backend {
	if cfg.EventBusTopicARN != "" {
		return &busBackend{inner: eventbus.New(cfg)}
	}
	return &redisBackend{inner: redisq.New(rdb, redisq.Options{
		Prefix:             cfg.QueuePrefix,
		CompletedRetention: cfg.QueueCompletedRetention,
		FailedRetention:    cfg.QueueFailedRetention,
	})}
}

// redisBackend adapts the durable queue to the Backend contract.
type redisBackend struct {
	inner *redisq.Queue
}

func (b *redisBackend) Name() string { return b.inner.Name() }

func (b *redisBackend) Enqueue(ctx context.Context, jobID string, p Payload) error {
	return b.inner.Enqueue(ctx, jobID, redisq.Payload{
		JobID:     p.JobID,
		UserID:    p.UserID,
		VideoID:   p.VideoID,
		SourceKey: p.SourceKey,
	})
}

func (b *redisBackend) Status(ctx context.Context, jobID string) (Status, error) {
	st, err := b.inner.Status(ctx, jobID)
	if err != nil {
		return StatusQueued, err
	}
	return mapNativeStatus(st), nil
}

// mapNativeStatus maps the durable queue's native states onto the
// uniform set. Unknown states degrade to queued rather than erroring.
func mapNativeStatus(native string) Status {
	switch native {
	case redisq.StateActive:
		return StatusProcessing
	case redisq.StateCompleted:
		return StatusCompleted
	case redisq.StateFailed:
		return StatusFailed
	case redisq.StateWaiting, redisq.StateDelayed:
		return StatusQueued
	default:
		return StatusQueued
	}
}

// busBackend adapts the event bus. It has no queryable per-message
// state: Status always reports queued, and callers read job status from
// the record store instead. This asymmetry is part of the contract.
type busBackend struct {
	inner *eventbus.Publisher
}

func (b *busBackend) Name() string { return b.inner.Name() }

func (b *busBackend) Enqueue(ctx context.Context, jobID string, p Payload) error {
	return b.inner.Publish(ctx, jobID, eventbus.RenderRequested{
		JobID:     p.JobID,
		UserID:    p.UserID,
		VideoID:   p.VideoID,
		SourceKey: p.SourceKey,
	})
}

func (b *busBackend) Status(ctx context.Context, jobID string) (Status, error) {
	return StatusQueued, nil
}
