// Package redisq is the self-hosted durable queue backend: an
// at-least-once work queue on Redis with per-job state and bounded
// retention of finished entries.
//
// Layout under the configured prefix:
//
//	<prefix>:job:<id>   hash with state + payload (external id == job id)
//	<prefix>:wait       list of job ids awaiting a worker
//	<prefix>:completed  capped list of finished job ids
//	<prefix>:failed     capped list of failed job ids
package redisq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Native job states.
const (
	StateWaiting   = "waiting"
	StateDelayed   = "delayed"
	StateActive    = "active"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// Payload is the stored unit of work.
type Payload struct {
	JobID     string `json:"job_id"`
	UserID    string `json:"user_id"`
	VideoID   string `json:"video_id"`
	SourceKey string `json:"source_key"`
}

type Options struct {
	Prefix string
	// CompletedRetention caps the completed list so queue storage does
	// not grow without bound. Zero means the default of 1000.
	CompletedRetention int
	// FailedRetention caps the failed list. Zero means the default of
	// 5000; failures are kept longer for inspection.
	FailedRetention int
}

type Queue struct {
	rdb  *redis.Client
	opts Options
}

func New(rdb *redis.Client, opts Options) *Queue {
	if opts.Prefix == "" {
		opts.Prefix = "burnq"
	}
	if opts.CompletedRetention == 0 {
		opts.CompletedRetention = 1000
	}
	if opts.FailedRetention == 0 {
		opts.FailedRetention = 5000
	}
	return &Queue{rdb: rdb, opts: opts}
}

func (q *Queue) Name() string { return "redis" }

func (q *Queue) jobKey(jobID string) string { return q.opts.Prefix + ":job:" + jobID }
func (q *Queue) waitKey() string            { return q.opts.Prefix + ":wait" }
func (q *Queue) doneKey() string            { return q.opts.Prefix + ":completed" }
func (q *Queue) failKey() string            { return q.opts.Prefix + ":failed" }

// Enqueue adds the job to the waiting list. The job hash is keyed by the
// internal job id; HSETNX on the state field detects a duplicate enqueue
// of the same id, which is then verified against the wait list rather
// than dropped, so a handoff canceled mid-enqueue is completed by the
// next attempt instead of deduped into a permanently lost job.
func (q *Queue) Enqueue(ctx context.Context, jobID string, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	created, err := q.rdb.HSetNX(ctx, q.jobKey(jobID), "state", StateWaiting).Result()
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", jobID, err)
	}
	if !created {
		return q.repairEnqueue(ctx, jobID, body)
	}

	if err := q.pushWaiting(ctx, jobID, body); err != nil {
		return fmt.Errorf("enqueue %s: %w", jobID, err)
	}
	return nil
}

// pushWaiting writes the payload and the wait-list entry in one
// transaction, so the two cannot be split by a cancellation.
func (q *Queue) pushWaiting(ctx context.Context, jobID string, body []byte) error {
	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, q.jobKey(jobID),
		"payload", string(body),
		"enqueued_at", time.Now().UTC().Format(time.RFC3339Nano),
	)
	pipe.LPush(ctx, q.waitKey(), jobID)
	_, err := pipe.Exec(ctx)
	return err
}

// repairEnqueue handles an id whose state hash already exists. A job
// still waiting but absent from the wait list is the residue of an
// enqueue that was cut off between the state write and the list push;
// re-pushing it makes the operation idempotent AND self-healing. A job
// past waiting, or already listed, is a true duplicate and a no-op.
func (q *Queue) repairEnqueue(ctx context.Context, jobID string, body []byte) error {
	state, err := q.rdb.HGet(ctx, q.jobKey(jobID), "state").Result()
	if err == redis.Nil {
		// Hash vanished between HSETNX and here (retention eviction);
		// nothing left to repair.
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", jobID, err)
	}
	if state != StateWaiting {
		return nil
	}

	_, err = q.rdb.LPos(ctx, q.waitKey(), jobID, redis.LPosArgs{}).Result()
	if err == nil {
		// Present in the wait list; ordinary duplicate.
		return nil
	}
	if err != redis.Nil {
		return fmt.Errorf("enqueue %s: %w", jobID, err)
	}

	if err := q.pushWaiting(ctx, jobID, body); err != nil {
		return fmt.Errorf("enqueue %s: %w", jobID, err)
	}
	return nil
}

// Status reports the native state of a job. Missing jobs report waiting:
// the entry may have been trimmed from retention already.
func (q *Queue) Status(ctx context.Context, jobID string) (string, error) {
	state, err := q.rdb.HGet(ctx, q.jobKey(jobID), "state").Result()
	if err == redis.Nil {
		return StateWaiting, nil
	}
	if err != nil {
		return "", fmt.Errorf("status %s: %w", jobID, err)
	}
	return state, nil
}

// Dequeue blocks until a job is available, marks it active, and returns
// it. A zero timeout blocks until ctx is canceled.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (string, Payload, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.waitKey()).Result()
	if err != nil {
		return "", Payload{}, err
	}
	if len(res) < 2 {
		return "", Payload{}, redis.Nil
	}
	jobID := res[1]

	vals, err := q.rdb.HMGet(ctx, q.jobKey(jobID), "payload").Result()
	if err != nil {
		return "", Payload{}, fmt.Errorf("dequeue %s: %w", jobID, err)
	}

	var p Payload
	if len(vals) > 0 {
		if raw, ok := vals[0].(string); ok && raw != "" {
			if err := json.Unmarshal([]byte(raw), &p); err != nil {
				return "", Payload{}, fmt.Errorf("dequeue %s: %w", jobID, err)
			}
		}
	}
	if p.JobID == "" {
		p.JobID = jobID
	}

	if err := q.rdb.HSet(ctx, q.jobKey(jobID), "state", StateActive).Err(); err != nil {
		return "", Payload{}, fmt.Errorf("dequeue %s: %w", jobID, err)
	}
	return jobID, p, nil
}

// Complete marks the job completed and moves it into bounded retention.
func (q *Queue) Complete(ctx context.Context, jobID string) error {
	return q.finish(ctx, jobID, StateCompleted, q.doneKey(), q.opts.CompletedRetention)
}

// Fail marks the job failed and moves it into bounded retention.
func (q *Queue) Fail(ctx context.Context, jobID string, reason string) error {
	if reason != "" {
		if err := q.rdb.HSet(ctx, q.jobKey(jobID), "failed_reason", reason).Err(); err != nil {
			return fmt.Errorf("fail %s: %w", jobID, err)
		}
	}
	return q.finish(ctx, jobID, StateFailed, q.failKey(), q.opts.FailedRetention)
}

func (q *Queue) finish(ctx context.Context, jobID, state, listKey string, retention int) error {
	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, q.jobKey(jobID), "state", state)
	pipe.LPush(ctx, listKey, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("finish %s: %w", jobID, err)
	}

	// Evict job hashes along with their list entries, or the hashes
	// outlive the retention window and the keyspace grows without bound.
	evicted, err := q.rdb.LRange(ctx, listKey, int64(retention), -1).Result()
	if err != nil {
		return fmt.Errorf("finish %s: %w", jobID, err)
	}
	pipe = q.rdb.TxPipeline()
	if len(evicted) > 0 {
		keys := make([]string, len(evicted))
		for i, id := range evicted {
			keys[i] = q.jobKey(id)
		}
		pipe.Del(ctx, keys...)
	}
	pipe.LTrim(ctx, listKey, 0, int64(retention)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("finish %s: %w", jobID, err)
	}
	return nil
}
