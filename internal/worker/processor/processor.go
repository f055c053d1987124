// Package processor executes one render job at a time: claim the record,
// drive the rendering engine, persist the outcome, acknowledge the queue.
package processor

import (
	"context"

	"subburner/internal/pkg/errors"
	"subburner/internal/pkg/logger"
	"subburner/internal/queue"
	"subburner/internal/store"
	"subburner/internal/worker/renderer"
)

// Acker acknowledges queue entries after the record store has the
// outcome. The store is the source of truth; the queue entry is
// bookkeeping.
type Acker interface {
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID string, reason string) error
}

type Deps struct {
	Jobs     store.JobStore
	Renderer renderer.Client
	Acker    Acker
	Log      *logger.Logger
}

type Processor struct {
	jobs     store.JobStore
	renderer renderer.Client
	acker    Acker
	log      *logger.Logger
}

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Processor{
		jobs:     d.Jobs,
		renderer: d.Renderer,
		acker:    d.Acker,
		log:      log.WithComponent("processor"),
	}
}

// Process runs one job end to end. The claim is the QUEUED -> PROCESSING
// transition: if it does not apply the job is already claimed or
// terminal, and the queue entry is acknowledged without rendering.
func (p *Processor) Process(ctx context.Context, jobID string, payload queue.Payload) error {
	log := p.log.FromContext(ctx).WithJobID(jobID)

	if err := p.jobs.MarkProcessing(ctx, jobID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info("job not claimable, acknowledging without work")
			return p.acker.Complete(ctx, jobID)
		}
		return errors.Wrap(err, "processor.claim", "claiming job failed")
	}

	result, err := p.renderer.Render(ctx, renderer.Request{
		JobID:     jobID,
		UserID:    payload.UserID,
		VideoID:   payload.VideoID,
		SourceKey: payload.SourceKey,
	}, p.progressFunc(ctx, jobID, log))
	if err != nil {
		return p.fail(ctx, jobID, log, err)
	}

	if result.OutputKey == "" {
		return p.fail(ctx, jobID, log, errors.New(errors.CodeInternal, "renderer returned no output"))
	}

	if err := p.jobs.MarkCompleted(ctx, jobID, result.OutputKey, result.ProjectFileRef); err != nil {
		// The record moved underneath us; the queue entry still gets a
		// terminal acknowledgement so it cannot redeliver.
		log.Error("completion not recorded", "error", err.Error())
		return p.acker.Fail(ctx, jobID, "completion not recorded")
	}

	log.Info("render completed", "output_key", result.OutputKey)
	return p.acker.Complete(ctx, jobID)
}

// progressFunc persists engine progress. Values are clamped to [0,100]
// and a report lower than the last accepted one is dropped and logged:
// progress never moves backwards in the record.
func (p *Processor) progressFunc(ctx context.Context, jobID string, log *logger.Logger) renderer.ProgressFunc {
	last := -1
	return func(percent int) {
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		if percent < last {
			log.Warn("renderer progress went backwards, dropping report",
				"reported", percent, "last", last)
			return
		}
		last = percent

		if err := p.jobs.SetProgress(ctx, jobID, percent); err != nil {
			// Progress is advisory; the job outcome does not depend on it.
			log.Warn("progress update not persisted", "error", err.Error())
		}
	}
}

func (p *Processor) fail(ctx context.Context, jobID string, log *logger.Logger, cause error) error {
	reason := cause.Error()
	log.Error("render failed", "error", reason)

	if err := p.jobs.MarkFailed(ctx, jobID, reason); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error("failure not recorded", "error", err.Error())
	}
	if err := p.acker.Fail(ctx, jobID, reason); err != nil {
		return errors.Wrap(err, "processor.fail", "queue acknowledgement failed")
	}
	return cause
}
