// Package render is the dispatch core: it decides whether a render may
// start, records it, and hands it to the active queue backend.
package render

import (
	"context"
	"time"

	"subburner/internal/credit"
	"subburner/internal/models"
	"subburner/internal/pkg/errors"
	"subburner/internal/pkg/logger"
	"subburner/internal/queue"
	"subburner/internal/storage"
	"subburner/internal/store"
)

// DefaultEnqueueTimeout bounds the backend handoff so a wedged transport
// cannot hold a request open.
const DefaultEnqueueTimeout = 5 * time.Second

type Deps struct {
	Jobs           store.JobStore
	Videos         store.VideoStore
	Credits        *credit.Gate
	Backend        queue.Backend
	Storage        storage.Provider
	EnqueueTimeout time.Duration
	Log            *logger.Logger
}

type Service struct {
	jobs           store.JobStore
	videos         store.VideoStore
	credits        *credit.Gate
	backend        queue.Backend
	storage        storage.Provider
	enqueueTimeout time.Duration
	log            *logger.Logger
}

func New(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	if d.EnqueueTimeout <= 0 {
		d.EnqueueTimeout = DefaultEnqueueTimeout
	}
	return &Service{
		jobs:           d.Jobs,
		videos:         d.Videos,
		credits:        d.Credits,
		backend:        d.Backend,
		storage:        d.Storage,
		enqueueTimeout: d.EnqueueTimeout,
		log:            log.WithComponent("dispatch"),
	}
}

// Submit admits one render request. Steps run in order and short-circuit:
//
//  1. resolve the video, owner-scoped (NOT_FOUND, no side effects)
//  2. consume one daily credit (RATE_LIMITED, nothing persisted)
//  3. create the QUEUED job row; it survives an enqueue failure so a
//     lost dispatch stays observable
//  4. enqueue on the active backend under a bounded timeout
//     (QUEUE_UNAVAILABLE; the credit from step 2 is not refunded)
//
// A transient backend outage therefore costs the user one credit.
// Refunding on failure would reopen a double-spend race, so the
// conservative policy stands until product decides otherwise.
func (s *Service) Submit(ctx context.Context, userID, videoID string, dailyLimit int) (*models.RenderJob, error) {
	log := s.log.FromContext(ctx).WithUserID(userID)

	video, err := s.videos.VideoByID(ctx, videoID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFound("video", videoID)
		}
		return nil, errors.Wrap(err, "render.submit", "video lookup failed")
	}

	ok, err := s.credits.TryConsume(ctx, userID, dailyLimit)
	if err != nil {
		return nil, errors.Wrap(err, "render.submit", "credit check failed")
	}
	if !ok {
		log.Info("render rejected, daily limit reached", "daily_limit", dailyLimit)
		return nil, errors.RateLimited("daily render limit reached").
			WithField("daily_limit", dailyLimit)
	}

	job, err := s.jobs.CreateJob(ctx, userID, videoID)
	if err != nil {
		return nil, errors.Wrap(err, "render.submit", "job record creation failed")
	}
	log = log.WithJobID(job.ID)

	if err := s.enqueue(ctx, job, video); err != nil {
		// The QUEUED row stays behind on purpose: it is the signature
		// the orphan sweep looks for.
		log.Error("enqueue failed, job row left QUEUED",
			"backend", s.backend.Name(),
			"error", err.Error(),
		)
		return nil, err
	}

	log.Info("render dispatched", "backend", s.backend.Name(), "video_id", videoID)
	return job, nil
}

// enqueue races the backend handoff against the configured timeout so
// the orchestrator never blocks indefinitely on transport I/O.
func (s *Service) enqueue(ctx context.Context, job *models.RenderJob, video *models.Video) error {
	enqCtx, cancel := context.WithTimeout(ctx, s.enqueueTimeout)
	defer cancel()

	payload := queue.Payload{
		JobID:     job.ID,
		UserID:    job.UserID,
		VideoID:   video.ID,
		SourceKey: video.SourceKey,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.backend.Enqueue(enqCtx, job.ID, payload)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.WrapWithCode(err, errors.CodeQueueUnavailable,
				"render.enqueue", "queue backend rejected the job")
		}
		return nil
	case <-enqCtx.Done():
		return errors.WrapWithCode(enqCtx.Err(), errors.CodeQueueUnavailable,
			"render.enqueue", "queue backend timed out")
	}
}

// Job returns the caller's job. Status is read from the record store,
// never from the queue transport.
func (s *Service) Job(ctx context.Context, id, userID string) (*models.RenderJob, error) {
	job, err := s.jobs.JobByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFound("render job", id)
		}
		return nil, errors.Wrap(err, "render.job", "job lookup failed")
	}
	return job, nil
}

// DownloadURL returns a signed URL for a completed render's output.
func (s *Service) DownloadURL(ctx context.Context, id, userID string, ttl time.Duration) (string, error) {
	job, err := s.Job(ctx, id, userID)
	if err != nil {
		return "", err
	}
	if job.Status != models.JobCompleted {
		return "", errors.New(errors.CodeConflict, "render is not completed yet").
			WithField("status", string(job.Status))
	}

	signed, err := s.storage.GetSignedURL(ctx, job.OutputKey, ttl)
	if err != nil {
		return "", errors.Wrap(err, "render.download", "signing output URL failed")
	}
	return signed.URL, nil
}
