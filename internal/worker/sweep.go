package worker

import (
	"context"
	"time"

	"subburner/internal/pkg/logger"
	"subburner/internal/queue"
	"subburner/internal/store"
)

// DefaultOrphanThreshold is how long a QUEUED row may sit without a
// worker claim before the sweep considers its enqueue lost.
const DefaultOrphanThreshold = 15 * time.Minute

const sweepInterval = time.Minute

// runSweep periodically re-dispatches orphaned jobs. A QUEUED row older
// than the threshold means the enqueue after row creation never landed,
// or the transport lost the entry; re-enqueueing is safe because the
// backend dedupes by job id and the claim transition rejects doubles.
func runSweep(ctx context.Context, d Deps, log *logger.Logger) {
	log = log.WithComponent("sweep")

	threshold := d.OrphanThreshold
	if threshold <= 0 {
		threshold = DefaultOrphanThreshold
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("sweep stopping")
			return
		case <-ticker.C:
			sweepOnce(ctx, d, threshold, log)
		}
	}
}

func sweepOnce(ctx context.Context, d Deps, threshold time.Duration, log *logger.Logger) {
	stale, err := d.Jobs.StaleQueued(ctx, threshold)
	if err != nil {
		log.Warn("stale scan failed", "error", err.Error())
		return
	}
	if len(stale) == 0 {
		return
	}

	log.Info("re-dispatching orphaned jobs", "count", len(stale))
	for _, job := range stale {
		jobLog := log.WithJobID(job.ID)

		video, err := d.Videos.VideoByID(ctx, job.VideoID, job.UserID)
		if err != nil {
			if err == store.ErrNotFound {
				jobLog.Warn("orphaned job has no source video, failing it")
				if ferr := d.Jobs.MarkFailed(ctx, job.ID, "source video no longer exists"); ferr != nil {
					jobLog.Error("orphan not failed", "error", ferr.Error())
				}
				continue
			}
			jobLog.Warn("video lookup failed, leaving job for next sweep", "error", err.Error())
			continue
		}

		err = d.Backend.Enqueue(ctx, job.ID, queue.Payload{
			JobID:     job.ID,
			UserID:    job.UserID,
			VideoID:   job.VideoID,
			SourceKey: video.SourceKey,
		})
		if err != nil {
			jobLog.Warn("re-enqueue failed, leaving job for next sweep", "error", err.Error())
			continue
		}
		jobLog.Info("orphaned job re-enqueued", "age", time.Since(job.CreatedAt).String())
	}
}
