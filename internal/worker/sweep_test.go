package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"subburner/internal/models"
	"subburner/internal/pkg/logger"
	"subburner/internal/queue"
	"subburner/internal/store/memory"
)

type captureBackend struct {
	mu       sync.Mutex
	payloads []queue.Payload
	failWith error
}

func (b *captureBackend) Name() string { return "capture" }

func (b *captureBackend) Enqueue(ctx context.Context, jobID string, p queue.Payload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return b.failWith
	}
	b.payloads = append(b.payloads, p)
	return nil
}

func (b *captureBackend) Status(ctx context.Context, jobID string) (queue.Status, error) {
	return queue.StatusQueued, nil
}

func TestSweepReenqueuesOrphans(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	mem.AddUser(&models.User{ID: "usr_1", Tier: models.TierFree})
	mem.AddVideo(&models.Video{ID: "vid_1", UserID: "usr_1", SourceKey: "uploads/v.mp4"})

	orphan, err := mem.CreateJob(ctx, "usr_1", "vid_1")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	mem.BackdateJob(orphan.ID, time.Now().Add(-time.Hour))

	fresh, err := mem.CreateJob(ctx, "usr_1", "vid_1")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	backend := &captureBackend{}
	d := Deps{Jobs: mem, Videos: mem, Backend: backend}
	sweepOnce(ctx, d, 15*time.Minute, logger.NewDefault())

	if len(backend.payloads) != 1 {
		t.Fatalf("re-enqueued %d jobs, want 1", len(backend.payloads))
	}
	got := backend.payloads[0]
	if got.JobID != orphan.ID || got.SourceKey != "uploads/v.mp4" {
		t.Errorf("payload = %+v", got)
	}
	_ = fresh
}

func TestSweepFailsJobWithMissingVideo(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	mem.AddUser(&models.User{ID: "usr_1", Tier: models.TierFree})
	mem.AddVideo(&models.Video{ID: "vid_1", UserID: "usr_1", SourceKey: "uploads/v.mp4"})

	orphan, err := mem.CreateJob(ctx, "usr_1", "vid_1")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	mem.BackdateJob(orphan.ID, time.Now().Add(-time.Hour))
	mem.RemoveVideo("vid_1")

	backend := &captureBackend{}
	sweepOnce(ctx, Deps{Jobs: mem, Videos: mem, Backend: backend}, 15*time.Minute, logger.NewDefault())

	if len(backend.payloads) != 0 {
		t.Errorf("job without a video should not be re-enqueued")
	}
	got, err := mem.JobByID(ctx, orphan.ID, "usr_1")
	if err != nil {
		t.Fatalf("JobByID: %v", err)
	}
	if got.Status != models.JobFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
}

func TestSweepLeavesJobOnBackendError(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	mem.AddUser(&models.User{ID: "usr_1", Tier: models.TierFree})
	mem.AddVideo(&models.Video{ID: "vid_1", UserID: "usr_1", SourceKey: "uploads/v.mp4"})

	orphan, err := mem.CreateJob(ctx, "usr_1", "vid_1")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	mem.BackdateJob(orphan.ID, time.Now().Add(-time.Hour))

	backend := &captureBackend{failWith: fmt.Errorf("broker down")}
	sweepOnce(ctx, Deps{Jobs: mem, Videos: mem, Backend: backend}, 15*time.Minute, logger.NewDefault())

	got, _ := mem.JobByID(ctx, orphan.ID, "usr_1")
	if got.Status != models.JobQueued {
		t.Errorf("status = %s, want QUEUED for the next sweep", got.Status)
	}
}
