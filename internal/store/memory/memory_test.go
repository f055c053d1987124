package memory

import (
	"context"
	"testing"
	"time"

	"subburner/internal/models"
	"subburner/internal/store"
)

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	job, err := s.CreateJob(ctx, "usr_1", "vid_1")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != models.JobQueued {
		t.Errorf("new job status = %s, want QUEUED", job.Status)
	}
	if job.Progress != 0 {
		t.Errorf("new job progress = %d, want 0", job.Progress)
	}

	if err := s.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	got, _ := s.JobByID(ctx, job.ID, "usr_1")
	if got.Status != models.JobProcessing {
		t.Errorf("status = %s, want PROCESSING", got.Status)
	}
	if got.StartedAt == nil {
		t.Error("expected startedAt to be stamped on PROCESSING")
	}

	if err := s.SetProgress(ctx, job.ID, 40); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}

	if err := s.MarkCompleted(ctx, job.ID, "renders/out.mp4", "renders/project.json"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	got, _ = s.JobByID(ctx, job.ID, "usr_1")
	if got.Status != models.JobCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}
	if got.OutputKey != "renders/out.mp4" || got.ProjectFileRef != "renders/project.json" {
		t.Errorf("outputs not recorded: %+v", got)
	}
	if got.Progress != 100 {
		t.Errorf("completed progress = %d, want 100", got.Progress)
	}
	if got.CompletedAt == nil || got.StartedAt == nil {
		t.Fatal("expected both timestamps on completion")
	}
	if got.CompletedAt.Before(*got.StartedAt) || got.StartedAt.Before(got.CreatedAt) {
		t.Error("timestamps must be monotonic: createdAt <= startedAt <= completedAt")
	}
}

func TestTerminalStateIsNeverLeft(t *testing.T) {
	ctx := context.Background()

	t.Run("completed job", func(t *testing.T) {
		s := New()
		job, _ := s.CreateJob(ctx, "usr_1", "vid_1")
		_ = s.MarkProcessing(ctx, job.ID)
		_ = s.MarkCompleted(ctx, job.ID, "out", "")

		if err := s.MarkFailed(ctx, job.ID, "late failure"); err == nil {
			t.Error("MarkFailed on COMPLETED job must be rejected")
		}
		if err := s.MarkProcessing(ctx, job.ID); err == nil {
			t.Error("MarkProcessing on COMPLETED job must be rejected")
		}

		got, _ := s.JobByID(ctx, job.ID, "usr_1")
		if got.Status != models.JobCompleted {
			t.Errorf("status changed out of terminal state: %s", got.Status)
		}
	})

	t.Run("failed job", func(t *testing.T) {
		s := New()
		job, _ := s.CreateJob(ctx, "usr_1", "vid_1")
		_ = s.MarkProcessing(ctx, job.ID)
		_ = s.MarkFailed(ctx, job.ID, "renderer crashed")

		if err := s.MarkCompleted(ctx, job.ID, "out", ""); err == nil {
			t.Error("MarkCompleted on FAILED job must be rejected")
		}

		got, _ := s.JobByID(ctx, job.ID, "usr_1")
		if got.Status != models.JobFailed || got.Error != "renderer crashed" {
			t.Errorf("unexpected job after failure: %+v", got)
		}
	})
}

func TestOwnerScoping(t *testing.T) {
	ctx := context.Background()
	s := New()

	job, _ := s.CreateJob(ctx, "usr_1", "vid_1")
	s.AddVideo(&models.Video{ID: "vid_1", UserID: "usr_1", SourceKey: "videos/vid_1.mp4"})

	if _, err := s.JobByID(ctx, job.ID, "usr_2"); err != store.ErrNotFound {
		t.Errorf("cross-user job read must return ErrNotFound, got %v", err)
	}
	if _, err := s.VideoByID(ctx, "vid_1", "usr_2"); err != store.ErrNotFound {
		t.Errorf("cross-user video read must return ErrNotFound, got %v", err)
	}
}

func TestConsumeCredit(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 0; i < 2; i++ {
		ok, err := s.ConsumeCredit(ctx, "usr_1", "2026-08-29", 2)
		if err != nil || !ok {
			t.Fatalf("call %d: ok=%v err=%v, want allowed", i+1, ok, err)
		}
	}

	ok, err := s.ConsumeCredit(ctx, "usr_1", "2026-08-29", 2)
	if err != nil {
		t.Fatalf("ConsumeCredit: %v", err)
	}
	if ok {
		t.Error("third consume at limit 2 must be denied")
	}
	if used := s.CreditsUsed("usr_1", "2026-08-29"); used != 2 {
		t.Errorf("denied consume must not move the counter: used=%d", used)
	}

	// Independent day window and user.
	if ok, _ := s.ConsumeCredit(ctx, "usr_1", "2026-08-30", 2); !ok {
		t.Error("next day window must start fresh")
	}
	if ok, _ := s.ConsumeCredit(ctx, "usr_2", "2026-08-29", 2); !ok {
		t.Error("other users must be unaffected")
	}
}

func TestStaleQueued(t *testing.T) {
	ctx := context.Background()
	s := New()

	old, _ := s.CreateJob(ctx, "usr_1", "vid_1")
	fresh, _ := s.CreateJob(ctx, "usr_1", "vid_1")
	picked, _ := s.CreateJob(ctx, "usr_1", "vid_1")
	_ = s.MarkProcessing(ctx, picked.ID)

	// Backdate the first job past the threshold.
	s.mu.Lock()
	s.jobs[old.ID].CreatedAt = time.Now().UTC().Add(-time.Hour)
	s.mu.Unlock()

	stale, err := s.StaleQueued(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("StaleQueued: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != old.ID {
		t.Errorf("expected only the backdated QUEUED job, got %+v", stale)
	}
	_ = fresh
}
