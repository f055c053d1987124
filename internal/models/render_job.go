package models

import "time"

// JobStatus is the lifecycle state of a render job.
type JobStatus string

const (
	JobQueued     JobStatus = "QUEUED"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Valid reports whether s is one of the known job statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobProcessing, JobCompleted, JobFailed:
		return true
	}
	return false
}

// RenderJob is one render attempt for a video. Created QUEUED by the
// dispatch service; mutated afterwards only by the worker, and never
// out of a terminal state.
type RenderJob struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	VideoID        string     `json:"video_id"`
	Status         JobStatus  `json:"status"`
	Progress       int        `json:"progress"`
	OutputKey      string     `json:"output_key,omitempty"`
	ProjectFileRef string     `json:"project_file_ref,omitempty"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}
