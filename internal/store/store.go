// Package store defines the persistence contracts consumed by the
// dispatch core. Job and key rows are owned by a single user: every read
// and mutation on them is scoped by owner id, never by id alone.
package store

import (
	"context"
	"errors"
	"time"

	"subburner/internal/models"
)

// ErrNotFound is returned for absent rows and rows owned by another user.
// Callers must not be able to tell the two apart.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert collides with a uniqueness
// constraint, such as two keys sharing a prefix.
var ErrDuplicate = errors.New("duplicate record")

// JobStore is the durable record of each render job. CreateJob is called
// only by the dispatch service; the Mark/Set mutators only by the worker.
type JobStore interface {
	CreateJob(ctx context.Context, userID, videoID string) (*models.RenderJob, error)
	JobByID(ctx context.Context, id, userID string) (*models.RenderJob, error)

	// MarkProcessing transitions QUEUED -> PROCESSING and stamps startedAt.
	// A no-op returning ErrNotFound if the job is not QUEUED.
	MarkProcessing(ctx context.Context, id string) error
	// SetProgress updates progress while PROCESSING.
	SetProgress(ctx context.Context, id string, progress int) error
	// MarkCompleted transitions PROCESSING -> COMPLETED with the output.
	MarkCompleted(ctx context.Context, id, outputKey, projectFileRef string) error
	// MarkFailed transitions a non-terminal job to FAILED.
	MarkFailed(ctx context.Context, id, reason string) error

	// StaleQueued returns QUEUED jobs older than the threshold with no
	// worker update: the orphaned-job signature left by an enqueue that
	// timed out after the row was created.
	StaleQueued(ctx context.Context, olderThan time.Duration) ([]models.RenderJob, error)
}

// VideoStore resolves video ownership before a render is admitted.
type VideoStore interface {
	VideoByID(ctx context.Context, id, userID string) (*models.Video, error)
}

// UserStore resolves the authenticated user and their billing tier.
type UserStore interface {
	UserByID(ctx context.Context, id string) (*models.User, error)
}

// CreditStore holds the per-user per-day render counters. ConsumeCredit
// must be a single atomic conditional increment: it increments the
// counter for (userID, day) and reports whether the result stayed at or
// below limit; at the limit the counter is left unchanged and it returns
// false. Safe under arbitrary concurrent callers for the same user.
type CreditStore interface {
	ConsumeCredit(ctx context.Context, userID, day string, limit int) (bool, error)
}

// APIKeyStore persists programmatic credentials.
type APIKeyStore interface {
	InsertKey(ctx context.Context, key *models.APIKey) error
	KeyByPrefix(ctx context.Context, prefix string) (*models.APIKey, error)
	KeyByID(ctx context.Context, id, userID string) (*models.APIKey, error)
	KeysByUser(ctx context.Context, userID string) ([]models.APIKey, error)
	// RevokeKey marks the key revoked with a reason. Revocation is
	// terminal; revoking an already-revoked key returns ErrNotFound.
	RevokeKey(ctx context.Context, id, userID, reason string) error
	// RotateKey inserts the replacement and revokes the old key in one
	// transaction.
	RotateKey(ctx context.Context, oldID, userID string, replacement *models.APIKey) error
}

// Store aggregates the individual contracts; both the postgres and the
// in-memory implementation satisfy it.
type Store interface {
	JobStore
	VideoStore
	UserStore
	CreditStore
	APIKeyStore
}
