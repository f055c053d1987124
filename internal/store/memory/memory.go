// Package memory is an in-process store.Store used by tests and local
// development. It enforces the same lifecycle guards as the postgres
// implementation: owner scoping, terminal-state immutability, and the
// atomic conditional credit increment.
package memory

import (
	"context"
	"sync"
	"time"

	"subburner/internal/models"
	"subburner/internal/store"
)

type Store struct {
	mu      sync.Mutex
	jobs    map[string]*models.RenderJob
	videos  map[string]*models.Video
	users   map[string]*models.User
	keys    map[string]*models.APIKey
	credits map[string]int // userID|day -> used
}

func New() *Store {
	return &Store{
		jobs:    make(map[string]*models.RenderJob),
		videos:  make(map[string]*models.Video),
		users:   make(map[string]*models.User),
		keys:    make(map[string]*models.APIKey),
		credits: make(map[string]int),
	}
}

// AddVideo seeds a video row.
func (s *Store) AddVideo(v *models.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	s.videos[v.ID] = v
}

// AddUser seeds a user row.
func (s *Store) AddUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = u
}

// RemoveVideo drops a seeded video row.
func (s *Store) RemoveVideo(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.videos, id)
}

// BackdateJob rewinds a job's creation time, for aging-based tests.
func (s *Store) BackdateJob(id string, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.CreatedAt = createdAt
	}
}

func (s *Store) CreateJob(ctx context.Context, userID, videoID string) (*models.RenderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &models.RenderJob{
		ID:        models.NewID("job"),
		UserID:    userID,
		VideoID:   videoID,
		Status:    models.JobQueued,
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}
	s.jobs[job.ID] = job

	out := *job
	return &out, nil
}

func (s *Store) JobByID(ctx context.Context, id, userID string) (*models.RenderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.UserID != userID {
		return nil, store.ErrNotFound
	}
	out := *job
	return &out, nil
}

func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobQueued {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	job.Status = models.JobProcessing
	job.StartedAt = &now
	return nil
}

func (s *Store) SetProgress(ctx context.Context, id string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobProcessing {
		return store.ErrNotFound
	}
	job.Progress = progress
	return nil
}

func (s *Store) MarkCompleted(ctx context.Context, id, outputKey, projectFileRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobProcessing {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	job.Status = models.JobCompleted
	job.Progress = 100
	job.OutputKey = outputKey
	job.ProjectFileRef = projectFileRef
	job.CompletedAt = &now
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	job.Status = models.JobFailed
	job.Error = reason
	job.CompletedAt = &now
	return nil
}

func (s *Store) StaleQueued(ctx context.Context, olderThan time.Duration) ([]models.RenderJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var out []models.RenderJob
	for _, job := range s.jobs {
		if job.Status == models.JobQueued && job.CreatedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (s *Store) VideoByID(ctx context.Context, id, userID string) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok || v.UserID != userID {
		return nil, store.ErrNotFound
	}
	out := *v
	return &out, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *Store) ConsumeCredit(ctx context.Context, userID, day string, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userID + "|" + day
	if s.credits[key] >= limit {
		return false, nil
	}
	s.credits[key]++
	return true, nil
}

// CreditsUsed reports the current counter, for test assertions.
func (s *Store) CreditsUsed(userID, day string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credits[userID+"|"+day]
}

// JobCount reports the number of job rows, for test assertions.
func (s *Store) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Store) InsertKey(ctx context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range s.keys {
		if k.KeyPrefix == key.KeyPrefix {
			return store.ErrDuplicate
		}
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	cp := *key
	s.keys[key.ID] = &cp
	return nil
}

func (s *Store) KeyByPrefix(ctx context.Context, prefix string) (*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range s.keys {
		if k.KeyPrefix == prefix {
			out := *k
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) KeyByID(ctx context.Context, id, userID string) (*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[id]
	if !ok || k.UserID != userID {
		return nil, store.ErrNotFound
	}
	out := *k
	return &out, nil
}

func (s *Store) KeysByUser(ctx context.Context, userID string) ([]models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.APIKey
	for _, k := range s.keys {
		if k.UserID == userID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (s *Store) RevokeKey(ctx context.Context, id, userID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revokeLocked(id, userID, reason)
}

func (s *Store) RotateKey(ctx context.Context, oldID, userID string, replacement *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.revokeLocked(oldID, userID, "Rotated"); err != nil {
		return err
	}
	if replacement.CreatedAt.IsZero() {
		replacement.CreatedAt = time.Now().UTC()
	}
	cp := *replacement
	s.keys[replacement.ID] = &cp
	return nil
}

func (s *Store) revokeLocked(id, userID, reason string) error {
	k, ok := s.keys[id]
	if !ok || k.UserID != userID || k.RevokedAt != nil {
		return store.ErrNotFound
	}
	now := time.Now().UTC()
	k.RevokedAt = &now
	k.RevokedReason = reason
	k.IsActive = false
	return nil
}

var _ store.Store = (*Store)(nil)
