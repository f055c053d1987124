package postgres

import (
	"context"
	"database/sql"
	"time"

	"subburner/internal/models"
	"subburner/internal/store"
)

const jobColumns = `id, user_id, video_id, status, progress,
	COALESCE(output_key,''), COALESCE(project_file_ref,''), COALESCE(error,''),
	created_at, started_at, completed_at`

func (s *Store) CreateJob(ctx context.Context, userID, videoID string) (*models.RenderJob, error) {
	job := &models.RenderJob{
		ID:      models.NewID("job"),
		UserID:  userID,
		VideoID: videoID,
		Status:  models.JobQueued,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO render_jobs (id, user_id, video_id, status, progress)
		VALUES ($1, $2, $3, 'QUEUED', 0)
		RETURNING created_at
	`, job.ID, userID, videoID).Scan(&job.CreatedAt)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Store) JobByID(ctx context.Context, id, userID string) (*models.RenderJob, error) {
	var (
		job                    models.RenderJob
		startedAt, completedAt sql.NullTime
	)

	err := s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM render_jobs
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(
		&job.ID, &job.UserID, &job.VideoID, &job.Status, &job.Progress,
		&job.OutputKey, &job.ProjectFileRef, &job.Error,
		&job.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, mapNoRows(err)
	}

	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return &job, nil
}

func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE render_jobs
		SET status = 'PROCESSING', started_at = now()
		WHERE id = $1 AND status = 'QUEUED'
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetProgress(ctx context.Context, id string, progress int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE render_jobs
		SET progress = $2
		WHERE id = $1 AND status = 'PROCESSING'
	`, id, progress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) MarkCompleted(ctx context.Context, id, outputKey, projectFileRef string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE render_jobs
		SET status = 'COMPLETED', progress = 100,
		    output_key = $2, project_file_ref = NULLIF($3, ''),
		    completed_at = now()
		WHERE id = $1 AND status = 'PROCESSING'
	`, id, outputKey, projectFileRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE render_jobs
		SET status = 'FAILED', error = $2, completed_at = now()
		WHERE id = $1 AND status IN ('QUEUED', 'PROCESSING')
	`, id, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) StaleQueued(ctx context.Context, olderThan time.Duration) ([]models.RenderJob, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM render_jobs
		WHERE status = 'QUEUED' AND created_at < $1
		ORDER BY created_at ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RenderJob
	for rows.Next() {
		var (
			job                    models.RenderJob
			startedAt, completedAt sql.NullTime
		)
		if err := rows.Scan(
			&job.ID, &job.UserID, &job.VideoID, &job.Status, &job.Progress,
			&job.OutputKey, &job.ProjectFileRef, &job.Error,
			&job.CreatedAt, &startedAt, &completedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}
