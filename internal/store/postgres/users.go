package postgres

import (
	"context"

	"subburner/internal/models"
)

func (s *Store) UserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User

	err := s.pool.QueryRow(ctx, `
		SELECT id, email, tier, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.Tier, &u.CreatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &u, nil
}

func (s *Store) VideoByID(ctx context.Context, id, userID string) (*models.Video, error) {
	var v models.Video

	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, COALESCE(title,''), source_key,
		       COALESCE(duration_seconds, 0), created_at
		FROM videos
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&v.ID, &v.UserID, &v.Title, &v.SourceKey, &v.DurationSeconds, &v.CreatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &v, nil
}
