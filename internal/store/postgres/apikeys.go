package postgres

import (
	"context"
	"database/sql"

	"subburner/internal/models"
	"subburner/internal/store"
)

const keyColumns = `id, user_id, COALESCE(name,''), key_prefix, key_hash,
	scopes, rate_limit_per_minute, created_at, expires_at,
	revoked_at, COALESCE(revoked_reason,''), is_active`

func (s *Store) InsertKey(ctx context.Context, key *models.APIKey) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO api_keys
			(id, user_id, name, key_prefix, key_hash, scopes,
			 rate_limit_per_minute, expires_at, is_active)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7, $8, true)
		RETURNING created_at
	`, key.ID, key.UserID, key.Name, key.KeyPrefix, key.KeyHash,
		key.Scopes, key.RateLimitPerMinute, key.ExpiresAt,
	).Scan(&key.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *Store) KeyByPrefix(ctx context.Context, prefix string) (*models.APIKey, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+keyColumns+`
		FROM api_keys
		WHERE key_prefix = $1
	`, prefix)
	return scanKey(row)
}

func (s *Store) KeyByID(ctx context.Context, id, userID string) (*models.APIKey, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+keyColumns+`
		FROM api_keys
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	return scanKey(row)
}

func (s *Store) KeysByUser(ctx context.Context, userID string) ([]models.APIKey, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+keyColumns+`
		FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

func (s *Store) RevokeKey(ctx context.Context, id, userID, reason string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE api_keys
		SET revoked_at = now(), revoked_reason = $3, is_active = false
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
	`, id, userID, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RotateKey revokes the old key and inserts its replacement in one
// transaction, so no interleaving can observe two live keys or none.
func (s *Store) RotateKey(ctx context.Context, oldID, userID string, replacement *models.APIKey) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE api_keys
		SET revoked_at = now(), revoked_reason = 'Rotated', is_active = false
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
	`, oldID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO api_keys
			(id, user_id, name, key_prefix, key_hash, scopes,
			 rate_limit_per_minute, expires_at, is_active)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7, $8, true)
		RETURNING created_at
	`, replacement.ID, replacement.UserID, replacement.Name,
		replacement.KeyPrefix, replacement.KeyHash, replacement.Scopes,
		replacement.RateLimitPerMinute, replacement.ExpiresAt,
	).Scan(&replacement.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return err
	}

	return tx.Commit(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (*models.APIKey, error) {
	var (
		k                    models.APIKey
		expiresAt, revokedAt sql.NullTime
	)

	err := row.Scan(
		&k.ID, &k.UserID, &k.Name, &k.KeyPrefix, &k.KeyHash,
		&k.Scopes, &k.RateLimitPerMinute, &k.CreatedAt, &expiresAt,
		&revokedAt, &k.RevokedReason, &k.IsActive,
	)
	if err != nil {
		return nil, mapNoRows(err)
	}

	if expiresAt.Valid {
		k.ExpiresAt = &expiresAt.Time
	}
	if revokedAt.Valid {
		k.RevokedAt = &revokedAt.Time
	}
	return &k, nil
}
