package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ConsumeCredit performs the conditional increment as one statement. The
// ON CONFLICT update only fires while the counter is below the limit, so
// concurrent callers serialize on the row and the counter can never pass
// the limit. No row returned means the limit was already reached.
func (s *Store) ConsumeCredit(ctx context.Context, userID, day string, limit int) (bool, error) {
	if limit <= 0 {
		return false, nil
	}

	var used int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO render_credits (user_id, day, used)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, day)
		DO UPDATE SET used = render_credits.used + 1
		WHERE render_credits.used < $3
		RETURNING used
	`, userID, day, limit).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return used <= limit, nil
}
