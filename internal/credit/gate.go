// Package credit gates render admission on the user's daily allowance.
package credit

import (
	"context"
	"time"

	"subburner/internal/pkg/errors"
	"subburner/internal/store"
)

// Gate decides whether a user may start one more render today. The
// decision is a single conditional increment on the backing store; there
// is no read-then-write window at this layer and no retry is needed.
type Gate struct {
	credits store.CreditStore
	loc     *time.Location
	now     func() time.Time
}

// New creates a gate. loc is the service reference timezone for the
// calendar-day window; nil means UTC.
func New(credits store.CreditStore, loc *time.Location) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	return &Gate{
		credits: credits,
		loc:     loc,
		now:     time.Now,
	}
}

// TryConsume atomically takes one render credit for today. It returns
// false when the daily limit is already reached; the counter is left
// unchanged in that case. Store failures surface as UNAVAILABLE rather
// than as an allow or deny.
func (g *Gate) TryConsume(ctx context.Context, userID string, dailyLimit int) (bool, error) {
	ok, err := g.credits.ConsumeCredit(ctx, userID, g.Day(), dailyLimit)
	if err != nil {
		return false, errors.WrapWithCode(err, errors.CodeUnavailable,
			"credit.consume", "credit store unreachable")
	}
	return ok, nil
}

// Day returns the current day window key in the reference timezone.
func (g *Gate) Day() string {
	return g.now().In(g.loc).Format("2006-01-02")
}
