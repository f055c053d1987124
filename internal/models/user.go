package models

import "time"

// Tier is a user's billing plan.
type Tier string

const (
	TierFree   Tier = "FREE"
	TierPro    Tier = "PRO"
	TierStudio Tier = "STUDIO"
)

// RendersPerDay returns the daily render allowance for the tier.
func (t Tier) RendersPerDay() int {
	switch t {
	case TierPro:
		return 50
	case TierStudio:
		return 500
	default:
		return 2
	}
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Tier      Tier      `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}
