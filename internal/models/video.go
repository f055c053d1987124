package models

import "time"

// Video is an uploaded source video. Upload and editing live outside this
// service; dispatch only resolves ownership before admitting a render.
type Video struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Title           string    `json:"title,omitempty"`
	SourceKey       string    `json:"source_key"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
