// Package storage defines the object-storage contract used by the
// download endpoint and the worker, plus the env-driven provider factory.
package storage

import (
	"context"
	"io"
	"time"
)

type SignedURL struct {
	URL       string
	ExpiresAt time.Time
}

// Provider abstracts where rendered outputs live (s3, localfs).
type Provider interface {
	Provider() string

	// GetSignedURL returns a time-limited URL for direct download.
	GetSignedURL(ctx context.Context, objectKey string, ttl time.Duration) (SignedURL, error)
	// Download streams the object's bytes.
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)
	// Delete removes the object.
	Delete(ctx context.Context, objectKey string) error
}
