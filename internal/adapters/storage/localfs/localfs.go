// Package localfs implements the storage provider on the local
// filesystem, for development and single-node deployments.
package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"subburner/internal/storage"
)

type LocalFS struct {
	root string
}

func New(root string) *LocalFS {
	return &LocalFS{root: root}
}

func (l *LocalFS) Provider() string { return "localfs" }

func (l *LocalFS) path(objectKey string) string {
	return filepath.Join(l.root, filepath.FromSlash(objectKey))
}

// GetSignedURL has no real signing locally; it returns a file URL with
// the nominal expiry. The API only exposes these in dev.
func (l *LocalFS) GetSignedURL(ctx context.Context, objectKey string, ttl time.Duration) (storage.SignedURL, error) {
	return storage.SignedURL{
		URL:       "file://" + l.path(objectKey),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}, nil
}

func (l *LocalFS) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	return os.Open(l.path(objectKey))
}

func (l *LocalFS) Delete(ctx context.Context, objectKey string) error {
	return os.Remove(l.path(objectKey))
}

var _ storage.Provider = (*LocalFS)(nil)
