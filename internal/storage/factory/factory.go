package factory

import (
	"fmt"

	"subburner/internal/adapters/storage/localfs"
	"subburner/internal/adapters/storage/s3"
	"subburner/internal/config"
	"subburner/internal/storage"
)

// NewProvider builds the storage provider selected by configuration.
// Chosen once per process, like the queue backend.
func NewProvider(cfg *config.Config) (storage.Provider, error) {
	switch cfg.StorageProvider {
	case "localfs":
		return localfs.New(cfg.StorageLocalRoot), nil

	case "s3":
		return s3.New(s3.Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.AWSRegion,
			AccessKey:    cfg.AWSAccessKey,
			SecretKey:    cfg.AWSSecretKey,
			Endpoint:     cfg.AWSEndpoint,
			UsePathStyle: cfg.S3UsePathStyle,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.StorageProvider)
	}
}
