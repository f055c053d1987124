// Package s3 implements the storage provider on S3-compatible object
// storage. Download URLs are presigned GETs; nothing proxies bytes
// through the API in production.
package s3

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"subburner/internal/storage"
)

type Options struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	Endpoint     string
	UsePathStyle bool
}

type S3 struct {
	svc    s3iface.S3API
	bucket string
}

func New(opts Options) *S3 {
	awsCfg := &aws.Config{
		Region: aws.String(opts.Region),
	}
	if opts.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}
	if opts.Endpoint != "" {
		awsCfg.Endpoint = aws.String(opts.Endpoint)
	}
	if opts.UsePathStyle {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess := session.Must(session.NewSession(awsCfg))

	return &S3{
		svc:    awss3.New(sess),
		bucket: opts.Bucket,
	}
}

// NewWithClient builds a provider around an existing S3 client.
func NewWithClient(svc s3iface.S3API, bucket string) *S3 {
	return &S3{svc: svc, bucket: bucket}
}

func (s *S3) Provider() string { return "s3" }

func (s *S3) GetSignedURL(ctx context.Context, objectKey string, ttl time.Duration) (storage.SignedURL, error) {
	req, _ := s.svc.GetObjectRequest(&awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})

	url, err := req.Presign(ttl)
	if err != nil {
		return storage.SignedURL{}, fmt.Errorf("presign %s: %w", objectKey, err)
	}

	return storage.SignedURL{
		URL:       url,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}, nil
}

func (s *S3) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	out, err := s.svc.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", objectKey, err)
	}
	return out.Body, nil
}

func (s *S3) Delete(ctx context.Context, objectKey string) error {
	_, err := s.svc.DeleteObjectWithContext(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", objectKey, err)
	}
	return nil
}

var _ storage.Provider = (*S3)(nil)
