package blob

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"feedsync/internal/config"
	"feedsync/internal/feed"
)

// MinioStore uploads objects to a MinIO bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

var _ feed.BlobStore = (*MinioStore)(nil)

// NewMinioStore connects to the MinIO endpoint in cfg.
func NewMinioStore(cfg config.BlobConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio blob store requires endpoint to be set")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio blob store requires bucket to be set")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	return &MinioStore{client: client, bucket: cfg.Bucket, expiry: cfg.URLExpiry()}, nil
}

func (s *MinioStore) Upload(ctx context.Context, path string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType: mimetype.Detect(data).String(),
		})
	if err != nil {
		return "", fmt.Errorf("uploading %s/%s: %w", s.bucket, path, err)
	}
	return path, nil
}

func (s *MinioStore) DownloadURL(ctx context.Context, ref string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, ref, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presigning %s/%s: %w", s.bucket, ref, err)
	}
	return u.String(), nil
}
