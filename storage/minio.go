package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"basic-cleaning/config"
	"basic-cleaning/utils"
)

// MinioBlobStore keeps artifact files in an S3-compatible bucket.
type MinioBlobStore struct {
	client *minio.Client
	bucket string
	logger *utils.Logger
}

// NewMinioBlobStore connects to the MinIO endpoint described by cfg.
func NewMinioBlobStore(cfg *config.Config, logger *utils.Logger) (*MinioBlobStore, error) {
	if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" {
		return nil, fmt.Errorf("minio: missing one or more required settings: MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY")
	}

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: create client: %w", err)
	}

	logger.Info("[minio] Using endpoint %s, bucket %s", cfg.MinioEndpoint, cfg.ArtifactBucket)
	return &MinioBlobStore{client: client, bucket: cfg.ArtifactBucket, logger: logger}, nil
}

// EnsureBucket creates the artifact bucket if it does not exist yet.
func (s *MinioBlobStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("minio: check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("minio: make bucket %q: %w", s.bucket, err)
	}
	s.logger.Info("[minio] Created bucket %s", s.bucket)
	return nil
}

// Exists reports whether key is already stored.
func (s *MinioBlobStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("minio: stat %q: %w", key, err)
}

// Upload stores the file at localPath under key and returns its size.
func (s *MinioBlobStore) Upload(ctx context.Context, key, localPath, contentType string) (int64, error) {
	info, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return 0, fmt.Errorf("minio: upload %q: %w", key, err)
	}
	s.logger.Debug("[minio] Uploaded %s (%d bytes)", key, info.Size)
	return info.Size, nil
}

// Download writes the object at key to localPath, creating parent directories.
func (s *MinioBlobStore) Download(ctx context.Context, key, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("minio: create download dir: %w", err)
	}
	if err := s.client.FGetObject(ctx, s.bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("minio: download %q: %w", key, err)
	}
	s.logger.Debug("[minio] Downloaded %s to %s", key, localPath)
	return nil
}
