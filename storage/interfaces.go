package storage

import (
	"context"
	"errors"

	"basic-cleaning/models"
)

var (
	// ErrArtifactNotFound is returned when a reference resolves to no version.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrTypeMismatch is returned when an artifact name is logged with a type
	// other than the one it was first registered with.
	ErrTypeMismatch = errors.New("artifact type mismatch")
	// ErrDigestMismatch is returned when a downloaded file does not match the
	// digest recorded for its version.
	ErrDigestMismatch = errors.New("artifact digest mismatch")
)

// UsageDirection says whether a run consumed or produced an artifact version.
type UsageDirection string

const (
	UsageInput  UsageDirection = "input"
	UsageOutput UsageDirection = "output"
)

// BlobStore holds artifact file contents.
type BlobStore interface {
	EnsureBucket(ctx context.Context) error
	Exists(ctx context.Context, key string) (bool, error)
	Upload(ctx context.Context, key, localPath, contentType string) (int64, error)
	Download(ctx context.Context, key, localPath string) error
}

// Registry records artifact versions, aliases, runs and lineage.
type Registry interface {
	StartRun(ctx context.Context, jobType string, config map[string]any) (*models.Run, error)
	FinishRun(ctx context.Context, runID int64, status models.RunStatus) error
	Resolve(ctx context.Context, ref models.ArtifactRef) (*models.ArtifactVersion, error)
	Insert(ctx context.Context, v *models.ArtifactVersion) (*models.ArtifactVersion, error)
	RecordUsage(ctx context.Context, runID, versionID int64, dir UsageDirection) error
	Close() error
}
