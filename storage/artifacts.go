package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"basic-cleaning/models"
	"basic-cleaning/utils"
)

// ArtifactStore resolves, downloads, uploads and registers artifact files.
type ArtifactStore struct {
	blobs    BlobStore
	registry Registry
	cacheDir string
	logger   *utils.Logger
}

// NewArtifactStore builds a store that downloads into cacheDir.
func NewArtifactStore(blobs BlobStore, registry Registry, cacheDir string, logger *utils.Logger) *ArtifactStore {
	return &ArtifactStore{blobs: blobs, registry: registry, cacheDir: cacheDir, logger: logger}
}

// Use resolves ref, records that run consumed it, and returns the version
// together with the path of a local copy of its file. A cached copy whose
// digest still matches is reused.
func (s *ArtifactStore) Use(ctx context.Context, run *models.Run, ref models.ArtifactRef) (*models.ArtifactVersion, string, error) {
	v, err := s.registry.Resolve(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	if err := s.registry.RecordUsage(ctx, run.ID, v.ID, UsageInput); err != nil {
		return nil, "", err
	}

	local := s.localPath(v)
	if digest, _, err := fileDigest(local); err == nil && digest == v.Digest {
		s.logger.Debug("[artifacts] Cache hit for %s at %s", v.QualifiedName(), local)
		return v, local, nil
	}

	if err := s.blobs.Download(ctx, v.ObjectKey, local); err != nil {
		return nil, "", err
	}
	digest, _, err := fileDigest(local)
	if err != nil {
		return nil, "", fmt.Errorf("artifacts: digest %q: %w", local, err)
	}
	if digest != v.Digest {
		return nil, "", fmt.Errorf("artifacts: %s: got %s, want %s: %w", v.QualifiedName(), digest, v.Digest, ErrDigestMismatch)
	}
	return v, local, nil
}

// Log registers the file at localPath as a new version of spec.Name and
// records that run produced it. When the latest version already holds the
// same content, that version is returned and nothing new is registered.
func (s *ArtifactStore) Log(ctx context.Context, run *models.Run, spec models.ArtifactSpec, localPath string) (*models.ArtifactVersion, error) {
	digest, size, err := fileDigest(localPath)
	if err != nil {
		return nil, fmt.Errorf("artifacts: digest %q: %w", localPath, err)
	}

	latest, err := s.registry.Resolve(ctx, models.ArtifactRef{Name: spec.Name, Alias: models.AliasLatest, Version: -1})
	switch {
	case errors.Is(err, ErrArtifactNotFound):
		latest = nil
	case err != nil:
		return nil, err
	case latest.Type != spec.Type:
		return nil, fmt.Errorf("artifacts: %s is %q, not %q: %w", spec.Name, latest.Type, spec.Type, ErrTypeMismatch)
	case latest.Digest == digest:
		s.logger.Info("[artifacts] %s unchanged, reusing %s", spec.Name, latest.QualifiedName())
		if err := s.registry.RecordUsage(ctx, run.ID, latest.ID, UsageOutput); err != nil {
			return nil, err
		}
		return latest, nil
	}

	fileName := filepath.Base(localPath)
	key := objectKey(spec.Name, digest, fileName)

	exists, err := s.blobs.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		if _, err := s.blobs.Upload(ctx, key, localPath, contentType(fileName)); err != nil {
			return nil, err
		}
	}

	v, err := s.registry.Insert(ctx, &models.ArtifactVersion{
		Name:        spec.Name,
		Type:        spec.Type,
		Description: spec.Description,
		FileName:    fileName,
		ObjectKey:   key,
		Digest:      digest,
		Size:        size,
		Metadata:    spec.Metadata,
	})
	if err != nil {
		return nil, err
	}
	if err := s.registry.RecordUsage(ctx, run.ID, v.ID, UsageOutput); err != nil {
		return nil, err
	}

	s.logger.Info("[artifacts] Logged %s (%s, %d bytes)", v.QualifiedName(), v.Type, v.Size)
	return v, nil
}

func (s *ArtifactStore) localPath(v *models.ArtifactVersion) string {
	return filepath.Join(s.cacheDir, v.Name, fmt.Sprintf("v%d", v.Version), v.FileName)
}

// objectKey is content addressed so identical uploads share one object.
func objectKey(name, digest, fileName string) string {
	return path.Join("artifacts", name, digest, fileName)
}

func contentType(fileName string) string {
	if strings.EqualFold(filepath.Ext(fileName), ".csv") {
		return "text/csv"
	}
	return "application/octet-stream"
}

func fileDigest(p string) (string, int64, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
