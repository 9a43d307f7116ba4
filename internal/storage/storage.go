// Package storage persists subtitle artifacts on local disk, in S3, or both.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/scribe-engine/internal/config"
	"github.com/snarg/scribe-engine/internal/subtitle"
)

// ErrNotFound is returned by Open when the key does not exist.
var ErrNotFound = errors.New("artifact not found")

// ArtifactStore abstracts artifact storage backends.
type ArtifactStore interface {
	// Save stores an artifact. key format: {item_id}/{language}.{srt|vtt}
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// Open returns a reader for the artifact, or ErrNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks if an artifact exists in any backend.
	Exists(ctx context.Context, key string) bool

	// Delete removes an artifact. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys directly under prefix (an item id), sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// LocalPath returns the local filesystem path if the file exists on disk.
	// Returns "" if not available locally.
	LocalPath(key string) string

	// Type returns "local", "s3", or "tiered".
	Type() string
}

// BackgroundService is a stoppable background goroutine.
type BackgroundService interface {
	Start()
	Stop()
}

// New creates an ArtifactStore based on config. Returns the store and optional
// background services (uploader, reconciler) that the caller must Start/Stop.
// Returns an error if S3 is configured but unreachable.
func New(cfg config.S3Config, dir string, log zerolog.Logger) (ArtifactStore, []BackgroundService, error) {
	if !cfg.Enabled() {
		return NewLocalStore(dir), nil, nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	if !cfg.LocalCache {
		return s3store, nil, nil
	}

	// Tiered mode: local primary + S3 backup
	uploader := NewAsyncUploader(s3store, cfg.UploadQueue, cfg.UploadWorkers, log)
	tiered := NewTieredStore(s3store, NewLocalStore(dir), uploader, log)
	reconciler := NewUploadReconciler(dir, s3store, log)

	return tiered, []BackgroundService{uploader, reconciler}, nil
}

// ArtifactKey builds the storage key of one subtitle artifact.
func ArtifactKey(itemID, language string, format subtitle.Format) string {
	return itemID + "/" + language + format.Ext()
}

// contentTypeFromExt returns the MIME type for an artifact file extension.
func contentTypeFromExt(name string) string {
	if f, err := subtitle.ParseFormat(filepath.Ext(name)); err == nil {
		return f.ContentType()
	}
	return "application/octet-stream"
}

func isTempFile(name string) bool {
	return strings.HasPrefix(name, ".artifact-") && strings.HasSuffix(name, ".tmp")
}
