package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"

	"github.com/rs/zerolog"
)

// TieredStore combines local disk (source of truth) with a remote backup.
// Write path: save locally first (never block on S3), then push to S3.
// Read path: local first, remote fallback with cache-on-read.
type TieredStore struct {
	remote   ArtifactStore
	local    *LocalStore
	uploader *AsyncUploader
	log      zerolog.Logger
}

// NewTieredStore creates a tiered local-primary + remote-backup store. A nil
// uploader makes Save push to the remote synchronously.
func NewTieredStore(remote ArtifactStore, local *LocalStore, uploader *AsyncUploader, log zerolog.Logger) *TieredStore {
	return &TieredStore{
		remote:   remote,
		local:    local,
		uploader: uploader,
		log:      log.With().Str("component", "tiered-store").Logger(),
	}
}

// Save writes to local disk first (fatal on failure), then the remote
// (warning on failure). The upload reconciler catches missed uploads.
func (s *TieredStore) Save(ctx context.Context, key string, data []byte, ct string) error {
	if err := s.local.Save(ctx, key, data, ct); err != nil {
		return err
	}
	if s.uploader != nil {
		s.uploader.Enqueue(key, data, ct)
		return nil
	}
	if err := s.remote.Save(ctx, key, data, ct); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("S3 backup write failed, reconciler will retry")
	}
	return nil
}

func (s *TieredStore) LocalPath(key string) string {
	return s.local.LocalPath(key)
}

// Open checks local disk first, then falls back to the remote. On a remote
// hit the file is cached locally for future reads.
func (s *TieredStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if r, err := s.local.Open(ctx, key); err == nil {
		return r, nil
	}
	r, err := s.remote.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return nil, err
	}
	// Best-effort local cache write
	if cacheErr := s.local.Save(ctx, key, data, contentTypeFromExt(key)); cacheErr != nil {
		s.log.Warn().Err(cacheErr).Str("key", key).Msg("failed to cache S3 file locally")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *TieredStore) Exists(ctx context.Context, key string) bool {
	if s.local.Exists(ctx, key) {
		return true
	}
	return s.remote.Exists(ctx, key)
}

// Delete removes the artifact from both tiers and voids any pending upload of
// it. A remote failure is returned after the local copy is gone.
func (s *TieredStore) Delete(ctx context.Context, key string) error {
	if s.uploader != nil {
		s.uploader.Cancel(key)
	}
	localErr := s.local.Delete(ctx, key)
	remoteErr := s.remote.Delete(ctx, key)
	return errors.Join(localErr, remoteErr)
}

// List returns the union of local and remote keys. A remote failure degrades
// to the local listing.
func (s *TieredStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.local.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	remote, err := s.remote.List(ctx, prefix)
	if err != nil {
		s.log.Warn().Err(err).Str("prefix", prefix).Msg("S3 list failed, using local listing")
		return keys, nil
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	for _, k := range remote {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *TieredStore) Type() string { return "tiered" }
