package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// UploadReconciler scans the local artifact tree for files missing from the
// remote store and re-uploads them. Handles dropped async uploads and crash
// recovery.
type UploadReconciler struct {
	root         string
	remote       ArtifactStore
	initialDelay time.Duration
	interval     time.Duration
	log          zerolog.Logger
	stop         chan struct{}
}

// NewUploadReconciler creates a reconciler that checks for missing uploads.
func NewUploadReconciler(root string, remote ArtifactStore, log zerolog.Logger) *UploadReconciler {
	return &UploadReconciler{
		root:         root,
		remote:       remote,
		initialDelay: 2 * time.Minute,
		interval:     5 * time.Minute,
		log:          log.With().Str("component", "upload-reconciler").Logger(),
		stop:         make(chan struct{}),
	}
}

func (r *UploadReconciler) Start() { go r.loop() }
func (r *UploadReconciler) Stop()  { close(r.stop) }

func (r *UploadReconciler) loop() {
	// Delay first run to let startup uploads settle
	select {
	case <-time.After(r.initialDelay):
	case <-r.stop:
		return
	}

	r.reconcile()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.reconcile()
		case <-r.stop:
			return
		}
	}
}

// reconcile walks {root}/{item}/{file} and uploads what the remote lacks.
// Returns the number of uploaded files.
func (r *UploadReconciler) reconcile() int {
	var uploaded, failed, checked int

	itemDirs, _ := os.ReadDir(r.root)
	for _, itemDir := range itemDirs {
		if !itemDir.IsDir() {
			continue
		}
		itemPath := filepath.Join(r.root, itemDir.Name())
		files, _ := os.ReadDir(itemPath)
		for _, f := range files {
			if f.IsDir() || isTempFile(f.Name()) {
				continue
			}
			checked++
			key := itemDir.Name() + "/" + f.Name()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			exists := r.remote.Exists(ctx, key)
			cancel()
			if exists {
				continue
			}

			data, readErr := os.ReadFile(filepath.Join(itemPath, f.Name()))
			if readErr != nil {
				continue
			}

			ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
			if saveErr := r.remote.Save(ctx, key, data, contentTypeFromExt(f.Name())); saveErr != nil {
				r.log.Warn().Err(saveErr).Str("key", key).Msg("reconcile upload failed")
				failed++
			} else {
				uploaded++
			}
			cancel()
		}
	}

	if uploaded > 0 || failed > 0 {
		r.log.Info().
			Int("uploaded", uploaded).
			Int("failed", failed).
			Int("checked", checked).
			Msg("reconcile complete")
	}
	return uploaded
}
