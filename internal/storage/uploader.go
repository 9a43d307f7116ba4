package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// AsyncUploader pushes artifacts to the remote store without blocking job
// completion. Files are already saved locally before being enqueued here.
type AsyncUploader struct {
	remote   ArtifactStore
	ch       chan uploadJob
	workers  int
	wg       sync.WaitGroup
	log      zerolog.Logger
	stopped  atomic.Bool
	stopOnce sync.Once

	// Per-key bookkeeping so Cancel can void queued and in-flight uploads.
	mu        sync.Mutex
	seq       uint64
	latest    map[string]uint64
	inflight  map[string]int
	cancelled map[string]uint64
}

type uploadJob struct {
	key         string
	data        []byte
	contentType string
	seq         uint64
}

// NewAsyncUploader creates an async uploader with the given buffer size and
// worker count.
func NewAsyncUploader(remote ArtifactStore, bufferSize, workers int, log zerolog.Logger) *AsyncUploader {
	if bufferSize < 1 {
		bufferSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &AsyncUploader{
		remote:    remote,
		ch:        make(chan uploadJob, bufferSize),
		workers:   workers,
		log:       log.With().Str("component", "async-uploader").Logger(),
		latest:    make(map[string]uint64),
		inflight:  make(map[string]int),
		cancelled: make(map[string]uint64),
	}
}

// Enqueue adds an upload job. Non-blocking; drops with a warning if full or
// stopped. The reconciler picks up anything dropped.
func (u *AsyncUploader) Enqueue(key string, data []byte, contentType string) {
	if u.stopped.Load() {
		return
	}
	u.mu.Lock()
	u.seq++
	job := uploadJob{key: key, data: data, contentType: contentType, seq: u.seq}
	u.latest[key] = job.seq
	u.inflight[key]++
	u.mu.Unlock()

	select {
	case u.ch <- job:
	default:
		u.log.Warn().Str("key", key).Msg("async upload queue full, skipping (file safe locally)")
		u.done(job)
	}
}

// Cancel voids every upload of key enqueued so far. Queued uploads are
// skipped and an upload already in progress is removed from the remote once
// it lands. Later Enqueue calls for key are unaffected.
func (u *AsyncUploader) Cancel(key string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.inflight[key] == 0 {
		return
	}
	u.cancelled[key] = u.seq
}

// state reports whether job was cancelled or replaced by a newer upload of
// the same key.
func (u *AsyncUploader) state(job uploadJob) (cancelled, superseded bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return job.seq <= u.cancelled[job.key], job.seq < u.latest[job.key]
}

func (u *AsyncUploader) done(job uploadJob) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.inflight[job.key]--
	if u.inflight[job.key] <= 0 {
		delete(u.inflight, job.key)
		delete(u.latest, job.key)
		delete(u.cancelled, job.key)
	}
}

// Start launches worker goroutines.
func (u *AsyncUploader) Start() {
	for i := 0; i < u.workers; i++ {
		u.wg.Add(1)
		go u.worker()
	}
	u.log.Info().Int("workers", u.workers).Int("buffer", cap(u.ch)).Msg("async uploader started")
}

// Stop closes the queue and waits for workers to drain it.
func (u *AsyncUploader) Stop() {
	u.stopped.Store(true)
	u.stopOnce.Do(func() { close(u.ch) })
	u.wg.Wait()
}

func (u *AsyncUploader) worker() {
	defer u.wg.Done()
	for job := range u.ch {
		u.upload(job)
		u.done(job)
	}
}

func (u *AsyncUploader) upload(job uploadJob) {
	if cancelled, superseded := u.state(job); cancelled || superseded {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := u.remote.Save(ctx, job.key, job.data, job.contentType); err != nil {
		u.log.Error().Err(err).Str("key", job.key).Msg("async S3 upload failed (file safe locally)")
		return
	}
	if cancelled, _ := u.state(job); cancelled {
		if err := u.remote.Delete(ctx, job.key); err != nil {
			u.log.Error().Err(err).Str("key", job.key).Msg("failed to remove upload of deleted artifact")
		}
	}
}
