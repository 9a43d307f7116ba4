package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/scribe-engine/internal/media"
	"github.com/snarg/scribe-engine/internal/metrics"
	"github.com/snarg/scribe-engine/internal/storage"
	"github.com/snarg/scribe-engine/internal/subtitle"
	"github.com/snarg/scribe-engine/internal/transcribe"
)

// Engine is the part of the transcription engine the manager drives.
type Engine interface {
	Available() bool
	EnsureReady(ctx context.Context, model string) (bool, error)
	ResetModel(model string) bool
	Transcribe(ctx context.Context, sourcePath, language, model string) (transcribe.Transcript, error)
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Library   media.Library
	Engine    Engine
	Artifacts storage.ArtifactStore
	Notifier  Notifier

	DefaultLanguage string
	DefaultModel    string
	// OffsetTimestamps shifts each source's cues by the total duration of
	// the sources before it.
	OffsetTimestamps bool

	// MaxConcurrent 0 runs every accepted job immediately.
	MaxConcurrent int
	QueueSize     int

	Log zerolog.Logger
}

// Manager accepts transcription submissions and owns the job records.
type Manager struct {
	opts  ManagerOptions
	store *Store
	pool  *WorkerPool
	log   zerolog.Logger
	now   func() time.Time

	// ctx is cancelled by Close and bounds every running job.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(opts ManagerOptions) *Manager {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = transcribe.LanguageAuto
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = transcribe.RecommendedModel
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 64
	}
	log := opts.Log.With().Str("component", "jobs").Logger()
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		opts:   opts,
		store:  NewStore(),
		pool:   NewWorkerPool(opts.MaxConcurrent, opts.QueueSize, log),
		log:    log,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
	m.pool.Start()
	return m
}

// Submit starts a transcription of itemID and returns the new processing
// record. The work itself runs in the background; poll Status for progress.
func (m *Manager) Submit(ctx context.Context, itemID string, opts Options) (Job, error) {
	if err := ValidateIdentifier("item id", itemID); err != nil {
		return Job{}, err
	}
	language := opts.Language
	if language == "" {
		language = m.opts.DefaultLanguage
	}
	if err := ValidateIdentifier("language", language); err != nil {
		return Job{}, err
	}
	model := opts.Model
	if model == "" {
		model = m.opts.DefaultModel
	}

	if m.store.Get(itemID).Status == StatusProcessing {
		return Job{}, ErrAlreadyProcessing
	}

	sources, err := m.opts.Library.AudioSources(ctx, itemID)
	if errors.Is(err, media.ErrItemNotFound) {
		return Job{}, fmt.Errorf("%w: %v", ErrNoAudioSources, err)
	}
	if err != nil {
		return Job{}, fmt.Errorf("enumerate audio sources: %w", err)
	}
	if len(sources) == 0 {
		return Job{}, ErrNoAudioSources
	}

	if !m.opts.Engine.Available() {
		return Job{}, ErrEngineUnavailable
	}

	start := m.now()
	job := Job{
		ID:        uuid.NewString(),
		ItemID:    itemID,
		Status:    StatusProcessing,
		StartTime: &start,
		Progress:  0,
		Language:  language,
		Model:     model,
	}
	prev, err := m.store.Begin(job)
	if err != nil {
		return Job{}, err
	}

	if opts.Force && m.opts.Engine.ResetModel(model) {
		m.log.Info().Str("model", model).Msg("cleared failed model state")
	}

	// The task waits until the processing record is published.
	published := make(chan struct{})
	ok := m.pool.Enqueue(func() {
		<-published
		m.run(job, sources)
	})
	if !ok {
		m.store.Restore(itemID, prev)
		return Job{}, ErrQueueFull
	}
	m.notify(job)
	close(published)

	metrics.JobsSubmittedTotal.Inc()
	m.log.Info().
		Str("item_id", itemID).
		Str("job_id", job.ID).
		Str("language", language).
		Str("model", model).
		Int("sources", len(sources)).
		Msg("transcription submitted")
	return job.clone(), nil
}

// Status returns the record for itemID, or a not_started record.
func (m *Manager) Status(itemID string) Job {
	return m.store.Get(itemID)
}

func (m *Manager) run(job Job, sources []media.AudioSource) {
	ctx := m.ctx
	log := m.log.With().Str("item_id", job.ItemID).Str("job_id", job.ID).Logger()
	started := m.now()
	defer func() {
		if r := recover(); r != nil {
			m.fail(log, job, started, fmt.Errorf("transcription panicked: %v", r))
		}
	}()

	if _, err := m.opts.Engine.EnsureReady(ctx, job.Model); err != nil {
		m.fail(log, job, started, fmt.Errorf("prepare model: %w", err))
		return
	}

	total := len(sources)
	var cues []subtitle.Cue
	var offset float64
	for i, src := range sources {
		m.setProgress(job, i*100/total)
		if err := ctx.Err(); err != nil {
			m.fail(log, job, started, fmt.Errorf("transcription stopped: %w", err))
			return
		}
		if src.Path == "" {
			m.fail(log, job, started, fmt.Errorf("audio source %d (%s) has no path", i+1, src.DisplayName))
			return
		}

		log.Info().
			Str("source", src.DisplayName).
			Int("index", i+1).
			Int("total", total).
			Msg("transcribing source")
		tr, err := m.opts.Engine.Transcribe(ctx, src.Path, job.Language, job.Model)
		if err != nil {
			m.fail(log, job, started, fmt.Errorf("transcribe %s: %w", src.DisplayName, err))
			return
		}
		cues = appendCues(cues, tr.Segments, offset)
		if m.opts.OffsetTimestamps {
			offset += tr.Duration
		}
		m.setProgress(job, min(99, (i+1)*100/total))
	}

	paths, err := m.writeArtifacts(ctx, job, cues)
	if err != nil {
		m.fail(log, job, started, err)
		return
	}

	end := m.now()
	n := len(cues)
	done, ok := m.store.Update(job.ItemID, job.ID, func(j *Job) {
		j.Status = StatusCompleted
		j.Progress = 100
		j.EndTime = &end
		j.ArtifactPaths = &paths
		j.CueCount = &n
	})
	elapsed := end.Sub(started)
	metrics.JobsFinishedTotal.WithLabelValues(string(StatusCompleted)).Inc()
	metrics.JobDuration.WithLabelValues(string(StatusCompleted)).Observe(elapsed.Seconds())
	metrics.JobCues.Observe(float64(n))
	log.Info().
		Int("cues", n).
		Int64("duration_ms", elapsed.Milliseconds()).
		Msg("transcription complete")
	if ok {
		m.notify(done)
	}
}

func (m *Manager) fail(log zerolog.Logger, job Job, started time.Time, err error) {
	end := m.now()
	failed, ok := m.store.Update(job.ItemID, job.ID, func(j *Job) {
		j.Status = StatusError
		j.Error = err.Error()
		j.EndTime = &end
		j.ArtifactPaths = nil
		j.CueCount = nil
	})
	metrics.JobsFinishedTotal.WithLabelValues(string(StatusError)).Inc()
	metrics.JobDuration.WithLabelValues(string(StatusError)).Observe(end.Sub(started).Seconds())
	log.Error().Err(err).Msg("transcription failed")
	if ok {
		m.notify(failed)
	}
}

func (m *Manager) setProgress(job Job, progress int) {
	updated, ok := m.store.Update(job.ItemID, job.ID, func(j *Job) {
		if progress > j.Progress {
			j.Progress = progress
		}
	})
	if ok {
		m.notify(updated)
	}
}

func (m *Manager) notify(job Job) {
	if m.opts.Notifier != nil {
		m.opts.Notifier.JobChanged(job)
	}
}

// appendCues converts engine segments to cues. Segments without text are
// dropped and an end before the start is clamped to the start.
func appendCues(cues []subtitle.Cue, segments []transcribe.Segment, offset float64) []subtitle.Cue {
	for _, s := range segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		start, end := s.Start+offset, s.End+offset
		if end < start {
			end = start
		}
		cues = append(cues, subtitle.Cue{
			Index: len(cues) + 1,
			Start: start,
			End:   end,
			Text:  text,
		})
	}
	return cues
}

// writeArtifacts encodes and saves both formats. If any save fails the ones
// already written are removed.
func (m *Manager) writeArtifacts(ctx context.Context, job Job, cues []subtitle.Cue) (ArtifactPaths, error) {
	var written []string
	var paths ArtifactPaths
	for _, f := range subtitle.Formats {
		key := storage.ArtifactKey(job.ItemID, job.Language, f)
		data := subtitle.Encode(cues, f)
		if err := m.opts.Artifacts.Save(ctx, key, []byte(data), f.ContentType()); err != nil {
			for _, k := range written {
				if delErr := m.opts.Artifacts.Delete(ctx, k); delErr != nil {
					m.log.Warn().Err(delErr).Str("key", k).Msg("failed to remove partial artifact")
				}
			}
			return ArtifactPaths{}, fmt.Errorf("%w: save %s: %v", ErrIOFailure, key, err)
		}
		written = append(written, key)

		p := m.opts.Artifacts.LocalPath(key)
		if p == "" {
			p = key
		}
		switch f {
		case subtitle.FormatSRT:
			paths.SRT = p
		case subtitle.FormatVTT:
			paths.VTT = p
		}
	}
	return paths, nil
}

// ListArtifacts reports the languages with at least one artifact for itemID.
// Listing failures are logged and yield an empty list.
func (m *Manager) ListArtifacts(ctx context.Context, itemID string) []Artifact {
	if ValidateIdentifier("item id", itemID) != nil {
		return []Artifact{}
	}
	keys, err := m.opts.Artifacts.List(ctx, itemID)
	if err != nil {
		m.log.Warn().Err(err).Str("item_id", itemID).Msg("failed to list artifacts")
		return []Artifact{}
	}

	byLang := map[string]map[string]bool{}
	for _, k := range keys {
		name := path.Base(k)
		ext := path.Ext(name)
		f, err := subtitle.ParseFormat(ext)
		if err != nil {
			continue
		}
		lang := strings.TrimSuffix(name, ext)
		if byLang[lang] == nil {
			byLang[lang] = map[string]bool{}
			for _, ff := range subtitle.Formats {
				byLang[lang][string(ff)] = false
			}
		}
		byLang[lang][string(f)] = true
	}

	out := make([]Artifact, 0, len(byLang))
	for lang, formats := range byLang {
		out = append(out, Artifact{Language: lang, Formats: formats})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Language < out[j].Language })
	return out
}

// ReadArtifact returns the content of one artifact.
func (m *Manager) ReadArtifact(ctx context.Context, itemID, language string, format subtitle.Format) (string, error) {
	if err := ValidateIdentifier("item id", itemID); err != nil {
		return "", err
	}
	if err := ValidateIdentifier("language", language); err != nil {
		return "", err
	}
	key := storage.ArtifactKey(itemID, language, format)
	r, err := m.opts.Artifacts.Open(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrIOFailure, key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrIOFailure, key, err)
	}
	return string(data), nil
}

// DeleteArtifacts removes both formats for language. Missing files are not
// an error; it reports false only when a removal failed.
func (m *Manager) DeleteArtifacts(ctx context.Context, itemID, language string) bool {
	if ValidateIdentifier("item id", itemID) != nil || ValidateIdentifier("language", language) != nil {
		return false
	}
	ok := true
	for _, f := range subtitle.Formats {
		key := storage.ArtifactKey(itemID, language, f)
		if err := m.opts.Artifacts.Delete(ctx, key); err != nil {
			m.log.Error().Err(err).Str("key", key).Msg("failed to delete artifact")
			ok = false
		}
	}
	return ok
}

// ActiveJobs returns the number of processing jobs.
func (m *Manager) ActiveJobs() int { return m.store.Count(StatusProcessing) }

// QueuedJobs returns the number of accepted jobs waiting for a worker.
func (m *Manager) QueuedJobs() int { return m.pool.Stats().Pending }

// Close stops accepting jobs, cancels the running ones and waits for them to
// record their failure. Queued jobs fail without invoking the engine.
func (m *Manager) Close() {
	m.cancel()
	m.pool.Stop()
}
