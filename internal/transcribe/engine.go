// Package transcribe drives the external speech-to-text engine: it probes the
// host for the engine and ffmpeg, tracks model readiness, converts audio and
// runs one engine subprocess per audio file.
package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the engine at startup.
type Options struct {
	Detector      DetectorOptions
	ScratchDir    string
	ModelsDir     string
	ArtifactDir   string
	EngineTimeout time.Duration
	FetchTimeout  time.Duration
	Log           zerolog.Logger
}

// Engine transcribes audio files with the external engine.
type Engine struct {
	caps    Capabilities
	conv    *Converter
	invoker *Invoker
	models  *ModelCache
	scratch string
	log     zerolog.Logger
}

// Transcript is the engine output for one audio source.
type Transcript struct {
	Segments []Segment
	// Duration of the converted audio in seconds.
	Duration float64
}

// New creates the scratch, models and artifact directories and probes the
// host. It never fails: when a directory cannot be created or the engine is
// not found the returned engine reports Available() == false.
func New(ctx context.Context, opts Options) *Engine {
	log := opts.Log.With().Str("component", "engine").Logger()
	opts.Detector.Log = opts.Log

	dirsOK := true
	dirs := []string{opts.ScratchDir, opts.ModelsDir}
	if opts.ArtifactDir != "" {
		dirs = append(dirs, opts.ArtifactDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error().Err(err).Str("dir", dir).Msg("cannot create working directory, engine disabled")
			dirsOK = false
		}
	}

	var caps Capabilities
	if dirsOK {
		caps = NewDetector(opts.Detector).Detect(ctx)
	}
	return newEngine(caps, opts)
}

func newEngine(caps Capabilities, opts Options) *Engine {
	conv := NewConverter(caps.ConverterPath, opts.EngineTimeout)
	return &Engine{
		caps: caps,
		conv: conv,
		invoker: NewInvoker(InvokerOptions{
			Interpreter: caps.Interpreter,
			Env:         conv.Env(os.Environ()),
			Timeout:     opts.EngineTimeout,
			Log:         opts.Log,
		}),
		models: NewModelCache(ModelCacheOptions{
			Dir:          opts.ModelsDir,
			ScratchDir:   opts.ScratchDir,
			FetchTimeout: opts.FetchTimeout,
			Capabilities: caps,
			Converter:    conv,
			Log:          opts.Log,
		}),
		scratch: opts.ScratchDir,
		log:     opts.Log.With().Str("component", "engine").Logger(),
	}
}

// Available reports whether the engine was found at startup.
func (e *Engine) Available() bool { return e.caps.Available() }

// Capabilities returns the startup probe results.
func (e *Engine) Capabilities() Capabilities { return e.caps }

// Models returns the model readiness cache.
func (e *Engine) Models() *ModelCache { return e.models }

// ScratchDir returns the directory used for temporary files.
func (e *Engine) ScratchDir() string { return e.scratch }

// EnsureReady delegates to the model cache.
func (e *Engine) EnsureReady(ctx context.Context, model string) (bool, error) {
	return e.models.EnsureReady(ctx, model)
}

// ResetModel clears a failed readiness entry.
func (e *Engine) ResetModel(model string) bool { return e.models.Reset(model) }

// Transcribe converts sourcePath to PCM and runs the engine on it. language
// may be a name, a code or "auto"; unknown values fall back to detection.
func (e *Engine) Transcribe(ctx context.Context, sourcePath, language, model string) (Transcript, error) {
	if !e.Available() {
		return Transcript{}, fmt.Errorf("engine unavailable")
	}
	log := e.log.With().Str("source", filepath.Base(sourcePath)).Str("model", model).Logger()

	code, err := NormalizeLanguage(language)
	if err != nil {
		log.Warn().Err(err).Msg("unrecognized language, using auto-detection")
		code = ""
	}

	wav, cleanup, err := e.conv.ToPCM(ctx, sourcePath, e.scratch)
	if err != nil {
		return Transcript{}, err
	}
	defer cleanup()

	duration, err := WAVDuration(wav)
	if err != nil {
		log.Warn().Err(err).Msg("could not determine audio duration")
	}

	req := NewRequest(e.caps, wav, model, code, e.models.LocalPath(model), e.scratch)
	segments, err := e.invoker.Invoke(ctx, req)
	if err != nil {
		return Transcript{}, err
	}
	return Transcript{Segments: segments, Duration: duration}, nil
}
