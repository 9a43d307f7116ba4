package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/snarg/scribe-engine/internal/metrics"
)

// ModelState is the readiness of one engine model.
type ModelState string

const (
	ModelUnknown     ModelState = "unknown"
	ModelDownloading ModelState = "downloading"
	ModelReady       ModelState = "ready"
	ModelError       ModelState = "error"
)

// RecommendedModel is the default model for new jobs.
const RecommendedModel = "large-v3"

// Catalog lists the models the engine can fetch, smallest first.
var Catalog = []string{"tiny", "base", "small", "medium", "large-v1", "large-v2", "large-v3"}

const modelExt = ".pt"

// FixtureFiles are the long-lived files the cache keeps in the scratch dir.
var FixtureFiles = []string{fixtureName, fixtureName + ".lock"}

const fixtureName = "silence.wav"

// ModelInfo describes a model for listing.
type ModelInfo struct {
	Name        string     `json:"name"`
	State       ModelState `json:"state"`
	Installed   bool       `json:"installed"`
	Recommended bool       `json:"recommended"`
}

// ModelCacheOptions configures a ModelCache.
type ModelCacheOptions struct {
	Dir          string        // directory of pre-installed <model>.pt files
	ScratchDir   string        // where the silent fixture and fetch output live
	FetchTimeout time.Duration // default 5m
	Capabilities Capabilities
	Converter    *Converter
	Log          zerolog.Logger
}

// ModelCache tracks per-model readiness so concurrent submissions never start
// duplicate fetches. Entries are created lazily and never removed, except that
// Reset clears an error entry.
type ModelCache struct {
	mu     sync.Mutex
	states map[string]ModelState

	opts   ModelCacheOptions
	runner commandRunner
	log    zerolog.Logger

	fixtureMu sync.Mutex
}

// NewModelCache creates an empty cache.
func NewModelCache(opts ModelCacheOptions) *ModelCache {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Minute
	}
	if opts.Converter == nil {
		opts.Converter = NewConverter(opts.Capabilities.ConverterPath, 0)
	}
	return &ModelCache{
		states: make(map[string]ModelState),
		opts:   opts,
		runner: execRunner{},
		log:    opts.Log.With().Str("component", "models").Logger(),
	}
}

// Dir returns the directory searched for pre-installed models.
func (mc *ModelCache) Dir() string { return mc.opts.Dir }

// LocalPath returns the pre-installed file for model, or "" when absent.
func (mc *ModelCache) LocalPath(model string) string {
	if mc.opts.Dir == "" {
		return ""
	}
	p := filepath.Join(mc.opts.Dir, model+modelExt)
	if info, err := os.Stat(p); err == nil && !info.IsDir() {
		return p
	}
	return ""
}

// EnsureReady makes sure model is usable by the engine. It returns false
// without blocking while another caller is fetching the same model; callers
// treat that as "try again later", not as a failure. Otherwise it returns true
// once the model is installed or the engine has fetched it, and a
// *ModelPreparationError if the fetch failed.
func (mc *ModelCache) EnsureReady(ctx context.Context, model string) (bool, error) {
	mc.mu.Lock()
	switch mc.states[model] {
	case ModelDownloading:
		mc.mu.Unlock()
		mc.log.Info().Str("model", model).Msg("model fetch already in progress")
		return false, nil
	case ModelReady:
		mc.mu.Unlock()
		return true, nil
	}
	if p := mc.LocalPath(model); p != "" {
		mc.states[model] = ModelReady
		mc.mu.Unlock()
		mc.log.Info().Str("model", model).Str("path", p).Msg("using installed model")
		return true, nil
	}
	mc.states[model] = ModelDownloading
	mc.mu.Unlock()

	start := time.Now()
	err := mc.fetch(ctx, model)

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if err != nil {
		mc.states[model] = ModelError
		metrics.ModelPreparationsTotal.WithLabelValues(model, "error").Inc()
		mc.log.Error().Err(err).Str("model", model).Msg("model preparation failed")
		return false, &ModelPreparationError{Model: model, Err: err}
	}
	mc.states[model] = ModelReady
	metrics.ModelPreparationsTotal.WithLabelValues(model, "ready").Inc()
	mc.log.Info().
		Str("model", model).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("model ready")
	return true, nil
}

// fetch runs the engine CLI against a silent fixture, which makes the engine
// download the model into its own cache.
func (mc *ModelCache) fetch(ctx context.Context, model string) error {
	caps := mc.opts.Capabilities
	if !caps.Available() {
		return errors.New("engine unavailable")
	}
	fixture, err := mc.ensureFixture(ctx)
	if err != nil {
		return err
	}

	args := append([]string{}, caps.Invocation[1:]...)
	args = append(args,
		"--model", model,
		"--output_format", "txt",
		"--output_dir", mc.opts.ScratchDir,
		fixture,
	)
	res, err := mc.runner.Run(ctx, command{
		Name:      caps.Invocation[0],
		Args:      args,
		Dir:       mc.opts.ScratchDir,
		Env:       mc.opts.Converter.Env(os.Environ()),
		Timeout:   mc.opts.FetchTimeout,
		MaxOutput: DefaultMaxOutput,
	})

	// The CLI writes a transcript of the fixture next to it.
	txt := strings.TrimSuffix(fixture, filepath.Ext(fixture)) + ".txt"
	if rmErr := os.Remove(txt); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		mc.log.Warn().Err(rmErr).Str("path", txt).Msg("failed to remove fetch output")
	}

	if err != nil {
		if errors.Is(err, ErrSubprocessTimeout) {
			return err
		}
		return &SubprocessError{ExitCode: res.ExitCode, Stderr: res.Stderr, Err: err}
	}
	return nil
}

// ensureFixture creates the silent WAV once and reuses it. The file lock
// keeps two processes sharing the scratch dir from writing it concurrently.
func (mc *ModelCache) ensureFixture(ctx context.Context) (string, error) {
	mc.fixtureMu.Lock()
	defer mc.fixtureMu.Unlock()

	path := filepath.Join(mc.opts.ScratchDir, fixtureName)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("lock silent fixture: %w", err)
	}
	defer lock.Unlock()

	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := mc.opts.Converter.Silence(ctx, path); err != nil {
		return "", err
	}
	return path, nil
}

// State returns the cached state of model.
func (mc *ModelCache) State(model string) ModelState {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if s, ok := mc.states[model]; ok {
		return s
	}
	return ModelUnknown
}

// MarkReady records that model became available outside a fetch, e.g. a
// model file copied into the models directory.
func (mc *ModelCache) MarkReady(model string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.states[model] != ModelReady {
		mc.states[model] = ModelReady
		mc.log.Info().Str("model", model).Msg("model marked ready")
	}
}

// Reset clears a failed entry so the next EnsureReady retries the fetch.
// Other states are left alone. It reports whether an entry was cleared.
func (mc *ModelCache) Reset(model string) bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.states[model] != ModelError {
		return false
	}
	delete(mc.states, model)
	return true
}

// ReadyModels returns the number of models in the ready state.
func (mc *ModelCache) ReadyModels() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	n := 0
	for _, s := range mc.states {
		if s == ModelReady {
			n++
		}
	}
	return n
}

// Models lists the catalog plus any other model seen by the cache.
func (mc *ModelCache) Models() []ModelInfo {
	mc.mu.Lock()
	seen := make(map[string]ModelState, len(mc.states))
	for name, s := range mc.states {
		seen[name] = s
	}
	mc.mu.Unlock()

	names := append([]string{}, Catalog...)
	var extra []string
	for name := range seen {
		if !isCatalogModel(name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	out := make([]ModelInfo, 0, len(names))
	for _, name := range names {
		state, ok := seen[name]
		if !ok {
			state = ModelUnknown
		}
		out = append(out, ModelInfo{
			Name:        name,
			State:       state,
			Installed:   mc.LocalPath(name) != "",
			Recommended: name == RecommendedModel,
		})
	}
	return out
}

func isCatalogModel(name string) bool {
	for _, m := range Catalog {
		if m == name {
			return true
		}
	}
	return false
}

// ModelDirOptions lists the locations ResolveModelsDir considers.
type ModelDirOptions struct {
	Explicit    string
	WorkDir     string
	ExeDir      string
	AppRoot     string
	MetadataDir string
}

// ResolveModelsDir picks the models directory: an explicit setting wins, then
// the first of <wd>/whisper/models, <exe dir>/whisper/models and
// <app root>/whisper/models that holds at least one model file, falling back
// to <metadata>/whisper-models.
func ResolveModelsDir(opts ModelDirOptions) string {
	if opts.Explicit != "" {
		return opts.Explicit
	}
	for _, root := range []string{opts.WorkDir, opts.ExeDir, opts.AppRoot} {
		if root == "" {
			continue
		}
		dir := filepath.Join(root, "whisper", "models")
		if hasModelFiles(dir) {
			return dir
		}
	}
	return filepath.Join(opts.MetadataDir, "whisper-models")
}

func hasModelFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), modelExt) {
			return true
		}
	}
	return false
}
