package transcribe

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const modelDebounce = 500 * time.Millisecond

// ModelWatcher marks models ready when their files appear in the models
// directory, so a model copied in by hand is used without a restart.
type ModelWatcher struct {
	cache *ModelCache
	dir   string
	log   zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup

	// Debounce: a large model file produces a long run of Write events.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer
}

// NewModelWatcher creates a watcher for the cache's models directory.
func NewModelWatcher(cache *ModelCache, log zerolog.Logger) *ModelWatcher {
	return &ModelWatcher{
		cache:          cache,
		dir:            cache.Dir(),
		log:            log.With().Str("component", "model-watcher").Logger(),
		done:           make(chan struct{}),
		debounceTimers: make(map[string]*time.Timer),
	}
}

// Start marks already-present model files ready and begins watching.
func (mw *ModelWatcher) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(mw.dir); err != nil {
		w.Close()
		return err
	}
	mw.watcher = w

	entries, err := os.ReadDir(mw.dir)
	if err == nil {
		for _, e := range entries {
			if name, ok := modelName(e.Name()); ok && !e.IsDir() {
				mw.cache.MarkReady(name)
			}
		}
	}

	mw.wg.Add(1)
	go mw.watchLoop()
	mw.log.Info().Str("dir", mw.dir).Msg("model watcher started")
	return nil
}

// Stop closes the watcher and cancels pending debounce timers.
func (mw *ModelWatcher) Stop() {
	if mw.watcher == nil {
		return
	}
	close(mw.done)
	mw.watcher.Close()
	mw.wg.Wait()

	mw.debounceMu.Lock()
	for path, t := range mw.debounceTimers {
		t.Stop()
		delete(mw.debounceTimers, path)
	}
	mw.debounceMu.Unlock()
	mw.log.Info().Msg("model watcher stopped")
}

func (mw *ModelWatcher) watchLoop() {
	defer mw.wg.Done()
	for {
		select {
		case <-mw.done:
			return

		case event, ok := <-mw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if _, ok := modelName(event.Name); !ok {
				continue
			}
			mw.schedule(event.Name)

		case err, ok := <-mw.watcher.Errors:
			if !ok {
				return
			}
			mw.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

func (mw *ModelWatcher) schedule(path string) {
	mw.debounceMu.Lock()
	defer mw.debounceMu.Unlock()

	if t, ok := mw.debounceTimers[path]; ok {
		t.Reset(modelDebounce)
		return
	}
	mw.debounceTimers[path] = time.AfterFunc(modelDebounce, func() {
		mw.debounceMu.Lock()
		delete(mw.debounceTimers, path)
		mw.debounceMu.Unlock()

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return
		}
		name, _ := modelName(path)
		mw.cache.MarkReady(name)
	})
}

func modelName(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, modelExt) || base == modelExt {
		return "", false
	}
	return strings.TrimSuffix(base, modelExt), true
}
