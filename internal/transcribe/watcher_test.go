package transcribe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestModelName(t *testing.T) {
	tests := []struct {
		path string
		name string
		ok   bool
	}{
		{"/m/base.pt", "base", true},
		{"large-v3.pt", "large-v3", true},
		{"/m/.pt", "", false},
		{"/m/base.pt.part", "", false},
		{"/m/readme.txt", "", false},
	}
	for _, tt := range tests {
		name, ok := modelName(tt.path)
		if name != tt.name || ok != tt.ok {
			t.Errorf("modelName(%q) = %q, %v", tt.path, name, ok)
		}
	}
}

func TestModelWatcher(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "tiny.pt"), nil, 0o644)

	mc := NewModelCache(ModelCacheOptions{Dir: dir, ScratchDir: t.TempDir(), Log: zerolog.Nop()})
	mw := NewModelWatcher(mc, zerolog.Nop())
	if err := mw.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mw.Stop()

	if mc.State("tiny") != ModelReady {
		t.Errorf("existing model state = %q", mc.State("tiny"))
	}

	if err := os.WriteFile(filepath.Join(dir, "medium.pt"), []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for mc.State("medium") != ModelReady {
		if time.Now().After(deadline) {
			t.Fatalf("medium never marked ready, state = %q", mc.State("medium"))
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestModelWatcherMissingDir(t *testing.T) {
	mc := NewModelCache(ModelCacheOptions{Dir: filepath.Join(t.TempDir(), "absent"), Log: zerolog.Nop()})
	mw := NewModelWatcher(mc, zerolog.Nop())
	if err := mw.Start(); err == nil {
		mw.Stop()
		t.Fatal("expected error for missing directory")
	}
	// Stop on a watcher that never started is a no-op.
	mw.Stop()
}
