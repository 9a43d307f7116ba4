package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConverterToPCM(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{run: func(_ context.Context, c command) (commandResult, error) {
		out := c.Args[len(c.Args)-1]
		return commandResult{}, os.WriteFile(out, make([]byte, wavHeaderSize+pcmBytesPerSecond*2), 0o644)
	}}
	conv := &Converter{path: "/opt/bin/ffmpeg", runner: r, timeout: time.Minute}

	wav, cleanup, err := conv.ToPCM(context.Background(), "/books/ch1.m4b", dir)
	if err != nil {
		t.Fatalf("ToPCM: %v", err)
	}
	if filepath.Dir(wav) != dir || filepath.Ext(wav) != ".wav" {
		t.Errorf("wav = %q", wav)
	}

	c := r.calls[0]
	if c.Name != "/opt/bin/ffmpeg" {
		t.Errorf("Name = %q", c.Name)
	}
	args := strings.Join(c.Args, " ")
	for _, want := range []string{"-i /books/ch1.m4b", "-ac 1", "-ar 16000", "-c:a pcm_s16le"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}

	d, err := WAVDuration(wav)
	if err != nil || d != 2 {
		t.Errorf("WAVDuration = %v, %v; want 2", d, err)
	}

	cleanup()
	if _, err := os.Stat(wav); !errors.Is(err, os.ErrNotExist) {
		t.Error("cleanup did not remove the wav")
	}
}

func TestConverterToPCMFailure(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{run: func(_ context.Context, c command) (commandResult, error) {
		out := c.Args[len(c.Args)-1]
		os.WriteFile(out, []byte("partial"), 0o644)
		return commandResult{Stderr: "ch1.m4b: Invalid data found when processing input", ExitCode: 1}, errors.New("exit status 1")
	}}
	conv := &Converter{runner: r, timeout: time.Minute}

	_, cleanup, err := conv.ToPCM(context.Background(), "ch1.m4b", dir)
	cleanup()
	if err == nil || !strings.Contains(err.Error(), "Invalid data") {
		t.Fatalf("err = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("partial output left behind: %v", entries)
	}
	if r.calls[0].Name != "ffmpeg" {
		t.Errorf("Name = %q, want PATH lookup", r.calls[0].Name)
	}
}

func TestConverterEnv(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := filepath.Join(dir, "ffmpeg")
	ffprobe := filepath.Join(dir, "ffprobe")
	os.WriteFile(ffmpeg, nil, 0o755)
	os.WriteFile(ffprobe, nil, 0o755)

	conv := NewConverter(ffmpeg, 0)
	env := conv.Env([]string{"HOME=/root", "PATH=/usr/bin", "FFMPEG_PATH=/old"})

	got := map[string]string{}
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		if _, dup := got[k]; dup {
			t.Errorf("duplicate key %s", k)
		}
		got[k] = v
	}
	for _, k := range []string{"FFMPEG_PATH", "FFMPEG_BINARY", "IMAGEIO_FFMPEG_EXE", "WHISPER_FFMPEG_BINARY", "FFMPEG"} {
		if got[k] != ffmpeg {
			t.Errorf("%s = %q", k, got[k])
		}
	}
	if got["FFPROBE_PATH"] != ffprobe || got["FFPROBE"] != ffprobe {
		t.Errorf("ffprobe vars = %q %q", got["FFPROBE_PATH"], got["FFPROBE"])
	}
	if got["PATH"] != dir+string(os.PathListSeparator)+"/usr/bin" {
		t.Errorf("PATH = %q", got["PATH"])
	}
	if got["HOME"] != "/root" {
		t.Error("unrelated variables dropped")
	}

	base := []string{"PATH=/usr/bin"}
	if env := NewConverter("", 0).Env(base); len(env) != 1 || env[0] != base[0] {
		t.Errorf("PATH-resolved converter changed env: %v", env)
	}
}

func TestWAVDurationMissing(t *testing.T) {
	if _, err := WAVDuration(filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Error("expected error")
	}
}
