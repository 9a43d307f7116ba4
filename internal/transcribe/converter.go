package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	sampleRate = 16000
	// 16-bit mono PCM plus the canonical 44-byte RIFF header.
	pcmBytesPerSecond = sampleRate * 2
	wavHeaderSize     = 44
)

// Converter runs ffmpeg to turn arbitrary audio into the mono 16 kHz PCM WAV
// the engine expects.
type Converter struct {
	path    string
	runner  commandRunner
	timeout time.Duration
}

// NewConverter creates a converter for the given binary. An empty path means
// "ffmpeg" resolved through PATH.
func NewConverter(path string, timeout time.Duration) *Converter {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Converter{path: path, runner: execRunner{}, timeout: timeout}
}

// Binary returns the command used to run the converter.
func (c *Converter) Binary() string {
	if c.path == "" {
		return "ffmpeg"
	}
	return c.path
}

// ToPCM converts inputPath into a temporary WAV file inside dir. It returns the
// WAV path and a cleanup function that removes it.
func (c *Converter) ToPCM(ctx context.Context, inputPath, dir string) (string, func(), error) {
	noop := func() {}
	outPath := filepath.Join(dir, fmt.Sprintf("audio_%s.wav", uuid.NewString()))

	res, err := c.runner.Run(ctx, command{
		Name: c.Binary(),
		Args: []string{
			"-y", "-hide_banner", "-loglevel", "error",
			"-i", inputPath,
			"-vn",
			"-ac", "1",
			"-ar", fmt.Sprint(sampleRate),
			"-c:a", "pcm_s16le",
			// No LIST/INFO chunk, so the header is exactly wavHeaderSize.
			"-fflags", "+bitexact",
			outPath,
		},
		Timeout:   c.timeout,
		MaxOutput: 1 << 20,
	})
	if err != nil {
		// Clean up partial output
		os.Remove(outPath)
		if tail := lastLine(res.Stderr); tail != "" {
			return "", noop, fmt.Errorf("convert %s: %w: %s", filepath.Base(inputPath), err, tail)
		}
		return "", noop, fmt.Errorf("convert %s: %w", filepath.Base(inputPath), err)
	}

	cleanup := func() {
		os.Remove(outPath)
	}
	return outPath, cleanup, nil
}

// Silence writes a one second silent WAV to outPath.
func (c *Converter) Silence(ctx context.Context, outPath string) error {
	res, err := c.runner.Run(ctx, command{
		Name: c.Binary(),
		Args: []string{
			"-y", "-hide_banner", "-loglevel", "error",
			"-f", "lavfi",
			"-i", fmt.Sprintf("anullsrc=channel_layout=mono:sample_rate=%d", sampleRate),
			"-t", "1",
			"-acodec", "pcm_s16le",
			outPath,
		},
		Timeout: 10 * time.Second,
	})
	if err != nil {
		os.Remove(outPath)
		return fmt.Errorf("create silent fixture: %w: %s", err, lastLine(res.Stderr))
	}
	return nil
}

// Env returns base extended with every variable the engine and its helper
// libraries consult to locate ffmpeg, with the converter's directory prepended
// to PATH. base is returned unchanged when the converter comes from PATH.
func (c *Converter) Env(base []string) []string {
	if c.path == "" {
		return base
	}
	set := map[string]string{
		"FFMPEG_PATH":           c.path,
		"FFMPEG_BINARY":         c.path,
		"IMAGEIO_FFMPEG_EXE":    c.path,
		"WHISPER_FFMPEG_BINARY": c.path,
		"FFMPEG":                c.path,
	}

	dir, file := filepath.Split(c.path)
	probe := filepath.Join(dir, strings.Replace(file, "ffmpeg", "ffprobe", 1))
	if probe != c.path {
		if info, err := os.Stat(probe); err == nil && !info.IsDir() {
			set["FFPROBE_PATH"] = probe
			set["FFPROBE"] = probe
		}
	}

	env := make([]string, 0, len(base)+len(set)+1)
	pathSet := false
	for _, kv := range base {
		key, value, _ := strings.Cut(kv, "=")
		if _, ok := set[key]; ok {
			continue
		}
		if strings.EqualFold(key, "PATH") {
			kv = key + "=" + filepath.Clean(dir) + string(os.PathListSeparator) + value
			pathSet = true
		}
		env = append(env, kv)
	}
	if !pathSet {
		env = append(env, "PATH="+filepath.Clean(dir))
	}
	for key, value := range set {
		env = append(env, key+"="+value)
	}
	return env
}

// WAVDuration derives the duration in seconds of a WAV written by ToPCM from
// its size.
func WAVDuration(path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	payload := info.Size() - wavHeaderSize
	if payload < 0 {
		payload = 0
	}
	return float64(payload) / pcmBytesPerSecond, nil
}
