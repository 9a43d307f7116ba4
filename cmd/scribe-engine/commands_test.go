package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/snarg/scribe-engine/internal/media"
)

const sampleSRT = "1\n00:00:00,000 --> 00:00:01,500\nhola\n\n2\n00:00:01,500 --> 00:00:03,000\nmundo\n"

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "book.srt")
	if err := os.WriteFile(in, []byte(sampleSRT), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("default_output", func(t *testing.T) {
		if _, err := runCommand(t, "convert", in); err != nil {
			t.Fatalf("convert: %v", err)
		}
		data, err := os.ReadFile(filepath.Join(dir, "book.vtt"))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(data), "WEBVTT") || !strings.Contains(string(data), "00:00:01.500 --> 00:00:03.000") {
			t.Errorf("unexpected VTT:\n%s", data)
		}
	})

	t.Run("stdout", func(t *testing.T) {
		out, err := runCommand(t, "convert", in, "--to", "vtt", "-o", "-")
		if err != nil {
			t.Fatalf("convert: %v", err)
		}
		if !strings.Contains(out, "mundo") {
			t.Errorf("stdout = %q", out)
		}
	})

	t.Run("same_format_needs_output", func(t *testing.T) {
		if _, err := runCommand(t, "convert", in, "--to", "srt"); err == nil {
			t.Error("expected error when output would overwrite input")
		}
	})

	t.Run("bad_format", func(t *testing.T) {
		if _, err := runCommand(t, "convert", in, "--to", "ass"); err == nil {
			t.Error("expected error for unsupported format")
		}
	})
}

func TestFileLibrary(t *testing.T) {
	lib := fileLibrary{itemID: "book", sources: []media.AudioSource{{Path: "/a.mp3"}}}
	got, err := lib.AudioSources(context.Background(), "book")
	if err != nil || len(got) != 1 {
		t.Fatalf("AudioSources = %v, %v", got, err)
	}
	if _, err := lib.AudioSources(context.Background(), "other"); !errors.Is(err, media.ErrItemNotFound) {
		t.Errorf("unknown item err = %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "warn")
	if log.GetLevel() != zerolog.WarnLevel {
		t.Errorf("level = %v, want warn", log.GetLevel())
	}
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"message":"shown"`) {
		t.Errorf("output = %q", buf.String())
	}

	if newLogger(&buf, "bogus").GetLevel() != zerolog.InfoLevel {
		t.Error("invalid level should fall back to info")
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Language", "srt"}, [][]string{{"es", "yes"}, {"en"}}, []columnAlignment{alignLeft, alignRight})
	for _, want := range []string{"Language", "es", "yes", "en"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("empty headers should render nothing")
	}
}
