package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"METADATA_DIR":   "/srv/meta",
		"ENGINE_TIMEOUT": "10m",
		"CORS_ORIGINS":   "https://a.example,https://b.example",
	})
	defer cleanup()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":8080" {
			t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.DefaultModel != "large-v3" {
			t.Errorf("DefaultModel = %q, want large-v3", cfg.DefaultModel)
		}
		if cfg.MaxConcurrentJobs != 0 || cfg.JobQueueSize != 64 {
			t.Errorf("jobs = %d/%d, want 0/64", cfg.MaxConcurrentJobs, cfg.JobQueueSize)
		}
		if cfg.OffsetSourceTimestamps {
			t.Error("OffsetSourceTimestamps = true, want false")
		}
		if cfg.ModelFetchTimeout != 5*time.Minute {
			t.Errorf("ModelFetchTimeout = %v, want 5m", cfg.ModelFetchTimeout)
		}
		if cfg.S3.Enabled() {
			t.Error("S3 enabled without a bucket")
		}
	})

	t.Run("env_vars_read", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
			t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
		}
		if cfg.EngineTimeout != 10*time.Minute {
			t.Errorf("EngineTimeout = %v, want 10m", cfg.EngineTimeout)
		}
		if cfg.SubtitlesDir != filepath.Join("/srv/meta", "subtitles") {
			t.Errorf("SubtitlesDir = %q", cfg.SubtitlesDir)
		}
		if cfg.LibrarySQLitePath != filepath.Join("/srv/meta", "library.db") {
			t.Errorf("LibrarySQLitePath = %q", cfg.LibrarySQLitePath)
		}
		if filepath.Base(cfg.TempDir) != "transcription" {
			t.Errorf("TempDir = %q", cfg.TempDir)
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		cfg, err := Load(Overrides{
			EnvFile:      "nonexistent.env",
			HTTPAddr:     ":9090",
			LogLevel:     "debug",
			MetadataDir:  "/data",
			FFmpegPath:   "/opt/ffmpeg",
			DefaultModel: "base",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.MetadataDir != "/data" || cfg.SubtitlesDir != filepath.Join("/data", "subtitles") {
			t.Errorf("MetadataDir = %q, SubtitlesDir = %q", cfg.MetadataDir, cfg.SubtitlesDir)
		}
		if cfg.FFmpegPath != "/opt/ffmpeg" {
			t.Errorf("FFmpegPath = %q", cfg.FFmpegPath)
		}
		if cfg.DefaultModel != "base" {
			t.Errorf("DefaultModel = %q", cfg.DefaultModel)
		}
	})
}

func TestLoadS3(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"S3_BUCKET":      "subs",
		"S3_ENDPOINT":    "http://minio:9000",
		"S3_LOCAL_CACHE": "false",
	})
	defer cleanup()

	cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.S3.Enabled() {
		t.Fatal("S3 not enabled")
	}
	if cfg.S3.Endpoint != "http://minio:9000" || cfg.S3.Region != "us-east-1" {
		t.Errorf("S3 = %+v", cfg.S3)
	}
	if cfg.S3.LocalCache {
		t.Error("LocalCache = true, want false")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		envs map[string]string
	}{
		{"unknown_backend", map[string]string{"LIBRARY_BACKEND": "mongo"}},
		{"postgres_without_dsn", map[string]string{"LIBRARY_BACKEND": "postgres", "DATABASE_URL": ""}},
		{"negative_concurrency", map[string]string{"MAX_CONCURRENT_JOBS": "-1"}},
		{"zero_queue", map[string]string{"JOB_QUEUE_SIZE": "0"}},
		{"bad_duration", map[string]string{"ENGINE_TIMEOUT": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setEnvs(t, tt.envs)
			defer cleanup()
			if _, err := Load(Overrides{EnvFile: "nonexistent.env"}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{"DEFAULT_LANGUAGE": ""})
	defer cleanup()
	os.Unsetenv("DEFAULT_LANGUAGE")

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("DEFAULT_LANGUAGE=spanish\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	defer os.Unsetenv("DEFAULT_LANGUAGE")

	cfg, err := Load(Overrides{EnvFile: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultLanguage != "spanish" {
		t.Errorf("DefaultLanguage = %q, want spanish", cfg.DefaultLanguage)
	}
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
