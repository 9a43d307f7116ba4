package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/snarg/scribe-engine/internal/api"
	"github.com/snarg/scribe-engine/internal/config"
	"github.com/snarg/scribe-engine/internal/database"
	"github.com/snarg/scribe-engine/internal/media"
	"github.com/snarg/scribe-engine/internal/transcribe"
)

type commandContext struct {
	overrides config.Overrides

	cfg *config.Config
	log *zerolog.Logger
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.overrides)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

// logger returns the process logger, human-readable on a terminal and JSON
// otherwise. Logs go to stderr so command output on stdout stays clean.
func (c *commandContext) logger() zerolog.Logger {
	if c.log != nil {
		return *c.log
	}
	levelName := "info"
	if c.cfg != nil {
		levelName = c.cfg.LogLevel
	}
	log := newLogger(os.Stderr, levelName)
	c.log = &log
	return log
}

func newLogger(w io.Writer, levelName string) zerolog.Logger {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil || levelName == "" {
		level = zerolog.InfoLevel
	}
	if isTerminal(w) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(level)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newEngine probes the host and builds the engine. It never fails; an engine
// without capabilities reports Available() == false.
func (c *commandContext) newEngine(ctx context.Context, cfg *config.Config) *transcribe.Engine {
	log := c.logger()
	modelsDir := transcribe.ResolveModelsDir(transcribe.ModelDirOptions{
		Explicit:    cfg.ModelsDir,
		WorkDir:     workDir(),
		ExeDir:      exeDir(),
		AppRoot:     cfg.AppRoot,
		MetadataDir: cfg.MetadataDir,
	})
	return transcribe.New(ctx, transcribe.Options{
		Detector: transcribe.DetectorOptions{
			Command:           cfg.WhisperCommand,
			Interpreter:       cfg.WhisperPython,
			Fallback:          cfg.WhisperPythonAlt,
			ConverterOverride: cfg.FFmpegPath,
			AppRoot:           cfg.AppRoot,
			MetadataDir:       cfg.MetadataDir,
		},
		ScratchDir:    cfg.TempDir,
		ModelsDir:     modelsDir,
		ArtifactDir:   cfg.SubtitlesDir,
		EngineTimeout: cfg.EngineTimeout,
		FetchTimeout:  cfg.ModelFetchTimeout,
		Log:           log,
	})
}

// library is the configured media library backend. db is non-nil only for
// postgres; health is nil for the directory backend. Database backends
// resolve stored paths against LIBRARY_DIR.
type library struct {
	media.Library
	db     *database.DB
	health api.HealthChecker
	close  func()
}

func (c *commandContext) openLibrary(ctx context.Context, cfg *config.Config) (*library, error) {
	log := c.logger()
	switch cfg.LibraryBackend {
	case "sqlite":
		lib, err := media.OpenSQLite(cfg.LibrarySQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite library: %w", err)
		}
		log.Info().Str("path", lib.Path()).Msg("media library: sqlite")
		return &library{
			Library: media.RootedLibrary{Library: lib, Root: cfg.LibraryDir},
			health:  lib,
			close:   func() { lib.Close() },
		}, nil
	case "postgres":
		dbLog := log.With().Str("component", "database").Logger()
		db, err := database.Connect(ctx, cfg.DatabaseURL, dbLog)
		if err != nil {
			return nil, fmt.Errorf("connect to library database: %w", err)
		}
		return &library{
			Library: media.RootedLibrary{Library: db, Root: cfg.LibraryDir},
			db:      db,
			health:  db,
			close:   db.Close,
		}, nil
	default:
		log.Info().Str("root", cfg.LibraryDir).Msg("media library: directory")
		return &library{Library: media.NewDirLibrary(cfg.LibraryDir), close: func() {}}, nil
	}
}

func workDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}

func exeDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}
