package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken   string   `env:"AUTH_TOKEN"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`

	// Directory layout. Empty SubtitlesDir and ModelsDir are derived from
	// MetadataDir; empty TempDir is <cwd>/temp/transcription.
	MetadataDir  string `env:"METADATA_DIR" envDefault:"./metadata"`
	SubtitlesDir string `env:"SUBTITLES_DIR"`
	TempDir      string `env:"TEMP_DIR"`
	ModelsDir    string `env:"MODELS_DIR"`
	AppRoot      string `env:"APP_ROOT"`

	// Engine
	FFmpegPath        string        `env:"FFMPEG_PATH"`
	WhisperCommand    string        `env:"WHISPER_COMMAND" envDefault:"whisper"`
	WhisperPython     string        `env:"WHISPER_PYTHON" envDefault:"python"`
	WhisperPythonAlt  string        `env:"WHISPER_PYTHON_FALLBACK" envDefault:"python3"`
	DefaultModel      string        `env:"DEFAULT_MODEL" envDefault:"large-v3"`
	DefaultLanguage   string        `env:"DEFAULT_LANGUAGE" envDefault:"auto"`
	EngineTimeout     time.Duration `env:"ENGINE_TIMEOUT" envDefault:"30m"`
	ModelFetchTimeout time.Duration `env:"MODEL_FETCH_TIMEOUT" envDefault:"5m"`

	// Jobs. MaxConcurrentJobs 0 runs every accepted job immediately.
	MaxConcurrentJobs      int           `env:"MAX_CONCURRENT_JOBS" envDefault:"0"`
	JobQueueSize           int           `env:"JOB_QUEUE_SIZE" envDefault:"64"`
	OffsetSourceTimestamps bool          `env:"OFFSET_SOURCE_TIMESTAMPS" envDefault:"false"`
	ScratchRetention       time.Duration `env:"SCRATCH_RETENTION" envDefault:"24h"`

	// Media library: "dir", "sqlite" or "postgres".
	LibraryBackend    string `env:"LIBRARY_BACKEND" envDefault:"dir"`
	LibraryDir        string `env:"LIBRARY_DIR" envDefault:"./library"`
	LibrarySQLitePath string `env:"LIBRARY_SQLITE_PATH"`
	DatabaseURL       string `env:"DATABASE_URL"`

	// Optional MQTT job event publishing; disabled when the broker is empty.
	MQTTBrokerURL   string `env:"MQTT_BROKER_URL"`
	MQTTClientID    string `env:"MQTT_CLIENT_ID" envDefault:"scribe-engine"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"scribe"`
	MQTTUsername    string `env:"MQTT_USERNAME"`
	MQTTPassword    string `env:"MQTT_PASSWORD"`

	S3 S3Config `envPrefix:"S3_"`
}

// S3Config configures the optional S3 mirror of subtitle artifacts.
type S3Config struct {
	Bucket    string `env:"BUCKET"`
	Endpoint  string `env:"ENDPOINT"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Prefix    string `env:"PREFIX"`
	// LocalCache keeps the local subtitles dir as primary and S3 as backup.
	LocalCache    bool `env:"LOCAL_CACHE" envDefault:"true"`
	UploadWorkers int  `env:"UPLOAD_WORKERS" envDefault:"2"`
	UploadQueue   int  `env:"UPLOAD_QUEUE" envDefault:"256"`
}

// Enabled reports whether S3 storage is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile      string
	HTTPAddr     string
	LogLevel     string
	MetadataDir  string
	ModelsDir    string
	FFmpegPath   string
	DefaultModel string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// Parse environment variables into config struct
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.MetadataDir != "" {
		cfg.MetadataDir = overrides.MetadataDir
	}
	if overrides.ModelsDir != "" {
		cfg.ModelsDir = overrides.ModelsDir
	}
	if overrides.FFmpegPath != "" {
		cfg.FFmpegPath = overrides.FFmpegPath
	}
	if overrides.DefaultModel != "" {
		cfg.DefaultModel = overrides.DefaultModel
	}

	cfg.applyDerived()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LibraryBackend {
	case "dir", "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("LIBRARY_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown LIBRARY_BACKEND %q (want dir, sqlite or postgres)", c.LibraryBackend)
	}
	if c.MaxConcurrentJobs < 0 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must not be negative")
	}
	if c.JobQueueSize < 1 {
		return fmt.Errorf("JOB_QUEUE_SIZE must be at least 1")
	}
	return nil
}

func (c *Config) applyDerived() {
	if c.SubtitlesDir == "" {
		c.SubtitlesDir = filepath.Join(c.MetadataDir, "subtitles")
	}
	if c.TempDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		c.TempDir = filepath.Join(wd, "temp", "transcription")
	}
	if c.LibrarySQLitePath == "" {
		c.LibrarySQLitePath = filepath.Join(c.MetadataDir, "library.db")
	}
}
