package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/scribe-engine/internal/config"
	"github.com/snarg/scribe-engine/internal/jobs"
	"github.com/snarg/scribe-engine/internal/metrics"
	"github.com/snarg/scribe-engine/internal/subtitle"
	"github.com/snarg/scribe-engine/internal/transcribe"
)

// Transcriber is the job manager surface the API drives.
type Transcriber interface {
	Submit(ctx context.Context, itemID string, opts jobs.Options) (jobs.Job, error)
	Status(itemID string) jobs.Job
	ListArtifacts(ctx context.Context, itemID string) []jobs.Artifact
	ReadArtifact(ctx context.Context, itemID, language string, format subtitle.Format) (string, error)
	DeleteArtifacts(ctx context.Context, itemID, language string) bool
	ActiveJobs() int
}

// CapabilityReporter exposes the detected engine capabilities.
type CapabilityReporter interface {
	Capabilities() transcribe.Capabilities
}

// ModelLister reports the model catalog and its readiness.
type ModelLister interface {
	Models() []transcribe.ModelInfo
	ReadyModels() int
}

type ServerOptions struct {
	Jobs   Transcriber
	Engine CapabilityReporter
	Models ModelLister

	// Optional; leave nil when not configured.
	Database HealthChecker
	MQTT     ConnectionStatus

	Version   string
	StartTime time.Time
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, opts ServerOptions, log zerolog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      NewRouter(cfg, opts, log),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// NewRouter builds the HTTP handler tree.
func NewRouter(cfg *config.Config, opts ServerOptions, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(metrics.InstrumentHandler)
	r.Use(CORSWithOrigins(cfg.CORSOrigins))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Health endpoint: no auth
		r.Get("/health", NewHealthHandler(opts).ServeHTTP)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(cfg.AuthToken))
			NewTranscriptionsHandler(opts.Jobs, opts.Engine, opts.Models).Routes(r)
		})
	})

	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
