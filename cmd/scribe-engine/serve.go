package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/snarg/scribe-engine/internal/api"
	"github.com/snarg/scribe-engine/internal/jobs"
	"github.com/snarg/scribe-engine/internal/metrics"
	"github.com/snarg/scribe-engine/internal/mqttclient"
	"github.com/snarg/scribe-engine/internal/storage"
	"github.com/snarg/scribe-engine/internal/transcribe"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background transcription workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(ctx)
		},
	}
	cmd.Flags().StringVar(&ctx.overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	return cmd
}

func runServe(cc *commandContext) error {
	startTime := time.Now()

	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	log := cc.logger()
	log.Info().Str("version", version).Msg("scribe-engine starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Engine
	engine := cc.newEngine(ctx, cfg)
	caps := engine.Capabilities()
	if caps.Available() {
		log.Info().
			Strs("invocation", caps.Invocation).
			Bool("accelerated", caps.Accelerated).
			Str("models_dir", engine.Models().Dir()).
			Msg("transcription engine ready")
	} else {
		log.Warn().Msg("transcription engine not found; existing subtitles are still served")
	}

	// Artifact storage
	storeLog := log.With().Str("component", "storage").Logger()
	artifacts, services, err := storage.New(cfg.S3, cfg.SubtitlesDir, storeLog)
	if err != nil {
		return err
	}
	services = append(services, storage.NewScratchPruner(engine.ScratchDir(), cfg.ScratchRetention, transcribe.FixtureFiles, storeLog))
	for _, svc := range services {
		svc.Start()
	}
	defer func() {
		for _, svc := range services {
			svc.Stop()
		}
	}()
	log.Info().Str("type", artifacts.Type()).Str("dir", cfg.SubtitlesDir).Msg("artifact storage ready")

	// Media library
	lib, err := cc.openLibrary(ctx, cfg)
	if err != nil {
		return err
	}
	defer lib.close()

	// MQTT (optional)
	var (
		mqtt      *mqttclient.Client
		notifiers jobs.MultiNotifier
	)
	if cfg.MQTTBrokerURL != "" {
		mqtt, err = mqttclient.Connect(mqttclient.Options{
			BrokerURL:      cfg.MQTTBrokerURL,
			ClientID:       cfg.MQTTClientID,
			TopicPrefix:    cfg.MQTTTopicPrefix,
			AcceptCommands: true,
			Username:       cfg.MQTTUsername,
			Password:       cfg.MQTTPassword,
			Log:            log,
		})
		if err != nil {
			return err
		}
		defer mqtt.Close()
		notifiers = append(notifiers, mqttclient.NewJobPublisher(mqtt, mqtt.Topics(), log))
	}

	// Job manager
	manager := jobs.NewManager(jobs.ManagerOptions{
		Library:          lib,
		Engine:           engine,
		Artifacts:        artifacts,
		Notifier:         notifiers,
		DefaultLanguage:  cfg.DefaultLanguage,
		DefaultModel:     cfg.DefaultModel,
		OffsetTimestamps: cfg.OffsetSourceTimestamps,
		MaxConcurrent:    cfg.MaxConcurrentJobs,
		QueueSize:        cfg.JobQueueSize,
		Log:              log,
	})
	// Running jobs are cancelled and recorded as failed.
	defer manager.Close()
	if mqtt != nil {
		mqtt.SetMessageHandler(mqttclient.CommandHandler(manager, log))
	}

	// Model directory watcher
	watcher := transcribe.NewModelWatcher(engine.Models(), log)
	if err := watcher.Start(); err != nil {
		log.Warn().Err(err).Msg("model watcher disabled")
	} else {
		defer watcher.Stop()
	}

	// Metrics
	var pool *pgxpool.Pool
	if lib.db != nil {
		pool = lib.db.Pool
	}
	prometheus.MustRegister(metrics.NewCollector(pool, manager, engine.Models()))

	// HTTP Server
	opts := api.ServerOptions{
		Jobs:      manager,
		Engine:    engine,
		Models:    engine.Models(),
		Version:   version,
		StartTime: startTime,
	}
	if lib.health != nil {
		opts.Database = lib.health
	}
	if mqtt != nil {
		opts.MQTT = mqtt
	}
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, opts, httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		if runErr != nil {
			log.Error().Err(runErr).Msg("http server error")
		}
	}
	// A second signal now terminates the process.
	stop()

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("scribe-engine stopped")
	return runErr
}
