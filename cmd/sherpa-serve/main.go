package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/sherpa-serve/internal/api"
	"github.com/snarg/sherpa-serve/internal/artifact"
	"github.com/snarg/sherpa-serve/internal/config"
	"github.com/snarg/sherpa-serve/internal/engine"
	"github.com/snarg/sherpa-serve/internal/intake"
	"github.com/snarg/sherpa-serve/internal/job"
	"github.com/snarg/sherpa-serve/internal/model"
	"github.com/snarg/sherpa-serve/internal/store"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "http-addr", "", "http listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flag.StringVar(&overrides.ModelDir, "model-dir", "", "model snapshot directory")
	flag.StringVar(&overrides.OutDir, "out-dir", "", "job artifact directory")
	flag.Parse()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("sherpa-serve starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Model snapshot must be in place before any job can run.
	fetcher := model.NewFetcher(cfg.HFToken, log)
	if err := fetcher.Ensure(ctx, cfg.ModelID, cfg.ModelDir); err != nil {
		log.Fatal().Err(err).Str("model_id", cfg.ModelID).Msg("failed to ensure model snapshot")
	}
	if _, err := model.Resolve(cfg.ModelDir); err != nil {
		log.Fatal().Err(err).Str("model_dir", cfg.ModelDir).Msg("model snapshot incomplete")
	}

	if !engine.CheckFFmpeg(cfg.FFmpegBin) {
		log.Warn().Str("bin", cfg.FFmpegBin).Msg("ffmpeg not found in PATH, jobs will fail at normalization")
	}

	runner, err := engine.NewRunner(cfg.EngineCmd, cfg.NumThreads)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid engine command")
	}

	history, err := store.Open(ctx, cfg.DBPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open job history")
	}
	defer history.Close()

	artifacts, err := artifact.New(cfg.S3, cfg.OutDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize artifact store")
	}

	shaper := job.NewShaper(artifacts, cfg.Placeholder, log)
	proc := job.NewProcessor(cfg, runner, shaper, history, log)

	// Async intakes share one worker pool; results fan back out per source.
	var mq *intake.MQTT
	pool := job.NewPool(job.PoolOptions{
		Processor: proc,
		Workers:   cfg.Workers,
		QueueSize: cfg.QueueSize,
		OnResult: func(q job.Queued, result job.Result, err error) {
			if mq != nil {
				mq.PublishResult(q, result, err)
			}
		},
		Log: log,
	})
	pool.Start()

	var mqttConnected func() bool
	if cfg.MQTTBrokerURL != "" {
		mq, err = intake.StartMQTT(cfg, pool, log)
		if err != nil {
			log.Fatal().Err(err).Str("broker", cfg.MQTTBrokerURL).Msg("failed to connect to mqtt broker")
		}
		mqttConnected = mq.Connected
	}

	var watcher *intake.Watcher
	if cfg.WatchDir != "" {
		watcher = intake.NewWatcher(pool, cfg.WatchDir, log)
		if err := watcher.Start(); err != nil {
			log.Fatal().Err(err).Str("watch_dir", cfg.WatchDir).Msg("failed to start inbox watcher")
		}
	}

	jobs := api.NewJobsHandler(proc, history, artifacts)
	health := api.NewHealthHandler(cfg, history, pool, mqttConnected, version, startTime)
	srv := api.NewServer(cfg, jobs, health, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	// Intakes stop before the pool so nothing enqueues into a draining
	// queue; in-flight decodes run to completion.
	if watcher != nil {
		watcher.Stop()
	}
	pool.Stop()
	if mq != nil {
		mq.Close()
	}

	log.Info().Msg("sherpa-serve stopped")
}
