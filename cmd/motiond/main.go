package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"motiond/internal/artifact"
	"motiond/internal/device"
	"motiond/internal/engine"
	"motiond/internal/http/handlers"
	"motiond/internal/http/httpapi"
	"motiond/internal/infra"
	"motiond/internal/infra/geoip"
	"motiond/internal/metrics"
	"motiond/internal/pipeline"
	"motiond/internal/queue"
	"motiond/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		infra.NewLogger("development").Fatal().Err(err).Msg("load config")
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("init file store")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.MetricsDBPath), 0o755); err != nil {
		logger.Fatal().Err(err).Msg("ensure metrics directory")
	}
	metricsStore, err := metrics.Open(cfg.MetricsDBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open metrics store")
	}
	defer metricsStore.Close()

	countries, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}

	engineClient := engine.NewClient(engine.Options{
		BaseURL: cfg.EngineBaseURL,
		Logger:  &logger,
	})
	if engineClient.Remote() {
		logger.Info().Str("engine", cfg.EngineBaseURL).Msg("using remote inference engine")
	} else {
		logger.Warn().Msg("no ENGINE_BASE_URL configured; using synthetic rendering")
	}

	probe := device.NewProbe(device.Options{
		Override:    cfg.DeviceOverride,
		GsplatCheck: engineClient.SupportsGsplat,
		Logger:      logger,
	})

	artifacts := artifact.NewStore(files, cfg.ArtifactTTL, logger)
	go artifacts.RunSweeper(ctx, time.Minute)

	jobs := queue.New(queue.Options{
		Pipeline: pipeline.Deps{
			Engine:       engineClient,
			Encoder:      &engine.FFmpegEncoder{Path: cfg.FFmpegPath},
			StageTimeout: cfg.StageTimeout,
		},
		Probe:     probe,
		Artifacts: artifacts,
		Metrics:   metricsStore,
		Logger:    logger,
	})
	jobs.Start(ctx)

	app := &handlers.App{
		Queue:          jobs,
		Artifacts:      artifacts,
		Metrics:        metricsStore,
		Probe:          probe,
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:             logger,
		Countries:          countries,
		Password:           cfg.WebPassword,
		RateLimitPerMinute: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)
	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr()).Str("env", cfg.AppEnv).Msg("http server listening")
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	// The worker drains after ctx cancellation: the in-flight job is
	// cancelled and waiting jobs are marked cancelled.
	jobs.Wait()
	logger.Info().Msg("bye")
}
