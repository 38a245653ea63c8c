package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loan-predictor/internal/cfg"
	"loan-predictor/internal/metrics"
	"loan-predictor/internal/ml"
	"loan-predictor/internal/pipeline"
	"loan-predictor/internal/server"
	"loan-predictor/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	artifacts := resolveArtifacts(c)

	// Artifacts are loaded once; a service without them cannot answer
	svc, model, err := pipeline.Load(ctx, artifacts, mw, mw)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load model artifacts")
	}

	srv := server.New(svc, model, mw, server.Config{
		Port:           c.Port,
		ReadLimit:      c.WSReadLimit,
		PredictTimeout: 2 * c.ModelTimeout,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("prediction server failed")
			cancel()
		}
	}()

	waitForShutdown(ctx, cancel)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown prediction server")
	}
}

func setupLogging(c cfg.Settings) {
	zerolog.SetGlobalLevel(c.Level())
	if c.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// resolveArtifacts prefers the registry's active version when DATA_PATH is
// configured and falls back to the configured paths.
func resolveArtifacts(c cfg.Settings) pipeline.Artifacts {
	a := pipeline.Artifacts{Model: c.Loader(), ScalerPath: c.ScalerPath}
	if c.DataPath == "" {
		return a
	}

	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", c.DataPath).Msg("artifact registry unavailable")
	}
	defer store.Close()

	active, err := store.Active()
	if errors.Is(err, storage.ErrNoActive) {
		log.Warn().Msg("registry has no active version, using configured artifacts")
		return a
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read active artifact version")
	}

	a = applyVersion(a, active)

	log.Info().
		Str("version", active.Version).
		Str("model", a.Model.Path).
		Str("scaler", a.ScalerPath).
		Msg("using registered artifact version")
	return a
}

// applyVersion points a at a registered version. A version without a kind
// has it inferred from its own model path, not the configured kind.
func applyVersion(a pipeline.Artifacts, v storage.ArtifactVersion) pipeline.Artifacts {
	a.Model.Path = v.ModelPath
	a.Model.Kind = ml.KindAuto
	if v.ModelKind != "" {
		a.Model.Kind = v.ModelKind
	}
	if v.ScalerPath != "" {
		a.ScalerPath = v.ScalerPath
	}
	return a
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()
}
