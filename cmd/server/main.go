// Package main is the entry point for the Foundry model lifecycle backend.
// Foundry manages periodically retrained predictive models for an automated
// trading system: it orchestrates training jobs against an external trainer
// service, versions the resulting models with retention-based eviction, and
// retrains on a configurable schedule.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/foundry/internal/clients/trainer"
	"github.com/aristath/foundry/internal/config"
	"github.com/aristath/foundry/internal/database"
	"github.com/aristath/foundry/internal/events"
	"github.com/aristath/foundry/internal/modules/registry"
	"github.com/aristath/foundry/internal/modules/schedule"
	"github.com/aristath/foundry/internal/modules/settings"
	"github.com/aristath/foundry/internal/modules/training"
	"github.com/aristath/foundry/internal/server"
	"github.com/aristath/foundry/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)
	log.Info().Str("data_dir", cfg.DataDir).Int("port", cfg.Port).Msg("Starting foundry")

	// Databases: models.db holds versions and run history, config.db holds
	// runtime settings and scheduler state.
	modelsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "models.db"),
		Profile: database.ProfileStandard,
		Name:    "models",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open models database")
	}
	defer modelsDB.Close()

	configDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "config.db"),
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open config database")
	}
	defer configDB.Close()

	for _, db := range []*database.DB{modelsDB, configDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("db", db.Name()).Msg("Failed to migrate database")
		}
	}

	bus := events.NewBus(log)
	eventManager := events.NewManager(bus, log)

	settingsRepo := settings.NewRepository(configDB.Conn(), log)

	artifacts, err := registry.NewArtifactStore(cfg.DataDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare artifact storage")
	}

	var mirror *registry.Mirror
	if cfg.Mirror.Enabled() {
		mirror, err = registry.NewMirror(context.Background(), cfg.Mirror, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure artifact mirror")
		}
		log.Info().Str("bucket", cfg.Mirror.Bucket).Msg("Artifact mirroring enabled")
	}

	registrySvc := registry.NewService(
		registry.NewRepository(modelsDB.Conn(), log),
		artifacts, mirror, eventManager, log,
	)

	trainerClient := trainer.NewClient(cfg.TrainerServiceURL, cfg.TrainerPollSecs, log)
	history := training.NewHistoryRepository(modelsDB.Conn(), log)
	orchestrator := training.NewOrchestrator(
		trainerClient, registrySvc, history, settingsRepo,
		eventManager, cfg.ModelKeepCount, log,
	)

	scheduler := schedule.NewScheduler(
		schedule.NewRepository(settingsRepo, log),
		orchestrator, eventManager, log,
	)
	scheduler.Start()
	defer scheduler.Stop()

	maintenance := registry.NewMaintenance(registrySvc, settingsRepo, cfg.ModelKeepCount, log)
	if err := maintenance.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start maintenance jobs")
	}
	defer maintenance.Stop()

	srv := server.New(server.Config{
		Log:          log,
		Cfg:          cfg,
		ModelsDB:     modelsDB,
		ConfigDB:     configDB,
		EventBus:     bus,
		Registry:     registrySvc,
		Orchestrator: orchestrator,
		History:      history,
		Scheduler:    scheduler,
		Settings:     settingsRepo,
		Trainer:      trainerClient,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Training job did not stop in time")
	}
	log.Info().Msg("Shutdown complete")
}
