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

	"github.com/stwalsh4118/vidfeed/internal/config"
	"github.com/stwalsh4118/vidfeed/internal/db"
	"github.com/stwalsh4118/vidfeed/internal/logger"
	"github.com/stwalsh4118/vidfeed/internal/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Watch(
		func(next *config.Config) {
			logger.SetLevel(next.Logging.Level)
			logger.Log.Info().Str("level", next.Logging.Level).Msg("Configuration reloaded")
		},
		func(err error) {
			logger.Log.Warn().Err(err).Msg("Ignoring invalid configuration reload")
		},
	)
	if err != nil {
		logger.Init("info", true)
		logger.Log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	logger.Log.Info().Msg("vidfeed starting")

	if dir := filepath.Dir(cfg.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Log.Fatal().Err(err).Str("dir", dir).Msg("Failed to create database directory")
		}
	}

	database, err := db.New(cfg.Database.Path, db.Options{
		EnableWAL:         cfg.Database.EnableWAL,
		ConnectionTimeout: cfg.Database.ConnectionTimeout,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open database")
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	sqlDB, err := database.GetSQLDB()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to get database handle")
	}
	if err := db.RunMigrations(sqlDB, cfg.Database.MigrationsPath); err != nil {
		logger.Log.Fatal().Err(err).Str("path", cfg.Database.MigrationsPath).Msg("Failed to run migrations")
	}

	srv, err := server.New(cfg, database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create server")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		logger.Log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err, ok := <-errCh:
		if ok {
			logger.Log.Error().Err(err).Msg("Server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
