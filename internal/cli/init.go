// Package cli wires configuration, storage and the server into the acme
// command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"acme/internal/config"
	"acme/internal/log"
	"acme/internal/storage"
)

// SetupLogger builds the application logger from cfg and makes it the
// slog default.
func SetupLogger(cfg *config.Config, verbose bool) *log.Logger {
	level := log.ParseLevel(cfg.LogLevel)
	if verbose {
		level = log.ParseLevel("debug")
	}
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, WrapExitError(ExitConfigError, "failed to load configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitConfigError, "invalid configuration", err)
	}
	return cfg, nil
}

// OpenDatabase opens the configured store.
func OpenDatabase(ctx context.Context, cfg *config.Config, logger *log.Logger) (*storage.DB, error) {
	dialect, err := storage.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		return nil, WrapExitError(ExitConfigError, "invalid database driver", err)
	}
	db, err := storage.Open(ctx, dialect, cfg.DSN())
	if err != nil {
		return nil, WrapExitError(ExitFailure, fmt.Sprintf("failed to open %s database", dialect), err)
	}
	logger.Info("Database opened", "driver", string(dialect))
	return db, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with a context bounded by timeout and done is
// closed once it returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}
