// Package cli provides common initialization utilities shared by the
// server, worker and command-line binaries.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"timbro/internal/backend"
	"timbro/internal/config"
	applog "timbro/internal/log"
	"timbro/internal/tracker"
)

// SetupLogger initializes structured logging with default settings.
// Returns the configured logger and sets it as the default logger.
func SetupLogger(component string) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Component = component
	logger := applog.New(cfg)
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "operation", applog.OpValidate, "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend builds the configured store. Exits the process on failure.
func InitBackend(logger *applog.Logger, cfg *config.Config) *backend.Result {
	result, err := backend.NewFactory(logger.Logger).Create(cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return result
}

// InitService wires the tracker service over the configured backend and
// upserts the roster timer slots.
func InitService(ctx context.Context, logger *applog.Logger, cfg *config.Config) (*tracker.Service, backend.CleanupFunc) {
	result := InitBackend(logger, cfg)

	svc := tracker.NewService(result.Store, cfg.Roster(), result.Publisher, cfg.WeeklyGoalHours, cfg.MonthlyVestingHours)
	if err := svc.Init(ctx); err != nil {
		logger.Error("Failed to initialize tracker service", "error", err)
		if result.Cleanup != nil {
			_ = result.Cleanup()
		}
		os.Exit(1)
	}

	return svc, result.Cleanup
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "operation", applog.OpShutdown, "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup()
		}

		cancel()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-time.After(2 * time.Second):
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
