// Package bootstrap holds the start-up steps every binary shares.
package bootstrap

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/sitestock-backend/pkg/config"
	"github.com/angelmondragon/sitestock-backend/pkg/logger"
)

// Load reads an optional .env, then the environment, and returns the config
// with a logger tuned by it. kind is recorded as the service kind.
func Load(kind string) (*config.Config, *logger.Logger, error) {
	boot := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		boot.Debug(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, boot, err
	}
	cfg.Service.Kind = kind
	return cfg, logger.New(logger.Options{
		ServiceName: kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	}), nil
}

// Run executes fn with a context canceled on SIGINT or SIGTERM and exits the
// process with status 1 if fn fails for any other reason.
func Run(kind string, fn func(ctx context.Context, cfg *config.Config, logg *logger.Logger) error) {
	cfg, logg, err := Load(kind)
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": kind})
	err = fn(ctx, cfg, logg)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, kind+" stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, kind+" shut down gracefully")
}

// CloseWith closes a client on the way out and logs a failure.
func CloseWith(logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+name, err)
	}
}
