package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"heartrisk/app"
	"heartrisk/config"
	"heartrisk/logging"
)

func main() {
	configFlag := flag.String("config", "", "path to config.yaml (default: $CONFIG_PATH, ./config.yaml, ../config.yaml)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.ResolvePath(*configFlag)); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		stop()
		os.Exit(1)
	}
}

// run serves until ctx is cancelled. It returns an error when startup or the
// listener fails, so the process exits non-zero.
func run(ctx context.Context, configPath string) (err error) {
	// 1. Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Logger
	logger, err := logging.New(logging.Config{
		Level:       cfg.Log.Level,
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
		Compress:    cfg.Log.Compress,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("path", configPath))

	// 3. Model and prediction log; no listener until both are ready
	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return fmt.Errorf("startup: %w", err)
	}

	// 4. Start HTTP server
	errc := make(chan error, 1)
	go func() {
		errc <- application.Server.Start()
	}()

	// 5. Wait for a signal or a listener failure
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errc:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := application.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("shutdown incomplete", zap.Error(shutdownErr))
		err = multierr.Append(err, shutdownErr)
	}
	logger.Info("exiting")
	return err
}
