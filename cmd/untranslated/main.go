package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/untranslate-go/internal/app"
	"github.com/kapu/untranslate-go/internal/config"
	"github.com/kapu/untranslate-go/internal/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("untranslated starting...",
		zap.String("log_level", cfg.Logging.Level),
		zap.String("guard_mode", cfg.Restore.GuardMode.String()),
		zap.Bool("bridge", cfg.Bridge.Enabled),
	)

	buildCtx, buildCancel := context.WithTimeout(context.Background(), 30*time.Second)
	container, err := app.Build(buildCtx, cfg, logger)
	buildCancel()
	if err != nil {
		logger.Error("Failed to assemble application services", zap.Error(err))
		os.Exit(1)
	}

	if container.Bridge == nil {
		logger.Error("Nothing to serve: the bridge is disabled; set BRIDGE_ENABLED=true")
		container.Close()
		os.Exit(1)
	}
	container.Bridge.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := container.Bridge.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during bridge shutdown", zap.Error(err))
	}
	container.Sessions.StopAll(shutdownCtx)
	container.Close()

	logger.Info("Shutdown complete")
}
