package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"smartchair/internal/client"
	"smartchair/internal/config"
	logpkg "smartchair/internal/logger"
	"smartchair/internal/simulator"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadSimulator()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "posture-sim")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting posture simulator",
		zap.String("api_url", cfg.APIURL),
		zap.Duration("interval", cfg.Interval),
		zap.Float64("alert_threshold", cfg.AlertThreshold),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.NewPostureClient(cfg.APIURL, cfg.RequestTimeout, log)
	if err := simulator.New(api, cfg, log).Run(ctx); err != nil {
		log.Error("Simulator stopped with error", zap.Error(err))
		return
	}
	log.Info("Simulator stopped")
}
