package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/promptpulse/promptpulse-engine/internal/metrics"
	"github.com/promptpulse/promptpulse-engine/internal/sched"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the periodic alert checker with a Prometheus metrics endpoint",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	logger := a.logger
	logger.Info("starting pulse-engine",
		slog.String("store", cfg.Store.Path),
		slog.Duration("check_interval", cfg.Alerting.CheckInterval))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Alerting.CreateDefaults {
		if _, err := a.manager.EnsureDefaultRules(ctx); err != nil {
			logger.Error("failed to ensure default rules", slog.Any("error", err))
			return err
		}
	}

	var metricsServer *http.Server
	if cfg.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Metrics.Address,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Metrics.Address))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	scheduler := sched.New(logger, a.checker, cfg.Alerting.CheckInterval, cfg.Alerting.WindowMinutes)
	scheduler.Run(ctx)

	logger.Info("shutdown signal received")

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancel()
	}

	logger.Info("pulse-engine stopped")
	return nil
}
