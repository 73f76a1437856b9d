package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/kirillkom/legal-intake/internal/bootstrap"
	"github.com/kirillkom/legal-intake/internal/config"
	"github.com/kirillkom/legal-intake/internal/core/ports"
	"github.com/kirillkom/legal-intake/internal/observability/logging"
	"github.com/kirillkom/legal-intake/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logging.Install(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: serviceName, Metrics: workerMetrics.Registry()})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux(workerMetrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.RiskRefreshSchedule, func() {
		updated, err := app.Deadlines.RefreshRisk(ctx)
		workerMetrics.RecordRiskRefresh(serviceName, updated, err)
		if err != nil {
			slog.Error("deadline_risk_refresh_failed", "error", err)
		}
	}); err != nil {
		slog.Error("risk_refresh_schedule_invalid", "schedule", cfg.RiskRefreshSchedule, "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	slog.Info("worker_subscribed", "subject", cfg.NATSReprocessSubject, "risk_refresh", cfg.RiskRefreshSchedule)
	err = app.Queue.SubscribeReprocess(ctx, func(handlerCtx context.Context, req ports.ReprocessRequest) error {
		workerMetrics.StartReprocess()
		start := time.Now()
		result, err := app.Pipeline.Reprocess(handlerCtx, req)
		workerMetrics.FinishReprocess(serviceName, time.Since(start), err)
		if err != nil {
			return err
		}
		slog.Info("document_reprocessed",
			"request_id", req.RequestID,
			"document_id", result.DocumentID,
			"chunks", result.ChunksCreated,
			"deadlines", result.DeadlinesExtracted,
			"stage_errors", len(result.StageErrors),
		)
		return nil
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

func metricsMux(workerMetrics *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", workerMetrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
