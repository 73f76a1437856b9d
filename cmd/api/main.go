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

	httpadapter "github.com/kirillkom/legal-intake/internal/adapters/http"
	"github.com/kirillkom/legal-intake/internal/bootstrap"
	"github.com/kirillkom/legal-intake/internal/config"
	"github.com/kirillkom/legal-intake/internal/observability/logging"
	"github.com/kirillkom/legal-intake/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logging.Install("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "api", Metrics: httpMetrics.Registry()})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Pipeline:    app.Pipeline,
		Clients:     app.Clients,
		Deleter:     app.Deleter,
		Documents:   app.Documents,
		Deadlines:   app.Deadlines,
		Extractor:   app.Extraction,
		Validations: app.Validations,
		Search:      app.Search,
		Analytics:   app.Analytics,
	}, httpMetrics).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ModelCallTimeout * 4,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
