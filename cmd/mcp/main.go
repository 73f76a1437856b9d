package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/legal-intake/internal/adapters/mcp"
	"github.com/kirillkom/legal-intake/internal/bootstrap"
	"github.com/kirillkom/legal-intake/internal/config"
	"github.com/kirillkom/legal-intake/internal/observability/logging"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	// stdout carries the protocol.
	logging.InstallTo(os.Stderr, "mcp", cfg.LogLevel)

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{Service: "mcp", SkipQueue: true})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	tools := mcpadapter.NewTools(mcpadapter.Services{
		Search:    app.Search,
		Extractor: app.Extraction,
		Deadlines: app.Deadlines,
		Documents: app.Documents,
		Analytics: app.Analytics,
	}, cfg.DefaultFirmID)

	if err := server.ServeStdio(mcpadapter.NewServer(tools, version)); err != nil {
		slog.Error("mcp_server_failed", "error", err)
	}
}
