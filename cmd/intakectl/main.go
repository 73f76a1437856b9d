package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/kirillkom/legal-intake/internal/adapters/cli"
	"github.com/kirillkom/legal-intake/internal/bootstrap"
	"github.com/kirillkom/legal-intake/internal/config"
	"github.com/kirillkom/legal-intake/internal/observability/logging"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logging.InstallTo(os.Stderr, "intakectl", cfg.LogLevel)

	open := func(ctx context.Context) (cli.Services, func(), error) {
		app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "intakectl", SkipQueue: true})
		if err != nil {
			return cli.Services{}, nil, err
		}
		return cli.Services{
			Deadlines:     app.Deadlines,
			Deleter:       app.Deleter,
			Documents:     app.Documents,
			Search:        app.Search,
			Analytics:     app.Analytics,
			DefaultFirmID: cfg.DefaultFirmID,
		}, app.Close, nil
	}

	if err := cli.NewRootCommand(open, version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
