package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"

	"reply-gateway/internal/app"
	"reply-gateway/internal/config"
	"reply-gateway/internal/logging"
	"reply-gateway/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if err := logging.Setup(cfg.Log); err != nil {
		slog.Error("failed to set up logging", "err", err)
		os.Exit(1)
	}

	// ---- Wiring ----
	a, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("failed to build gateway", "err", err)
		os.Exit(1)
	}

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		// Audit writes still pending when the sandbox is frozen resume on thaw;
		// SIGTERM before shutdown flushes them.
		lambda.StartWithOptions(a.Handler.Handle, lambda.WithEnableSIGTERM(func() {
			if err := a.Close(); err != nil {
				slog.Error("failed to close gateway", "err", err)
			}
		}))
		return
	}

	// ---- Local HTTP mode ----
	router := server.NewRouter(a.Handler, slog.Default())
	runErr := server.Run(ctx, cfg.HTTP.Addr, router)
	if err := a.Close(); err != nil {
		slog.Error("failed to close gateway", "err", err)
	}
	if runErr != nil {
		slog.Error("http server failed", "err", runErr)
		os.Exit(1)
	}
}
