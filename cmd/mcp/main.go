package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/mkaretu/nz-tax-assistant/internal/adapters/mcp"
	"github.com/mkaretu/nz-tax-assistant/internal/bootstrap"
	"github.com/mkaretu/nz-tax-assistant/internal/config"
	"github.com/mkaretu/nz-tax-assistant/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stdout carries the MCP protocol, so logs go to stderr.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)

	app, err := bootstrap.NewCore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	logger.Info("mcp server starting", "transport", "stdio")
	if err := mcpadapter.New(app.Dispatcher, logger).Serve(); err != nil {
		logger.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
