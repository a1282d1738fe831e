package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/mkaretu/nz-tax-assistant/internal/adapters/http"
	"github.com/mkaretu/nz-tax-assistant/internal/bootstrap"
	"github.com/mkaretu/nz-tax-assistant/internal/config"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewAPI(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(
		app.Questions,
		app.Ingester,
		app.QueryLog,
		app.APIMetrics,
		app.Logger,
		cfg.AuthUsername,
		cfg.AuthPassword,
	)
	server := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     router.Handler(),
		ReadTimeout: 30 * time.Second,
		// No write timeout: /ask/stream holds the response open while
		// the answer streams.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		app.Logger.Info("api listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("api shutdown", "error", err)
	}
}
