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

	"github.com/mkaretu/nz-tax-assistant/internal/bootstrap"
	"github.com/mkaretu/nz-tax-assistant/internal/config"
	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

const jobTimeout = 5 * time.Minute

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", app.WorkerMetrics.Handler())
	metricsServer := &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: mux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("metrics server", "error", err)
		}
	}()

	app.Logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeIngestJobs(ctx, func(jobCtx context.Context, job domain.IngestJob) error {
		processCtx, cancel := context.WithTimeout(jobCtx, jobTimeout)
		defer cancel()
		_, err := app.Processor.ProcessJob(processCtx, job)
		return err
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
