package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/menu-extractor/internal/bootstrap"
	"github.com/kirillkom/menu-extractor/internal/config"
	"github.com/kirillkom/menu-extractor/internal/observability/logging"
	"github.com/kirillkom/menu-extractor/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:   logger,
		Recorder: workerMetrics,
		Service:  serviceName,
	})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsMux,
	}
	go func() {
		logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	// Uploaded file handles expire server-side; drop stale cache entries
	// so re-runs re-upload instead of referencing dead URIs.
	evictAfter := time.Duration(cfg.UploadEvictAfterSeconds) * time.Second
	if evictAfter < time.Minute {
		evictAfter = 45 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(evictAfter / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := app.Uploads.EvictOlderThan(evictAfter); n > 0 {
					logger.Info("evicted stale upload handles", "count", n)
				}
			}
		}
	}()

	jobTimeout := time.Duration(cfg.JobTimeoutSeconds) * time.Second
	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeJobQueued(ctx, func(handlerCtx context.Context, jobID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, jobTimeout)
		defer cancel()

		workerMetrics.StartJob()
		start := time.Now()
		processErr := app.ProcessUC.ProcessByID(processCtx, jobID)
		workerMetrics.FinishJob(serviceName, time.Since(start), processErr)
		return processErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
