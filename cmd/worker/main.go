package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/clipindex/internal/bootstrap"
	"github.com/kirillkom/clipindex/internal/config"
	"github.com/kirillkom/clipindex/internal/observability/logging"
	"github.com/kirillkom/clipindex/internal/observability/metrics"
)

const embedTimeout = 5 * time.Minute

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	go serveMetrics(ctx, cfg.WorkerMetricsPort, workerMetrics)

	// Catch up on anything captured while no worker was running.
	report, err := app.BackfillUC.Run(ctx)
	if err != nil {
		slog.Error("backfill_failed", "error", err)
	} else {
		workerMetrics.ObserveBackfill("worker", report.Embedded)
		slog.Info("backfill_done", "embedded", report.Embedded, "skipped", report.Skipped, "failed", report.Failed)
	}

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeEntryCaptured(ctx, func(handlerCtx context.Context, entryID string) error {
		embedCtx, cancel := context.WithTimeout(handlerCtx, embedTimeout)
		defer cancel()

		workerMetrics.StartEmbed()
		start := time.Now()
		err := app.BackfillUC.EmbedEntry(embedCtx, entryID)
		workerMetrics.FinishEmbed("worker", time.Since(start), err)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

func serveMetrics(ctx context.Context, port string, m *metrics.WorkerMetrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("metrics_server_failed", "error", err)
	}
}
