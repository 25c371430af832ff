package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/clipindex/internal/adapters/http"
	"github.com/kirillkom/clipindex/internal/bootstrap"
	"github.com/kirillkom/clipindex/internal/config"
	"github.com/kirillkom/clipindex/internal/observability/logging"
	"github.com/kirillkom/clipindex/internal/observability/metrics"
)

const drainInterval = 30 * time.Second

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	go drainLoop(ctx, app)

	serverMetrics := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(app.CaptureUC, app.SearchUC, app.AnswerUC, cfg.RateLimitPerHour, serverMetrics).Handler()

	mux := http.NewServeMux()
	mux.Handle("/metrics", serverMetrics.Handler())
	mux.Handle("/", router)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api_server_failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_error", "error", err)
	}
}

// drainLoop retries buffered captures against the primary store so a
// storage outage only costs durability for as long as it lasts.
func drainLoop(ctx context.Context, app *bootstrap.App) {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if flushed := app.Fallback.Drain(ctx); flushed > 0 {
				slog.Info("fallback_drained", "entries", flushed)
			}
		}
	}
}
