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

	"github.com/askidc/corpus-assistant/internal/bootstrap"
	"github.com/askidc/corpus-assistant/internal/config"
	"github.com/askidc/corpus-assistant/internal/observability/metrics"
)

const rebuildTimeout = 30 * time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "worker", cfg)
	if err != nil {
		slog.Error("bootstrap", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")

	metricsServer := &http.Server{
		Addr:        ":" + cfg.WorkerMetricsPort,
		Handler:     workerMetrics.Handler(),
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		app.Logger.Info("worker metrics listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("metrics server", "error", err)
		}
	}()

	app.Logger.Info("worker ready", "rebuild_subject", cfg.NATSRebuildSubject)

	// Blocks until shutdown; each message rebuilds the corpus under its
	// own timeout so a stuck embedder cannot pin the worker forever.
	err = app.Queue.SubscribeRebuildRequested(ctx, func(msgCtx context.Context, batchID string) error {
		rebuildCtx, cancel := context.WithTimeout(msgCtx, rebuildTimeout)
		defer cancel()

		app.Logger.Info("rebuild requested", "batch_id", batchID)
		workerMetrics.StartRebuild()
		start := time.Now()

		report, err := app.IngestUC.RebuildCorpus(rebuildCtx)
		workerMetrics.FinishRebuild("worker", time.Since(start), err)
		if err != nil {
			app.Logger.Error("rebuild failed", "batch_id", batchID, "error", err)
			return err
		}

		documentsFailed := report.DocumentsIn - report.DocumentsOK
		workerMetrics.ObserveRebuildReport("worker", report.DocumentsOK, documentsFailed, report.ChunksIndexed, report.EmbedFallback)
		app.Logger.Info("rebuild complete",
			"batch_id", batchID,
			"generation_id", report.GenerationID,
			"documents_ok", report.DocumentsOK,
			"documents_failed", documentsFailed,
			"chunks_indexed", report.ChunksIndexed,
		)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		app.Logger.Error("subscribe rebuild requests", "error", err)
		os.Exit(1)
	}

	app.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("metrics shutdown", "error", err)
	}
}
