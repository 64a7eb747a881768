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

	httpadapter "github.com/askidc/corpus-assistant/internal/adapters/http"
	"github.com/askidc/corpus-assistant/internal/bootstrap"
	"github.com/askidc/corpus-assistant/internal/config"
	"github.com/askidc/corpus-assistant/internal/observability/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "api", cfg)
	if err != nil {
		slog.Error("bootstrap", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.HydrateIndex(ctx); err != nil {
		app.Logger.Warn("initial index hydration failed, serving without context", "error", err)
	}

	// Every api replica watches activation events so its in-memory
	// index tracks the generation the worker just published. The
	// subscription blocks until shutdown, so it runs beside the server.
	go func() {
		err := app.Queue.SubscribeGenerationActivated(ctx, func(ctx context.Context, generationID string) error {
			app.Logger.Info("generation activated", "generation_id", generationID)
			return app.HydrateIndex(ctx)
		})
		if err != nil && ctx.Err() == nil {
			app.Logger.Error("subscribe generation activations", "error", err)
			stop()
		}
	}()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	httpMetrics.RegisterSessionGauge("api", func() float64 {
		return float64(app.Sessions.Len())
	})
	router := httpadapter.NewRouter(app.IngestUC, app.RetrieveUC, app.Repo, app.Queue, httpMetrics, httpadapter.RateLimit{
		RPS:   cfg.APIRateLimitRPS,
		Burst: cfg.APIRateLimitBurst,
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		app.Logger.Info("api listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("http server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	app.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("shutdown", "error", err)
	}
}
