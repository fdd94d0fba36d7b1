package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Dhakshil/ordernpick-sentiment-api/internal/adapter/artifactstore"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/adapter/httpserver"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/adapter/metrics"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/adapter/transformer"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/app"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/modelcache"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/platform/config"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/platform/logging"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/platform/retry"
	"github.com/Dhakshil/ordernpick-sentiment-api/internal/platform/version"
)

func runGracefulShutdown(srv *httpserver.Server, cancelLoad context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		// Abandons any download still retrying in the background.
		cancelLoad()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupLoader(cfg *config.Config, clock clockwork.Clock, observer app.LoaderObserver) *app.ResourceLoader {
	cache, err := modelcache.New(cfg.ModelCacheDir, modelcache.DefaultRequiredFiles)
	if err != nil {
		slog.Error("Invalid model cache configuration", "error", err)
		os.Exit(1)
	}

	opener := artifactstore.NewOpener(artifactstore.Options{
		Backend:                 cfg.StorageBackend,
		Bucket:                  cfg.StorageBucket,
		FirebaseCredentials:     cfg.FirebaseCredentials,
		FirebaseCredentialsPath: cfg.FirebaseCredentialsPath,
		S3Region:                cfg.S3Region,
		S3Endpoint:              cfg.S3Endpoint,
	})

	loaderCfg := app.LoaderConfig{
		Folder: cfg.StorageFolder,
		Retry: retry.Policy{
			MaxAttempts:    cfg.DownloadMaxAttempts,
			InitialBackoff: cfg.DownloadInitialBackoff,
		},
	}

	return app.NewResourceLoader(cache, opener, transformer.NewLoader(), loaderCfg, clock, observer)
}

func loadModel(ctx context.Context, cfg *config.Config, loader *app.ResourceLoader) {
	ensure := func() {
		status := loader.EnsureReady(ctx)
		if status.Ready() {
			slog.Info("Sentiment model ready")
			return
		}
		slog.Warn("Serving fallback predictions", "state", status.State, "error", status.LastError)
	}

	if cfg.ModelLoadMode == config.LoadModeBackground {
		slog.Info("Loading sentiment model in background")
		go ensure()
		return
	}
	ensure()
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "version", version.Get().String(), "env", cfg.AppEnv, "port", cfg.Port)

	reg := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg)
	loaderMetrics := metrics.NewLoaderMetrics(reg)
	predictionMetrics := metrics.NewPredictionMetrics(reg)

	loader := setupLoader(cfg, clock, loaderMetrics)
	predictor := app.NewPredictor(loader, cfg.BatchConcurrency, clock, predictionMetrics)

	loadCtx, cancelLoad := context.WithCancel(context.Background())
	defer cancelLoad()
	loadModel(loadCtx, cfg, loader)

	srv, err := httpserver.NewServer(cfg, predictor, loader, metrics.Handler(reg), httpMetrics.Middleware(), clock)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	done := runGracefulShutdown(srv, cancelLoad)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
