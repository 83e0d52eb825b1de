package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	githubadapter "github.com/ericfisherdev/mergecheck/internal/adapter/driven/github"
	httphandler "github.com/ericfisherdev/mergecheck/internal/adapter/driving/http"
	"github.com/ericfisherdev/mergecheck/internal/application"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API and the background pull request sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	logger, err := opts.newLogger()
	if err != nil {
		return err
	}

	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
		"cache_backend", cfg.CacheBackend,
		"cache_ttl", cfg.CacheTTL,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Tracing. Spans stay in process until an exporter is configured.
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())))
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Error("tracer provider shutdown error", "error", err)
		}
	}()

	// 4. Open storage and wire the check pipeline.
	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.close(); closeErr != nil {
			logger.Error("error closing storage", "error", closeErr)
		}
	}()

	// 5. Create and start the sync service (disabled without a token).
	var syncSvc *application.SyncService
	if cfg.HasGitHubCredentials() {
		ghClient := githubadapter.NewClient(cfg.GitHubToken)
		syncSvc = application.NewSyncService(
			ghClient,
			a.mrStore,
			a.repoStore,
			a.reviewStore,
			a.checkStore,
			cfg.PollInterval,
			logger,
		)
		if a.purger != nil {
			syncSvc.WithCachePurger(a.purger)
		}
		go syncSvc.Start(ctx)
		logger.Info("github sync started")
	} else {
		logger.Warn("MERGECHECK_GITHUB_TOKEN not set, github sync disabled")
	}

	// 6. Create HTTP handler and register API routes.
	apiHandler := httphandler.NewHandler(
		a.repoStore,
		a.settingsStore,
		a.mrStore,
		a.checkStore,
		a.gateStore,
		a.mergeSvc,
		syncSvc,
		logger,
	)
	handler := httphandler.NewServeMux(apiHandler, logger, httphandler.MuxOptions{
		Limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		Gatherer: a.registry,
		Tracer:   tp.Tracer("github.com/ericfisherdev/mergecheck/http"),
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	logger.Info("mergecheck started",
		"listen_addr", cfg.ListenAddr,
		"default_checks", a.mergeSvc.DefaultChecks(),
	)

	// 7. Wait for a shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	// 8. Graceful shutdown.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
