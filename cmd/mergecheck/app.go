package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	badgeradapter "github.com/ericfisherdev/mergecheck/internal/adapter/driven/badger"
	"github.com/ericfisherdev/mergecheck/internal/adapter/driven/logsink"
	sqliteadapter "github.com/ericfisherdev/mergecheck/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/mergecheck/internal/application"
	"github.com/ericfisherdev/mergecheck/internal/application/mergeability"
	"github.com/ericfisherdev/mergecheck/internal/config"
	"github.com/ericfisherdev/mergecheck/internal/domain/port/driven"
)

// app holds the adapters and services shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db       *sqliteadapter.DB
	cacheDB  *badgeradapter.DB // nil unless the badger backend is selected
	cache    driven.CacheBackend
	purger   driven.CachePurger // nil when the backend expires entries itself
	registry *prometheus.Registry

	repoStore     *sqliteadapter.RepoRepo
	settingsStore *sqliteadapter.RepoSettingsRepo
	mrStore       *sqliteadapter.MergeRequestRepo
	reviewStore   *sqliteadapter.ReviewRepo
	checkStore    *sqliteadapter.CheckRepo
	gateStore     *sqliteadapter.FeatureGateRepo

	mergeSvc *application.MergeabilityService
}

// openApp opens the database, applies migrations, and wires the adapters and
// the mergeability service. The caller must call close.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	// 1. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	logger.Info("database opened", "path", cfg.DBPath)

	// 2. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("migrations complete")

	a := &app{
		cfg:           cfg,
		logger:        logger,
		db:            db,
		registry:      prometheus.NewRegistry(),
		repoStore:     sqliteadapter.NewRepoRepo(db),
		settingsStore: sqliteadapter.NewRepoSettingsRepo(db),
		mrStore:       sqliteadapter.NewMergeRequestRepo(db),
		reviewStore:   sqliteadapter.NewReviewRepo(db),
		checkStore:    sqliteadapter.NewCheckRepo(db),
		gateStore:     sqliteadapter.NewFeatureGateRepo(db),
	}

	// 3. Select the result cache backend.
	if err := a.openCache(); err != nil {
		_ = a.close()
		return nil, err
	}

	// 4. Wire the check pipeline.
	registry := mergeability.NewDefaultRegistry(a.reviewStore, a.checkStore)
	for _, identity := range cfg.Checks {
		if _, err := registry.Lookup(identity); err != nil {
			_ = a.close()
			return nil, fmt.Errorf("configured default checks: %w", err)
		}
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a.mergeSvc = application.NewMergeabilityService(a.mrStore, mergeability.Deps{
		Registry: registry,
		Cache:    a.cache,
		CacheTTL: cfg.CacheTTL,
		Gate:     a.gateStore,
		Sink:     logsink.NewSlogSink(logger),
		Counter:  sqliteadapter.NewQueryCounter(),
		Metrics:  mergeability.NewMetrics(a.registry),
		Logger:   logger,
	}, cfg.Checks)

	return a, nil
}

func (a *app) openCache() error {
	switch a.cfg.CacheBackend {
	case config.CacheBackendBadger:
		badgerCfg := badgeradapter.InMemoryConfig()
		if a.cfg.CacheDir != "" {
			badgerCfg = badgeradapter.DefaultConfig(a.cfg.CacheDir)
		}
		badgerCfg.Logger = a.logger
		cacheDB, err := badgeradapter.Open(badgerCfg)
		if err != nil {
			return err
		}
		a.cacheDB = cacheDB
		a.cache = badgeradapter.NewCache(cacheDB)
		a.logger.Info("result cache opened", "backend", config.CacheBackendBadger, "dir", a.cfg.CacheDir)
	default:
		cacheRepo := sqliteadapter.NewCacheRepo(a.db)
		a.cache = cacheRepo
		a.purger = cacheRepo
		a.logger.Info("result cache opened", "backend", config.CacheBackendSQLite)
	}
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.cacheDB != nil {
		if err := a.cacheDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
