package main

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/config"
	anRepoPkg "github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/analytics/repository"
	anScraperPkg "github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/analytics/scraper"
	anUCPkg "github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/analytics/usecase"
	invRepoPkg "github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventory/repository"
	invScraperPkg "github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventory/scraper"
	invUCPkg "github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventory/usecase"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventorypoint"
	ipRepoPkg "github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventorypoint/repository"
	ipUCPkg "github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/inventorypoint/usecase"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/metrics"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/postgres"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/sellfox"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/syncjob"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/tasklog"
	tlRepoPkg "github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/tasklog/repository"
)

// app holds every wired component of the daemon.
type app struct {
	cfg      *config.Config
	db       *sqlx.DB
	location *time.Location
	metrics  *metrics.Collector
	tracker  *tasklog.Tracker
	points   inventorypoint.UseCase
	service  *syncjob.Service
	logger   logger.ZapLogger
}

func newLogger(cfg *config.Config) logger.ZapLogger {
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}

	if cfg.IsDevelopment() {
		logConfig.IsDevelopment = true
		logConfig.Encoding = "console"
		logConfig.Level = "debug"
	}
	if cfg.SyncSettings().Debug {
		logConfig.Level = "debug"
	}
	return logger.NewZapLogger(logConfig)
}

func newApp(ctx context.Context, cfg *config.Config, log logger.ZapLogger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, errors.Annotate(err, "scheduler timezone")
	}

	// 1. Database
	db, err := postgres.NewPostgres(ctx, &postgres.Config{
		DSN:         cfg.DSN(),
		PoolSize:    cfg.Database.PoolSize,
		PoolTimeout: cfg.Database.PoolTimeout,
		PoolRecycle: cfg.Database.PoolRecycle,
	})
	if err != nil {
		return nil, errors.Annotate(err, "connect database")
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, errors.Annotate(err, "migrate schema")
	}
	log.Info("Connected to PostgreSQL database", zap.Any("database", cfg.Sanitized()["database"]))

	collector := metrics.NewCollector()
	clk := clock.WallClock

	// 2. Repositories
	anRepo := anRepoPkg.NewPGRepository(db, clk)
	invRepo := invRepoPkg.NewPGRepository(db, clk)
	ipRepo := ipRepoPkg.NewPGRepository(db, clk)
	tlRepo := tlRepoPkg.NewPGRepository(db)

	// 3. ERP client
	creds := cfg.Credentials()
	httpClient := sellfox.NewHTTPClient(creds, cfg.API.Timeout)
	tokens := sellfox.NewTokenClient(creds, httpClient, clk, log)
	settings := cfg.SyncSettings()
	api := sellfox.NewClient(httpClient, tokens, sellfox.NewSigner(creds.ClientID, creds.ClientSecret, clk), sellfox.Options{
		RequestsPerMinute: cfg.API.RequestsPerMinute,
		BurstSize:         cfg.API.BurstSize,
		RetryCount:        settings.MaxRetries,
		RetryDelay:        cfg.API.RetryDelay,
		Clock:             clk,
		Observer:          collector,
	}, log)
	pages := sellfox.PageOptions{
		PageDelay:      settings.RateLimitDelay,
		RateLimitPause: cfg.API.RateLimitPause,
		Clock:          clk,
		Logger:         log,
	}

	// 4. UseCases
	anUC := anUCPkg.NewAnalyticsUseCase(anRepo, settings.BatchSize, settings.Validate, log)
	invUC := invUCPkg.NewInventoryUseCase(invRepo,
		invScraperPkg.NewFbaScraper(api, cfg.API.PageSize, pages, log).WithValidation(settings.Validate),
		invScraperPkg.NewWarehouseScraper(api, cfg.API.PageSize, pages, log).WithValidation(settings.Validate),
		settings.BatchSize, log)
	ipUC := ipUCPkg.NewInventoryPointUseCase(ipRepo, anRepo, invRepo, clk, log)
	tracker := tasklog.NewTracker(tlRepo, clk, collector, log)

	service := syncjob.NewService(syncjob.Deps{
		Scraper:       anScraperPkg.NewScraper(api, cfg.API.PageSize, pages, log).WithValidation(settings.Validate),
		Analytics:     anUC,
		AnalyticsRepo: anRepo,
		Inventory:     invUC,
		InventoryRepo: invRepo,
		Points:        ipUC,
		PointRepo:     ipRepo,
		Tracker:       tracker,
	}, syncjob.Options{
		JobTimeout:          settings.Timeout,
		MergeAfterAnalytics: cfg.Sync.MergeAfterAnalytics,
		HistoryDays:         cfg.Sync.HistoryRefreshDays,
		MaxHistoryDays:      cfg.Sync.MaxHistoryDays,
		ParallelWorkers:     cfg.Sync.ParallelWorkers,
		KeepDays:            cfg.Sync.KeepDays,
		OverdueAfter:        cfg.Scheduler.OverdueAfter,
		Location:            loc,
		Clock:               clk,
	}, log)

	return &app{
		cfg:      cfg,
		db:       db,
		location: loc,
		metrics:  collector,
		tracker:  tracker,
		points:   ipUC,
		service:  service,
		logger:   log,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("Failed to close database", zap.Error(err))
	}
}
