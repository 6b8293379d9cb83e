package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/kalshi-tracker/internal/analytics"
	"github.com/rickgao/kalshi-tracker/internal/api"
	"github.com/rickgao/kalshi-tracker/internal/auth"
	"github.com/rickgao/kalshi-tracker/internal/config"
	"github.com/rickgao/kalshi-tracker/internal/ingest"
	"github.com/rickgao/kalshi-tracker/internal/metrics"
	"github.com/rickgao/kalshi-tracker/internal/poller"
	"github.com/rickgao/kalshi-tracker/internal/server"
	"github.com/rickgao/kalshi-tracker/internal/store"
	"github.com/rickgao/kalshi-tracker/internal/store/postgres"
	"github.com/rickgao/kalshi-tracker/internal/store/sqlite"
)

// App owns every long-lived component. Fields that need credentials are nil
// until Connect succeeds.
type App struct {
	Config  *config.Config
	Store   store.Store
	Engine  *analytics.Engine
	Metrics *metrics.Metrics

	Credential *auth.Credential
	Client     *api.Client
	Syncer     *ingest.Syncer
	Snapshots  *poller.SnapshotTask

	logger *slog.Logger
}

// Open opens the configured store and builds the components that need no
// venue access.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	loc, err := time.LoadLocation(cfg.Analytics.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	st, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("store opened", "driver", cfg.Database.Driver)

	return &App{
		Config:  cfg,
		Store:   st,
		Engine:  analytics.NewEngine(st, loc),
		Metrics: metrics.New(),
		logger:  logger,
	}, nil
}

// OpenStore opens the backend selected by cfg.Driver and applies its
// migrations.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.Path)
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Connect loads the API credential and builds the venue client plus the
// components that depend on it.
func (a *App) Connect() error {
	cfg := a.Config.API
	cred, err := auth.Load(cfg.KeyID, cfg.PrivateKey, cfg.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	a.logger.Info("credential loaded", "credential", cred)
	a.Credential = cred

	a.Client = api.NewClient(
		cfg.BaseURL,
		auth.NewSigner(cred),
		api.WithLogger(a.logger),
		api.WithTimeout(cfg.Timeout),
		api.WithRetryPolicy(api.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			Multiplier:  cfg.Retry.Multiplier,
			MaxDelay:    cfg.Retry.MaxDelay,
			Jitter:      cfg.Retry.Jitter,
		}),
		api.WithRateLimiter(api.NewRateLimiter(cfg.RateLimit, cfg.Burst)),
		api.WithObserver(a.Metrics),
	)

	a.Syncer = ingest.NewSyncer(a.Client, a.Store,
		ingest.WithLogger(a.logger),
		ingest.WithObserver(a.Metrics),
		ingest.WithPageSize(cfg.PageSize),
	)
	a.Snapshots = poller.NewSnapshotTask(a.Client, a.Store, a.Config.Scheduler.SnapshotInterval, a.logger)
	return nil
}

// CheckExchange logs the venue's trading status. It doubles as a
// credential and connectivity probe.
func (a *App) CheckExchange(ctx context.Context) (*api.ExchangeStatusResponse, error) {
	if a.Client == nil {
		return nil, errors.New("not connected")
	}
	status, err := a.Client.GetExchangeStatus(ctx)
	if err != nil {
		return nil, err
	}
	a.logger.Info("exchange status",
		"exchange_active", status.ExchangeActive,
		"trading_active", status.TradingActive,
	)
	return status, nil
}

// Server builds the HTTP API over the app's components.
func (a *App) Server() *server.Server {
	deps := server.Deps{
		Store:    a.Store,
		Engine:   a.Engine,
		Observer: a.Metrics,
	}
	if a.Client != nil {
		deps.Live = a.Client
	}
	if a.Syncer != nil {
		deps.Syncer = a.Syncer
	}

	cfg := server.Config{
		Port:        a.Config.Server.Port,
		CORSOrigins: a.Config.Server.CORSOrigins,
	}
	if a.Config.Metrics.Enabled {
		cfg.MetricsPath = a.Config.Metrics.Path
		deps.Metrics = a.Metrics.Handler()
	}
	return server.New(cfg, deps, a.logger)
}

// Run starts both schedulers and the HTTP API, then blocks until ctx is
// cancelled or the server fails. Shutdown stops the schedulers first, then
// drains the server. The store is left open for Close.
func (a *App) Run(ctx context.Context) error {
	if a.Client == nil {
		return errors.New("run: not connected")
	}

	sched := a.Config.Scheduler
	pollers := []*poller.Poller{
		poller.New(poller.Config{Interval: sched.SnapshotInterval, Timeout: sched.RunTimeout}, a.Snapshots, a.logger),
		poller.New(poller.Config{Interval: sched.SyncInterval, Timeout: sched.RunTimeout}, a.Syncer, a.logger),
	}
	for _, p := range pollers {
		p.SetObserver(a.Metrics)
		if err := p.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	srv := a.Server()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, p := range pollers {
			if err := p.Stop(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	a.logger.Info("tracker running",
		"port", a.Config.Server.Port,
		"snapshot_interval", sched.SnapshotInterval,
		"sync_interval", sched.SyncInterval,
	)
	return g.Wait()
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
