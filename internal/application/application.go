// Package application assembles the import engine from configuration. Both
// binaries build on it: the server with a background queue, the CLI driving
// chunks itself.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/PostImport/internal/assets"
	"github.com/JonMunkholm/PostImport/internal/config"
	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/JonMunkholm/PostImport/internal/diaglog"
	"github.com/JonMunkholm/PostImport/internal/headers"
	"github.com/JonMunkholm/PostImport/internal/metrics"
	"github.com/JonMunkholm/PostImport/internal/store/memory"
	"github.com/JonMunkholm/PostImport/internal/store/postgres"
	"github.com/JonMunkholm/PostImport/internal/store/redisstate"
	"github.com/JonMunkholm/PostImport/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Options selects how chunks are delivered.
type Options struct {
	// Queue runs chunks on an in-process worker. Without it triggers are
	// dropped and the caller drives the run with RunToCompletion.
	Queue bool
}

// App holds the wired engine and everything that must be closed with it.
type App struct {
	Config  *config.Config
	Pool    *pgxpool.Pool
	Runner  *core.Runner
	Queue   *core.Queue
	Metrics *metrics.Metrics
	// Recent is nil when the diagnostic sink cannot list entries.
	Recent web.RecentLog

	closers []func() error
}

// New connects to Postgres (and Redis when it holds the state), applies
// migrations when configured and wires the runner.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg, Metrics: metrics.New()}

	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app.Pool = pool
	app.onClose(func() error { pool.Close(); return nil })

	if cfg.Database.AutoMigrate {
		if _, _, err := postgres.Migrate(pool); err != nil {
			app.Close()
			return nil, err
		}
	}

	state, err := app.stateStore(ctx, pool)
	if err != nil {
		app.Close()
		return nil, err
	}

	diag, err := app.diagnosticLog(pool)
	if err != nil {
		app.Close()
		return nil, err
	}

	blobs := assets.NewDiskBlobs(cfg.Assets.Dir)
	deps := core.Deps{
		State:      state,
		Records:    postgres.NewRecords(pool),
		Taxonomy:   postgres.NewTaxonomy(pool),
		Assets:     assets.NewFetcher(postgres.NewAssets(pool, blobs), fetcherConfig(cfg.Fetch), app.Metrics),
		Diagnostic: diag,
	}
	if err := app.wire(deps, opts); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// NewDryRun wires the runner on in-memory stores. Images are still fetched
// so that asset errors show up, but nothing is persisted.
func NewDryRun(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg, Metrics: metrics.New()}

	log := memory.NewLog()
	app.Recent = log
	deps := core.Deps{
		State:      memory.NewState(),
		Records:    memory.NewRecords(),
		Taxonomy:   memory.NewTaxonomy(),
		Assets:     assets.NewFetcher(memory.NewAssets(nil), fetcherConfig(cfg.Fetch), app.Metrics),
		Diagnostic: log,
	}
	if err := app.wire(deps, Options{}); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) wire(deps core.Deps, opts Options) error {
	resolver, err := headerResolver(a.Config.Import.AliasesFile)
	if err != nil {
		return err
	}
	deps.Headers = resolver
	deps.Metrics = a.Metrics

	if opts.Queue {
		a.Queue = core.NewQueue(a.Config.Import.QueueSize)
		deps.Scheduler = a.Queue
	} else {
		deps.Scheduler = core.NopScheduler{}
	}

	a.Runner = core.NewRunner(deps, RunnerConfig(a.Config.Import))
	return nil
}

func (a *App) stateStore(ctx context.Context, pool *pgxpool.Pool) (core.StateStore, error) {
	if !strings.EqualFold(a.Config.State.Backend, "redis") {
		return postgres.NewState(pool), nil
	}

	rc := a.Config.Redis
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Address,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.onClose(client.Close)

	slog.Info("import state stored in redis", "address", rc.Address)
	return redisstate.New(client, rc.KeyPrefix), nil
}

func (a *App) diagnosticLog(pool *pgxpool.Pool) (core.DiagnosticLog, error) {
	if !strings.EqualFold(a.Config.Diagnostics.Sink, "file") {
		log := postgres.NewLog(pool)
		a.Recent = log
		return log, nil
	}

	f, err := diaglog.Open(a.Config.Diagnostics.LogFile)
	if err != nil {
		return nil, err
	}
	a.onClose(f.Close)
	slog.Info("diagnostic log written to file", "path", f.Path())
	return f, nil
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Ping checks the database connection. It is nil-safe for dry runs.
func (a *App) Ping(ctx context.Context) error {
	if a.Pool == nil {
		return nil
	}
	return a.Pool.Ping(ctx)
}

// RunnerConfig converts the import settings.
func RunnerConfig(c config.ImportConfig) core.RunnerConfig {
	return core.RunnerConfig{
		ChunkSize:       c.ChunkSize,
		ExecutionBudget: c.ExecutionBudget,
		BudgetFraction:  c.BudgetFraction,
		LeaseTTL:        c.LeaseTTL,
	}
}

func fetcherConfig(c config.FetchConfig) assets.FetcherConfig {
	return assets.FetcherConfig{
		Timeout:   c.Timeout,
		HeadCheck: c.HeadCheck,
		MaxBytes:  c.MaxBytes,
		UserAgent: c.UserAgent,
	}
}

func headerResolver(aliasesFile string) (*headers.Resolver, error) {
	if aliasesFile == "" {
		return headers.NewResolver(nil), nil
	}
	aliases, err := headers.LoadAliases(aliasesFile)
	if err != nil {
		return nil, fmt.Errorf("load header aliases: %w", err)
	}
	slog.Info("header aliases loaded", "path", aliasesFile)
	return headers.NewResolver(aliases), nil
}
