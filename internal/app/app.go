// Package app wires configuration into a ready-to-use replay runner.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/newthinker/sigreplay/internal/backtest"
	"github.com/newthinker/sigreplay/internal/collector/candles"
	"github.com/newthinker/sigreplay/internal/config"
	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/instrument"
	"github.com/newthinker/sigreplay/internal/metrics"
	"github.com/newthinker/sigreplay/internal/storage/archive"
	"github.com/newthinker/sigreplay/internal/storage/results"
	"github.com/newthinker/sigreplay/internal/storage/runs"
	"github.com/newthinker/sigreplay/internal/strategy"
	"github.com/newthinker/sigreplay/internal/strategy/ma_crossover"
	"github.com/newthinker/sigreplay/internal/strategy/macd_cross"
	"github.com/newthinker/sigreplay/internal/strategy/precomputed"
	"github.com/newthinker/sigreplay/internal/sweep"
	"go.uber.org/zap"
)

// App is the main application orchestrator
type App struct {
	cfg         *config.Config
	logger      *zap.Logger
	strategies  *strategy.Engine
	instruments *instrument.Table
	runs        *runs.MemoryStore
	metrics     *metrics.Registry
	runner      *sweep.Runner
	pool        *results.Pool
	pg          *results.PostgresWriter
}

// New validates cfg and builds every component it names. Close releases them.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	btCfg, err := cfg.Backtest()
	if err != nil {
		return nil, err
	}
	from, to, err := cfg.Data.Window()
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		strategies: strategy.NewEngine(logger),
		runs:       runs.NewMemoryStore(0),
		metrics:    metrics.NewRegistry(),
	}
	if a.instruments, err = instrument.NewTable(cfg.Instruments); err != nil {
		return nil, err
	}

	a.strategies.RegisterFactory(func() strategy.Annotator { return macd_cross.New() })
	a.strategies.RegisterFactory(func() strategy.Annotator { return ma_crossover.New(10, 30) })
	a.strategies.RegisterFactory(func() strategy.Annotator { return precomputed.New() })
	if err := a.strategies.Configure(toStrategyConfigs(cfg.Strategies)); err != nil {
		return nil, err
	}

	source, err := archive.New(archiveConfig(cfg.Data.Source))
	if err != nil {
		return nil, fmt.Errorf("opening candle source: %w", err)
	}

	writers := results.Multi{a.runs}
	if cfg.Output.Archive.Enabled {
		store, err := archive.New(archiveConfig(cfg.Output.Archive.ArchiveConfig))
		if err != nil {
			return nil, fmt.Errorf("opening result archive: %w", err)
		}
		writers = append(writers, results.NewArchiveWriter(store, ""))
	}
	if cfg.Output.Postgres.DSN != "" {
		pool, err := results.NewPool(ctx, cfg.Output.Postgres.DSN, cfg.Output.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		a.pool = pool
		a.pg = results.NewPostgresWriter(pool)
		writers = append(writers, a.pg)
	}

	a.runner, err = sweep.New(sweep.Options{
		Source:            candles.New(source, "", logger),
		Engine:            a.strategies,
		Backtest:          btCfg,
		CoarseGranularity: cfg.Data.CoarseGranularity,
		FineGranularity:   cfg.Data.FineGranularity,
		From:              from,
		To:                to,
		Gain:              a.gainSelector(),
		Writer:            writers,
		Metrics:           a.metrics,
		Workers:           cfg.Sweep.Workers,
		Logger:            logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("replay environment ready",
		zap.String("source", cfg.Data.Source.Type),
		zap.String("coarse", cfg.Data.CoarseGranularity),
		zap.String("fine", cfg.Data.FineGranularity),
		zap.Int("instruments", a.instruments.Len()),
		zap.Int("writers", len(writers)),
		zap.Strings("strategies", a.strategies.Names()),
	)
	return a, nil
}

// Close releases the database pool and writes the metrics textfile, if configured.
func (a *App) Close() error {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
		a.pg = nil
	}
	if a.cfg.Metrics.Enabled {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			return err
		}
	}
	return nil
}

// Runner returns the configured job runner.
func (a *App) Runner() *sweep.Runner { return a.runner }

// Runs returns the in-memory store of finished runs.
func (a *App) Runs() *runs.MemoryStore { return a.runs }

// Strategies returns the registered strategy names.
func (a *App) Strategies() []string { return a.strategies.Names() }

// Describe returns the description of a registered strategy.
func (a *App) Describe(name string) (string, error) {
	s, err := a.strategies.Get(name)
	if err != nil {
		return "", err
	}
	return s.Description(), nil
}

// StoredTrades reads a persisted run back from Postgres.
func (a *App) StoredTrades(ctx context.Context, runID string) ([]backtest.ResultRow, float64, error) {
	if a.pg == nil {
		return nil, 0, core.WrapError(core.ErrConfigMissing, fmt.Errorf("output.postgres.dsn is not set"))
	}
	total, err := a.pg.TotalR(ctx, runID)
	if err != nil {
		return nil, 0, err
	}
	rows, err := a.pg.Trades(ctx, runID)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Pairs resolves the pairs to replay: explicit names first, then the configured sweep
// pairs, then every instrument pair formed from the configured currencies.
func (a *App) Pairs(explicit []string) ([]string, error) {
	pairs := explicit
	if len(pairs) == 0 {
		pairs = a.cfg.Sweep.Pairs
	}
	if len(pairs) == 0 && len(a.cfg.Sweep.Currencies) > 0 {
		pairs = a.instruments.Pairs(a.cfg.Sweep.Currencies)
	}
	if len(pairs) == 0 {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("no pairs selected"))
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = strings.ToUpper(p)
	}
	return out, nil
}

// gainSelector maps the configured gain mode onto a per-pair take-profit sizing.
func (a *App) gainSelector() sweep.GainSelector {
	g := a.cfg.Simulation.Gain
	switch g.Mode {
	case "pips":
		return func(pair string) (strategy.GainFunc, error) {
			ins, err := a.instruments.Get(pair)
			if err != nil {
				return nil, err
			}
			return strategy.PipGain(ins, g.Pips), nil
		}
	case "column":
		return func(string) (strategy.GainFunc, error) {
			return strategy.ColumnGain(g.Column), nil
		}
	default:
		return nil
	}
}

func toStrategyConfigs(in map[string]config.StrategyConfig) map[string]strategy.Config {
	out := make(map[string]strategy.Config, len(in))
	for name, c := range in {
		out[name] = strategy.Config{Enabled: c.Enabled, Params: c.Params}
	}
	return out
}

func archiveConfig(c config.ArchiveConfig) archive.Config {
	return archive.Config{
		Type: c.Type,
		Path: c.Path,
		S3: archive.S3Config{
			Bucket:    c.S3.Bucket,
			Endpoint:  c.S3.Endpoint,
			Region:    c.S3.Region,
			AccessKey: c.S3.AccessKey,
			SecretKey: c.S3.SecretKey,
			Prefix:    c.S3.Prefix,
		},
	}
}
