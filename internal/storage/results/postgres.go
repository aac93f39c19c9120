package results

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/newthinker/sigreplay/internal/backtest"
	"github.com/newthinker/sigreplay/internal/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgreSQL error codes
const (
	pgErrUniqueViolation = "23505" // unique_violation
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool. maxConns <= 0 keeps the pgx default.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("parse postgres dsn: %w", err))
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("connect to postgres: %w", err))
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("ping postgres: %w", err))
	}

	return &Pool{Pool: pool}, nil
}

// Migrate applies the embedded SQL files in lexical order. They are idempotent.
func (p *Pool) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := p.Exec(ctx, string(data)); err != nil {
			return core.WrapError(core.ErrStorageFailed, fmt.Errorf("apply migration %s: %w", file, err))
		}
	}
	return nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}

// PostgresWriter stores runs in replay_runs and their rows in replay_trades.
type PostgresWriter struct {
	pool *Pool
}

// NewPostgresWriter creates a writer over an already migrated pool.
func NewPostgresWriter(pool *Pool) *PostgresWriter {
	return &PostgresWriter{pool: pool}
}

var _ Writer = (*PostgresWriter)(nil)

// Write inserts the run and all its trade rows in one transaction. A run id that is
// already stored fails the whole write.
func (w *PostgresWriter) Write(ctx context.Context, run Run) error {
	if run.Result == nil {
		return core.WrapError(core.ErrNoData, fmt.Errorf("run %s has no result", run.ID))
	}
	s := Summarize(run)
	params := s.Params
	if params == nil {
		params = map[string]any{}
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO replay_runs (
			run_id, schema_version, strategy, pair, params,
			profit_factor, loss_factor, execution_delay_hours, use_spread, include_incomplete,
			start_date, end_date, started_at, duration_ms,
			total_trades, winning_trades, losing_trades, incomplete_trades,
			total_r, max_drawdown_r, signals, dropped_signals
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21, $22
		)
	`
	_, err = tx.Exec(ctx, query,
		s.RunID, s.SchemaVersion, s.Strategy, s.Pair, params,
		s.Config.ProfitFactor, s.Config.LossFactor, s.Config.ExecutionDelayHours, s.Config.UseSpread, s.Config.IncludeIncomplete,
		nullTime(s.StartDate), nullTime(s.EndDate), s.StartedAt, s.DurationMS,
		s.Stats.TotalTrades, s.Stats.WinningTrades, s.Stats.LosingTrades, s.Stats.IncompleteTrades,
		s.Stats.TotalR, s.Stats.MaxDrawdownR, s.Diagnostics.Signals, s.Diagnostics.DroppedSignals,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return core.WrapError(core.ErrStorageFailed, fmt.Errorf("run %s already stored", run.ID))
		}
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("insert run: %w", err))
	}

	rows := run.Result.Rows
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"replay_trades"},
		[]string{"run_id", "seq", "direction", "entry_price", "take_profit", "stop_loss",
			"open_time", "close_time", "result", "trigger_price", "complete"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{
				run.ID, int32(i), int16(r.Direction), r.EntryPrice, r.TakeProfit, r.StopLoss,
				r.OpenTime, nullTime(r.CloseTime), r.Result, r.TriggerPrice, r.Complete,
			}, nil
		}),
	)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("copy trades: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// Trades reads back the rows of a run in simulator order.
func (w *PostgresWriter) Trades(ctx context.Context, runID string) ([]backtest.ResultRow, error) {
	query := `
		SELECT direction, entry_price, take_profit, stop_loss,
			open_time, close_time, result, trigger_price, complete
		FROM replay_trades
		WHERE run_id = $1
		ORDER BY seq
	`
	rows, err := w.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("query trades: %w", err))
	}
	defer rows.Close()

	var out []backtest.ResultRow
	for rows.Next() {
		var (
			r         backtest.ResultRow
			dir       int16
			closeTime *time.Time
		)
		if err := rows.Scan(&dir, &r.EntryPrice, &r.TakeProfit, &r.StopLoss,
			&r.OpenTime, &closeTime, &r.Result, &r.TriggerPrice, &r.Complete); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		r.Direction = core.Direction(dir)
		r.OpenTime = r.OpenTime.UTC()
		if closeTime != nil {
			r.CloseTime = closeTime.UTC()
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TotalR returns the stored total result of a run.
func (w *PostgresWriter) TotalR(ctx context.Context, runID string) (float64, error) {
	var total float64
	err := w.pool.QueryRow(ctx, `SELECT total_r FROM replay_runs WHERE run_id = $1`, runID).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, core.WrapError(core.ErrRunNotFound, fmt.Errorf("run %s", runID))
	}
	if err != nil {
		return 0, core.WrapError(core.ErrStorageFailed, err)
	}
	return total, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
