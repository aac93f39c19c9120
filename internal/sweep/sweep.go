// Package sweep replays a strategy over many (pair, parameter set) combinations on a
// bounded worker pool.
package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/sigreplay/internal/backtest"
	"github.com/newthinker/sigreplay/internal/collector"
	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/metrics"
	"github.com/newthinker/sigreplay/internal/series"
	"github.com/newthinker/sigreplay/internal/storage/results"
	"github.com/newthinker/sigreplay/internal/strategy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Job is one replay of a strategy with a parameter set over one pair.
type Job struct {
	Pair     string
	Strategy string
	Params   map[string]any
}

// Jobs builds the cross product of pairs and parameter sets, pair-major. No
// parameter sets means a single run per pair with the configured parameters.
func Jobs(pairs []string, strategyName string, paramSets []map[string]any) []Job {
	if len(paramSets) == 0 {
		paramSets = []map[string]any{nil}
	}
	jobs := make([]Job, 0, len(pairs)*len(paramSets))
	for _, pair := range pairs {
		for _, params := range paramSets {
			jobs = append(jobs, Job{Pair: pair, Strategy: strategyName, Params: params})
		}
	}
	return jobs
}

// Job parameters read by the runner itself rather than the strategy.
const (
	// ParamGranularity overrides the coarse granularity of one job, e.g. "H4".
	ParamGranularity = "granularity"
	// ParamDelayHours overrides the execution delay of one job.
	ParamDelayHours = "execution_delay_hours"
	// ParamTimeframe sets both at once: the coarse file H<n> and an n hour delay.
	ParamTimeframe = "time_d"
)

// GainSelector picks the take-profit sizing for a pair. A nil GainFunc keeps the
// backtester default.
type GainSelector func(pair string) (strategy.GainFunc, error)

// Options configures a Runner.
type Options struct {
	Source            collector.Source
	Engine            *strategy.Engine
	Backtest          backtest.Config
	CoarseGranularity string
	FineGranularity   string
	From              time.Time
	To                time.Time
	Gain              GainSelector      // optional
	Writer            results.Writer    // optional
	Metrics           *metrics.Registry // optional
	Workers           int
	Logger            *zap.Logger
}

// Outcome is the result of one job. Err is set when the job failed; other jobs are
// unaffected.
type Outcome struct {
	Job    Job
	RunID  string
	Result *backtest.Result
	Err    error
}

// Runner executes jobs.
type Runner struct {
	opts   Options
	bt     *backtest.Backtester
	logger *zap.Logger

	loads singleflight.Group
	mu    sync.Mutex
	cache map[string]any // *series.Coarse or *series.Fine by granularity/pair
}

// New creates a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Source == nil || opts.Engine == nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("sweep needs a source and a strategy engine"))
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	bt, err := backtest.New(opts.Backtest, opts.Logger)
	if err != nil {
		return nil, err
	}
	return &Runner{
		opts:   opts,
		bt:     bt,
		logger: opts.Logger,
		cache:  make(map[string]any),
	}, nil
}

// Run executes all jobs and returns one outcome per job, in job order. A failing job
// does not stop the others; only cancellation of ctx aborts the sweep, in which case
// the context error is returned together with the outcomes gathered so far.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Outcome, error) {
	outcomes := make([]Outcome, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = r.RunOne(gctx, job)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	if err := ctx.Err(); err != nil {
		return outcomes, err
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	r.logger.Info("sweep finished", zap.Int("jobs", len(jobs)), zap.Int("failed", failed))
	return outcomes, nil
}

// RunOne executes a single job: load the pair, replay it, persist the result.
func (r *Runner) RunOne(ctx context.Context, job Job) Outcome {
	out := Outcome{Job: job, RunID: uuid.NewString()}
	log := r.logger.With(zap.String("run_id", out.RunID), zap.String("pair", job.Pair), zap.String("strategy", job.Strategy))

	if m := r.opts.Metrics; m != nil {
		m.WorkerStarted()
		defer m.WorkerDone()
	}
	start := time.Now()

	out.Result, out.Err = r.replay(ctx, job)
	duration := time.Since(start)
	if out.Err != nil {
		log.Error("run failed", zap.Error(out.Err))
		if m := r.opts.Metrics; m != nil {
			m.RecordRunFailure(job.Strategy, duration)
		}
		return out
	}

	if r.opts.Writer != nil {
		run := results.Run{ID: out.RunID, Params: job.Params, StartedAt: start, Duration: duration, Result: out.Result}
		if err := r.opts.Writer.Write(ctx, run); err != nil {
			out.Err = fmt.Errorf("persisting run: %w", err)
			log.Error("run not persisted", zap.Error(err))
			if m := r.opts.Metrics; m != nil {
				m.RecordRunFailure(job.Strategy, duration)
			}
			return out
		}
	}

	if m := r.opts.Metrics; m != nil {
		m.RecordRun(outcomeOf(out.Result), duration)
	}

	log.Info("run finished",
		zap.Int("trades", out.Result.Stats.TotalTrades),
		zap.Float64("total_r", out.Result.Stats.TotalR),
		zap.Int("dropped_signals", out.Result.Diagnostics.DroppedSignals),
		zap.Duration("duration", duration),
	)
	return out
}

func (r *Runner) replay(ctx context.Context, job Job) (*backtest.Result, error) {
	set, err := r.settings(job.Params)
	if err != nil {
		return nil, err
	}
	a, err := r.opts.Engine.Instantiate(job.Strategy, set.params)
	if err != nil {
		return nil, err
	}
	coarse, fine, err := r.load(ctx, job.Pair, set.granularity)
	if err != nil {
		return nil, err
	}
	in := backtest.Input{Pair: job.Pair, Coarse: coarse, Fine: fine, Annotator: a}
	if r.opts.Gain != nil {
		if in.Gain, err = r.opts.Gain(job.Pair); err != nil {
			return nil, err
		}
	}
	return set.bt.Run(ctx, in)
}

// jobSettings is a job's view of the runner options after its overrides.
type jobSettings struct {
	granularity string
	bt          *backtest.Backtester
	params      map[string]any // strategy parameters, runner keys removed
}

func (r *Runner) settings(params map[string]any) (jobSettings, error) {
	set := jobSettings{granularity: r.opts.CoarseGranularity, bt: r.bt}
	delay := r.opts.Backtest.ExecutionDelay
	overridden := false

	for k, v := range params {
		switch k {
		case ParamTimeframe:
			hours, ok := strategy.IntParam(params, k)
			if !ok || hours <= 0 {
				return set, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s must be a positive integer, got %v", k, v))
			}
			if _, ok := params[ParamGranularity]; !ok {
				set.granularity = fmt.Sprintf("H%d", hours)
			}
			if _, ok := params[ParamDelayHours]; !ok {
				delay, overridden = time.Duration(hours)*time.Hour, true
			}
		case ParamGranularity:
			g, ok := v.(string)
			if !ok || g == "" {
				return set, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s must be a granularity name, got %v", k, v))
			}
			set.granularity = g
		case ParamDelayHours:
			hours, ok := strategy.IntParam(params, k)
			if !ok {
				return set, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s must be an integer, got %v", k, v))
			}
			delay, overridden = time.Duration(hours)*time.Hour, true
		default:
			if set.params == nil {
				set.params = make(map[string]any, len(params))
			}
			set.params[k] = v
		}
	}

	if set.granularity == r.opts.FineGranularity {
		return set, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("coarse granularity %s equals the fine granularity", set.granularity))
	}
	if overridden && delay != r.opts.Backtest.ExecutionDelay {
		cfg := r.opts.Backtest
		cfg.ExecutionDelay = delay
		bt, err := backtest.New(cfg, r.logger)
		if err != nil {
			return set, err
		}
		set.bt = bt
	}
	return set, nil
}

// load returns the coarse and fine series of a pair. Each file is read once per Runner
// and shared by every job that needs it; the backtester never mutates its input.
func (r *Runner) load(ctx context.Context, pair, coarseGranularity string) (*series.Coarse, *series.Fine, error) {
	coarse, err := r.cached(coarseGranularity+"/"+pair, func() (any, error) {
		return r.opts.Source.Coarse(ctx, collector.Request{
			Pair: pair, Granularity: coarseGranularity, From: r.opts.From, To: r.opts.To,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	fine, err := r.cached(r.opts.FineGranularity+"/"+pair, func() (any, error) {
		return r.opts.Source.Fine(ctx, collector.Request{
			Pair: pair, Granularity: r.opts.FineGranularity, From: r.opts.From, To: r.opts.To,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return coarse.(*series.Coarse), fine.(*series.Fine), nil
}

// cached runs fetch once per key. Concurrent callers of a key share one fetch; failures
// are not cached.
func (r *Runner) cached(key string, fetch func() (any, error)) (any, error) {
	r.mu.Lock()
	v, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return v, nil
	}

	v, err, _ := r.loads.Do(key, func() (any, error) {
		r.mu.Lock()
		v, ok := r.cache[key]
		r.mu.Unlock()
		if ok {
			return v, nil
		}
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[key] = v
		r.mu.Unlock()
		return v, nil
	})
	return v, err
}

func outcomeOf(res *backtest.Result) metrics.RunOutcome {
	o := metrics.RunOutcome{
		Strategy:   res.Strategy,
		Wins:       res.Stats.WinningTrades,
		Losses:     res.Stats.LosingTrades,
		Incomplete: res.Stats.IncompleteTrades,
		Signals:    res.Diagnostics.Signals,
		Dropped:    res.Diagnostics.DroppedSignals,
	}
	for _, t := range res.Trades {
		if !t.IsClosed() {
			continue
		}
		if t.Result > 0 {
			o.WinR += t.Result
		} else {
			o.LossR -= t.Result
		}
	}
	return o
}
