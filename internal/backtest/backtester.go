package backtest

import (
	"context"
	"fmt"

	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/strategy"
	"github.com/newthinker/sigreplay/internal/strategy/precomputed"
	"go.uber.org/zap"
)

// maxLoggedDrops bounds the entry times listed in the dropped-signal warning.
const maxLoggedDrops = 5

// Backtester replays annotated coarse signals over a fine quote series
type Backtester struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a new Backtester
func New(cfg Config, logger *zap.Logger) (*Backtester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backtester{cfg: cfg, logger: logger}, nil
}

// Run executes the pipeline: annotate, build entry specs, align, simulate, aggregate.
// The caller's series are not modified. The context is checked between stages only;
// the simulation itself runs to completion.
func (b *Backtester) Run(ctx context.Context, in Input) (*Result, error) {
	if in.Coarse == nil || in.Fine == nil {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("coarse and fine series are required"))
	}
	annotator := in.Annotator
	if annotator == nil {
		if in.Coarse.Direction == nil {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("annotator or direction column is required"))
		}
		annotator = precomputed.New()
	}
	log := b.logger.With(zap.String("pair", in.Pair), zap.String("strategy", annotator.Name()))

	coarse := in.Coarse.Clone()
	fine := in.Fine.Clone()
	if err := coarse.Validate(); err != nil {
		return nil, fmt.Errorf("coarse series: %w", err)
	}
	if err := fine.Validate(!b.cfg.UseSpread); err != nil {
		return nil, fmt.Errorf("fine series: %w", err)
	}
	if !b.cfg.UseSpread {
		coarse.RemoveSpread()
		fine.RemoveSpread()
	}

	gain := in.Gain
	if gain == nil && coarse.Gain == nil {
		gain = strategy.RangeGain(b.cfg.ProfitFactor)
	}
	signals, err := strategy.Apply(coarse, annotator, gain)
	if err != nil {
		return nil, fmt.Errorf("annotating: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	specs, err := BuildEntrySpecs(coarse, b.cfg.ExecutionDelay)
	if err != nil {
		return nil, fmt.Errorf("building entry specs: %w", err)
	}

	rows, align, err := Align(fine, specs)
	if err != nil {
		return nil, fmt.Errorf("aligning: %w", err)
	}
	if align.Dropped > 0 {
		shown := align.DroppedTimes
		if len(shown) > maxLoggedDrops {
			shown = shown[:maxLoggedDrops]
		}
		log.Warn("signals without an exact fine bar were dropped",
			zap.Int("dropped", align.Dropped),
			zap.Int("signals", len(specs)),
			zap.Duration("execution_delay", b.cfg.ExecutionDelay),
			zap.Times("first_entry_times", shown),
		)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trades := Simulate(rows, b.cfg.ProfitFactor, b.cfg.LossFactor, b.cfg.IncludeIncomplete)
	stats := CalculateStats(trades)

	result := &Result{
		Strategy: annotator.Name(),
		Pair:     in.Pair,
		Config:   b.cfg,
		Trades:   trades,
		Rows:     Aggregate(trades),
		Stats:    stats,
		Diagnostics: Diagnostics{
			CoarseBars:     coarse.Len(),
			FineBars:       fine.Len(),
			Signals:        signals,
			Matched:        align.Matched,
			DroppedSignals: align.Dropped,
			Closed:         stats.WinningTrades + stats.LosingTrades,
			Incomplete:     countOpen(trades),
		},
	}
	if fine.Len() > 0 {
		result.StartDate = fine.Time[0]
		result.EndDate = fine.Time[fine.Len()-1]
	}

	log.Debug("replay finished",
		zap.Int("signals", signals),
		zap.Int("trades", len(trades)),
		zap.Float64("total_r", stats.TotalR),
	)
	return result, nil
}

func countOpen(trades []Trade) int {
	n := 0
	for _, t := range trades {
		if !t.IsClosed() {
			n++
		}
	}
	return n
}
