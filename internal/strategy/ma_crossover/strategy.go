package ma_crossover

import (
	"fmt"

	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/indicator"
	"github.com/newthinker/sigreplay/internal/series"
	"github.com/newthinker/sigreplay/internal/strategy"
)

const (
	ColumnDelta     = "ma_delta"
	ColumnDeltaPrev = "ma_delta_prev"
)

// MACrossover implements a moving average crossover strategy on mid closes
type MACrossover struct {
	fastPeriod int
	slowPeriod int
}

// New creates a new MA Crossover strategy
func New(fastPeriod, slowPeriod int) *MACrossover {
	return &MACrossover{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}
}

func (m *MACrossover) Name() string {
	return "ma_crossover"
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("MA Crossover (%d/%d)", m.fastPeriod, m.slowPeriod)
}

func (m *MACrossover) RequiredColumns() []string {
	return []string{ColumnDelta, ColumnDeltaPrev}
}

func (m *MACrossover) Init(cfg strategy.Config) error {
	if fast, ok := strategy.IntParam(cfg.Params, "fast_period"); ok {
		m.fastPeriod = fast
	}
	if slow, ok := strategy.IntParam(cfg.Params, "slow_period"); ok {
		m.slowPeriod = slow
	}
	if m.fastPeriod <= 0 || m.fastPeriod >= m.slowPeriod {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("ma_crossover needs 0 < fast_period < slow_period, got %d/%d", m.fastPeriod, m.slowPeriod))
	}
	return nil
}

// Prepare derives the fast-minus-slow MA column and its one-bar lag.
// Warm-up bars carry NaN and never signal.
func (m *MACrossover) Prepare(c *series.Coarse) error {
	n := c.Len()
	fast := indicator.Column(indicator.SMA(c.MidClose, m.fastPeriod), n)
	slow := indicator.Column(indicator.SMA(c.MidClose, m.slowPeriod), n)

	delta := make([]float64, n)
	for i := range delta {
		delta[i] = fast[i] - slow[i]
	}

	if err := c.SetExtra(ColumnDelta, delta); err != nil {
		return err
	}
	return c.SetExtra(ColumnDeltaPrev, indicator.Shift(delta, 1))
}

// Annotate returns BUY on a golden cross and SELL on a death cross.
func (m *MACrossover) Annotate(row series.CoarseRow) core.Direction {
	return strategy.Cross(row, ColumnDeltaPrev, ColumnDelta)
}
