package macd_cross

import (
	"fmt"
	"math"

	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/indicator"
	"github.com/newthinker/sigreplay/internal/series"
	"github.com/newthinker/sigreplay/internal/strategy"
)

const (
	ColumnDelta     = "macd_delta"
	ColumnDeltaPrev = "macd_delta_prev"
	ColumnEMA       = "macd_trend_ema"
)

// MACDCross signals when the MACD histogram (MACD - signal line) changes sign.
//
// Without periods the histogram columns must come with the candle file. With fast,
// slow and signal set they are computed from mid closes. A positive ema period adds a
// trend filter: a buy needs the bar low above the EMA, a sell the bar high below it.
type MACDCross struct {
	fast, slow, signal int
	ema                int
}

// New creates a MACD cross annotator that reads precomputed histogram columns.
func New() *MACDCross {
	return &MACDCross{}
}

func (m *MACDCross) Name() string {
	return "macd_cross"
}

func (m *MACDCross) Description() string {
	if !m.computes() {
		return "MACD histogram sign change"
	}
	desc := fmt.Sprintf("MACD(%d,%d,%d) histogram sign change", m.fast, m.slow, m.signal)
	if m.ema > 0 {
		desc += fmt.Sprintf(" with EMA(%d) filter", m.ema)
	}
	return desc
}

func (m *MACDCross) RequiredColumns() []string {
	if m.ema > 0 {
		return []string{ColumnDelta, ColumnDeltaPrev, ColumnEMA}
	}
	return []string{ColumnDelta, ColumnDeltaPrev}
}

// Init reads the fast, slow, signal and ema periods.
func (m *MACDCross) Init(cfg strategy.Config) error {
	for key, dst := range map[string]*int{"fast": &m.fast, "slow": &m.slow, "signal": &m.signal, "ema": &m.ema} {
		if v, ok := strategy.IntParam(cfg.Params, key); ok {
			*dst = v
		}
	}
	if m.fast == 0 && m.slow == 0 && m.signal == 0 {
		if m.ema < 0 {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("macd_cross ema must not be negative, got %d", m.ema))
		}
		return nil
	}
	if m.fast <= 0 || m.fast >= m.slow || m.signal <= 0 || m.ema < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("macd_cross needs 0 < fast < slow, signal > 0 and ema >= 0, got fast=%d slow=%d signal=%d ema=%d",
				m.fast, m.slow, m.signal, m.ema))
	}
	return nil
}

func (m *MACDCross) computes() bool {
	return m.slow > 0
}

// Prepare derives the histogram and its one-bar lag when periods are set, and the
// trend EMA when an ema period is set. Warm-up bars carry NaN and never signal.
func (m *MACDCross) Prepare(c *series.Coarse) error {
	n := c.Len()
	if m.computes() {
		fast := indicator.Column(indicator.EMA(c.MidClose, m.fast), n)
		slow := indicator.Column(indicator.EMA(c.MidClose, m.slow), n)

		macd := make([]float64, n)
		for i := range macd {
			macd[i] = fast[i] - slow[i]
		}
		// The signal line starts once the slow EMA exists.
		warm := min(m.slow-1, n)
		signal := indicator.Column(indicator.EMA(macd[warm:], m.signal), n)

		delta := make([]float64, n)
		for i := range delta {
			delta[i] = macd[i] - signal[i]
		}
		if err := c.SetExtra(ColumnDelta, delta); err != nil {
			return err
		}
		if err := c.SetExtra(ColumnDeltaPrev, indicator.Shift(delta, 1)); err != nil {
			return err
		}
	}
	if m.ema > 0 {
		return c.SetExtra(ColumnEMA, indicator.Column(indicator.EMA(c.MidClose, m.ema), n))
	}
	return nil
}

func (m *MACDCross) Annotate(row series.CoarseRow) core.Direction {
	dir := strategy.Cross(row, ColumnDeltaPrev, ColumnDelta)
	if dir == core.DirectionNone || m.ema <= 0 {
		return dir
	}
	trend, ok := row.Value(ColumnEMA)
	if !ok || math.IsNaN(trend) {
		return core.DirectionNone
	}
	bar := row.Bar()
	switch {
	case dir == core.DirectionBuy && bar.Mid.Low > trend:
		return dir
	case dir == core.DirectionSell && bar.Mid.High < trend:
		return dir
	}
	return core.DirectionNone
}
