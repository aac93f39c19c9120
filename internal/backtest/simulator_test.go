package backtest

import (
	"math"
	"testing"

	"github.com/newthinker/sigreplay/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pf = 1.5
	lf = -1.0
)

func buySignal(r row, entry, tp, sl float64) row {
	r.dir, r.entryBuy, r.entrySell, r.tp, r.sl = core.DirectionBuy, entry, entry+0.0002, tp, sl
	return r
}

func sellSignal(r row, entry, tp, sl float64) row {
	r.dir, r.entryBuy, r.entrySell, r.tp, r.sl = core.DirectionSell, entry-0.0002, entry, tp, sl
	return r
}

func TestSimulate_TieBreakTakeProfitWins(t *testing.T) {
	rows := buildRows(
		buySignal(quoteRow(1.2010, 1.1990), 1.2000, 1.2050, 1.1950),
		row{bidHigh: 1.2060, bidLow: 1.1940, askHigh: 1.2062, askLow: 1.1942},
	)

	trades := Simulate(rows, pf, lf, true)

	require.Len(t, trades, 1)
	tr := trades[0]
	assert.Equal(t, TradeClosed, tr.State)
	assert.Equal(t, pf, tr.Result)
	assert.Equal(t, 1.2060, tr.TriggerPrice)
	assert.Equal(t, m5(1), tr.CloseTime)
	assert.Equal(t, 1, tr.CloseIndex)
}

func TestSimulate_SellTieBreakTakeProfitWins(t *testing.T) {
	rows := buildRows(
		sellSignal(quoteRow(1.2010, 1.1990), 1.2000, 1.1950, 1.2050),
		row{bidHigh: 1.2058, bidLow: 1.1938, askHigh: 1.2060, askLow: 1.1940},
	)

	trades := Simulate(rows, pf, lf, true)

	require.Len(t, trades, 1)
	assert.Equal(t, pf, trades[0].Result)
	assert.Equal(t, 1.1940, trades[0].TriggerPrice)
}

func TestSimulate_BuyStopLoss(t *testing.T) {
	rows := buildRows(
		buySignal(quoteRow(1.2010, 1.1990), 1.2000, 1.2050, 1.1950),
		quoteRow(1.2020, 1.1960),
		quoteRow(1.2000, 1.1945),
	)

	trades := Simulate(rows, pf, lf, true)

	require.Len(t, trades, 1)
	assert.Equal(t, lf, trades[0].Result)
	assert.Equal(t, 1.1945, trades[0].TriggerPrice)
	assert.Equal(t, m5(2), trades[0].CloseTime)
}

func TestSimulate_SellUsesAskSide(t *testing.T) {
	// bid touches the take-profit but ask does not: a short is only filled at the ask.
	rows := buildRows(
		sellSignal(quoteRow(1.2010, 1.1990), 1.2000, 1.1950, 1.2050),
		row{bidHigh: 1.2000, bidLow: 1.1949, askHigh: 1.2002, askLow: 1.1951},
		row{bidHigh: 1.2049, bidLow: 1.2000, askHigh: 1.2051, askLow: 1.2002},
	)

	trades := Simulate(rows, pf, lf, true)

	require.Len(t, trades, 1)
	assert.Equal(t, lf, trades[0].Result)
	assert.Equal(t, 1.2051, trades[0].TriggerPrice)
}

func TestSimulate_EvaluatesOpeningRow(t *testing.T) {
	rows := buildRows(
		buySignal(quoteRow(1.2055, 1.1990), 1.2000, 1.2050, 1.1950),
	)

	trades := Simulate(rows, pf, lf, true)

	require.Len(t, trades, 1)
	assert.True(t, trades[0].IsClosed())
	assert.Equal(t, trades[0].OpenTime, trades[0].CloseTime)
}

func TestSimulate_NonInterference(t *testing.T) {
	rows := buildRows(
		buySignal(quoteRow(1.2010, 1.1990), 1.2000, 1.2030, 1.1950), // A
		quoteRow(1.2020, 1.1980),
		buySignal(quoteRow(1.2025, 1.1985), 1.2010, 1.2100, 1.1900), // B
		quoteRow(1.2035, 1.1990),                                    // A hits TP, B stays open
		quoteRow(1.2050, 1.1995),
		quoteRow(1.2105, 1.2000), // B hits TP
	)

	trades := Simulate(rows, pf, lf, true)

	require.Len(t, trades, 2)
	assert.Equal(t, m5(0), trades[0].OpenTime)
	assert.Equal(t, m5(3), trades[0].CloseTime)
	assert.Equal(t, pf, trades[0].Result)

	assert.Equal(t, m5(2), trades[1].OpenTime)
	assert.Equal(t, m5(5), trades[1].CloseTime)
	assert.Equal(t, pf, trades[1].Result)
	assert.Equal(t, 1.2105, trades[1].TriggerPrice)
}

func TestSimulate_CloseOrder(t *testing.T) {
	rows := buildRows(
		buySignal(quoteRow(1.2010, 1.1990), 1.2000, 1.2100, 1.1950),  // A: wide target
		sellSignal(quoteRow(1.2010, 1.1990), 1.2000, 1.1990, 1.2050), // B: tight target
		buySignal(quoteRow(1.2010, 1.1990), 1.2000, 1.2012, 1.1900),  // C
		row{bidHigh: 1.2015, bidLow: 1.1940, askHigh: 1.2017, askLow: 1.1942},
	)

	trades := Simulate(rows, pf, lf, true)

	require.Len(t, trades, 3)
	// Row 3 closes A (SL), B (TP) and C (TP); they are reported in open order.
	assert.Equal(t, m5(0), trades[0].OpenTime)
	assert.Equal(t, lf, trades[0].Result)
	assert.Equal(t, m5(1), trades[1].OpenTime)
	assert.Equal(t, pf, trades[1].Result)
	assert.Equal(t, m5(2), trades[2].OpenTime)
	assert.Equal(t, pf, trades[2].Result)
	for _, tr := range trades {
		assert.Equal(t, m5(3), tr.CloseTime)
	}
}

func TestSimulate_OpenAtEnd(t *testing.T) {
	rows := buildRows(
		buySignal(quoteRow(1.2010, 1.1990), 1.2000, 1.2100, 1.1900),
		quoteRow(1.2020, 1.1980),
	)

	trades := Simulate(rows, pf, lf, true)
	require.Len(t, trades, 1)
	assert.Equal(t, TradeOpen, trades[0].State)
	assert.Equal(t, 0.0, trades[0].Result)
	assert.True(t, trades[0].CloseTime.IsZero())
	assert.Equal(t, -1, trades[0].CloseIndex)
	assert.Equal(t, 1.2000, trades[0].TriggerPrice)

	assert.Empty(t, Simulate(rows, pf, lf, false))
}

func TestSimulate_ClosedBeforeIncomplete(t *testing.T) {
	rows := buildRows(
		buySignal(quoteRow(1.2010, 1.1990), 1.2000, 1.2100, 1.1900), // stays open
		buySignal(quoteRow(1.2010, 1.1990), 1.2000, 1.2015, 1.1900), // closes on row 2
		quoteRow(1.2020, 1.1980),
	)

	trades := Simulate(rows, pf, lf, true)
	require.Len(t, trades, 2)
	assert.True(t, trades[0].IsClosed())
	assert.Equal(t, m5(1), trades[0].OpenTime)
	assert.False(t, trades[1].IsClosed())
	assert.Equal(t, m5(0), trades[1].OpenTime)
}

func TestSimulate_NaNLevelsNeverClose(t *testing.T) {
	rows := buildRows(
		buySignal(quoteRow(1.2010, 1.1990), 1.2000, math.NaN(), math.NaN()),
		quoteRow(9.9999, 0.0001),
	)

	trades := Simulate(rows, pf, lf, true)
	require.Len(t, trades, 1)
	assert.False(t, trades[0].IsClosed())
	assert.Equal(t, 0.0, trades[0].Result)
}

func TestSimulate_NoSignals(t *testing.T) {
	rows := buildRows(quoteRow(1.2010, 1.1990), quoteRow(1.2020, 1.1980))
	assert.Empty(t, Simulate(rows, pf, lf, true))
	assert.Empty(t, Simulate(&AlignedRows{}, pf, lf, true))
}

func TestSimulate_ResultInvariants(t *testing.T) {
	rs := []row{}
	for i := 0; i < 200; i++ {
		mid := 1.2 + 0.004*math.Sin(float64(i)/7)
		r := quoteRow(mid+0.0015, mid-0.0015)
		switch i % 9 {
		case 0:
			r = buySignal(r, mid, mid+0.003, mid-0.002)
		case 4:
			r = sellSignal(r, mid, mid-0.003, mid+0.002)
		}
		rs = append(rs, r)
	}

	trades := Simulate(buildRows(rs...), pf, lf, true)
	require.NotEmpty(t, trades)
	for _, tr := range trades {
		if tr.IsClosed() {
			assert.Contains(t, []float64{pf, lf}, tr.Result)
			assert.False(t, tr.CloseTime.Before(tr.OpenTime))
			assert.GreaterOrEqual(t, tr.CloseIndex, tr.OpenIndex)
		} else {
			assert.Equal(t, 0.0, tr.Result)
			assert.True(t, tr.CloseTime.IsZero())
		}
	}
}
