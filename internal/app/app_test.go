package app

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/sigreplay/internal/config"
	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/instrument"
	"github.com/newthinker/sigreplay/internal/storage/runs"
	"github.com/newthinker/sigreplay/internal/sweep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coarseCSV = `time,mid_o,mid_h,mid_l,mid_c,bid_o,bid_h,bid_l,bid_c,ask_o,ask_h,ask_l,ask_c,macd_delta,macd_delta_prev
2023-09-04T00:00:00Z,1.0999,1.1012,1.0990,1.1009,1.0998,1.1011,1.0989,1.1008,1.1000,1.1013,1.0991,1.1010,0.1,-0.1
2023-09-04T01:00:00Z,1.1009,1.1020,1.1000,1.1015,1.1008,1.1019,1.0999,1.1014,1.1010,1.1021,1.1001,1.1016,0.2,0.1
`

const fineCSV = `time,bid_h,bid_l,ask_h,ask_l
2023-09-04T00:00:00Z,1.1011,1.0989,1.1013,1.0991
2023-09-04T01:00:00Z,1.1012,1.1005,1.1014,1.1007
2023-09-04T01:05:00Z,1.1030,1.1010,1.1032,1.1012
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	data := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(data, "EUR_USD_H1.csv"), []byte(coarseCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(data, "EUR_USD_M5.csv"), []byte(fineCSV), 0o644))

	cfg := config.Defaults()
	cfg.Data.Source.Path = data
	cfg.Instruments = []instrument.Instrument{
		{Name: "EUR_USD", PipLocation: -4, DisplayPrecision: 5},
		{Name: "GBP_USD", PipLocation: -4, DisplayPrecision: 5},
	}
	return cfg
}

func TestApp_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	out := t.TempDir()
	cfg.Output.Archive.Enabled = true
	cfg.Output.Archive.Path = out
	cfg.Metrics.Enabled = true
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "sigreplay.prom")

	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ma_crossover", "macd_cross", "precomputed"}, app.Strategies())

	outcomes, err := app.Runner().Run(context.Background(), sweep.Jobs([]string{"EUR_USD"}, "macd_cross", nil))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)

	rows := outcomes[0].Result.Rows
	require.Len(t, rows, 1)
	assert.Equal(t, core.DirectionBuy, rows[0].Direction)
	assert.Equal(t, 1.1008, rows[0].EntryPrice)
	assert.InDelta(t, 1.1025, rows[0].TakeProfit, 1e-9)
	assert.Equal(t, 1.1000, rows[0].StopLoss)
	assert.Equal(t, 1.5, rows[0].Result)
	assert.Equal(t, 1.1030, rows[0].TriggerPrice)

	summaries, err := app.Runs().List(context.Background(), runs.ListFilter{Order: runs.OrderTotalR})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, outcomes[0].RunID, summaries[0].RunID)
	assert.Equal(t, 1.5, summaries[0].Stats.TotalR)

	dir := filepath.Join(out, "runs", "macd_cross", "EUR_USD", outcomes[0].RunID)
	assert.FileExists(t, filepath.Join(dir, "trades.csv"))
	assert.FileExists(t, filepath.Join(dir, "summary.json"))

	require.NoError(t, app.Close())
	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `sigreplay_runs_total{status="success",strategy="macd_cross"} 1`)
}

func TestApp_PipGain(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.Gain = config.GainConfig{Mode: "pips", Pips: 10}

	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer app.Close()

	out := app.Runner().RunOne(context.Background(), sweep.Job{Pair: "EUR_USD", Strategy: "macd_cross"})
	require.NoError(t, out.Err)
	require.Len(t, out.Result.Rows, 1)
	// 10 pips on EUR_USD above ask close 1.1010; the spike to 1.1030 still reaches it.
	assert.InDelta(t, 1.1020, out.Result.Rows[0].TakeProfit, 1e-9)
	assert.Equal(t, 1.5, out.Result.Rows[0].Result)
}

func TestApp_UnknownPair(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.Gain = config.GainConfig{Mode: "pips", Pips: 10}
	cfg.Instruments = cfg.Instruments[1:]

	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer app.Close()

	out := app.Runner().RunOne(context.Background(), sweep.Job{Pair: "EUR_USD", Strategy: "macd_cross"})
	assert.ErrorIs(t, out.Err, core.ErrInstrumentNotFound)
}

func TestApp_DisabledStrategy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Strategies = map[string]config.StrategyConfig{"ma_crossover": {Enabled: false}}

	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, []string{"macd_cross", "precomputed"}, app.Strategies())
	out := app.Runner().RunOne(context.Background(), sweep.Job{Pair: "EUR_USD", Strategy: "ma_crossover"})
	assert.ErrorIs(t, out.Err, core.ErrStrategyNotFound)
}

func TestApp_Pairs(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer app.Close()

	pairs, err := app.Pairs([]string{"eur_usd"})
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR_USD"}, pairs)

	_, err = app.Pairs(nil)
	assert.ErrorIs(t, err, core.ErrConfigMissing)

	cfg.Sweep.Currencies = []string{"eur", "gbp", "usd"}
	pairs, err = app.Pairs(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"EUR_USD", "GBP_USD"}, pairs)

	cfg.Sweep.Pairs = []string{"GBP_USD"}
	pairs, err = app.Pairs(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"GBP_USD"}, pairs)
}

func TestApp_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sweep.Workers = 0

	_, err := New(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

const directionCSV = `time,mid_o,mid_h,mid_l,mid_c,bid_o,bid_h,bid_l,bid_c,ask_o,ask_h,ask_l,ask_c,direction
2023-09-04T00:00:00Z,1.0999,1.1012,1.0990,1.1009,1.0998,1.1011,1.0989,1.1008,1.1000,1.1013,1.0991,1.1010,BUY
2023-09-04T01:00:00Z,1.1009,1.1020,1.1000,1.1015,1.1008,1.1019,1.0999,1.1014,1.1010,1.1021,1.1001,1.1016,NONE
`

func TestApp_PrecomputedDirections(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Data.Source.Path, "EUR_USD_H1.csv"), []byte(directionCSV), 0o644))

	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer app.Close()

	out := app.Runner().RunOne(context.Background(), sweep.Job{Pair: "EUR_USD", Strategy: "precomputed"})
	require.NoError(t, out.Err)
	assert.Equal(t, "precomputed", out.Result.Strategy)
	require.Len(t, out.Result.Rows, 1)
	assert.Equal(t, core.DirectionBuy, out.Result.Rows[0].Direction)
	assert.Equal(t, 1.1008, out.Result.Rows[0].EntryPrice)
	assert.Equal(t, 1.5, out.Result.Rows[0].Result)

	// The plain file has no direction column.
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Data.Source.Path, "GBP_USD_H1.csv"), []byte(coarseCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Data.Source.Path, "GBP_USD_M5.csv"), []byte(fineCSV), 0o644))
	out = app.Runner().RunOne(context.Background(), sweep.Job{Pair: "GBP_USD", Strategy: "precomputed"})
	assert.ErrorIs(t, out.Err, core.ErrSchema)
}

// writeWave writes two days of hourly candles following a sine wave and the matching
// five minute bars.
func writeWave(t *testing.T, dir, pair string) {
	t.Helper()
	start := time.Date(2023, 9, 4, 0, 0, 0, 0, time.UTC)

	var coarse, fine strings.Builder
	coarse.WriteString("time,mid_o,mid_h,mid_l,mid_c,bid_o,bid_h,bid_l,bid_c,ask_o,ask_h,ask_l,ask_c\n")
	fine.WriteString("time,bid_h,bid_l,ask_h,ask_l\n")
	for i := 0; i < 48; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		v := 1.1 + 0.01*math.Sin(float64(i)/4)
		fmt.Fprintf(&coarse, "%s,%.5f,%.5f,%.5f,%.5f,%.5f,%.5f,%.5f,%.5f,%.5f,%.5f,%.5f,%.5f\n",
			ts.Format(time.RFC3339),
			v, v+0.0010, v-0.0010, v,
			v-0.0001, v+0.0009, v-0.0011, v-0.0001,
			v+0.0001, v+0.0011, v-0.0009, v+0.0001)
		for j := 0; j < 12; j++ {
			fmt.Fprintf(&fine, "%s,%.5f,%.5f,%.5f,%.5f\n",
				ts.Add(time.Duration(j)*5*time.Minute).Format(time.RFC3339),
				v+0.0003, v-0.0003, v+0.0005, v-0.0001)
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, pair+"_H1.csv"), []byte(coarse.String()), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, pair+"_M5.csv"), []byte(fine.String()), 0o644))
}

func TestApp_MACDParameterSweep(t *testing.T) {
	cfg := testConfig(t)
	writeWave(t, cfg.Data.Source.Path, "EUR_USD")

	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer app.Close()

	jobs := sweep.Jobs([]string{"EUR_USD"}, "macd_cross", []map[string]any{
		{"fast": 3, "slow": 6, "signal": 3},
		{"fast": 5, "slow": 12, "signal": 4},
	})
	outcomes, err := app.Runner().Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	opens := make([][]time.Time, 2)
	for i, o := range outcomes {
		require.NoError(t, o.Err)
		require.NotEmpty(t, o.Result.Trades, "params %v", o.Job.Params)
		for _, tr := range o.Result.Trades {
			opens[i] = append(opens[i], tr.OpenTime)
		}
	}
	assert.NotEqual(t, opens[0], opens[1])
}

func TestApp_Describe(t *testing.T) {
	cfg := testConfig(t)
	cfg.Strategies = map[string]config.StrategyConfig{
		"macd_cross": {Enabled: true, Params: map[string]any{"fast": 12, "slow": 26, "signal": 9, "ema": 100}},
	}
	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer app.Close()

	desc, err := app.Describe("macd_cross")
	require.NoError(t, err)
	assert.Equal(t, "MACD(12,26,9) histogram sign change with EMA(100) filter", desc)

	_, err = app.Describe("rsi")
	assert.ErrorIs(t, err, core.ErrStrategyNotFound)
}

func TestApp_StoredTradesWithoutPostgres(t *testing.T) {
	app, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	defer app.Close()

	_, _, err = app.StoredTrades(context.Background(), "run-1")
	assert.ErrorIs(t, err, core.ErrConfigMissing)
}
