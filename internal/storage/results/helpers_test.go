package results

import (
	"time"

	"github.com/newthinker/sigreplay/internal/backtest"
	"github.com/newthinker/sigreplay/internal/core"
)

var t0 = time.Date(2023, 9, 4, 10, 0, 0, 0, time.UTC)

func sampleRun(id string) Run {
	rows := []backtest.ResultRow{
		{
			Direction: core.DirectionBuy, EntryPrice: 1.1010, TakeProfit: 1.1027, StopLoss: 1.1002,
			OpenTime: t0, CloseTime: t0.Add(30 * time.Minute), Result: 1.5, TriggerPrice: 1.1030, Complete: true,
		},
		{
			Direction: core.DirectionSell, EntryPrice: 1.1012, TakeProfit: 1.0990, StopLoss: 1.1020,
			OpenTime: t0.Add(time.Hour), TriggerPrice: 1.1012,
		},
	}
	return Run{
		ID:        id,
		Params:    map[string]any{"fast": 8, "slow": 21},
		StartedAt: t0,
		Duration:  1500 * time.Millisecond,
		Result: &backtest.Result{
			Strategy:  "ma_crossover",
			Pair:      "EUR_USD",
			Config:    backtest.DefaultConfig(),
			StartDate: t0.Add(-10 * time.Hour),
			EndDate:   t0.Add(10 * time.Hour),
			Rows:      rows,
			Stats:     backtest.Stats{TotalTrades: 2, WinningTrades: 1, IncompleteTrades: 1, WinRate: 100, TotalR: 1.5, AverageR: 1.5},
			Diagnostics: backtest.Diagnostics{
				CoarseBars: 20, FineBars: 240, Signals: 3, Matched: 2, DroppedSignals: 1, Closed: 1, Incomplete: 1,
			},
		},
	}
}
