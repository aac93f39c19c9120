package backtest

import (
	"encoding/json"
	"testing"

	"github.com/newthinker/sigreplay/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_ProjectsTrades(t *testing.T) {
	trades := []Trade{
		{
			Direction: core.DirectionBuy, EntryPrice: 1.2, TakeProfit: 1.205, StopLoss: 1.195,
			State: TradeClosed, Result: 1.5, OpenTime: m5(0), CloseTime: m5(3), TriggerPrice: 1.206,
		},
		{
			Direction: core.DirectionSell, EntryPrice: 1.3, TakeProfit: 1.29, StopLoss: 1.31,
			State: TradeOpen, OpenTime: m5(2), TriggerPrice: 1.3, CloseIndex: -1,
		},
	}

	rows := Aggregate(trades)
	require.Len(t, rows, 2)
	assert.Equal(t, ResultRow{
		Direction: core.DirectionBuy, EntryPrice: 1.2, TakeProfit: 1.205, StopLoss: 1.195,
		OpenTime: m5(0), CloseTime: m5(3), Result: 1.5, TriggerPrice: 1.206, Complete: true,
	}, rows[0])
	assert.False(t, rows[1].Complete)
	assert.True(t, rows[1].CloseTime.IsZero())
}

func TestResultRow_CSVRecord(t *testing.T) {
	closed := ResultRow{
		Direction: core.DirectionBuy, EntryPrice: 1.2, TakeProfit: 1.205, StopLoss: 1.195,
		OpenTime: m5(0), CloseTime: m5(3), Result: 1.5, TriggerPrice: 1.206, Complete: true,
	}
	assert.Equal(t, []string{
		"BUY", "1.2", "1.205", "1.195",
		"2023-09-04T08:00:00Z", "2023-09-04T08:15:00Z",
		"1.5", "1.206", "true",
	}, closed.CSVRecord())
	assert.Len(t, CSVHeader(), len(closed.CSVRecord()))

	open := ResultRow{Direction: core.DirectionSell, OpenTime: m5(1)}
	rec := open.CSVRecord()
	assert.Equal(t, "SELL", rec[0])
	assert.Equal(t, "", rec[5])
	assert.Equal(t, "0", rec[6])
	assert.Equal(t, "false", rec[8])
}

func TestResultRow_JSONOmitsOpenCloseTime(t *testing.T) {
	data, err := json.Marshal(ResultRow{Direction: core.DirectionBuy, OpenTime: m5(0)})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "close_time")
}
