package backtest

import (
	"strconv"
	"time"

	"github.com/newthinker/sigreplay/internal/core"
)

// ResultSchemaVersion is bumped whenever ResultRow fields or CSV columns change.
const ResultSchemaVersion = 1

// ResultRow is the flat record of one trade outcome.
type ResultRow struct {
	Direction    core.Direction `json:"direction"`
	EntryPrice   float64        `json:"entry_price"`
	TakeProfit   float64        `json:"take_profit"`
	StopLoss     float64        `json:"stop_loss"`
	OpenTime     time.Time      `json:"open_time"`
	CloseTime    time.Time      `json:"close_time,omitzero"`
	Result       float64        `json:"result"`
	TriggerPrice float64        `json:"trigger_price"`
	Complete     bool           `json:"complete"`
}

// Aggregate projects trades into result rows, preserving order.
func Aggregate(trades []Trade) []ResultRow {
	rows := make([]ResultRow, len(trades))
	for i, t := range trades {
		rows[i] = ResultRow{
			Direction:    t.Direction,
			EntryPrice:   t.EntryPrice,
			TakeProfit:   t.TakeProfit,
			StopLoss:     t.StopLoss,
			OpenTime:     t.OpenTime,
			CloseTime:    t.CloseTime,
			Result:       t.Result,
			TriggerPrice: t.TriggerPrice,
			Complete:     t.IsClosed(),
		}
	}
	return rows
}

// CSVHeader returns the column names written by CSVRecord.
func CSVHeader() []string {
	return []string{
		"direction", "entry_price", "take_profit", "stop_loss",
		"open_time", "close_time", "result", "trigger_price", "complete",
	}
}

// CSVRecord formats the row for CSV output. Times are RFC 3339 UTC; an open trade has
// an empty close_time.
func (r ResultRow) CSVRecord() []string {
	closeTime := ""
	if !r.CloseTime.IsZero() {
		closeTime = r.CloseTime.UTC().Format(time.RFC3339Nano)
	}
	return []string{
		r.Direction.String(),
		formatFloat(r.EntryPrice),
		formatFloat(r.TakeProfit),
		formatFloat(r.StopLoss),
		r.OpenTime.UTC().Format(time.RFC3339Nano),
		closeTime,
		formatFloat(r.Result),
		formatFloat(r.TriggerPrice),
		strconv.FormatBool(r.Complete),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
