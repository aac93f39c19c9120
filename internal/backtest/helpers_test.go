package backtest

import (
	"time"

	"github.com/newthinker/sigreplay/internal/core"
)

var base = time.Date(2023, 9, 4, 8, 0, 0, 0, time.UTC)

func m5(i int) time.Time {
	return base.Add(time.Duration(i) * 5 * time.Minute)
}

// row is a test-friendly description of one aligned row.
type row struct {
	bidHigh, bidLow, askHigh, askLow float64

	dir                         core.Direction
	tp, sl, entryBuy, entrySell float64
}

// quoteRow is a row without a signal, with a fixed spread of 0.0002.
func quoteRow(bidHigh, bidLow float64) row {
	return row{bidHigh: bidHigh, bidLow: bidLow, askHigh: bidHigh + 0.0002, askLow: bidLow + 0.0002}
}

func buildRows(rs ...row) *AlignedRows {
	a := &AlignedRows{}
	for i, r := range rs {
		a.Time = append(a.Time, m5(i))
		a.BidHigh = append(a.BidHigh, r.bidHigh)
		a.BidLow = append(a.BidLow, r.bidLow)
		a.AskHigh = append(a.AskHigh, r.askHigh)
		a.AskLow = append(a.AskLow, r.askLow)
		a.Direction = append(a.Direction, r.dir)
		a.TakeProfit = append(a.TakeProfit, r.tp)
		a.StopLoss = append(a.StopLoss, r.sl)
		a.EntryPriceBuy = append(a.EntryPriceBuy, r.entryBuy)
		a.EntryPriceSell = append(a.EntryPriceSell, r.entrySell)
	}
	return a
}
