package series

import (
	"time"

	"github.com/newthinker/sigreplay/internal/core"
)

// Fine is the execution-timeframe quote series (e.g. M5). Only the bid/ask extremes
// drive trade resolution; the mid extremes are needed for zero-spread runs.
type Fine struct {
	Time    []time.Time
	BidHigh []float64
	BidLow  []float64
	AskHigh []float64
	AskLow  []float64

	MidHigh []float64
	MidLow  []float64
}

// NewFine builds a fine series from bars.
func NewFine(bars []core.PriceBar) *Fine {
	n := len(bars)
	f := &Fine{
		Time:    make([]time.Time, n),
		BidHigh: make([]float64, n),
		BidLow:  make([]float64, n),
		AskHigh: make([]float64, n),
		AskLow:  make([]float64, n),
		MidHigh: make([]float64, n),
		MidLow:  make([]float64, n),
	}
	for i, b := range bars {
		f.Time[i] = b.Time
		f.BidHigh[i], f.BidLow[i] = b.Bid.High, b.Bid.Low
		f.AskHigh[i], f.AskLow[i] = b.Ask.High, b.Ask.Low
		f.MidHigh[i], f.MidLow[i] = b.Mid.High, b.Mid.Low
	}
	return f
}

// Len returns the number of bars.
func (f *Fine) Len() int {
	return len(f.Time)
}

// Validate checks the bid/ask extreme columns and chronological order.
// requireMid additionally demands the mid columns used by RemoveSpread.
func (f *Fine) Validate(requireMid bool) error {
	n := len(f.Time)
	cols := []column{
		{"bid_h", len(f.BidHigh)},
		{"bid_l", len(f.BidLow)},
		{"ask_h", len(f.AskHigh)},
		{"ask_l", len(f.AskLow)},
	}
	if requireMid {
		cols = append(cols, column{"mid_h", len(f.MidHigh)}, column{"mid_l", len(f.MidLow)})
	}
	for _, col := range cols {
		if err := checkColumn(col.name, col.n, n); err != nil {
			return err
		}
	}
	return checkOrder("fine", f.Time)
}

// RemoveSpread overwrites the bid and ask extremes with mid extremes.
func (f *Fine) RemoveSpread() {
	copy(f.BidHigh, f.MidHigh)
	copy(f.AskHigh, f.MidHigh)
	copy(f.BidLow, f.MidLow)
	copy(f.AskLow, f.MidLow)
}

// Clone returns a deep copy.
func (f *Fine) Clone() *Fine {
	return &Fine{
		Time:    cloneTimes(f.Time),
		BidHigh: cloneFloats(f.BidHigh),
		BidLow:  cloneFloats(f.BidLow),
		AskHigh: cloneFloats(f.AskHigh),
		AskLow:  cloneFloats(f.AskLow),
		MidHigh: cloneFloats(f.MidHigh),
		MidLow:  cloneFloats(f.MidLow),
	}
}
