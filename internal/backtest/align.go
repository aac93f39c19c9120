package backtest

import (
	"time"

	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/series"
)

// AlignedRows is the fine series left-joined with entry specs, one row per fine bar.
// Rows without a matching spec carry DirectionNone and zero prices.
type AlignedRows struct {
	Time    []time.Time
	BidHigh []float64
	BidLow  []float64
	AskHigh []float64
	AskLow  []float64

	Direction      []core.Direction
	TakeProfit     []float64
	StopLoss       []float64
	EntryPriceBuy  []float64
	EntryPriceSell []float64
}

// Len returns the number of rows.
func (a *AlignedRows) Len() int {
	return len(a.Time)
}

// quote is the part of a row that drives trade resolution.
type quote struct {
	time    time.Time
	index   int
	bidHigh float64
	bidLow  float64
	askHigh float64
	askLow  float64
}

func (a *AlignedRows) quote(i int) quote {
	return quote{
		time:    a.Time[i],
		index:   i,
		bidHigh: a.BidHigh[i],
		bidLow:  a.BidLow[i],
		askHigh: a.AskHigh[i],
		askLow:  a.AskLow[i],
	}
}

// AlignStats reports how many specs found their fine bar.
type AlignStats struct {
	Matched int
	Dropped int
	// DroppedTimes lists the entry times that had no exact fine bar, in coarse order.
	DroppedTimes []time.Time
}

// Align joins specs onto the fine series by exact timestamp equality, keeping the
// fine series order. Specs whose entry time is not a fine timestamp are dropped and
// reported in AlignStats; when several specs share a timestamp the first one wins.
func Align(f *series.Fine, specs []EntrySpec) (*AlignedRows, AlignStats, error) {
	var stats AlignStats
	if err := f.Validate(false); err != nil {
		return nil, stats, err
	}

	n := f.Len()
	rows := &AlignedRows{
		Time:           f.Time,
		BidHigh:        f.BidHigh,
		BidLow:         f.BidLow,
		AskHigh:        f.AskHigh,
		AskLow:         f.AskLow,
		Direction:      make([]core.Direction, n),
		TakeProfit:     make([]float64, n),
		StopLoss:       make([]float64, n),
		EntryPriceBuy:  make([]float64, n),
		EntryPriceSell: make([]float64, n),
	}

	byTime := make(map[int64]int, len(specs))
	for i, s := range specs {
		key := s.EntryTime.UnixNano()
		if _, dup := byTime[key]; !dup {
			byTime[key] = i
		}
	}

	matched := make([]bool, len(specs))
	for i, t := range f.Time {
		idx, ok := byTime[t.UnixNano()]
		if !ok {
			continue
		}
		s := specs[idx]
		rows.Direction[i] = s.Direction
		rows.TakeProfit[i] = s.TakeProfit
		rows.StopLoss[i] = s.StopLoss
		rows.EntryPriceBuy[i] = s.EntryPriceBuy
		rows.EntryPriceSell[i] = s.EntryPriceSell
		matched[idx] = true
		stats.Matched++
	}

	for i, ok := range matched {
		if !ok {
			stats.Dropped++
			stats.DroppedTimes = append(stats.DroppedTimes, specs[i].EntryTime)
		}
	}
	return rows, stats, nil
}
