// Package series holds the column-oriented price series consumed by the replay pipeline.
package series

import (
	"time"

	"github.com/newthinker/sigreplay/internal/core"
)

// Coarse is the signal-timeframe series (e.g. H1) stored column by column.
// Direction and Gain are filled by the caller's annotator before entry specs are built;
// Extra carries precomputed indicator columns keyed by name.
type Coarse struct {
	Time []time.Time

	MidOpen, MidHigh, MidLow, MidClose []float64
	BidOpen, BidHigh, BidLow, BidClose []float64
	AskOpen, AskHigh, AskLow, AskClose []float64
	Volume                             []int64

	Direction []core.Direction
	Gain      []float64

	Extra map[string][]float64
}

// NewCoarse builds a coarse series from bars.
func NewCoarse(bars []core.PriceBar) *Coarse {
	n := len(bars)
	c := &Coarse{
		Time:     make([]time.Time, n),
		MidOpen:  make([]float64, n),
		MidHigh:  make([]float64, n),
		MidLow:   make([]float64, n),
		MidClose: make([]float64, n),
		BidOpen:  make([]float64, n),
		BidHigh:  make([]float64, n),
		BidLow:   make([]float64, n),
		BidClose: make([]float64, n),
		AskOpen:  make([]float64, n),
		AskHigh:  make([]float64, n),
		AskLow:   make([]float64, n),
		AskClose: make([]float64, n),
		Volume:   make([]int64, n),
		Extra:    make(map[string][]float64),
	}
	for i, b := range bars {
		c.Time[i] = b.Time
		c.MidOpen[i], c.MidHigh[i], c.MidLow[i], c.MidClose[i] = b.Mid.Open, b.Mid.High, b.Mid.Low, b.Mid.Close
		c.BidOpen[i], c.BidHigh[i], c.BidLow[i], c.BidClose[i] = b.Bid.Open, b.Bid.High, b.Bid.Low, b.Bid.Close
		c.AskOpen[i], c.AskHigh[i], c.AskLow[i], c.AskClose[i] = b.Ask.Open, b.Ask.High, b.Ask.Low, b.Ask.Close
		c.Volume[i] = b.Volume
	}
	return c
}

// Len returns the number of bars.
func (c *Coarse) Len() int {
	return len(c.Time)
}

func (c *Coarse) priceColumns() map[string][]float64 {
	return map[string][]float64{
		"mid_o": c.MidOpen, "mid_h": c.MidHigh, "mid_l": c.MidLow, "mid_c": c.MidClose,
		"bid_o": c.BidOpen, "bid_h": c.BidHigh, "bid_l": c.BidLow, "bid_c": c.BidClose,
		"ask_o": c.AskOpen, "ask_h": c.AskHigh, "ask_l": c.AskLow, "ask_c": c.AskClose,
	}
}

// Validate checks that every required column is present, every column has one value
// per bar and that bars are strictly increasing in time.
func (c *Coarse) Validate() error {
	n := len(c.Time)
	prices := c.priceColumns()
	for _, name := range sortedKeys(prices) {
		if err := checkColumn(name, len(prices[name]), n); err != nil {
			return err
		}
	}
	if err := checkColumn("volume", len(c.Volume), n); err != nil {
		return err
	}
	if c.Direction != nil {
		if err := checkColumn("direction", len(c.Direction), n); err != nil {
			return err
		}
	}
	for name, col := range c.Extra {
		if err := checkColumn(name, len(col), n); err != nil {
			return err
		}
	}
	return checkOrder("coarse", c.Time)
}

// Bar returns bar i as a PriceBar.
func (c *Coarse) Bar(i int) core.PriceBar {
	return core.PriceBar{
		Time:   c.Time[i],
		Mid:    core.OHLC{Open: c.MidOpen[i], High: c.MidHigh[i], Low: c.MidLow[i], Close: c.MidClose[i]},
		Bid:    core.OHLC{Open: c.BidOpen[i], High: c.BidHigh[i], Low: c.BidLow[i], Close: c.BidClose[i]},
		Ask:    core.OHLC{Open: c.AskOpen[i], High: c.AskHigh[i], Low: c.AskLow[i], Close: c.AskClose[i]},
		Volume: c.Volume[i],
	}
}

// Row returns a read-only view of bar i for signal annotation.
func (c *Coarse) Row(i int) CoarseRow {
	return CoarseRow{s: c, i: i}
}

// SetExtra stores an indicator column. The column must have one value per bar.
func (c *Coarse) SetExtra(name string, values []float64) error {
	if len(values) != c.Len() {
		return core.SchemaErrorf("column %q has %d values, series has %d bars", name, len(values), c.Len())
	}
	if c.Extra == nil {
		c.Extra = make(map[string][]float64)
	}
	c.Extra[name] = values
	return nil
}

// RemoveSpread overwrites the bid and ask columns with mid prices.
func (c *Coarse) RemoveSpread() {
	for _, dst := range [][]float64{c.BidOpen, c.AskOpen} {
		copy(dst, c.MidOpen)
	}
	for _, dst := range [][]float64{c.BidHigh, c.AskHigh} {
		copy(dst, c.MidHigh)
	}
	for _, dst := range [][]float64{c.BidLow, c.AskLow} {
		copy(dst, c.MidLow)
	}
	for _, dst := range [][]float64{c.BidClose, c.AskClose} {
		copy(dst, c.MidClose)
	}
}

// Clone returns a deep copy so a run can mutate columns without touching the caller's data.
func (c *Coarse) Clone() *Coarse {
	out := &Coarse{
		Time:     cloneTimes(c.Time),
		MidOpen:  cloneFloats(c.MidOpen),
		MidHigh:  cloneFloats(c.MidHigh),
		MidLow:   cloneFloats(c.MidLow),
		MidClose: cloneFloats(c.MidClose),
		BidOpen:  cloneFloats(c.BidOpen),
		BidHigh:  cloneFloats(c.BidHigh),
		BidLow:   cloneFloats(c.BidLow),
		BidClose: cloneFloats(c.BidClose),
		AskOpen:  cloneFloats(c.AskOpen),
		AskHigh:  cloneFloats(c.AskHigh),
		AskLow:   cloneFloats(c.AskLow),
		AskClose: cloneFloats(c.AskClose),
		Gain:     cloneFloats(c.Gain),
		Extra:    make(map[string][]float64, len(c.Extra)),
	}
	if c.Volume != nil {
		out.Volume = append([]int64(nil), c.Volume...)
	}
	if c.Direction != nil {
		out.Direction = append([]core.Direction(nil), c.Direction...)
	}
	for k, v := range c.Extra {
		out.Extra[k] = cloneFloats(v)
	}
	return out
}

// CoarseRow is a view of one coarse bar plus its indicator values.
type CoarseRow struct {
	s *Coarse
	i int
}

// Index returns the bar position within the series.
func (r CoarseRow) Index() int { return r.i }

// Time returns the bar timestamp.
func (r CoarseRow) Time() time.Time { return r.s.Time[r.i] }

// Bar returns the bar prices.
func (r CoarseRow) Bar() core.PriceBar { return r.s.Bar(r.i) }

// Value returns the named indicator value. ok is false when the column does not exist.
func (r CoarseRow) Value(name string) (v float64, ok bool) {
	col, ok := r.s.Extra[name]
	if !ok {
		return 0, false
	}
	return col[r.i], true
}

// Direction returns the signal already recorded for the bar, if the series carries a
// Direction column.
func (r CoarseRow) Direction() (d core.Direction, ok bool) {
	if len(r.s.Direction) != len(r.s.Time) {
		return core.DirectionNone, false
	}
	return r.s.Direction[r.i], true
}
