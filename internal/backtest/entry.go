package backtest

import (
	"time"

	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/series"
)

// EntrySpec describes the trade a signalled coarse bar asks for.
type EntrySpec struct {
	Direction      core.Direction
	TakeProfit     float64
	StopLoss       float64
	EntryPriceBuy  float64
	EntryPriceSell float64
	EntryTime      time.Time
	SourceTime     time.Time // coarse bar that produced the signal
}

// BuildEntrySpecs turns every signalled coarse bar into an EntrySpec.
//
// A buy targets ask close + gain and stops at the bar's ask open; a sell targets
// bid close - gain and stops at the bid open. Entry prices assume the unfavourable
// side of the spread: bid close for a long, ask close for a short. The entry is
// scheduled delay after the signal bar. NaN inputs propagate into the entry spec.
func BuildEntrySpecs(c *series.Coarse, delay time.Duration) ([]EntrySpec, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	n := c.Len()
	if len(c.Direction) != n {
		return nil, core.SchemaErrorf("missing column %q", "direction")
	}

	var specs []EntrySpec
	for i := 0; i < n; i++ {
		dir := c.Direction[i]
		if dir == core.DirectionNone {
			continue
		}
		if len(c.Gain) != n {
			return nil, core.SchemaErrorf("signalled bar at %s has no gain (column %q has %d values, series has %d bars)",
				c.Time[i].Format(time.RFC3339), "gain", len(c.Gain), n)
		}

		spec := EntrySpec{
			Direction:      dir,
			EntryPriceBuy:  c.BidClose[i],
			EntryPriceSell: c.AskClose[i],
			EntryTime:      c.Time[i].Add(delay),
			SourceTime:     c.Time[i],
		}
		switch dir {
		case core.DirectionBuy:
			spec.TakeProfit = c.AskClose[i] + c.Gain[i]
			spec.StopLoss = c.AskOpen[i]
		case core.DirectionSell:
			spec.TakeProfit = c.BidClose[i] - c.Gain[i]
			spec.StopLoss = c.BidOpen[i]
		default:
			return nil, core.SchemaErrorf("invalid direction %v at %s", dir, c.Time[i].Format(time.RFC3339))
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
