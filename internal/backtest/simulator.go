package backtest

import "github.com/newthinker/sigreplay/internal/core"

// Simulate replays the aligned rows once, in order. A row carrying a direction opens a
// trade, and every open trade (including one opened on this row) is then checked
// against the row's bid/ask extremes. Closed trades are returned in close order; trades
// closing on the same row keep the order in which they were opened. Trades still open
// at the end follow, in open order, when includeIncomplete is set.
func Simulate(rows *AlignedRows, profitFactor, lossFactor float64, includeIncomplete bool) []Trade {
	var (
		trades []Trade // arena of every trade opened
		active []int   // arena indices of open trades, in open order
		closed []int   // arena indices in close order
	)

	for i := 0; i < rows.Len(); i++ {
		if rows.Direction[i] != core.DirectionNone {
			trades = append(trades, newTrade(rows, i))
			active = append(active, len(trades)-1)
		}
		if len(active) == 0 {
			continue
		}

		q := rows.quote(i)
		keep := active[:0]
		for _, idx := range active {
			t := &trades[idx]
			t.update(q, profitFactor, lossFactor)
			if t.IsClosed() {
				closed = append(closed, idx)
				continue
			}
			keep = append(keep, idx)
		}
		active = keep
	}

	out := make([]Trade, 0, len(closed)+len(active))
	for _, idx := range closed {
		out = append(out, trades[idx])
	}
	if includeIncomplete {
		for _, idx := range active {
			out = append(out, trades[idx])
		}
	}
	return out
}
