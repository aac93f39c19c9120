package backtest

import (
	"time"

	"github.com/newthinker/sigreplay/internal/core"
)

// TradeState is the lifecycle state of a simulated trade.
type TradeState uint8

const (
	TradeOpen TradeState = iota
	TradeClosed
)

func (s TradeState) String() string {
	if s == TradeClosed {
		return "CLOSED"
	}
	return "OPEN"
}

// Trade is one hypothetical position. It moves from open to closed exactly once.
type Trade struct {
	Direction  core.Direction
	EntryPrice float64
	TakeProfit float64
	StopLoss   float64

	State  TradeState
	Result float64 // R-multiple: 0 while open, profit or loss factor once closed

	OpenTime  time.Time
	CloseTime time.Time // zero while open

	// TriggerPrice is the bar extreme that closed the trade; the entry price while open.
	TriggerPrice float64

	OpenIndex  int // fine row that opened the trade
	CloseIndex int // fine row that closed it, -1 while open
}

func newTrade(rows *AlignedRows, i int) Trade {
	entry := rows.EntryPriceSell[i]
	if rows.Direction[i] == core.DirectionBuy {
		entry = rows.EntryPriceBuy[i]
	}
	return Trade{
		Direction:    rows.Direction[i],
		EntryPrice:   entry,
		TakeProfit:   rows.TakeProfit[i],
		StopLoss:     rows.StopLoss[i],
		State:        TradeOpen,
		OpenTime:     rows.Time[i],
		TriggerPrice: entry,
		OpenIndex:    i,
		CloseIndex:   -1,
	}
}

// IsClosed returns true once the trade hit its take-profit or stop-loss
func (t Trade) IsClosed() bool {
	return t.State == TradeClosed
}

// IsWin returns true if the trade closed at its take-profit
func (t Trade) IsWin() bool {
	return t.IsClosed() && t.Result > 0
}

// update checks the bar against the trade's exits. Take-profit is evaluated first and
// wins when both levels are touched inside the same bar. Comparisons against NaN are
// false, so a NaN level never closes the trade.
func (t *Trade) update(q quote, profitFactor, lossFactor float64) {
	if t.State != TradeOpen {
		return
	}

	var tpHit, slHit bool
	var tpPrice, slPrice float64
	if t.Direction == core.DirectionBuy {
		tpHit, tpPrice = q.bidHigh >= t.TakeProfit, q.bidHigh
		slHit, slPrice = q.bidLow <= t.StopLoss, q.bidLow
	} else {
		tpHit, tpPrice = q.askLow <= t.TakeProfit, q.askLow
		slHit, slPrice = q.askHigh >= t.StopLoss, q.askHigh
	}

	switch {
	case tpHit:
		t.close(q, profitFactor, tpPrice)
	case slHit:
		t.close(q, lossFactor, slPrice)
	}
}

func (t *Trade) close(q quote, result, trigger float64) {
	t.State = TradeClosed
	t.Result = result
	t.CloseTime = q.time
	t.CloseIndex = q.index
	t.TriggerPrice = trigger
}
