package backtest

import (
	"math"
)

// Stats holds performance statistics in R-multiples
type Stats struct {
	TotalTrades      int     `json:"total_trades"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	IncompleteTrades int     `json:"incomplete_trades"`
	WinRate          float64 `json:"win_rate"` // Percentage of closed trades that hit take-profit
	TotalR           float64 `json:"total_r"`  // Sum of closed trade results
	AverageR         float64 `json:"average_r"`
	MaxDrawdownR     float64 `json:"max_drawdown_r"` // Largest peak-to-trough fall of cumulative R
	SharpeRatio      float64 `json:"sharpe_ratio"`   // Per-trade mean over standard deviation, not annualised
}

// CalculateStats computes performance statistics from trades
func CalculateStats(trades []Trade) Stats {
	if len(trades) == 0 {
		return Stats{}
	}

	var winning, losing, incomplete int
	var totalR float64
	var results []float64

	for _, t := range trades {
		if !t.IsClosed() {
			incomplete++
			continue
		}
		results = append(results, t.Result)
		totalR += t.Result
		if t.IsWin() {
			winning++
		} else {
			losing++
		}
	}

	closedTrades := winning + losing
	var winRate, avg float64
	if closedTrades > 0 {
		winRate = float64(winning) / float64(closedTrades) * 100
		avg = totalR / float64(closedTrades)
	}

	return Stats{
		TotalTrades:      len(trades),
		WinningTrades:    winning,
		LosingTrades:     losing,
		IncompleteTrades: incomplete,
		WinRate:          winRate,
		TotalR:           totalR,
		AverageR:         avg,
		MaxDrawdownR:     calculateMaxDrawdown(results),
		SharpeRatio:      calculateSharpeRatio(results),
	}
}

// calculateMaxDrawdown finds the largest peak-to-trough decline of the running R sum.
// The curve starts at zero, so an opening loss counts as drawdown.
func calculateMaxDrawdown(results []float64) float64 {
	var maxDD, peak, cumulative float64

	for _, r := range results {
		cumulative += r
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDD {
			maxDD = dd
		}
	}

	return maxDD
}

// calculateSharpeRatio computes mean result over its sample standard deviation
func calculateSharpeRatio(results []float64) float64 {
	if len(results) < 2 {
		return 0
	}

	var sum float64
	for _, r := range results {
		sum += r
	}
	mean := sum / float64(len(results))

	var variance float64
	for _, r := range results {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(results)-1))

	if stdDev == 0 {
		return 0
	}

	return mean / stdDev
}
