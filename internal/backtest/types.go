package backtest

import (
	"fmt"
	"time"

	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/series"
	"github.com/newthinker/sigreplay/internal/strategy"
)

// Config holds the replay parameters of one run
type Config struct {
	ProfitFactor      float64       // R credited to a take-profit exit
	LossFactor        float64       // R debited on a stop-loss exit, negative
	ExecutionDelay    time.Duration // signal bar to entry bar offset
	UseSpread         bool          // false collapses bid/ask onto mid
	IncludeIncomplete bool          // report trades still open at the end
}

// DefaultConfig returns the standard 1.5R / -1R setup with a one hour delay.
func DefaultConfig() Config {
	return Config{
		ProfitFactor:      1.5,
		LossFactor:        -1.0,
		ExecutionDelay:    time.Hour,
		UseSpread:         true,
		IncludeIncomplete: true,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if !(c.ProfitFactor > 0) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("profit_factor must be positive, got %v", c.ProfitFactor))
	}
	if !(c.LossFactor < 0) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("loss_factor must be negative, got %v", c.LossFactor))
	}
	if c.ExecutionDelay < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("execution delay cannot be negative, got %s", c.ExecutionDelay))
	}
	return nil
}

// Input is everything one replay run needs.
type Input struct {
	Pair   string
	Coarse *series.Coarse
	Fine   *series.Fine
	// Annotator decides the signals. When nil, Coarse must already carry a Direction
	// column, which is replayed as is.
	Annotator strategy.Annotator
	// Gain sizes the take-profit of each signal. When nil, an existing Gain column on
	// Coarse is used as is (it must have one value per bar), otherwise
	// strategy.RangeGain(ProfitFactor).
	Gain strategy.GainFunc
}

// Diagnostics counts what happened to the signals of a run.
type Diagnostics struct {
	CoarseBars     int `json:"coarse_bars"`
	FineBars       int `json:"fine_bars"`
	Signals        int `json:"signals"`
	Matched        int `json:"matched"`
	DroppedSignals int `json:"dropped_signals"`
	Closed         int `json:"closed"`
	Incomplete     int `json:"incomplete"`
}

// Result holds the complete backtest output
type Result struct {
	Strategy    string
	Pair        string
	Config      Config
	StartDate   time.Time
	EndDate     time.Time
	Trades      []Trade
	Rows        []ResultRow
	Stats       Stats
	Diagnostics Diagnostics
}
