// Package results persists finished replay runs: the trade rows and a summary per run.
package results

import (
	"context"
	"errors"
	"time"

	"github.com/newthinker/sigreplay/internal/backtest"
)

// Run is a finished replay ready to be persisted.
type Run struct {
	ID        string
	Params    map[string]any
	StartedAt time.Time
	Duration  time.Duration
	Result    *backtest.Result
}

// Summary is the per-run record written next to the trade rows.
type Summary struct {
	SchemaVersion int                  `json:"schema_version"`
	RunID         string               `json:"run_id"`
	Strategy      string               `json:"strategy"`
	Pair          string               `json:"pair"`
	Params        map[string]any       `json:"params,omitempty"`
	Config        ConfigSummary        `json:"config"`
	StartDate     time.Time            `json:"start_date"`
	EndDate       time.Time            `json:"end_date"`
	StartedAt     time.Time            `json:"started_at"`
	DurationMS    int64                `json:"duration_ms"`
	Stats         backtest.Stats       `json:"stats"`
	Diagnostics   backtest.Diagnostics `json:"diagnostics"`
}

// ConfigSummary is the serialisable form of backtest.Config.
type ConfigSummary struct {
	ProfitFactor        float64 `json:"profit_factor"`
	LossFactor          float64 `json:"loss_factor"`
	ExecutionDelayHours float64 `json:"execution_delay_hours"`
	UseSpread           bool    `json:"use_spread"`
	IncludeIncomplete   bool    `json:"include_incomplete"`
}

// Summarize builds the summary record of a run.
func Summarize(run Run) Summary {
	r := run.Result
	return Summary{
		SchemaVersion: backtest.ResultSchemaVersion,
		RunID:         run.ID,
		Strategy:      r.Strategy,
		Pair:          r.Pair,
		Params:        run.Params,
		Config: ConfigSummary{
			ProfitFactor:        r.Config.ProfitFactor,
			LossFactor:          r.Config.LossFactor,
			ExecutionDelayHours: r.Config.ExecutionDelay.Hours(),
			UseSpread:           r.Config.UseSpread,
			IncludeIncomplete:   r.Config.IncludeIncomplete,
		},
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		StartedAt:   run.StartedAt.UTC(),
		DurationMS:  run.Duration.Milliseconds(),
		Stats:       r.Stats,
		Diagnostics: r.Diagnostics,
	}
}

// Writer persists runs.
type Writer interface {
	Write(ctx context.Context, run Run) error
}

// Multi fans a run out to several writers. Every writer is tried; failures are joined.
type Multi []Writer

func (m Multi) Write(ctx context.Context, run Run) error {
	var errs []error
	for _, w := range m {
		if err := w.Write(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
