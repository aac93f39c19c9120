// Package collector defines where replay inputs come from.
package collector

import (
	"context"
	"time"

	"github.com/newthinker/sigreplay/internal/series"
)

// Request selects one candle series.
type Request struct {
	Pair        string
	Granularity string
	From        time.Time // inclusive, zero is unbounded
	To          time.Time // exclusive, zero is unbounded
}

// Contains reports whether t falls inside the request window.
func (r Request) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// Source loads candle series for replay
type Source interface {
	Name() string

	// Coarse loads the signal-timeframe series with every numeric column.
	Coarse(ctx context.Context, req Request) (*series.Coarse, error)

	// Fine loads the execution-timeframe quote series.
	Fine(ctx context.Context, req Request) (*series.Fine, error)
}
