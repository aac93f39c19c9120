package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/series"
)

// Apply runs the annotator over every coarse bar and fills the Direction column.
// When gain is non-nil the Gain column is filled for signalled bars (zero elsewhere);
// a nil gain leaves a caller-supplied Gain column untouched.
// It returns the number of signalled bars.
func Apply(c *series.Coarse, a Annotator, gain GainFunc) (int, error) {
	if p, ok := a.(Preparer); ok {
		if err := p.Prepare(c); err != nil {
			return 0, fmt.Errorf("prepare %s: %w", a.Name(), err)
		}
	}
	for _, col := range a.RequiredColumns() {
		if _, ok := c.Extra[col]; !ok {
			return 0, core.SchemaErrorf("strategy %s requires column %q", a.Name(), col)
		}
	}

	n := c.Len()
	dirs := make([]core.Direction, n)
	var gains []float64
	if gain != nil {
		gains = make([]float64, n)
	}

	signals := 0
	for i := 0; i < n; i++ {
		row := c.Row(i)
		dir := a.Annotate(row)
		if !dir.IsValid() {
			return 0, fmt.Errorf("strategy %s returned %v at %s", a.Name(), dir, row.Time())
		}
		dirs[i] = dir
		if dir == core.DirectionNone {
			continue
		}
		signals++
		if gain != nil {
			g, err := gain(row, dir)
			if err != nil {
				return 0, fmt.Errorf("sizing take-profit at %s: %w", row.Time().Format(time.RFC3339), err)
			}
			gains[i] = g
		}
	}

	// Rows read the incoming Direction column during the pass, so it is replaced last.
	c.Direction = dirs
	if gain != nil {
		c.Gain = gains
	}
	return signals, nil
}

// crossed reports a sign change from prev to curr. NaN on either side is never a cross.
func crossed(prev, curr float64) core.Direction {
	if math.IsNaN(prev) || math.IsNaN(curr) {
		return core.DirectionNone
	}
	switch {
	case curr > 0 && prev < 0:
		return core.DirectionBuy
	case curr < 0 && prev > 0:
		return core.DirectionSell
	}
	return core.DirectionNone
}

// Cross classifies the transition between the named previous and current columns.
func Cross(row series.CoarseRow, prevCol, currCol string) core.Direction {
	prev, ok := row.Value(prevCol)
	if !ok {
		return core.DirectionNone
	}
	curr, ok := row.Value(currCol)
	if !ok {
		return core.DirectionNone
	}
	return crossed(prev, curr)
}
