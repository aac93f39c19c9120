package strategy

import (
	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/instrument"
	"github.com/newthinker/sigreplay/internal/series"
)

// GainFunc returns the take-profit distance for a signalled row. An error means the
// row lacks an input the sizing depends on.
type GainFunc func(row series.CoarseRow, dir core.Direction) (float64, error)

// RangeGain sizes the take-profit as a multiple of the signal bar body:
// the ask body for a buy, the bid body for a sell.
func RangeGain(profitFactor float64) GainFunc {
	return func(row series.CoarseRow, dir core.Direction) (float64, error) {
		bar := row.Bar()
		if dir == core.DirectionBuy {
			return (bar.Ask.Close - bar.Ask.Open) * profitFactor, nil
		}
		return (bar.Bid.Open - bar.Bid.Close) * profitFactor, nil
	}
}

// PipGain returns a fixed pip distance converted through the instrument's pip location
// and rounded to its display precision when one is set.
func PipGain(ins instrument.Instrument, pips float64) GainFunc {
	distance := ins.PipsToPrice(pips)
	if ins.DisplayPrecision > 0 {
		distance = ins.Round(distance)
	}
	return func(series.CoarseRow, core.Direction) (float64, error) {
		return distance, nil
	}
}

// ColumnGain reads the gain from a caller-supplied indicator column. A missing column
// is a schema error; NaN cells are passed through.
func ColumnGain(name string) GainFunc {
	return func(row series.CoarseRow, _ core.Direction) (float64, error) {
		v, ok := row.Value(name)
		if !ok {
			return 0, core.SchemaErrorf("gain column %q not found", name)
		}
		return v, nil
	}
}
