package strategy

import (
	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/series"
)

// Config holds strategy configuration
type Config struct {
	Enabled bool
	Params  map[string]any
}

// Annotator decides the trade direction of a single coarse bar. Implementations must be
// pure: the same row always yields the same direction.
type Annotator interface {
	Name() string
	Description() string
	// RequiredColumns lists the indicator columns Annotate reads. They must exist on the
	// series after Prepare (if any) has run.
	RequiredColumns() []string
	Init(cfg Config) error
	Annotate(row series.CoarseRow) core.Direction
}

// Preparer is implemented by annotators that derive their own indicator columns before
// the row-wise pass.
type Preparer interface {
	Prepare(c *series.Coarse) error
}

// AnnotatorFunc adapts a plain row function to the Annotator interface.
type AnnotatorFunc struct {
	ID      string
	Columns []string
	Fn      func(row series.CoarseRow) core.Direction
}

func (f AnnotatorFunc) Name() string              { return f.ID }
func (f AnnotatorFunc) Description() string       { return "row function " + f.ID }
func (f AnnotatorFunc) RequiredColumns() []string { return f.Columns }
func (f AnnotatorFunc) Init(cfg Config) error     { return nil }

func (f AnnotatorFunc) Annotate(row series.CoarseRow) core.Direction {
	return f.Fn(row)
}

// IntParam reads an integer parameter that may have been decoded as int, int64 or float64.
func IntParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}
