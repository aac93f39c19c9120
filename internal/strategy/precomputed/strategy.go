// Package precomputed replays signals that were decided upstream and stored in the
// coarse file's direction column.
package precomputed

import (
	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/series"
	"github.com/newthinker/sigreplay/internal/strategy"
)

// Name is the registry name of the annotator.
const Name = "precomputed"

// Precomputed passes the series' own Direction column through unchanged.
type Precomputed struct{}

func New() *Precomputed {
	return &Precomputed{}
}

func (p *Precomputed) Name() string {
	return Name
}

func (p *Precomputed) Description() string {
	return "signals read from the direction column"
}

func (p *Precomputed) RequiredColumns() []string {
	return nil
}

func (p *Precomputed) Init(cfg strategy.Config) error {
	return nil
}

// Prepare fails when the series has no direction column to replay.
func (p *Precomputed) Prepare(c *series.Coarse) error {
	if len(c.Direction) != c.Len() {
		return core.SchemaErrorf("missing column %q (%d values, series has %d bars)", "direction", len(c.Direction), c.Len())
	}
	return nil
}

func (p *Precomputed) Annotate(row series.CoarseRow) core.Direction {
	d, _ := row.Direction()
	return d
}
