// Package instrument provides read-only static metadata for tradable pairs.
package instrument

import (
	"fmt"
	"sort"
	"strings"

	"github.com/newthinker/sigreplay/internal/core"
	"github.com/shopspring/decimal"
)

// Instrument is the static metadata of one pair.
type Instrument struct {
	Name                string  `mapstructure:"name" json:"name"`
	Type                string  `mapstructure:"type" json:"type"`
	DisplayName         string  `mapstructure:"display_name" json:"display_name"`
	PipLocation         int     `mapstructure:"pip_location" json:"pip_location"` // power of ten, e.g. -4
	DisplayPrecision    int     `mapstructure:"display_precision" json:"display_precision"`
	TradeUnitsPrecision int     `mapstructure:"trade_units_precision" json:"trade_units_precision"`
	MarginRate          float64 `mapstructure:"margin_rate" json:"margin_rate"`
}

// PipSize returns the price distance of one pip.
func (i Instrument) PipSize() decimal.Decimal {
	return decimal.New(1, int32(i.PipLocation))
}

// PipsToPrice converts a pip count into a price distance.
func (i Instrument) PipsToPrice(pips float64) float64 {
	return decimal.NewFromFloat(pips).Mul(i.PipSize()).InexactFloat64()
}

// Round rounds a price to the display precision of the instrument.
func (i Instrument) Round(price float64) float64 {
	return decimal.NewFromFloat(price).Round(int32(i.DisplayPrecision)).InexactFloat64()
}

// Table is an immutable lookup of instruments by name.
type Table struct {
	byName map[string]Instrument
}

// NewTable builds a table. Duplicate or empty names are rejected.
func NewTable(instruments []Instrument) (*Table, error) {
	t := &Table{byName: make(map[string]Instrument, len(instruments))}
	for _, ins := range instruments {
		if ins.Name == "" {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("instrument with empty name"))
		}
		if _, dup := t.byName[ins.Name]; dup {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("duplicate instrument %q", ins.Name))
		}
		t.byName[ins.Name] = ins
	}
	return t, nil
}

// Get returns the instrument by name.
func (t *Table) Get(name string) (Instrument, error) {
	ins, ok := t.byName[name]
	if !ok {
		return Instrument{}, core.WrapError(core.ErrInstrumentNotFound, fmt.Errorf("%q", name))
	}
	return ins, nil
}

// Len returns the number of instruments.
func (t *Table) Len() int {
	return len(t.byName)
}

// Names returns all instrument names, sorted.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.byName))
	for n := range t.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Pairs returns every BASE_QUOTE combination of the given currencies that exists in the
// table, in currency-list order.
func (t *Table) Pairs(currencies []string) []string {
	var pairs []string
	for _, base := range currencies {
		for _, quote := range currencies {
			pair := strings.ToUpper(base) + "_" + strings.ToUpper(quote)
			if _, ok := t.byName[pair]; ok {
				pairs = append(pairs, pair)
			}
		}
	}
	return pairs
}
