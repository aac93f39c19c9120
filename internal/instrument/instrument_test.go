package instrument

import (
	"testing"

	"github.com/newthinker/sigreplay/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fxTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable([]Instrument{
		{Name: "EUR_USD", Type: "CURRENCY", PipLocation: -4, DisplayPrecision: 5},
		{Name: "USD_JPY", Type: "CURRENCY", PipLocation: -2, DisplayPrecision: 3},
		{Name: "GBP_USD", Type: "CURRENCY", PipLocation: -4, DisplayPrecision: 5},
	})
	require.NoError(t, err)
	return table
}

func TestInstrument_PipConversions(t *testing.T) {
	table := fxTable(t)

	eur, err := table.Get("EUR_USD")
	require.NoError(t, err)
	assert.Equal(t, 0.0015, eur.PipsToPrice(15))

	jpy, err := table.Get("USD_JPY")
	require.NoError(t, err)
	assert.Equal(t, 0.2, jpy.PipsToPrice(20))
}

func TestInstrument_Round(t *testing.T) {
	ins := Instrument{Name: "EUR_USD", PipLocation: -4, DisplayPrecision: 5}
	assert.Equal(t, 1.23457, ins.Round(1.234567))
}

func TestTable_GetUnknown(t *testing.T) {
	_, err := fxTable(t).Get("XAU_USD")
	assert.ErrorIs(t, err, core.ErrInstrumentNotFound)
}

func TestNewTable_Rejects(t *testing.T) {
	tests := []struct {
		name string
		ins  []Instrument
	}{
		{"empty name", []Instrument{{Name: ""}}},
		{"duplicate", []Instrument{{Name: "EUR_USD"}, {Name: "EUR_USD"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.ins)
			assert.ErrorIs(t, err, core.ErrConfigInvalid)
		})
	}
}

func TestTable_Pairs(t *testing.T) {
	table := fxTable(t)
	pairs := table.Pairs([]string{"usd", "EUR", "GBP", "JPY"})
	assert.Equal(t, []string{"USD_JPY", "EUR_USD", "GBP_USD"}, pairs)
	assert.Equal(t, []string{"EUR_USD", "GBP_USD", "USD_JPY"}, table.Names())
	assert.Equal(t, 3, table.Len())
}
