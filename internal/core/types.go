package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Direction is the discrete trading decision attached to a bar.
// The numeric values match the encoding used by the upstream signal files.
type Direction int8

const (
	DirectionSell Direction = -1
	DirectionNone Direction = 0
	DirectionBuy  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "BUY"
	case DirectionSell:
		return "SELL"
	case DirectionNone:
		return "NONE"
	default:
		return fmt.Sprintf("Direction(%d)", int8(d))
	}
}

// IsValid reports whether d is one of the three known directions.
func (d Direction) IsValid() bool {
	return d == DirectionBuy || d == DirectionSell || d == DirectionNone
}

// ParseDirection accepts BUY/SELL/NONE (any case) or the numeric 1/-1/0 form.
// Numeric values may carry a fractional part as written by dataframe exports ("1.0").
func ParseDirection(s string) (Direction, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "BUY":
		return DirectionBuy, nil
	case "SELL":
		return DirectionSell, nil
	case "NONE", "":
		return DirectionNone, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return DirectionNone, fmt.Errorf("invalid direction %q", s)
	}
	d := Direction(int8(f))
	if float64(d) != f || !d.IsValid() {
		return DirectionNone, fmt.Errorf("invalid direction %q", s)
	}
	return d, nil
}

// OHLC holds one side of a candle.
type OHLC struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// PriceBar is a single candle with mid, bid and ask prices.
// Bid <= mid <= ask wherever bid/ask are present.
type PriceBar struct {
	Time   time.Time
	Mid    OHLC
	Bid    OHLC
	Ask    OHLC
	Volume int64
}
