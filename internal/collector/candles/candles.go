// Package candles reads candle CSV files of the form <pair>_<granularity>.csv from an
// archive. Column names follow the broker export: time, volume, mid_o..mid_c,
// bid_o..bid_c, ask_o..ask_c. An optional direction column (BUY/SELL/NONE or 1/-1/0)
// carries signals decided upstream. Any other numeric column is kept as an indicator
// column.
package candles

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/sigreplay/internal/collector"
	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/series"
	"github.com/newthinker/sigreplay/internal/storage/archive"
	"go.uber.org/zap"
)

var coarsePrices = []string{
	"mid_o", "mid_h", "mid_l", "mid_c",
	"bid_o", "bid_h", "bid_l", "bid_c",
	"ask_o", "ask_h", "ask_l", "ask_c",
}

var finePrices = []string{"bid_h", "bid_l", "ask_h", "ask_l"}

const columnDirection = "direction"

// Accepted time layouts, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// Loader implements collector.Source over an archive.
type Loader struct {
	store  archive.Storage
	prefix string
	logger *zap.Logger
}

// New creates a loader reading files below prefix.
func New(store archive.Storage, prefix string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{store: store, prefix: strings.Trim(prefix, "/"), logger: logger}
}

var _ collector.Source = (*Loader)(nil)

func (l *Loader) Name() string {
	return "candles"
}

// FileName returns the archive path of a series.
func (l *Loader) FileName(pair, granularity string) string {
	name := fmt.Sprintf("%s_%s.csv", pair, granularity)
	if l.prefix == "" {
		return name
	}
	return l.prefix + "/" + name
}

func (l *Loader) Coarse(ctx context.Context, req collector.Request) (*series.Coarse, error) {
	t, err := l.load(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := t.require(coarsePrices...); err != nil {
		return nil, err
	}

	c := &series.Coarse{
		Time:      t.times,
		MidOpen:   t.cols["mid_o"],
		MidHigh:   t.cols["mid_h"],
		MidLow:    t.cols["mid_l"],
		MidClose:  t.cols["mid_c"],
		BidOpen:   t.cols["bid_o"],
		BidHigh:   t.cols["bid_h"],
		BidLow:    t.cols["bid_l"],
		BidClose:  t.cols["bid_c"],
		AskOpen:   t.cols["ask_o"],
		AskHigh:   t.cols["ask_h"],
		AskLow:    t.cols["ask_l"],
		AskClose:  t.cols["ask_c"],
		Volume:    t.volume(),
		Direction: t.directions,
		Extra:     make(map[string][]float64),
	}
	for name, col := range t.cols {
		if !isReserved(name) {
			c.Extra[name] = col
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", l.FileName(req.Pair, req.Granularity), err)
	}
	return c, nil
}

func (l *Loader) Fine(ctx context.Context, req collector.Request) (*series.Fine, error) {
	t, err := l.load(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := t.require(finePrices...); err != nil {
		return nil, err
	}

	f := &series.Fine{
		Time:    t.times,
		BidHigh: t.cols["bid_h"],
		BidLow:  t.cols["bid_l"],
		AskHigh: t.cols["ask_h"],
		AskLow:  t.cols["ask_l"],
		MidHigh: t.cols["mid_h"],
		MidLow:  t.cols["mid_l"],
	}
	if err := f.Validate(false); err != nil {
		return nil, fmt.Errorf("%s: %w", l.FileName(req.Pair, req.Granularity), err)
	}
	return f, nil
}

// load reads and parses one file, keeping only the rows inside the request window.
func (l *Loader) load(ctx context.Context, req collector.Request) (*table, error) {
	name := l.FileName(req.Pair, req.Granularity)
	data, err := l.store.Read(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}

	t, err := parse(data, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	for _, col := range t.skipped {
		l.logger.Debug("ignoring non-numeric column", zap.String("file", name), zap.String("column", col))
	}
	if len(t.times) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("%s has no rows in the requested window", name))
	}

	l.logger.Debug("candles loaded",
		zap.String("file", name),
		zap.Int("rows", len(t.times)),
		zap.Time("first", t.times[0]),
		zap.Time("last", t.times[len(t.times)-1]),
	)
	return t, nil
}

// table is a parsed candle file in column form.
type table struct {
	times      []time.Time
	cols       map[string][]float64
	directions []core.Direction // nil without a direction column
	skipped    []string
}

func (t *table) require(names ...string) error {
	for _, name := range names {
		if _, ok := t.cols[name]; !ok {
			return core.SchemaErrorf("missing column %q", name)
		}
	}
	return nil
}

// volume converts the optional volume column; absent volume is zero.
func (t *table) volume() []int64 {
	out := make([]int64, len(t.times))
	for i, v := range t.cols["volume"] {
		if !math.IsNaN(v) {
			out[i] = int64(v)
		}
	}
	return out
}

func isReserved(name string) bool {
	if name == "volume" {
		return true
	}
	for _, p := range coarsePrices {
		if name == p {
			return true
		}
	}
	return false
}

func parse(data []byte, req collector.Request) (*table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.ReuseRecord = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, core.SchemaErrorf("empty file")
	}
	if err != nil {
		return nil, core.SchemaErrorf("reading header: %v", err)
	}

	timeIdx, dirIdx := -1, -1
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.ToLower(strings.TrimSpace(h))
		switch names[i] {
		case "time":
			timeIdx = i
		case columnDirection:
			dirIdx = i
		}
	}
	if timeIdx < 0 {
		return nil, core.SchemaErrorf("missing column %q", "time")
	}

	t := &table{cols: make(map[string][]float64)}
	// Unnamed columns (a leading row index) are ignored.
	numeric := make([]bool, len(names))
	for i, name := range names {
		numeric[i] = i != timeIdx && i != dirIdx && name != ""
	}
	if dirIdx >= 0 {
		t.directions = []core.Direction{}
	}

	line := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, core.SchemaErrorf("line %d: %v", line, err)
		}

		ts, err := parseTime(rec[timeIdx])
		if err != nil {
			return nil, core.SchemaErrorf("line %d: %v", line, err)
		}
		if !req.Contains(ts) {
			continue
		}
		t.times = append(t.times, ts)

		if dirIdx >= 0 {
			d, err := core.ParseDirection(rec[dirIdx])
			if err != nil {
				return nil, core.SchemaErrorf("line %d column %s: %v", line, columnDirection, err)
			}
			t.directions = append(t.directions, d)
		}

		for i, name := range names {
			if !numeric[i] {
				continue
			}
			v, err := parseValue(rec[i])
			if err != nil {
				if isReserved(name) {
					return nil, core.SchemaErrorf("line %d column %s: %v", line, name, err)
				}
				numeric[i] = false
				delete(t.cols, name)
				t.skipped = append(t.skipped, name)
				continue
			}
			t.cols[name] = append(t.cols[name], v)
		}
	}
	return t, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}

// parseValue reads a float; an empty cell is NaN.
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
