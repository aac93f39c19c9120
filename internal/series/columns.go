package series

import (
	"sort"
	"time"

	"github.com/newthinker/sigreplay/internal/core"
)

type column struct {
	name string
	n    int
}

func checkColumn(name string, got, want int) error {
	if got == 0 && want > 0 {
		return core.SchemaErrorf("missing column %q", name)
	}
	if got != want {
		return core.SchemaErrorf("column %q has %d values, series has %d bars", name, got, want)
	}
	return nil
}

func checkOrder(label string, times []time.Time) error {
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return core.SchemaErrorf("%s series not in chronological order at row %d (%s after %s)",
				label, i, times[i].Format(time.RFC3339), times[i-1].Format(time.RFC3339))
		}
	}
	return nil
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	return append([]float64(nil), v...)
}

func cloneTimes(v []time.Time) []time.Time {
	if v == nil {
		return nil
	}
	return append([]time.Time(nil), v...)
}
