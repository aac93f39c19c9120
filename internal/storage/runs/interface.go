package runs

import (
	"context"

	"github.com/newthinker/sigreplay/internal/storage/results"
)

// Store keeps run summaries for ranking and lookup. It is also a results.Writer.
type Store interface {
	results.Writer

	// Get retrieves a run summary by its ID.
	Get(ctx context.Context, id string) (*results.Summary, error)

	// List retrieves summaries matching the filter.
	List(ctx context.Context, filter ListFilter) ([]results.Summary, error)

	// Count returns the number of summaries matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)
}

// Order selects the sort order of List.
type Order int

const (
	// OrderInserted keeps the order runs were written in.
	OrderInserted Order = iota
	// OrderTotalR ranks by total R, best first; ties keep insertion order.
	OrderTotalR
)

// ListFilter defines criteria for listing runs.
type ListFilter struct {
	Pair      string
	Strategy  string
	MinTrades int
	Order     Order
	Limit     int
	Offset    int
}
