package runs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/sigreplay/internal/core"
	"github.com/newthinker/sigreplay/internal/storage/results"
)

// MemoryStore is an in-memory run store. Writers may call it from several goroutines.
type MemoryStore struct {
	summaries []results.Summary
	maxSize   int
	mu        sync.RWMutex
}

// NewMemoryStore creates a new in-memory store with max capacity; 0 is unbounded.
func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{maxSize: maxSize}
}

var _ Store = (*MemoryStore)(nil)

// Write adds the summary of a run to the store.
func (m *MemoryStore) Write(ctx context.Context, run results.Run) error {
	if run.Result == nil {
		return core.WrapError(core.ErrNoData, fmt.Errorf("run %s has no result", run.ID))
	}
	s := results.Summarize(run)

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.summaries {
		if m.summaries[i].RunID == s.RunID {
			return core.WrapError(core.ErrStorageFailed, fmt.Errorf("run %s already stored", s.RunID))
		}
	}
	m.summaries = append(m.summaries, s)

	// Trim if over capacity (remove oldest)
	if m.maxSize > 0 && len(m.summaries) > m.maxSize {
		m.summaries = m.summaries[len(m.summaries)-m.maxSize:]
	}

	return nil
}

// Get retrieves a run summary by ID.
func (m *MemoryStore) Get(ctx context.Context, id string) (*results.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.summaries {
		if m.summaries[i].RunID == id {
			s := m.summaries[i]
			return &s, nil
		}
	}
	return nil, core.WrapError(core.ErrRunNotFound, fmt.Errorf("run %s", id))
}

// List returns summaries matching the filter.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]results.Summary, error) {
	m.mu.RLock()
	result := make([]results.Summary, 0, len(m.summaries))
	for _, s := range m.summaries {
		if matches(s, filter) {
			result = append(result, s)
		}
	}
	m.mu.RUnlock()

	if filter.Order == OrderTotalR {
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].Stats.TotalR > result[j].Stats.TotalR
		})
	}

	// Apply offset and limit
	if filter.Offset >= len(result) {
		return []results.Summary{}, nil
	}
	if filter.Offset > 0 {
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Count returns the count of matching summaries.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, s := range m.summaries {
		if matches(s, filter) {
			count++
		}
	}
	return count, nil
}

func matches(s results.Summary, filter ListFilter) bool {
	if filter.Pair != "" && s.Pair != filter.Pair {
		return false
	}
	if filter.Strategy != "" && s.Strategy != filter.Strategy {
		return false
	}
	if s.Stats.TotalTrades < filter.MinTrades {
		return false
	}
	return true
}
