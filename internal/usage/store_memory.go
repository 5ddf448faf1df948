package usage

import (
	"context"
	"sync"
)

// MemoryStore keeps usage entries in process memory. Used when running
// without Postgres and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemoryStore creates an empty in-memory usage store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends an entry.
func (s *MemoryStore) Record(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.entries = append(s.entries, &cp)
	return nil
}

// Summarize aggregates entries for an owner; the empty owner matches
// everything.
func (s *MemoryStore) Summarize(_ context.Context, owner string) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := &Summary{ByProvider: make(map[string]ProviderSummary)}
	for _, e := range s.entries {
		if owner != "" && e.Owner != owner {
			continue
		}
		sum.TotalCalls++
		sum.TotalTokens += e.TotalTokens
		sum.TotalCost += e.CostUSD
		p := sum.ByProvider[e.Provider]
		p.Calls++
		p.Tokens += e.TotalTokens
		p.Cost += e.CostUSD
		sum.ByProvider[e.Provider] = p
	}
	return sum, nil
}
