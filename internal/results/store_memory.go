package results

import (
	"context"
	"sync"
)

// memoryHistoryLimit caps retained results per owner.
const memoryHistoryLimit = 50

// MemoryStore keeps results in process memory, newest first. It backs
// anonymous sessions and tests; owned results normally live in
// Postgres and survive restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	byOwner map[string][]*Result
}

// NewMemoryStore creates an empty in-memory result store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byOwner: make(map[string][]*Result)}
}

// Save prepends the result to the owner's history, trimming old ones.
func (s *MemoryStore) Save(_ context.Context, r *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	history := append([]*Result{&cp}, s.byOwner[r.Owner]...)
	if len(history) > memoryHistoryLimit {
		history = history[:memoryHistoryLimit]
	}
	s.byOwner[r.Owner] = history
	return nil
}

// GetByTask returns the owner's result for a task id.
func (s *MemoryStore) GetByTask(_ context.Context, owner, taskID string) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.byOwner[owner] {
		if r.TaskID == taskID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, &NotFoundError{TaskID: taskID}
}

// Latest returns the owner's most recent result.
func (s *MemoryStore) Latest(_ context.Context, owner string) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.byOwner[owner]
	if len(history) == 0 {
		return nil, &NotFoundError{}
	}
	cp := *history[0]
	return &cp, nil
}

// List returns up to limit of the owner's results, newest first.
func (s *MemoryStore) List(_ context.Context, owner string, limit int) ([]*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.byOwner[owner]
	if limit <= 0 || limit > len(history) {
		limit = len(history)
	}
	out := make([]*Result, 0, limit)
	for _, r := range history[:limit] {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}
