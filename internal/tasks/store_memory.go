package tasks

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps tasks in process memory. Anonymous tasks live only
// here; they do not survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewMemoryStore creates an empty in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*Task)}
}

// Create persists a new task.
func (s *MemoryStore) Create(_ context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

// Update applies a partial mutation under the store lock.
func (s *MemoryStore) Update(_ context.Context, id string, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	return u.apply(t)
}

// Get returns a snapshot of the task.
func (s *MemoryStore) Get(_ context.Context, id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	cp := *t
	return &cp, nil
}

// List returns the owner's tasks, newest first.
func (s *MemoryStore) List(_ context.Context, owner string, limit int) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Task
	for _, t := range s.tasks {
		if t.Owner != owner {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FailStale forces old processing tasks to failed.
func (s *MemoryStore) FailStale(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.Status == StatusProcessing && t.CreatedAt.Before(cutoff) {
			if err := FailureUpdate(StaleTaskError).apply(t); err == nil {
				n++
			}
		}
	}
	return n, nil
}
