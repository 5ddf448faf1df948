package tasks

import (
	"context"
	"errors"
	"time"
)

// LayeredStore routes owned tasks to a durable store and anonymous
// tasks to memory. When no durable store is configured everything
// stays in memory.
type LayeredStore struct {
	memory  *MemoryStore
	durable Store // nil when running without Postgres
}

// NewLayeredStore creates a layered store. durable may be nil.
func NewLayeredStore(durable Store) *LayeredStore {
	return &LayeredStore{
		memory:  NewMemoryStore(),
		durable: durable,
	}
}

func (s *LayeredStore) storeFor(owner string) Store {
	if owner != "" && s.durable != nil {
		return s.durable
	}
	return s.memory
}

// Create routes by the task's owner.
func (s *LayeredStore) Create(ctx context.Context, t *Task) error {
	return s.storeFor(t.Owner).Create(ctx, t)
}

// Update tries memory first, then the durable store.
func (s *LayeredStore) Update(ctx context.Context, id string, u Update) error {
	err := s.memory.Update(ctx, id, u)
	var notFound *NotFoundError
	if errors.As(err, &notFound) && s.durable != nil {
		return s.durable.Update(ctx, id, u)
	}
	return err
}

// Get tries memory first, then the durable store.
func (s *LayeredStore) Get(ctx context.Context, id string) (*Task, error) {
	t, err := s.memory.Get(ctx, id)
	var notFound *NotFoundError
	if errors.As(err, &notFound) && s.durable != nil {
		return s.durable.Get(ctx, id)
	}
	return t, err
}

// List reads from the owner's backing store.
func (s *LayeredStore) List(ctx context.Context, owner string, limit int) ([]*Task, error) {
	return s.storeFor(owner).List(ctx, owner, limit)
}

// FailStale sweeps both layers.
func (s *LayeredStore) FailStale(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.memory.FailStale(ctx, cutoff)
	if err != nil {
		return n, err
	}
	if s.durable != nil {
		m, err := s.durable.FailStale(ctx, cutoff)
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
