package tasks

import (
	"context"
	"time"
)

// Store is the task state store: the single synchronization point
// between each background unit and its pollers.
type Store interface {
	// Create persists a new task row.
	Create(ctx context.Context, t *Task) error
	// Update applies a partial mutation. Status changes out of a
	// terminal state are rejected.
	Update(ctx context.Context, id string, u Update) error
	// Get returns a task snapshot or NotFoundError.
	Get(ctx context.Context, id string) (*Task, error)
	// List returns the owner's tasks, newest first.
	List(ctx context.Context, owner string, limit int) ([]*Task, error)
	// FailStale forces processing tasks created before cutoff to
	// failed with the stale-task error, returning how many changed.
	FailStale(ctx context.Context, cutoff time.Time) (int, error)
}
