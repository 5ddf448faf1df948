// Package results persists the structured output of completed tasks
// and renders it for export.
package results

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sailsonlabs/pulse/internal/classify"
)

// Result is the durable output of one completed task: the rendered
// artifact plus the structured item list the exports are built from.
// Results written before structured-result support have a nil Items
// slice and cannot be exported.
type Result struct {
	ID        string          `json:"id"`
	TaskID    string          `json:"task_id"`
	Owner     string          `json:"owner,omitempty"`
	Artifact  string          `json:"artifact"`
	Items     []classify.Item `json:"items,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NotFoundError indicates no result exists for the query.
type NotFoundError struct {
	TaskID string
}

func (e *NotFoundError) Error() string {
	if e.TaskID == "" {
		return "no results found"
	}
	return fmt.Sprintf("no result for task %s", e.TaskID)
}

// Store persists results. Written once at task completion, read by the
// results and export endpoints.
type Store interface {
	Save(ctx context.Context, r *Result) error
	// GetByTask returns the result for a task, scoped to owner when
	// owner is non-empty. Missing or foreign results are NotFoundError.
	GetByTask(ctx context.Context, owner, taskID string) (*Result, error)
	// Latest returns the owner's most recent result (legacy path for
	// callers that predate task-scoped exports).
	Latest(ctx context.Context, owner string) (*Result, error)
	// List returns the owner's results, newest first.
	List(ctx context.Context, owner string, limit int) ([]*Result, error)
}

// New builds a Result with id and timestamp filled in.
func New(owner, taskID, artifact string, items []classify.Item) *Result {
	return &Result{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Owner:     owner,
		Artifact:  artifact,
		Items:     items,
		CreatedAt: time.Now().UTC(),
	}
}
