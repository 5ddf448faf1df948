// Package tasks holds the task lifecycle: the state store, the bounded
// worker-pool runner, and the pipeline each background unit executes.
package tasks

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is a task lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one unit of submitted work. The owning background unit is
// the only writer after creation; pollers read concurrently.
type Task struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner,omitempty"` // empty = anonymous, kept in memory only
	Status    Status    `json:"status"`
	Progress  string    `json:"progress,omitempty"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTask creates a pending task for an owner.
func NewTask(owner string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        uuid.NewString(),
		Owner:     owner,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Update is a partial task mutation: only non-nil fields change.
type Update struct {
	Status   *Status
	Progress *string
	Result   *string
	Error    *string
}

// apply merges the update into t. A terminal task rejects every
// mutation, so a late worker write cannot land after the sweep or a
// completion already settled the row. updated_at refreshes on every
// applied mutation.
func (u Update) apply(t *Task) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("task %s is already %s", t.ID, t.Status)
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Progress != nil {
		t.Progress = *u.Progress
	}
	if u.Result != nil {
		t.Result = *u.Result
	}
	if u.Error != nil {
		t.Error = *u.Error
	}
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// StatusUpdate builds an Update that only changes status.
func StatusUpdate(s Status) Update {
	return Update{Status: &s}
}

// ProgressUpdate builds an Update that only changes progress.
func ProgressUpdate(p string) Update {
	return Update{Progress: &p}
}

// FailureUpdate builds an Update marking the task failed with an error.
func FailureUpdate(msg string) Update {
	s := StatusFailed
	return Update{Status: &s, Error: &msg}
}

// CompletionUpdate builds an Update marking the task completed with a
// result artifact.
func CompletionUpdate(result string) Update {
	s := StatusCompleted
	return Update{Status: &s, Result: &result}
}

// NotFoundError signals a query against an unknown task id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.ID)
}

// StaleTaskError is the fixed message assigned by the staleness sweep.
const StaleTaskError = "task interrupted by service restart"
