package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists tasks to the tasks table so owned work survives
// restarts (and the startup sweep can find orphans).
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed task store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Create inserts a new task row.
func (s *PGStore) Create(ctx context.Context, t *Task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (id, owner, status, progress, result, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Owner, t.Status, t.Progress, t.Result, t.Error, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

// Update applies a partial mutation. Any write hitting a row already in
// a terminal state is rejected, matching the in-memory store's behavior.
func (s *PGStore) Update(ctx context.Context, id string, u Update) error {
	sets := []string{"updated_at = $2"}
	args := []any{id, time.Now().UTC()}

	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.Progress != nil {
		add("progress", *u.Progress)
	}
	if u.Result != nil {
		add("result", *u.Result)
	}
	if u.Error != nil {
		add("error", *u.Error)
	}

	query := fmt.Sprintf(
		"UPDATE tasks SET %s WHERE id = $1 AND status NOT IN ('completed', 'failed')",
		strings.Join(sets, ", "),
	)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish unknown id from a rejected terminal transition.
		existing, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("task %s is already %s", id, existing.Status)
	}
	return nil
}

// Get returns a task snapshot.
func (s *PGStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner, status, progress, result, error, created_at, updated_at
		FROM tasks WHERE id = $1`, id)
	return scanTask(row, id)
}

// List returns the owner's tasks, newest first.
func (s *PGStore) List(ctx context.Context, owner string, limit int) ([]*Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner, status, progress, result, error, created_at, updated_at
		FROM tasks WHERE owner = $1
		ORDER BY created_at DESC
		LIMIT $2`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task rows: %w", err)
	}
	return out, nil
}

// FailStale forces old processing tasks to failed.
func (s *PGStore) FailStale(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET status = 'failed', error = $1, updated_at = $2
		WHERE status = 'processing' AND created_at < $3`,
		StaleTaskError, time.Now().UTC(), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("sweeping stale tasks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanTask(row pgx.Row, id string) (*Task, error) {
	var t Task
	var status string
	err := row.Scan(&t.ID, &t.Owner, &status, &t.Progress, &t.Result, &t.Error, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task row: %w", err)
	}
	t.Status = Status(status)
	return &t, nil
}
