package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists results to the analysis_results table. Structured
// items are stored as JSONB; legacy rows carry NULL there.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed result store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Save inserts one result row.
func (s *PGStore) Save(ctx context.Context, r *Result) error {
	var items any
	if r.Items != nil {
		raw, err := json.Marshal(r.Items)
		if err != nil {
			return fmt.Errorf("marshaling result items: %w", err)
		}
		items = raw
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO analysis_results (id, task_id, owner, artifact, items, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.TaskID, r.Owner, r.Artifact, items, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting result: %w", err)
	}
	return nil
}

// GetByTask returns the owner's result for a task id.
func (s *PGStore) GetByTask(ctx context.Context, owner, taskID string) (*Result, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, task_id, owner, artifact, items, created_at
		FROM analysis_results
		WHERE task_id = $1 AND owner = $2`,
		taskID, owner,
	)
	return scanResult(row, taskID)
}

// Latest returns the owner's most recent result.
func (s *PGStore) Latest(ctx context.Context, owner string) (*Result, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, task_id, owner, artifact, items, created_at
		FROM analysis_results
		WHERE owner = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		owner,
	)
	return scanResult(row, "")
}

// List returns up to limit of the owner's results, newest first.
func (s *PGStore) List(ctx context.Context, owner string, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, task_id, owner, artifact, items, created_at
		FROM analysis_results
		WHERE owner = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		owner, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying results: %w", err)
	}
	defer rows.Close()

	var out []*Result
	for rows.Next() {
		r, err := scanResult(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating result rows: %w", err)
	}
	return out, nil
}

func scanResult(row pgx.Row, taskID string) (*Result, error) {
	var r Result
	var items []byte
	err := row.Scan(&r.ID, &r.TaskID, &r.Owner, &r.Artifact, &items, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{TaskID: taskID}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning result row: %w", err)
	}
	if items != nil {
		if err := json.Unmarshal(items, &r.Items); err != nil {
			return nil, fmt.Errorf("unmarshaling result items: %w", err)
		}
	}
	return &r, nil
}
