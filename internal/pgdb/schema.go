package pgdb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id         TEXT PRIMARY KEY,
		owner      TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL,
		progress   TEXT NOT NULL DEFAULT '',
		result     TEXT NOT NULL DEFAULT '',
		error      TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_owner_created ON tasks (owner, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status)`,

	`CREATE TABLE IF NOT EXISTS analysis_results (
		id         TEXT PRIMARY KEY,
		task_id    TEXT NOT NULL,
		owner      TEXT NOT NULL DEFAULT '',
		artifact   TEXT NOT NULL DEFAULT '',
		items      JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_results_owner_created ON analysis_results (owner, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_results_task ON analysis_results (task_id)`,

	`CREATE TABLE IF NOT EXISTS usage_logs (
		id                TEXT PRIMARY KEY,
		owner             TEXT,
		task_id           TEXT NOT NULL,
		provider          TEXT NOT NULL,
		model             TEXT NOT NULL,
		prompt_tokens     INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens      INTEGER NOT NULL DEFAULT 0,
		cost_usd          DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_owner ON usage_logs (owner)`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
