package usage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists usage entries to the usage_logs table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed usage store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Record inserts one usage entry.
func (s *PGStore) Record(ctx context.Context, e *Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO usage_logs (id, owner, task_id, provider, model,
			prompt_tokens, completion_tokens, total_tokens, cost_usd, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, nullable(e.Owner), e.TaskID, e.Provider, e.Model,
		e.PromptTokens, e.CompletionTokens, e.TotalTokens, e.CostUSD, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting usage log: %w", err)
	}
	return nil
}

// Summarize aggregates usage for an owner; the empty owner matches
// everything.
func (s *PGStore) Summarize(ctx context.Context, owner string) (*Summary, error) {
	query := `
		SELECT provider, COUNT(*), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(cost_usd), 0)
		FROM usage_logs`
	args := []any{}
	if owner != "" {
		query += ` WHERE owner = $1`
		args = append(args, owner)
	}
	query += ` GROUP BY provider`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage summary: %w", err)
	}
	defer rows.Close()

	sum := &Summary{ByProvider: make(map[string]ProviderSummary)}
	for rows.Next() {
		var provider string
		var p ProviderSummary
		if err := rows.Scan(&provider, &p.Calls, &p.Tokens, &p.Cost); err != nil {
			return nil, fmt.Errorf("scanning usage summary row: %w", err)
		}
		sum.ByProvider[provider] = p
		sum.TotalCalls += p.Calls
		sum.TotalTokens += p.Tokens
		sum.TotalCost += p.Cost
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage summary rows: %w", err)
	}
	return sum, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
