// Package usage records per-call model token consumption for cost
// accounting.
package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded model call.
type Entry struct {
	ID               string    `json:"id"`
	Owner            string    `json:"owner,omitempty"`
	TaskID           string    `json:"task_id"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	CreatedAt        time.Time `json:"created_at"`
}

// Summary aggregates usage per provider for one owner (or globally for
// the empty owner).
type Summary struct {
	TotalCalls  int                        `json:"total_calls"`
	TotalTokens int                        `json:"total_tokens"`
	TotalCost   float64                    `json:"total_cost_usd"`
	ByProvider  map[string]ProviderSummary `json:"by_provider"`
}

// ProviderSummary is the per-provider slice of a Summary.
type ProviderSummary struct {
	Calls  int     `json:"calls"`
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost_usd"`
}

// Store persists usage entries.
type Store interface {
	Record(ctx context.Context, e *Entry) error
	Summarize(ctx context.Context, owner string) (*Summary, error)
}

// NewEntry builds an Entry with id, cost, and timestamp filled in.
func NewEntry(owner, taskID, provider, model string, promptTokens, completionTokens int) *Entry {
	total := promptTokens + completionTokens
	return &Entry{
		ID:               uuid.NewString(),
		Owner:            owner,
		TaskID:           taskID,
		Provider:         provider,
		Model:            model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      total,
		CostUSD:          Cost(model, promptTokens, completionTokens),
		CreatedAt:        time.Now().UTC(),
	}
}

// Pricing in USD per 1M tokens, input/output.
var pricing = map[string][2]float64{
	"gemini-2.5-flash": {0.30, 2.50},
	"gemini-2.5-pro":   {1.25, 10.00},
	"gpt-4o-mini":      {0.15, 0.60},
	"gpt-4o":           {2.50, 10.00},
}

// Cost estimates the USD cost of one call. Unknown models cost zero;
// accounting is best-effort, not billing.
func Cost(model string, promptTokens, completionTokens int) float64 {
	p, ok := pricing[model]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1e6*p[0] + float64(completionTokens)/1e6*p[1]
}
