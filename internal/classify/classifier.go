package classify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sailsonlabs/pulse/internal/providers"
)

// Classifier sends batches of text through an LLM client and parses
// the structured classification back. Each call is independent; the
// classifier keeps no state between batches.
type Classifier struct {
	client   providers.LLMClient
	template Template
	logger   *slog.Logger
}

// NewClassifier creates a classifier bound to one client and template.
func NewClassifier(client providers.LLMClient, tmpl Template, logger *slog.Logger) *Classifier {
	return &Classifier{
		client:   client,
		template: tmpl,
		logger:   logger.With("component", "classify"),
	}
}

// Template returns the classifier's active template.
func (c *Classifier) Template() Template {
	return c.template
}

// ClassifyBatch classifies one batch of entries. The returned slice may
// be shorter than the input: the model may omit noise items and
// malformed entries are tolerated. A response that cannot be parsed at
// all fails the whole batch with a ParseError; token usage is reported
// either way since the model call already happened.
func (c *Classifier) ClassifyBatch(ctx context.Context, batchNum int, entries []string) ([]Item, int, error) {
	if len(entries) == 0 {
		return nil, 0, nil
	}

	res, err := c.client.Chat(ctx, &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: SystemPrompt()},
			{Role: "user", Content: UserPrompt(c.template, entries)},
		},
		JSONSchema: ResponseSchema(c.template),
		RequestID:  uuid.NewString(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("classification call for batch %d: %w", batchNum, err)
	}

	items, err := parseItems(c.template, res.Content)
	if err != nil {
		return nil, res.TotalTokens, &ParseError{Batch: batchNum, Cause: err}
	}

	if len(items) < len(entries) {
		c.logger.Debug("batch returned fewer items than entries",
			"batch", batchNum, "entries", len(entries), "items", len(items))
	}
	return items, res.TotalTokens, nil
}

// SplitBatches splits entries into contiguous slices of at most size.
func SplitBatches(entries []string, size int) [][]string {
	if size <= 0 {
		size = 50
	}
	var batches [][]string
	for start := 0; start < len(entries); start += size {
		end := start + size
		if end > len(entries) {
			end = len(entries)
		}
		batches = append(batches, entries[start:end])
	}
	return batches
}
