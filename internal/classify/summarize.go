package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sailsonlabs/pulse/internal/providers"
	"github.com/sailsonlabs/pulse/internal/scrape"
)

const summarySystemPrompt = `You are an analyst tracking a competitor's social presence for a game studio.
You will receive a list of the competitor's recent posts with engagement counters.
Write a concise report in English: posting cadence, which content themes drive engagement, and anything notable. Plain text, no markdown.`

// Summarizer produces a competitor-monitoring report from fetched
// posts in a single model call.
type Summarizer struct {
	client providers.LLMClient
}

// NewSummarizer creates a summarizer bound to one client.
func NewSummarizer(client providers.LLMClient) *Summarizer {
	return &Summarizer{client: client}
}

// Summarize renders the posts into one prompt and returns the model's
// report and token usage.
func (s *Summarizer) Summarize(ctx context.Context, records []scrape.RawRecord) (string, int, error) {
	var b strings.Builder
	for i, r := range records {
		fmt.Fprintf(&b, "%d. %s\n   likes=%d views=%d comments=%d shares=%d saves=%d",
			i+1, strings.TrimSpace(r.Text), r.Likes, r.Views, r.Comments, r.Shares, r.Saves)
		if !r.PostedAt.IsZero() {
			fmt.Fprintf(&b, " posted=%s", r.PostedAt.Format("2006-01-02"))
		}
		b.WriteString("\n")
	}

	res, err := s.client.Chat(ctx, &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: b.String()},
		},
		RequestID: uuid.NewString(),
	})
	if err != nil {
		return "", 0, fmt.Errorf("summary call: %w", err)
	}
	summary := strings.TrimSpace(res.Content)
	if summary == "" {
		return "", res.TotalTokens, fmt.Errorf("summary call returned empty content")
	}
	return summary, res.TotalTokens, nil
}
