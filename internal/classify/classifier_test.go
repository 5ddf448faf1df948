package classify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/sailsonlabs/pulse/internal/providers"
)

func TestTemplateLookupFallsBack(t *testing.T) {
	if got := TemplateFor(""); got.Name != DefaultTemplate.Name {
		t.Errorf("empty project should get default template, got %q", got.Name)
	}
	if got := TemplateFor("no-such-project"); got.Name != DefaultTemplate.Name {
		t.Errorf("unknown project should get default template, got %q", got.Name)
	}
}

func TestTemplateRank(t *testing.T) {
	tmpl := DefaultTemplate
	if tmpl.Rank("cheating") >= tmpl.Rank("performance") {
		t.Error("cheating should precede performance")
	}
	if tmpl.Rank("suggestions") >= tmpl.Rank("other") {
		t.Error("suggestions should precede other")
	}
	if tmpl.Rank("made-up") != len(tmpl.Categories) {
		t.Error("unknown category should rank last")
	}
}

func TestTemplateValidate(t *testing.T) {
	if err := DefaultTemplate.Validate(); err != nil {
		t.Errorf("default template should be valid: %v", err)
	}
	bad := Template{Name: "bad", Categories: []Category{{Key: "a"}, {Key: "a"}}}
	if err := bad.Validate(); err == nil {
		t.Error("duplicate keys should fail validation")
	}
	undrop := Template{Name: "bad", Categories: []Category{{Key: "a"}}, Drop: []string{"b"}}
	if err := undrop.Validate(); err == nil {
		t.Error("dropping an undeclared category should fail validation")
	}
}

func TestUserPromptEmbedsEntriesAndTaxonomy(t *testing.T) {
	prompt := UserPrompt(DefaultTemplate, []string{"lag is terrible", "saw a botter today"})
	if !strings.Contains(prompt, "1. lag is terrible") || !strings.Contains(prompt, "2. saw a botter today") {
		t.Errorf("entries not numbered in prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "cheating") || !strings.Contains(prompt, "外挂作弊") {
		t.Error("taxonomy missing from prompt")
	}
}

func TestClassifyBatchParsesWellFormedResponse(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = `[
		{"text":"lag is terrible","category":"performance","sentiment":"negative","language":"en","analysis":"Player reports lag."},
		{"text":"saw a botter","category":"cheating","sentiment":"negative","language":"en","analysis":"Player reports botting."}
	]`
	mock.Tokens = 200

	c := NewClassifier(mock, DefaultTemplate, slog.Default())
	items, tokens, err := c.ClassifyBatch(context.Background(), 1, []string{"lag is terrible", "saw a botter"})
	if err != nil {
		t.Fatalf("ClassifyBatch failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Category != "performance" || items[1].Category != "cheating" {
		t.Errorf("categories wrong: %+v", items)
	}
	if tokens != 200 {
		t.Errorf("expected 200 tokens threaded through, got %d", tokens)
	}
}

func TestClassifyBatchStripsCodeFences(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = "```json\n[{\"text\":\"hi\",\"category\":\"other\",\"sentiment\":\"neutral\",\"language\":\"en\",\"analysis\":\"Greeting.\"}]\n```"

	c := NewClassifier(mock, DefaultTemplate, slog.Default())
	items, _, err := c.ClassifyBatch(context.Background(), 1, []string{"hi"})
	if err != nil {
		t.Fatalf("ClassifyBatch failed: %v", err)
	}
	if len(items) != 1 || items[0].Category != "other" {
		t.Errorf("fenced response not recovered: %+v", items)
	}
}

func TestClassifyBatchMalformedResponseIsParseError(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = "I could not classify these, sorry."
	mock.Tokens = 50

	c := NewClassifier(mock, DefaultTemplate, slog.Default())
	items, tokens, err := c.ClassifyBatch(context.Background(), 3, []string{"a", "b"})
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Batch != 3 {
		t.Errorf("expected batch 3 in error, got %d", parseErr.Batch)
	}
	if items != nil {
		t.Error("no items expected from unparseable batch")
	}
	// The model call happened, so tokens are still accounted.
	if tokens != 50 {
		t.Errorf("expected 50 tokens, got %d", tokens)
	}
}

func TestClassifyBatchSalvagesPartialArray(t *testing.T) {
	mock := providers.NewMockClient()
	// Second entry is missing required fields, third has an invented
	// category. Salvage should keep two items, coercing the category.
	mock.ResponseText = `[
		{"text":"crash on login","category":"bugs","sentiment":"negative","language":"en","analysis":"Crash report."},
		{"category":"bugs"},
		{"text":"love it","category":"praise","sentiment":"positive","language":"en","analysis":"Praise."}
	]`

	c := NewClassifier(mock, DefaultTemplate, slog.Default())
	items, _, err := c.ClassifyBatch(context.Background(), 1, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("ClassifyBatch failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 salvaged items, got %d", len(items))
	}
	if items[1].Category != CatchAllCategory {
		t.Errorf("invented category should coerce to catch-all, got %q", items[1].Category)
	}
}

func TestSplitBatches(t *testing.T) {
	entries := make([]string, 120)
	batches := SplitBatches(entries, 50)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[0]) != 50 || len(batches[2]) != 20 {
		t.Errorf("batch sizes wrong: %d, %d", len(batches[0]), len(batches[2]))
	}
	if got := SplitBatches(nil, 50); got != nil {
		t.Errorf("no entries should yield no batches, got %v", got)
	}
}
