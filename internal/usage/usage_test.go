package usage

import (
	"context"
	"math"
	"testing"
)

func TestCost(t *testing.T) {
	got := Cost("gemini-2.5-flash", 1_000_000, 1_000_000)
	if math.Abs(got-2.80) > 1e-9 {
		t.Errorf("expected 2.80, got %f", got)
	}
	if Cost("unknown-model", 1000, 1000) != 0 {
		t.Error("unknown model should cost zero")
	}
}

func TestNewEntryFillsDerivedFields(t *testing.T) {
	e := NewEntry("alice", "task-1", "gemini", "gemini-2.5-flash", 100, 50)
	if e.ID == "" {
		t.Error("expected generated id")
	}
	if e.TotalTokens != 150 {
		t.Errorf("expected 150 total tokens, got %d", e.TotalTokens)
	}
	if e.CostUSD <= 0 {
		t.Error("expected positive cost for known model")
	}
	if e.CreatedAt.IsZero() {
		t.Error("expected timestamp")
	}
}

func TestMemoryStoreSummarize(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Record(ctx, NewEntry("alice", "t1", "gemini", "gemini-2.5-flash", 100, 100))
	s.Record(ctx, NewEntry("alice", "t2", "openai", "gpt-4o-mini", 200, 100))
	s.Record(ctx, NewEntry("bob", "t3", "gemini", "gemini-2.5-flash", 50, 50))

	alice, err := s.Summarize(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if alice.TotalCalls != 2 || alice.TotalTokens != 500 {
		t.Errorf("alice summary wrong: %+v", alice)
	}
	if alice.ByProvider["gemini"].Tokens != 200 {
		t.Errorf("per-provider split wrong: %+v", alice.ByProvider)
	}

	all, err := s.Summarize(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if all.TotalCalls != 3 {
		t.Errorf("empty owner should match everything, got %d calls", all.TotalCalls)
	}
}
