package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sailsonlabs/pulse/internal/config"
)

func TestRegistryApplyConfig(t *testing.T) {
	cfg := &config.Config{
		LLMProviders: map[string]config.LLMProviderCfg{
			"gemini":   {Type: "gemini", Model: "gemini-2.5-flash", Enabled: true},
			"openai":   {Type: "openai", Model: "gpt-4o-mini", Enabled: false},
			"bogus":    {Type: "something-else", Enabled: true},
			"mockprov": {Type: "mock", Enabled: true},
		},
	}

	r := NewRegistry(slog.Default())
	r.ApplyConfig(cfg)

	if _, err := r.GetLLM("gemini"); err != nil {
		t.Errorf("gemini should be registered: %v", err)
	}
	if _, err := r.GetLLM("openai"); err == nil {
		t.Error("disabled openai should not be registered")
	}
	if _, err := r.GetLLM("bogus"); err == nil {
		t.Error("unknown type should be skipped")
	}
	if _, err := r.GetLLM("mockprov"); err != nil {
		t.Errorf("mock provider should be registered: %v", err)
	}
}

func TestRegistryRegisterUnregister(t *testing.T) {
	r := NewRegistry(slog.Default())
	r.RegisterLLM("m", NewMockClient())
	if got := len(r.ListLLM()); got != 1 {
		t.Fatalf("expected 1 client, got %d", got)
	}
	r.UnregisterLLM("m")
	if _, err := r.GetLLM("m"); err == nil {
		t.Error("expected error after unregister")
	}
}

func TestMockClientSequencedResponses(t *testing.T) {
	c := NewMockClient()
	c.Responses = []string{"first", "second"}
	c.ResponseText = "fallback"

	ctx := context.Background()
	for i, want := range []string{"first", "second", "fallback"} {
		res, err := c.Chat(ctx, &ChatRequest{})
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
		if res.Content != want {
			t.Errorf("call %d: expected %q, got %q", i, want, res.Content)
		}
	}
	if c.Requests() != 3 {
		t.Errorf("expected 3 requests recorded, got %d", c.Requests())
	}
}

func TestGeminiChatParsesUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "test-key" {
			t.Error("missing api key")
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.GenerationConfig.ResponseMIMEType != "application/json" {
			t.Error("expected JSON response mode when schema set")
		}
		fmt.Fprint(w, `{
			"candidates":[{"content":{"role":"model","parts":[{"text":"[{\"category\":\"bugs\"}]"}]}}],
			"usageMetadata":{"promptTokenCount":120,"candidatesTokenCount":30,"totalTokenCount":150}
		}`)
	}))
	defer srv.Close()

	c := NewGeminiClient(GeminiConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	})
	res, err := c.Chat(context.Background(), &ChatRequest{
		Messages:   []Message{{Role: "user", Content: "classify these"}},
		JSONSchema: json.RawMessage(`{"type":"array"}`),
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if res.TotalTokens != 150 || res.PromptTokens != 120 {
		t.Errorf("usage not threaded through: %+v", res)
	}
	if res.Content == "" {
		t.Error("expected content from candidate parts")
	}
	if res.Provider != GeminiClientName {
		t.Errorf("unexpected provider %q", res.Provider)
	}
}

func TestGeminiRetriesOn500(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "upstream error", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}],"usageMetadata":{"totalTokenCount":1}}`)
	}))
	defer srv.Close()

	c := NewGeminiClient(GeminiConfig{APIKey: "k", BaseURL: srv.URL, MaxRetries: 5})
	res, err := c.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("Chat failed after retries: %v", err)
	}
	if res.Content != "ok" {
		t.Errorf("unexpected content %q", res.Content)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestGeminiDoesNotRetryOn400(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewGeminiClient(GeminiConfig{APIKey: "k", BaseURL: srv.URL, MaxRetries: 5})
	if _, err := c.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("400 should not be retried, got %d calls", calls)
	}
}

func TestGeminiDoesNotRetryMalformedBody(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"candidates":[{"content":`)
	}))
	defer srv.Close()

	c := NewGeminiClient(GeminiConfig{APIKey: "k", BaseURL: srv.URL, MaxRetries: 5})
	if _, err := c.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("truncated 200 body should not be retried, got %d calls", calls)
	}
}

func TestRateLimiterBlocksWhenExhausted(t *testing.T) {
	r := NewRateLimiter(60) // one token per second refill

	ctx := context.Background()
	for i := 0; i < 60; i++ {
		if err := r.Wait(ctx); err != nil {
			t.Fatalf("wait %d failed: %v", i, err)
		}
	}

	// Bucket drained: Wait should now block until cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); err == nil {
		t.Error("expected context deadline while rate limited")
	}
}
