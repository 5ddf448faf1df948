package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sailsonlabs/pulse/internal/config"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(config.ScraperCfg{
		Token:               "test-token",
		BaseURL:             baseURL,
		StartTimeoutSeconds: 2,
		PollIntervalSeconds: 1,
		WaitBudgetSeconds:   3,
	}, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestStartSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Query().Get("token") != "test-token" {
			t.Error("missing token query param")
		}
		var input map[string]any
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			t.Errorf("decoding input: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"data":{"id":"run-1","defaultDatasetId":"ds-1"}}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	h, err := c.Start(context.Background(), ActorFacebookComments,
		BuildInput(ActorFacebookComments, "https://facebook.com/post/1", 20))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if h.RunID != "run-1" || h.DatasetID != "ds-1" {
		t.Errorf("unexpected handle: %+v", h)
	}
}

func TestStartNon201IsStartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid input"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.Start(context.Background(), ActorTikTok, map[string]any{})
	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("expected StartError, got %v", err)
	}
}

func TestStartTimeoutIsDistinct(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := testClient(t, srv.URL)
	c.startTimeout = 50 * time.Millisecond

	_, err := c.Start(context.Background(), ActorTikTok, map[string]any{})
	var timeoutErr *StartTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected StartTimeoutError, got %v", err)
	}
}

func TestWaitForFinishReachesTerminal(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := "RUNNING"
		if polls.Add(1) >= 3 {
			status = "SUCCEEDED"
		}
		fmt.Fprintf(w, `{"data":{"status":%q}}`, status)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	c.pollInterval = 10 * time.Millisecond
	c.waitBudget = time.Second

	status, err := c.WaitForFinish(context.Background(), RunHandle{RunID: "run-1"})
	if err != nil {
		t.Fatalf("WaitForFinish failed: %v", err)
	}
	if status != "SUCCEEDED" {
		t.Errorf("expected SUCCEEDED, got %s", status)
	}
	if n := polls.Load(); n < 3 {
		t.Errorf("expected at least 3 polls, got %d", n)
	}
}

func TestWaitForFinishBudgetExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"status":"RUNNING"}}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	c.pollInterval = 10 * time.Millisecond
	c.waitBudget = 50 * time.Millisecond

	_, err := c.WaitForFinish(context.Background(), RunHandle{RunID: "run-1"})
	var waitErr *WaitTimeoutError
	if !errors.As(err, &waitErr) {
		t.Fatalf("expected WaitTimeoutError, got %v", err)
	}
	if waitErr.LastStatus != "RUNNING" {
		t.Errorf("expected last status RUNNING, got %s", waitErr.LastStatus)
	}
}

func TestWaitForFinishRunFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"status":"ABORTED"}}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	c.pollInterval = 10 * time.Millisecond

	_, err := c.WaitForFinish(context.Background(), RunHandle{RunID: "run-1"})
	var failedErr *RunFailedError
	if !errors.As(err, &failedErr) {
		t.Fatalf("expected RunFailedError, got %v", err)
	}
	if failedErr.Status != "ABORTED" {
		t.Errorf("expected ABORTED, got %s", failedErr.Status)
	}
}

func TestFetchPaginates(t *testing.T) {
	// 250 items across pages of 100: two full pages then a short page.
	total := 250
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var page []map[string]any
		for i := offset; i < offset+limit && i < total; i++ {
			page = append(page, map[string]any{
				"text":       fmt.Sprintf("comment %d", i),
				"likesCount": float64(i),
			})
		}
		if page == nil {
			page = []map[string]any{}
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	records, err := c.Fetch(context.Background(), RunHandle{DatasetID: "ds-1"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(records) != total {
		t.Fatalf("expected %d records, got %d", total, len(records))
	}
	// Arrival order preserved.
	if records[0].Text != "comment 0" || records[249].Text != "comment 249" {
		t.Errorf("records out of arrival order: first=%q last=%q", records[0].Text, records[249].Text)
	}
	if records[10].Likes != 10 {
		t.Errorf("expected likes normalized, got %d", records[10].Likes)
	}
}

func TestNormalizeRecordAliases(t *testing.T) {
	tiktok := json.RawMessage(`{
		"text": "great video",
		"diggCount": 12,
		"playCount": 3400,
		"commentCount": 5,
		"shareCount": 2,
		"collectCount": 1,
		"createTimeISO": "2025-06-01T12:00:00Z",
		"webVideoUrl": "https://tiktok.com/@user/video/1"
	}`)
	rec := NormalizeRecord(tiktok)
	if rec.Likes != 12 || rec.Views != 3400 || rec.Saves != 1 {
		t.Errorf("tiktok counters not normalized: %+v", rec)
	}
	if rec.URL != "https://tiktok.com/@user/video/1" {
		t.Errorf("unexpected url: %s", rec.URL)
	}
	if rec.PostedAt.IsZero() {
		t.Error("expected posted_at parsed")
	}

	// Missing fields default to zero values.
	sparse := NormalizeRecord(json.RawMessage(`{"text":"hi"}`))
	if sparse.Likes != 0 || sparse.URL != "" || !sparse.PostedAt.IsZero() {
		t.Errorf("sparse record should default: %+v", sparse)
	}
}

func TestActorForURL(t *testing.T) {
	if got := ActorForURL("https://www.tiktok.com/@somebody"); got != ActorTikTok {
		t.Errorf("expected tiktok actor, got %s", got)
	}
	if got := ActorForURL("https://facebook.com/post/9"); got != ActorFacebookComments {
		t.Errorf("expected facebook actor, got %s", got)
	}
}
