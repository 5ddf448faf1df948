package tasks

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sailsonlabs/pulse/internal/classify"
	"github.com/sailsonlabs/pulse/internal/results"
	"github.com/sailsonlabs/pulse/internal/scrape"
	"github.com/sailsonlabs/pulse/internal/usage"
)

type fakeFetcher struct {
	records []scrape.RawRecord
	err     error
	delay   time.Duration
}

func (f *fakeFetcher) Run(ctx context.Context, actor string, input map[string]any) ([]scrape.RawRecord, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.records, f.err
}

// fakeClassifier assigns categories round-robin from a fixed list.
type fakeClassifier struct {
	categories []string
	parseFail  bool
	failBatch  int // fail only this batch number; 0 disables
	batches    int
}

func (f *fakeClassifier) Template() classify.Template { return classify.DefaultTemplate }

func (f *fakeClassifier) ClassifyBatch(_ context.Context, batchNum int, entries []string) ([]classify.Item, int, error) {
	f.batches++
	if f.parseFail || (f.failBatch > 0 && batchNum == f.failBatch) {
		return nil, 40, &classify.ParseError{Batch: batchNum, Cause: errors.New("not json")}
	}
	items := make([]classify.Item, len(entries))
	for i, text := range entries {
		items[i] = classify.Item{
			Text:      text,
			Category:  f.categories[i%len(f.categories)],
			Sentiment: "neutral",
			Language:  "en",
			Analysis:  "test",
		}
	}
	return items, 100, nil
}

type fakeSummarizer struct {
	summary string
	err     error
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ []scrape.RawRecord) (string, int, error) {
	return f.summary, 80, f.err
}

type testEnv struct {
	pipeline *Pipeline
	store    Store
	runner   *Runner
	results  *results.MemoryStore
	usage    *usage.MemoryStore
}

func newTestEnv(t *testing.T, cfg PipelineConfig) *testEnv {
	t.Helper()
	logger := slog.Default()
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Runner == nil {
		cfg.Runner = NewRunner(2, 8, logger)
	}
	if cfg.Classifier == nil {
		cfg.Classifier = &fakeClassifier{categories: []string{"bugs"}}
	}
	if cfg.Summarizer == nil {
		cfg.Summarizer = &fakeSummarizer{summary: "report"}
	}
	resStore := results.NewMemoryStore()
	usageStore := usage.NewMemoryStore()
	if cfg.Results == nil {
		cfg.Results = resStore
	}
	if cfg.Usage == nil {
		cfg.Usage = usageStore
	}
	cfg.Logger = logger
	cfg.Provider = "mock"
	cfg.Model = "mock-model"

	cfg.Runner.Start(context.Background())
	t.Cleanup(cfg.Runner.Stop)

	return &testEnv{
		pipeline: NewPipeline(cfg),
		store:    cfg.Store,
		runner:   cfg.Runner,
		results:  resStore,
		usage:    usageStore,
	}
}

func waitTerminal(t *testing.T, store Store, id string) *Task {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		task, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if task.Status.IsTerminal() {
			return task
		}
		select {
		case <-deadline:
			t.Fatalf("task %s never reached terminal state, last: %s/%s", id, task.Status, task.Progress)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func records(texts ...string) []scrape.RawRecord {
	out := make([]scrape.RawRecord, len(texts))
	for i, txt := range texts {
		out[i] = scrape.RawRecord{Text: txt}
	}
	return out
}

func TestTerminalStatusIsFinal(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	task := NewTask("alice")
	store.Create(ctx, task)

	if err := store.Update(ctx, task.ID, CompletionUpdate("done")); err != nil {
		t.Fatal(err)
	}
	if err := store.Update(ctx, task.ID, FailureUpdate("nope")); err == nil {
		t.Fatal("status change out of completed must be rejected")
	}
	got, _ := store.Get(ctx, task.ID)
	if got.Status != StatusCompleted || got.Result != "done" {
		t.Errorf("terminal state mutated: %+v", got)
	}
}

func TestTerminalTaskRejectsAllWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	task := NewTask("alice")
	store.Create(ctx, task)

	if err := store.Update(ctx, task.ID, FailureUpdate(StaleTaskError)); err != nil {
		t.Fatal(err)
	}
	// A worker whose task the sweep already force-failed must not land
	// late progress or result writes on the settled row.
	if err := store.Update(ctx, task.ID, ProgressUpdate("analyzing batch 2/3")); err == nil {
		t.Error("progress write on failed task must be rejected")
	}
	if err := store.Update(ctx, task.ID, CompletionUpdate("late artifact")); err == nil {
		t.Error("completion write on failed task must be rejected")
	}
	got, _ := store.Get(ctx, task.ID)
	if got.Status != StatusFailed || got.Progress != "" || got.Result != "" || got.Error != StaleTaskError {
		t.Errorf("failed task mutated after settling: %+v", got)
	}
}

func TestSubmitReturnsBeforeBackgroundWork(t *testing.T) {
	env := newTestEnv(t, PipelineConfig{
		Fetcher: &fakeFetcher{records: records("hello"), delay: time.Second},
	})

	start := time.Now()
	task, err := env.pipeline.Submit(context.Background(), Request{URL: "https://example.com/post/1"})
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("Submit blocked on background work: %v", elapsed)
	}
	// The handle is immediately pollable.
	got, err := env.store.Get(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("just-created task not found: %v", err)
	}
	if got.Status != StatusPending && got.Status != StatusProcessing {
		t.Errorf("unexpected initial status %s", got.Status)
	}
}

func TestSubmitWithoutContentSourceIsSynchronousRejection(t *testing.T) {
	env := newTestEnv(t, PipelineConfig{Fetcher: &fakeFetcher{}})

	_, err := env.pipeline.Submit(context.Background(), Request{Owner: "alice"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	// No task row was issued.
	list, _ := env.store.List(context.Background(), "alice", 0)
	if len(list) != 0 {
		t.Errorf("no task should exist, got %d", len(list))
	}
}

func TestScrapeClassifyAssembleFlow(t *testing.T) {
	env := newTestEnv(t, PipelineConfig{
		Fetcher:    &fakeFetcher{records: records("found a bug", "this guy cheats", "nice weather")},
		Classifier: &fakeClassifier{categories: []string{"bugs", "cheating", "other"}},
	})

	task, err := env.pipeline.Submit(context.Background(), Request{
		Owner: "alice",
		URL:   "https://example.com/post/1",
	})
	if err != nil {
		t.Fatal(err)
	}

	final := waitTerminal(t, env.store, task.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", final.Status, final.Error)
	}

	// "other" is dropped by the template rule; the two kept rows are
	// ordered by category precedence.
	if strings.Count(final.Result, "<tr>") != 3 { // header + 2 data rows
		t.Errorf("expected 2 data rows, artifact:\n%s", final.Result)
	}
	cheatIdx := strings.Index(final.Result, "this guy cheats")
	bugIdx := strings.Index(final.Result, "found a bug")
	if cheatIdx < 0 || bugIdx < 0 || cheatIdx > bugIdx {
		t.Errorf("rows not in precedence order: cheat=%d bug=%d", cheatIdx, bugIdx)
	}

	// Structured items persisted for export.
	res, err := env.results.GetByTask(context.Background(), "alice", task.ID)
	if err != nil {
		t.Fatalf("result not persisted: %v", err)
	}
	if len(res.Items) != 2 {
		t.Errorf("expected 2 persisted items, got %d", len(res.Items))
	}

	// Token usage accounted.
	sum, _ := env.usage.Summarize(context.Background(), "alice")
	if sum.TotalTokens == 0 {
		t.Error("expected usage recorded")
	}
}

func TestUploadEntriesAreOnePseudoBatch(t *testing.T) {
	fc := &fakeClassifier{categories: []string{"bugs"}}
	env := newTestEnv(t, PipelineConfig{
		Fetcher:    &fakeFetcher{err: errors.New("fetcher must not run")},
		Classifier: fc,
		BatchSize:  2,
	})

	entries := []string{"a", "b", "c", "d", "e"}
	task, err := env.pipeline.Submit(context.Background(), Request{Owner: "alice", Entries: entries})
	if err != nil {
		t.Fatal(err)
	}
	final := waitTerminal(t, env.store, task.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", final.Status, final.Error)
	}
	if fc.batches != 1 {
		t.Errorf("upload should classify as one pseudo-batch, got %d", fc.batches)
	}
}

func TestUploadWinsOverURL(t *testing.T) {
	env := newTestEnv(t, PipelineConfig{
		Fetcher: &fakeFetcher{err: errors.New("fetcher must not run")},
	})

	task, err := env.pipeline.Submit(context.Background(), Request{
		URL:     "https://example.com/post/1",
		Entries: []string{"uploaded row"},
	})
	if err != nil {
		t.Fatal(err)
	}
	final := waitTerminal(t, env.store, task.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("file path should win over url, got %s (%s)", final.Status, final.Error)
	}
}

func TestScrapeErrorFailsTaskVerbatim(t *testing.T) {
	waitErr := &scrape.WaitTimeoutError{RunID: "run-1", Budget: "8m0s", LastStatus: "RUNNING"}
	env := newTestEnv(t, PipelineConfig{Fetcher: &fakeFetcher{err: waitErr}})

	task, _ := env.pipeline.Submit(context.Background(), Request{URL: "https://example.com/p/1"})
	final := waitTerminal(t, env.store, task.ID)
	if final.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.Error != waitErr.Error() {
		t.Errorf("error not copied verbatim: %q vs %q", final.Error, waitErr.Error())
	}
	if final.Result != "" {
		t.Error("failed task must not carry an artifact")
	}
}

func TestZeroRecordsFailsTask(t *testing.T) {
	env := newTestEnv(t, PipelineConfig{Fetcher: &fakeFetcher{records: nil}})

	task, _ := env.pipeline.Submit(context.Background(), Request{URL: "https://example.com/p/1"})
	final := waitTerminal(t, env.store, task.ID)
	if final.Status != StatusFailed || final.Error != "no public content found" {
		t.Errorf("expected no-content failure, got %s / %q", final.Status, final.Error)
	}
}

func TestAllBatchesUnparseableStillCompletes(t *testing.T) {
	env := newTestEnv(t, PipelineConfig{
		Fetcher:    &fakeFetcher{records: records("a", "b", "c")},
		Classifier: &fakeClassifier{parseFail: true},
	})

	task, _ := env.pipeline.Submit(context.Background(), Request{Owner: "alice", URL: "https://example.com/p/1"})
	final := waitTerminal(t, env.store, task.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("best-effort classification must still complete, got %s (%s)", final.Status, final.Error)
	}
	if strings.Contains(final.Result, "<td>") {
		t.Error("artifact should be empty of data rows")
	}
	// Tokens from the failed calls are still accounted.
	sum, _ := env.usage.Summarize(context.Background(), "alice")
	if sum.TotalTokens == 0 {
		t.Error("tokens from dropped batches must still be recorded")
	}
}

func TestDroppedBatchDoesNotPoisonOthers(t *testing.T) {
	env := newTestEnv(t, PipelineConfig{
		Fetcher:    &fakeFetcher{records: records("one", "two", "three", "four")},
		Classifier: &fakeClassifier{categories: []string{"bugs"}, failBatch: 1},
		BatchSize:  2,
	})

	task, _ := env.pipeline.Submit(context.Background(), Request{Owner: "alice", URL: "https://example.com/p/1"})
	final := waitTerminal(t, env.store, task.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", final.Status, final.Error)
	}
	for _, dropped := range []string{"one", "two"} {
		if strings.Contains(final.Result, dropped) {
			t.Errorf("artifact should not contain %q from the dropped batch", dropped)
		}
	}
	for _, kept := range []string{"three", "four"} {
		if !strings.Contains(final.Result, kept) {
			t.Errorf("artifact should contain %q from the surviving batch", kept)
		}
	}
}

func TestStatusReadsAreIdempotentAfterCompletion(t *testing.T) {
	env := newTestEnv(t, PipelineConfig{Fetcher: &fakeFetcher{records: records("x")}})

	task, _ := env.pipeline.Submit(context.Background(), Request{URL: "https://example.com/p/1"})
	waitTerminal(t, env.store, task.ID)

	first, err := env.pipeline.Status(context.Background(), task.ID)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := env.pipeline.Status(context.Background(), task.ID)
		if err != nil {
			t.Fatal(err)
		}
		if *again != *first {
			t.Fatalf("snapshot changed between reads: %+v vs %+v", again, first)
		}
	}
}

func TestStatusUnknownTaskIsNotFound(t *testing.T) {
	env := newTestEnv(t, PipelineConfig{Fetcher: &fakeFetcher{}})
	_, err := env.pipeline.Status(context.Background(), "no-such-task")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestQueueFullRejectsSubmission(t *testing.T) {
	// One worker, queue of one, and a fetcher slow enough to pin both.
	runner := NewRunner(1, 1, slog.Default())
	env := newTestEnv(t, PipelineConfig{
		Runner:  runner,
		Fetcher: &fakeFetcher{records: records("x"), delay: 2 * time.Second},
	})

	ctx := context.Background()
	var rejected error
	for i := 0; i < 5; i++ {
		if _, err := env.pipeline.Submit(ctx, Request{URL: "https://example.com/p/1"}); err != nil {
			rejected = err
			break
		}
	}
	if !errors.Is(rejected, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", rejected)
	}
}

func TestStalenessSweep(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	old := NewTask("alice")
	old.Status = StatusProcessing
	old.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	store.Create(ctx, old)

	fresh := NewTask("alice")
	fresh.Status = StatusProcessing
	fresh.CreatedAt = time.Now().UTC().Add(-5 * time.Minute)
	store.Create(ctx, fresh)

	done := NewTask("alice")
	done.Status = StatusCompleted
	done.CreatedAt = time.Now().UTC().Add(-3 * time.Hour)
	store.Create(ctx, done)

	sweeper := NewSweeper(store, time.Hour, "@every 10m", slog.Default())
	n, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 swept task, got %d", n)
	}

	got, _ := store.Get(ctx, old.ID)
	if got.Status != StatusFailed || got.Error != StaleTaskError {
		t.Errorf("stale task not failed correctly: %+v", got)
	}
	got, _ = store.Get(ctx, fresh.ID)
	if got.Status != StatusProcessing {
		t.Errorf("fresh task must be untouched, got %s", got.Status)
	}
	got, _ = store.Get(ctx, done.ID)
	if got.Status != StatusCompleted {
		t.Errorf("completed task must be untouched, got %s", got.Status)
	}
}

func TestMonitorFlow(t *testing.T) {
	now := time.Now().UTC()
	recs := []scrape.RawRecord{
		{Text: "new season trailer", Views: 1000, PostedAt: now.Add(-24 * time.Hour)},
		{Text: "old post", Views: 10, PostedAt: now.Add(-90 * 24 * time.Hour)},
	}
	env := newTestEnv(t, PipelineConfig{
		Fetcher:    &fakeFetcher{records: recs},
		Summarizer: &fakeSummarizer{summary: "posts daily, trailers perform best"},
	})

	task, err := env.pipeline.Submit(context.Background(), Request{
		Kind:        KindMonitor,
		Owner:       "alice",
		URL:         "https://www.tiktok.com/@rival",
		WindowStart: now.Add(-7 * 24 * time.Hour),
		WindowEnd:   now,
	})
	if err != nil {
		t.Fatal(err)
	}
	final := waitTerminal(t, env.store, task.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", final.Status, final.Error)
	}
	if final.Result != "posts daily, trailers perform best" {
		t.Errorf("unexpected monitor artifact %q", final.Result)
	}
}

func TestLayeredStoreRouting(t *testing.T) {
	durable := NewMemoryStore() // stands in for the Postgres store
	layered := NewLayeredStore(durable)
	ctx := context.Background()

	owned := NewTask("alice")
	layered.Create(ctx, owned)
	if _, err := durable.Get(ctx, owned.ID); err != nil {
		t.Error("owned task should reach the durable store")
	}

	anon := NewTask("")
	layered.Create(ctx, anon)
	if _, err := durable.Get(ctx, anon.ID); err == nil {
		t.Error("anonymous task must stay in memory")
	}
	if _, err := layered.Get(ctx, anon.ID); err != nil {
		t.Errorf("anonymous task should be readable through the layered store: %v", err)
	}

	// Updates reach whichever layer holds the task.
	if err := layered.Update(ctx, owned.ID, ProgressUpdate("working")); err != nil {
		t.Fatal(err)
	}
	got, _ := durable.Get(ctx, owned.ID)
	if got.Progress != "working" {
		t.Errorf("update did not reach durable layer: %+v", got)
	}
}
