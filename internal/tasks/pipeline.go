package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sailsonlabs/pulse/internal/assemble"
	"github.com/sailsonlabs/pulse/internal/classify"
	"github.com/sailsonlabs/pulse/internal/results"
	"github.com/sailsonlabs/pulse/internal/scrape"
	"github.com/sailsonlabs/pulse/internal/telemetry"
	"github.com/sailsonlabs/pulse/internal/usage"
)

// ErrInvalidRequest is a synchronous submission rejection; no task id
// is issued.
var ErrInvalidRequest = errors.New("request must include a content url or an uploaded file")

// Fetcher runs a remote scrape job end to end. Satisfied by
// *scrape.Client.
type Fetcher interface {
	Run(ctx context.Context, actor string, input map[string]any) ([]scrape.RawRecord, error)
}

// BatchClassifier classifies one batch of entries. Satisfied by
// *classify.Classifier.
type BatchClassifier interface {
	Template() classify.Template
	ClassifyBatch(ctx context.Context, batchNum int, entries []string) ([]classify.Item, int, error)
}

// Summarizer produces a monitoring report from fetched records.
// Satisfied by *classify.Summarizer.
type Summarizer interface {
	Summarize(ctx context.Context, records []scrape.RawRecord) (string, int, error)
}

// RequestKind distinguishes the two task shapes.
type RequestKind string

const (
	KindAnalyze RequestKind = "analyze"
	KindMonitor RequestKind = "monitor"
)

// Request is one submitted job. Exactly one content source is
// required; when both are present the uploaded entries win over the
// URL (documented tie-break, not an error).
type Request struct {
	Kind    RequestKind
	Owner   string
	URL     string
	Entries []string // pre-parsed upload content; nil when scraping

	// MaxComments overrides the configured scrape cap when positive.
	MaxComments int

	// Monitor window (KindMonitor only).
	WindowStart time.Time
	WindowEnd   time.Time
}

// Pipeline wires the stores and stage clients into the background
// execution each task runs.
type Pipeline struct {
	store      Store
	runner     *Runner
	fetcher    Fetcher
	classifier BatchClassifier
	summarizer Summarizer
	results    results.Store
	usage      usage.Store
	logger     *slog.Logger

	batchSize   int
	maxComments int
	provider    string
	model       string
}

// PipelineConfig collects the pipeline's dependencies.
type PipelineConfig struct {
	Store      Store
	Runner     *Runner
	Fetcher    Fetcher
	Classifier BatchClassifier
	Summarizer Summarizer
	Results    results.Store
	Usage      usage.Store
	Logger     *slog.Logger

	BatchSize   int
	MaxComments int
	Provider    string // provider/model recorded on usage entries
	Model       string
}

// NewPipeline creates a pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxComments <= 0 {
		cfg.MaxComments = 20
	}
	return &Pipeline{
		store:       cfg.Store,
		runner:      cfg.Runner,
		fetcher:     cfg.Fetcher,
		classifier:  cfg.Classifier,
		summarizer:  cfg.Summarizer,
		results:     cfg.Results,
		usage:       cfg.Usage,
		logger:      cfg.Logger.With("component", "pipeline"),
		batchSize:   cfg.BatchSize,
		maxComments: cfg.MaxComments,
		provider:    cfg.Provider,
		model:       cfg.Model,
	}
}

// Submit validates the request, durably writes the pending task, and
// hands it to the worker pool. It returns without waiting on the
// background work. A full queue rejects the submission: the task row
// is marked failed and ErrQueueFull is returned to the caller.
func (p *Pipeline) Submit(ctx context.Context, req Request) (*Task, error) {
	if req.URL == "" && len(req.Entries) == 0 {
		return nil, ErrInvalidRequest
	}
	if req.Kind == "" {
		req.Kind = KindAnalyze
	}

	task := NewTask(req.Owner)
	if err := p.store.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	if err := p.runner.Submit(task.ID, func(ctx context.Context) {
		p.execute(ctx, task.ID, req)
	}); err != nil {
		if uerr := p.store.Update(ctx, task.ID, FailureUpdate(err.Error())); uerr != nil {
			p.logger.Error("failed to mark rejected task", "task_id", task.ID, "error", uerr)
		}
		return nil, err
	}

	telemetry.TasksSubmitted.WithLabelValues(string(req.Kind)).Inc()
	p.logger.Info("task submitted", "task_id", task.ID, "kind", req.Kind, "owner", req.Owner)
	return task, nil
}

// Status returns a task snapshot.
func (p *Pipeline) Status(ctx context.Context, id string) (*Task, error) {
	return p.store.Get(ctx, id)
}

// execute is the background unit for one task. It never lets a failure
// escape: every error path ends in a terminal store update.
func (p *Pipeline) execute(ctx context.Context, taskID string, req Request) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(ctx, taskID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := p.update(ctx, taskID, Update{
		Status:   statusPtr(StatusProcessing),
		Progress: strPtr("initializing"),
	}); err != nil {
		p.logger.Error("cannot start task", "task_id", taskID, "error", err)
		return
	}

	start := time.Now()
	switch req.Kind {
	case KindMonitor:
		p.executeMonitor(ctx, taskID, req)
	default:
		p.executeAnalyze(ctx, taskID, req)
	}
	if t, err := p.store.Get(ctx, taskID); err == nil && t.Status.IsTerminal() {
		telemetry.TaskDuration.WithLabelValues(string(t.Status)).Observe(time.Since(start).Seconds())
	}
}

func (p *Pipeline) executeAnalyze(ctx context.Context, taskID string, req Request) {
	var (
		batches [][]string
		err     error
	)
	if len(req.Entries) > 0 {
		// Uploaded content is classified as one pseudo-batch.
		batches = [][]string{req.Entries}
	} else {
		batches, err = p.fetchBatches(ctx, taskID, req.URL, req.MaxComments)
		if err != nil {
			p.fail(ctx, taskID, err.Error())
			return
		}
	}

	tmpl := p.classifier.Template()
	var items []classify.Item
	for i, batch := range batches {
		p.update(ctx, taskID, ProgressUpdate(fmt.Sprintf("analyzing batch %d/%d", i+1, len(batches))))

		got, tokens, err := p.classifier.ClassifyBatch(ctx, i+1, batch)
		p.recordUsage(ctx, req.Owner, taskID, tokens)
		if err != nil {
			var parseErr *classify.ParseError
			if errors.As(err, &parseErr) {
				// Batch is dropped, classification continues.
				telemetry.BatchParseFailures.Inc()
				p.logger.Warn("batch dropped", "task_id", taskID, "batch", i+1, "error", err)
				continue
			}
			p.fail(ctx, taskID, err.Error())
			return
		}
		items = append(items, got...)
	}

	// Template drop rules filter noise categories before assembly.
	kept := items[:0:0]
	for _, item := range items {
		if !tmpl.ShouldDrop(item.Category) {
			kept = append(kept, item)
		}
	}

	sorted := assemble.Sort(tmpl, kept)
	artifact := assemble.RenderHTML(tmpl, sorted)
	p.complete(ctx, taskID, req.Owner, artifact, sorted)
}

func (p *Pipeline) executeMonitor(ctx context.Context, taskID string, req Request) {
	p.update(ctx, taskID, ProgressUpdate("fetching remote data"))

	input := scrape.BuildMonitorInput(req.URL, 35, req.WindowStart)
	records, err := p.fetcher.Run(ctx, scrape.ActorTikTok, input)
	if err != nil {
		p.fail(ctx, taskID, err.Error())
		return
	}
	telemetry.ScrapeRecords.Add(float64(len(records)))

	records = scrape.FilterWindow(records, req.WindowStart, req.WindowEnd)
	if len(records) == 0 {
		p.fail(ctx, taskID, "no public content found")
		return
	}

	p.update(ctx, taskID, ProgressUpdate("summarizing activity"))
	summary, tokens, err := p.summarizer.Summarize(ctx, records)
	p.recordUsage(ctx, req.Owner, taskID, tokens)
	if err != nil {
		p.fail(ctx, taskID, err.Error())
		return
	}
	p.complete(ctx, taskID, req.Owner, summary, nil)
}

// fetchBatches runs the scrape stage and splits the fetched text into
// classification batches.
func (p *Pipeline) fetchBatches(ctx context.Context, taskID, url string, maxComments int) ([][]string, error) {
	p.update(ctx, taskID, ProgressUpdate("fetching remote data"))

	if maxComments <= 0 {
		maxComments = p.maxComments
	}
	actor := scrape.ActorForURL(url)
	records, err := p.fetcher.Run(ctx, actor, scrape.BuildInput(actor, url, maxComments))
	if err != nil {
		return nil, err
	}
	telemetry.ScrapeRecords.Add(float64(len(records)))

	var entries []string
	for _, r := range records {
		if r.Text != "" {
			entries = append(entries, r.Text)
		}
	}
	if len(entries) == 0 {
		return nil, errors.New("no public content found")
	}
	return classify.SplitBatches(entries, p.batchSize), nil
}

func (p *Pipeline) complete(ctx context.Context, taskID, owner, artifact string, items []classify.Item) {
	if p.results != nil {
		if err := p.results.Save(ctx, results.New(owner, taskID, artifact, items)); err != nil {
			p.logger.Error("failed to persist result", "task_id", taskID, "error", err)
		}
	}
	if err := p.update(ctx, taskID, CompletionUpdate(artifact)); err != nil {
		p.logger.Error("failed to complete task", "task_id", taskID, "error", err)
		return
	}
	telemetry.TasksFinished.WithLabelValues(string(StatusCompleted)).Inc()
	p.logger.Info("task completed", "task_id", taskID)
}

func (p *Pipeline) fail(ctx context.Context, taskID, msg string) {
	if err := p.update(ctx, taskID, FailureUpdate(msg)); err != nil {
		p.logger.Error("failed to mark task failed", "task_id", taskID, "error", err)
		return
	}
	telemetry.TasksFinished.WithLabelValues(string(StatusFailed)).Inc()
	p.logger.Warn("task failed", "task_id", taskID, "error", msg)
}

func (p *Pipeline) update(ctx context.Context, taskID string, u Update) error {
	return p.store.Update(ctx, taskID, u)
}

func (p *Pipeline) recordUsage(ctx context.Context, owner, taskID string, tokens int) {
	if p.usage == nil || tokens == 0 {
		return
	}
	telemetry.LLMTokens.WithLabelValues(p.provider).Add(float64(tokens))
	// Provider responses split tokens; the pipeline only sees the
	// total, so it is recorded as completion tokens.
	e := usage.NewEntry(owner, taskID, p.provider, p.model, 0, tokens)
	if err := p.usage.Record(ctx, e); err != nil {
		p.logger.Error("failed to record usage", "task_id", taskID, "error", err)
	}
}

func statusPtr(s Status) *Status { return &s }
func strPtr(s string) *string    { return &s }
