// Package telemetry exposes Prometheus metrics for the task pipeline.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksSubmitted counts accepted task submissions by kind.
	TasksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_tasks_submitted_total",
		Help: "Accepted task submissions.",
	}, []string{"kind"})

	// TasksRejected counts submissions rejected by queue backpressure.
	TasksRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_tasks_rejected_total",
		Help: "Task submissions rejected because the queue was full.",
	})

	// TasksFinished counts terminal task transitions by outcome.
	TasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_tasks_finished_total",
		Help: "Tasks reaching a terminal status.",
	}, []string{"status"})

	// QueueDepth tracks the number of tasks waiting for a worker.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulse_queue_depth",
		Help: "Tasks queued and not yet picked up by a worker.",
	})

	// ScrapeRecords counts raw records fetched from the remote provider.
	ScrapeRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_scrape_records_total",
		Help: "Raw records fetched from scrape runs.",
	})

	// LLMTokens counts model tokens consumed, by provider.
	LLMTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_llm_tokens_total",
		Help: "Model tokens consumed by classification calls.",
	}, []string{"provider"})

	// BatchParseFailures counts classification batches dropped because
	// the model response could not be parsed.
	BatchParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_batch_parse_failures_total",
		Help: "Classification batches dropped due to unparseable responses.",
	})

	// StaleTasksSwept counts processing tasks forced to failed by the
	// staleness sweep.
	StaleTasksSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_stale_tasks_swept_total",
		Help: "Orphaned processing tasks failed by the staleness sweep.",
	})

	// TaskDuration observes end-to-end task runtime by outcome. Buckets
	// span quick upload-only tasks through scrape-bound ones that ride
	// the full wait budget.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulse_task_duration_seconds",
		Help:    "Task runtime from submission to terminal status.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"status"})
)
