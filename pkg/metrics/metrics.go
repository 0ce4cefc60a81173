// Package metrics provides Prometheus metrics for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "newsdigest"

var (
	// SourceFetchTotal counts per-source collection attempts.
	SourceFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetch_total",
			Help:      "Total number of source collection attempts",
		},
		[]string{"source", "status"},
	)

	// SourceFetchDuration measures how long one source takes to collect and store.
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Duration of source collection in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// ArticlesTotal counts stored articles by outcome (upserted, modified, skipped, failed).
	ArticlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_total",
			Help:      "Total number of articles by write outcome",
		},
		[]string{"source", "outcome"},
	)

	// BulletinsTotal counts synthesis runs by result.
	BulletinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulletins_total",
			Help:      "Total number of bulletin synthesis runs",
		},
		[]string{"status"},
	)

	// SchedulerCallsTotal counts outbound scheduler calls after retries.
	SchedulerCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_calls_total",
			Help:      "Total number of scheduler trigger calls",
		},
		[]string{"task", "status"},
	)

	// SchedulerRetriesTotal counts retry waits taken by the scheduler.
	SchedulerRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_retries_total",
			Help:      "Total number of scheduler retry waits",
		},
		[]string{"task"},
	)
)

// RecordSourceFetch records one source collection.
func RecordSourceFetch(source, status string, duration float64) {
	SourceFetchTotal.WithLabelValues(source, status).Inc()
	SourceFetchDuration.WithLabelValues(source).Observe(duration)
}

// RecordBatch records the write counts of one source batch.
func RecordBatch(source string, upserted, modified int64, skipped, failed int) {
	ArticlesTotal.WithLabelValues(source, "upserted").Add(float64(upserted))
	ArticlesTotal.WithLabelValues(source, "modified").Add(float64(modified))
	ArticlesTotal.WithLabelValues(source, "skipped").Add(float64(skipped))
	ArticlesTotal.WithLabelValues(source, "failed").Add(float64(failed))
}

// RecordBulletin records a synthesis run.
func RecordBulletin(status string) {
	BulletinsTotal.WithLabelValues(status).Inc()
}

// RecordSchedulerCall records the final result of a scheduler call.
func RecordSchedulerCall(task, status string) {
	SchedulerCallsTotal.WithLabelValues(task, status).Inc()
}

// RecordSchedulerRetry records one retry wait.
func RecordSchedulerRetry(task string) {
	SchedulerRetriesTotal.WithLabelValues(task).Inc()
}
