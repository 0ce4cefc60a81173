// Package collector runs every configured source concurrently and stores what
// each one returns.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"news-digest/pkg/domain"
	"news-digest/pkg/metrics"
	"news-digest/pkg/sources"
)

// DefaultWorkers is the number of sources collected at once when unset.
const DefaultWorkers = 6

// Source is one configured source: a name, its seed address and the adapter
// that reads it.
type Source struct {
	Name    string
	Seed    string
	Adapter sources.Adapter
}

// Store persists one source's raw articles.
type Store interface {
	UpsertBatch(ctx context.Context, source string, items []domain.RawArticle) domain.BatchResult
}

// Collector distributes sources to a fixed pool of workers.
type Collector struct {
	workerCount int
	store       Store
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewCollector creates a new collector. timeout bounds each source's fetch;
// zero leaves it to the caller's context.
func NewCollector(workerCount int, store Store, timeout time.Duration, logger *slog.Logger) *Collector {
	if workerCount <= 0 {
		workerCount = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		workerCount: workerCount,
		store:       store,
		timeout:     timeout,
		logger:      logger,
		now:         time.Now,
	}
}

// CollectAll runs every source and waits for all of them. A failing or slow
// source never cancels another; its failure is reported in its outcome.
func (c *Collector) CollectAll(ctx context.Context, srcs []Source) domain.RunSummary {
	start := c.now()

	type job struct {
		index  int
		source Source
	}
	type result struct {
		index    int
		workerID int
		outcome  domain.IngestionOutcome
	}

	jobChan := make(chan job, len(srcs))
	for i, src := range srcs {
		jobChan <- job{index: i, source: src}
	}
	close(jobChan)

	resultsChan := make(chan result, len(srcs))

	workers := c.workerCount
	if workers > len(srcs) {
		workers = len(srcs)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := range jobChan {
				resultsChan <- result{
					index:    j.index,
					workerID: workerID,
					outcome:  c.collect(ctx, j.source),
				}
			}
		}(i)
	}

	// Close results channel when all workers finish
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	// single reader, so no locking while aggregating
	outcomes := make([]domain.IngestionOutcome, len(srcs))
	for res := range resultsChan {
		outcomes[res.index] = res.outcome
		if res.outcome.Status == domain.StatusError {
			c.logger.Warn("source failed",
				"source", res.outcome.Source, "worker_id", res.workerID, "error", res.outcome.Error)
		} else {
			c.logger.Info("source collected",
				"source", res.outcome.Source, "worker_id", res.workerID, "count", res.outcome.Count)
		}
	}

	summary := Summarize(outcomes)
	summary.ExecutionTimeSeconds = c.now().Sub(start).Seconds()

	c.logger.Info("collection completed",
		"total_sources", summary.Summary.TotalSources,
		"successful_sources", summary.Summary.SuccessfulSources,
		"failed_sources", summary.Summary.FailedSources,
		"total_articles", summary.Summary.TotalArticles,
		"elapsed_seconds", summary.ExecutionTimeSeconds)
	return summary
}

// collect runs one source: fetch, then store. Adapter errors and panics become
// an error outcome.
func (c *Collector) collect(ctx context.Context, src Source) (outcome domain.IngestionOutcome) {
	start := c.now()
	outcome = domain.IngestionOutcome{Source: src.Name, Status: domain.StatusError}

	defer func() {
		if r := recover(); r != nil {
			outcome = domain.IngestionOutcome{
				Source: src.Name,
				Status: domain.StatusError,
				Error:  fmt.Sprintf("adapter panic: %v", r),
			}
		}
		metrics.RecordSourceFetch(src.Name, string(outcome.Status), c.now().Sub(start).Seconds())
	}()

	if src.Adapter == nil {
		outcome.Error = "no adapter configured"
		return outcome
	}

	fetchCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	items, err := src.Adapter.Fetch(fetchCtx, src.Seed)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	batch := c.store.UpsertBatch(ctx, src.Name, items)
	metrics.RecordBatch(src.Name, batch.Upserted, batch.Modified, len(batch.SkippedItems), len(batch.IndividualErrors))

	return domain.IngestionOutcome{
		Source: src.Name,
		Count:  len(items),
		Status: domain.StatusSuccess,
		DB:     &batch,
	}
}

// Summarize folds per-source outcomes into run totals.
func Summarize(outcomes []domain.IngestionOutcome) domain.RunSummary {
	summary := domain.RunSummary{
		Results: outcomes,
		DatabaseSummary: domain.DatabaseSummary{
			SourcesWithErrors: []domain.SourceErrors{},
		},
	}
	summary.Summary.TotalSources = len(outcomes)

	for _, o := range outcomes {
		if o.Status != domain.StatusSuccess {
			summary.Summary.FailedSources++
			continue
		}
		summary.Summary.SuccessfulSources++
		summary.Summary.TotalArticles += o.Count

		if o.DB == nil {
			continue
		}
		db := &summary.DatabaseSummary
		db.TotalMatched += o.DB.Matched
		db.TotalUpserted += o.DB.Upserted
		db.TotalModified += o.DB.Modified
		db.TotalProcessed += o.DB.ProcessedItems
		db.TotalSkipped += len(o.DB.SkippedItems)
		if o.DB.HasProblems() {
			db.SourcesWithErrors = append(db.SourcesWithErrors, domain.SourceErrors{
				Source:           o.Source,
				SkippedItems:     len(o.DB.SkippedItems),
				BulkErrors:       len(o.DB.BulkWriteErrors),
				IndividualErrors: len(o.DB.IndividualErrors),
			})
		}
	}
	return summary
}
