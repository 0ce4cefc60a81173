// Package replication mirrors stored news articles into a relational database.
package replication

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"news-digest/pkg/domain"
)

const (
	DefaultBatchSize = 500
	DefaultWorkers   = 4
)

// Source reads every stored article.
type Source interface {
	GetAllArticles(ctx context.Context) ([]domain.Article, error)
}

// Target is a relational mirror keyed by article URL.
type Target interface {
	EnsureSchema(ctx context.Context) error
	ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error)
	InsertArticles(ctx context.Context, batch []domain.Article) error
}

// Config wires the replication dependencies.
type Config struct {
	Source    Source
	Target    Target
	BatchSize int
	Workers   int
	Logger    *slog.Logger
}

// Stats reports one replication run.
type Stats struct {
	Loaded    int
	Processed int
	Inserted  int
}

// Replicator copies articles whose URL is not yet present in the target.
type Replicator struct {
	source    Source
	target    Target
	batchSize int
	workers   int
	logger    *slog.Logger
}

func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("article source is required")
	}
	if cfg.Target == nil {
		return nil, fmt.Errorf("mirror target is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Replicator{
		source:    cfg.Source,
		target:    cfg.Target,
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
		logger:    cfg.Logger,
	}, nil
}

// Replicate reads all articles and inserts the new ones in batches processed
// in parallel. The first failing batch aborts the run.
func (r *Replicator) Replicate(ctx context.Context) (Stats, error) {
	if err := r.target.EnsureSchema(ctx); err != nil {
		return Stats{}, err
	}

	articles, err := r.source.GetAllArticles(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("read articles: %w", err)
	}
	r.logger.Info("loaded articles for replication", "count", len(articles), "batch_size", r.batchSize)

	stats, err := r.processBatches(ctx, articles)
	stats.Loaded = len(articles)
	if err != nil {
		return stats, err
	}

	r.logger.Info("replication complete", "processed", stats.Processed, "inserted", stats.Inserted)
	return stats, nil
}

type batchJob struct {
	batch      []domain.Article
	start, end int
}

type batchResult struct {
	processed int
	inserted  int
	err       error
}

func (r *Replicator) processBatches(ctx context.Context, articles []domain.Article) (Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	numBatches := (len(articles) + r.batchSize - 1) / r.batchSize
	jobs := make(chan batchJob, numBatches)
	results := make(chan batchResult, numBatches)

	for start := 0; start < len(articles); start += r.batchSize {
		end := min(start+r.batchSize, len(articles))
		jobs <- batchJob{batch: articles[start:end], start: start, end: end}
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					results <- batchResult{err: ctx.Err()}
					continue
				}
				inserted, err := r.processBatch(ctx, job)
				results <- batchResult{processed: len(job.batch), inserted: inserted, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var stats Stats
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
				cancel()
			}
			continue
		}
		stats.Processed += res.processed
		stats.Inserted += res.inserted
		if stats.Processed%1000 == 0 {
			r.logger.Info("replication progress", "processed", stats.Processed, "total", len(articles), "inserted", stats.Inserted)
		}
	}
	return stats, firstErr
}

// processBatch checks which URLs already exist and inserts the rest.
func (r *Replicator) processBatch(ctx context.Context, job batchJob) (int, error) {
	urls := extractURLs(job.batch)
	if len(urls) == 0 {
		return 0, nil
	}

	existing, err := r.target.ExistingURLs(ctx, urls)
	if err != nil {
		return 0, fmt.Errorf("check existing URLs for batch [%d:%d]: %w", job.start, job.end, err)
	}

	toInsert := filterNewArticlesByURL(job.batch, existing)
	r.logger.Debug("processing batch",
		"start", job.start,
		"end", job.end,
		"existing", len(existing),
		"new", len(toInsert))
	if len(toInsert) == 0 {
		return 0, nil
	}

	if err := r.target.InsertArticles(ctx, toInsert); err != nil {
		return 0, fmt.Errorf("insert batch [%d:%d]: %w", job.start, job.end, err)
	}
	return len(toInsert), nil
}

// extractURLs returns the distinct non-empty URLs of a batch.
func extractURLs(batch []domain.Article) []string {
	seen := make(map[string]bool, len(batch))
	urls := make([]string, 0, len(batch))
	for _, a := range batch {
		if a.URL == "" || seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		urls = append(urls, a.URL)
	}
	return urls
}

// filterNewArticlesByURL drops articles without a URL, already present, or
// repeated within the batch.
func filterNewArticlesByURL(all []domain.Article, existing map[string]bool) []domain.Article {
	seen := make(map[string]bool, len(all))
	out := make([]domain.Article, 0, len(all))
	for _, a := range all {
		if a.URL == "" || existing[a.URL] || seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		out = append(out, a)
	}
	return out
}
