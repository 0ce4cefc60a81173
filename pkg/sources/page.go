package sources

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"news-digest/pkg/domain"
	"news-digest/pkg/httpclient"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

// PageAdapter scrapes a listing page and then each linked article page.
type PageAdapter struct {
	client *httpclient.HTTPClient
	opts   Options
}

// NewPageAdapter creates a new listing page scraper
func NewPageAdapter(client *httpclient.HTTPClient, opts Options) *PageAdapter {
	return &PageAdapter{client: client, opts: opts.withDefaults()}
}

// Fetch reads the listing page at listingURL. A listing page that cannot be
// fetched fails the source; individual article pages that fail are skipped.
func (a *PageAdapter) Fetch(ctx context.Context, listingURL string) ([]domain.RawArticle, error) {
	body, err := a.client.Fetch(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	links := discoverLinks(doc, listingURL)
	if len(links) == 0 {
		return nil, fmt.Errorf("no article URLs found on %s", listingURL)
	}
	if len(links) > a.opts.MaxArticles {
		links = links[:a.opts.MaxArticles]
	}

	return scrapeArticles(ctx, a.client, links, a.opts.Concurrency, a.opts.Logger), nil
}

// scrapeArticles fetches every page with at most limit requests in flight.
// Results keep the order of pages; failed pages are dropped.
func scrapeArticles(ctx context.Context, client *httpclient.HTTPClient, pages []string, limit int, logger *slog.Logger) []domain.RawArticle {
	results := make([]*domain.RawArticle, len(pages))
	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, pageURL := range pages {
		g.Go(func() error {
			raw, err := scrapeArticle(gctx, client, pageURL)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				logger.Debug("skipping article page", "url", pageURL, "error", err)
				return nil
			}
			results[i] = &raw
			return nil
		})
	}
	_ = g.Wait()

	if failed > 0 {
		logger.Warn("some article pages failed", "failed", failed, "total", len(pages))
	}

	articles := make([]domain.RawArticle, 0, len(pages))
	for _, r := range results {
		if r != nil {
			articles = append(articles, *r)
		}
	}
	return articles
}

func scrapeArticle(ctx context.Context, client *httpclient.HTTPClient, pageURL string) (domain.RawArticle, error) {
	body, err := client.Fetch(ctx, pageURL)
	if err != nil {
		return domain.RawArticle{}, err
	}
	return ExtractArticle(string(body), pageURL)
}
