// Package sources holds the per-source adapters that turn a seed address into
// raw article records.
package sources

import (
	"context"
	"fmt"
	"log/slog"

	"news-digest/pkg/domain"
	"news-digest/pkg/httpclient"
)

// Adapter fetches raw articles for one source. Missing optional fields are left
// empty; an error means the whole source could not be read.
type Adapter interface {
	Fetch(ctx context.Context, seed string) ([]domain.RawArticle, error)
}

// AdapterFunc lets a plain function serve as an Adapter.
type AdapterFunc func(ctx context.Context, seed string) ([]domain.RawArticle, error)

func (f AdapterFunc) Fetch(ctx context.Context, seed string) ([]domain.RawArticle, error) {
	return f(ctx, seed)
}

// Kind names an adapter implementation.
type Kind string

const (
	KindRSS     Kind = "rss"
	KindPage    Kind = "page"
	KindSitemap Kind = "sitemap"
)

// Options tune the scraping adapters. Zero values pick defaults.
type Options struct {
	// MaxArticles caps how many article pages a page or sitemap source fetches.
	MaxArticles int
	// Concurrency bounds parallel article fetches within one source.
	Concurrency int
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxArticles <= 0 {
		o.MaxArticles = 20
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// New returns the adapter for kind.
func New(kind Kind, client *httpclient.HTTPClient, opts Options) (Adapter, error) {
	opts = opts.withDefaults()
	switch kind {
	case KindRSS:
		return NewRSSAdapter(client), nil
	case KindPage:
		return NewPageAdapter(client, opts), nil
	case KindSitemap:
		return NewSitemapAdapter(client, opts), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}

// ValidKind reports whether New accepts kind.
func ValidKind(kind string) bool {
	switch Kind(kind) {
	case KindRSS, KindPage, KindSitemap:
		return true
	}
	return false
}
