package sources

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"news-digest/pkg/domain"
	"news-digest/pkg/httpclient"
)

// sitemapEntry represents a single URL entry in a sitemap
type sitemapEntry struct {
	Location string `xml:"loc"`
	LastMod  string `xml:"lastmod"`
}

type urlSet struct {
	XMLName xml.Name       `xml:"urlset"`
	URLs    []sitemapEntry `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

// SitemapAdapter reads a news sitemap (or a sitemap index one level deep) and
// scrapes the most recently modified pages.
type SitemapAdapter struct {
	client *httpclient.HTTPClient
	opts   Options
}

// NewSitemapAdapter creates a new sitemap source
func NewSitemapAdapter(client *httpclient.HTTPClient, opts Options) *SitemapAdapter {
	return &SitemapAdapter{client: client, opts: opts.withDefaults()}
}

// Fetch reads the sitemap at sitemapURL and scrapes its newest entries.
func (a *SitemapAdapter) Fetch(ctx context.Context, sitemapURL string) ([]domain.RawArticle, error) {
	entries, err := a.entries(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("sitemap %s has no entries", sitemapURL)
	}

	// W3C dates compare correctly as strings; entries without lastmod sort last
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastMod > entries[j].LastMod
	})
	if len(entries) > a.opts.MaxArticles {
		entries = entries[:a.opts.MaxArticles]
	}

	pages := make([]string, 0, len(entries))
	for _, e := range entries {
		pages = append(pages, e.Location)
	}
	return scrapeArticles(ctx, a.client, pages, a.opts.Concurrency, a.opts.Logger), nil
}

func (a *SitemapAdapter) entries(ctx context.Context, sitemapURL string) ([]sitemapEntry, error) {
	body, err := a.client.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap: %w", err)
	}

	// Check if it's a sitemap index first
	if bytes.Contains(body, []byte("<sitemapindex")) {
		children, err := parseSitemapIndex(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		var all []sitemapEntry
		for _, child := range children {
			childBody, err := a.client.Fetch(ctx, child)
			if err != nil {
				a.opts.Logger.Warn("failed to fetch child sitemap", "url", child, "error", err)
				continue
			}
			entries, err := parseSitemap(bytes.NewReader(childBody))
			if err != nil {
				a.opts.Logger.Warn("failed to parse child sitemap", "url", child, "error", err)
				continue
			}
			all = append(all, entries...)
		}
		return all, nil
	}

	return parseSitemap(bytes.NewReader(body))
}

// parseSitemapIndex parses a sitemap index and returns the child sitemap URLs
func parseSitemapIndex(reader io.Reader) ([]string, error) {
	var index sitemapIndex
	if err := xml.NewDecoder(reader).Decode(&index); err != nil {
		return nil, fmt.Errorf("failed to decode sitemap index: %w", err)
	}

	urls := make([]string, 0, len(index.Sitemaps))
	for _, s := range index.Sitemaps {
		if loc := strings.TrimSpace(s.Location); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

// parseSitemap parses a regular sitemap
func parseSitemap(reader io.Reader) ([]sitemapEntry, error) {
	var set urlSet
	if err := xml.NewDecoder(reader).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode sitemap: %w", err)
	}

	entries := make([]sitemapEntry, 0, len(set.URLs))
	for _, u := range set.URLs {
		loc := strings.TrimSpace(u.Location)
		if loc == "" {
			continue
		}
		entries = append(entries, sitemapEntry{Location: loc, LastMod: strings.TrimSpace(u.LastMod)})
	}
	return entries, nil
}
