package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"news-digest/pkg/domain"
	"news-digest/pkg/httpclient"

	"github.com/mmcdole/gofeed"
)

// RSSAdapter reads RSS and Atom feeds.
type RSSAdapter struct {
	client *httpclient.HTTPClient
	parser *gofeed.Parser
}

// NewRSSAdapter creates a new feed adapter
func NewRSSAdapter(client *httpclient.HTTPClient) *RSSAdapter {
	return &RSSAdapter{
		client: client,
		parser: gofeed.NewParser(),
	}
}

// Fetch downloads and parses the feed at feedURL
func (a *RSSAdapter) Fetch(ctx context.Context, feedURL string) ([]domain.RawArticle, error) {
	body, err := a.client.Fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	feed, err := a.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed: %w", err)
	}

	articles := make([]domain.RawArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		articles = append(articles, itemToRaw(item))
	}
	return articles, nil
}

func itemToRaw(item *gofeed.Item) domain.RawArticle {
	raw := domain.RawArticle{
		URL:    strings.TrimSpace(item.Link),
		Title:  htmlToText(item.Title),
		Author: itemAuthor(item),
		Media:  itemMedia(item),
	}

	switch {
	case item.Content != "":
		raw.Content = htmlToText(item.Content)
	case item.Description != "":
		raw.Content = htmlToText(item.Description)
	default:
		raw.Content = raw.Title
	}

	if t := itemTime(item); t != nil {
		local := t.In(domain.LocalZone)
		raw.PublishedAt = &local
	}
	return raw
}

func itemTime(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

func itemAuthor(item *gofeed.Item) string {
	var names []string
	for _, p := range item.Authors {
		if p == nil {
			continue
		}
		if name := stripByline(p.Name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) > 0 {
		return strings.Join(names, ", ")
	}

	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		return stripByline(item.DublinCoreExt.Creator[0])
	}
	return ""
}

// stripByline drops a leading "By " from an author credit.
func stripByline(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > 3 && strings.EqualFold(name[:3], "by ") {
		name = strings.TrimSpace(name[3:])
	}
	return name
}

func itemMedia(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, key := range []string{"content", "thumbnail"} {
			for _, e := range media[key] {
				if u := strings.TrimSpace(e.Attrs["url"]); u != "" {
					return u
				}
			}
		}
		// media:group wraps media:content in some feeds
		for _, g := range media["group"] {
			for _, e := range g.Children["content"] {
				if u := strings.TrimSpace(e.Attrs["url"]); u != "" {
					return u
				}
			}
		}
	}

	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}

	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	if src := firstImage(item.Content); src != "" {
		return src
	}
	return firstImage(item.Description)
}
