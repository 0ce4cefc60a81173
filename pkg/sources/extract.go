package sources

import (
	"fmt"
	"net/url"
	"strings"

	"news-digest/pkg/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// ExtractArticle builds a raw article from a fetched article page.
func ExtractArticle(htmlContent, pageURL string) (domain.RawArticle, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return domain.RawArticle{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	raw := domain.RawArticle{URL: canonicalURL(doc, pageURL)}

	var base *url.URL
	if parsed, err := url.Parse(pageURL); err == nil {
		base = parsed
	}

	article, err := readability.FromReader(strings.NewReader(htmlContent), base)
	if err == nil {
		raw.Title = strings.TrimSpace(article.Title)
		raw.Content = strings.Join(strings.Fields(article.TextContent), " ")
		raw.Author = strings.TrimSpace(article.Byline)
		raw.Media = strings.TrimSpace(article.Image)
	}

	if raw.Title == "" {
		raw.Title = titleFromDocument(doc)
	}
	if raw.Media == "" {
		raw.Media = metaContent(doc, "meta[property='og:image']", "meta[name='twitter:image']")
	}
	if raw.Author == "" {
		raw.Author = metaContent(doc, "meta[name='author']", "meta[property='article:author']")
	}
	raw.PublishedRaw = metaContent(doc,
		"meta[property='article:published_time']",
		"meta[name='pubdate']",
		"meta[itemprop='datePublished']",
	)
	if raw.PublishedRaw == "" {
		raw.PublishedRaw, _ = doc.Find("time[datetime]").First().Attr("datetime")
	}

	return raw, nil
}

// titleFromDocument tries the common title locations in order
func titleFromDocument(doc *goquery.Document) string {
	if title := metaContent(doc, "meta[property='og:title']"); title != "" {
		return title
	}
	// Try <h1> tag (often the main heading)
	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		return title
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return metaContent(doc, "meta[name='title']")
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func canonicalURL(doc *goquery.Document, pageURL string) string {
	if href, ok := doc.Find("link[rel='canonical']").First().Attr("href"); ok {
		if resolved := normalizeURL(href, pageURL); resolved != "" {
			if u, err := url.Parse(resolved); err == nil && u.IsAbs() {
				return resolved
			}
		}
	}
	return pageURL
}
