package sources

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// discoverLinks extracts article URLs from a listing page using common HTML
// patterns, trying each strategy in turn:
// 1. Links within <article> tags
// 2. Links within <main> content area
// 3. Links with common article-related classes and headings
// 4. All links excluding navigation, footer, header (last resort)
// Only links on the listing page's host are kept.
func discoverLinks(doc *goquery.Document, pageURL string) []string {
	baseURL := getBaseURL(doc, pageURL)
	host := hostOf(pageURL)

	var result []string
	seen := make(map[string]bool)
	add := func(i int, link *goquery.Selection) {
		if u := extractLink(link, baseURL, seen); u != "" && hostOf(u) == host {
			result = append(result, u)
		}
	}

	doc.Find("article a").Each(add)

	if len(result) == 0 {
		doc.Find("main a").Each(add)
	}

	articleSelectors := []string{
		"a.entry-title",
		"a.post-title",
		"a.article-link",
		"a.article-title",
		"h2 a", "h3 a",
		".entry-title a",
		".post-title a",
		".article-title a",
	}
	for _, selector := range articleSelectors {
		doc.Find(selector).Each(add)
	}

	if len(result) == 0 {
		doc.Find("body a").Not("nav a, header a, footer a, .nav a, .header a, .footer a, .menu a, .sidebar a").
			Each(func(i int, link *goquery.Selection) {
				if u := extractLink(link, baseURL, seen); u != "" && hostOf(u) == host && isContentLink(u) {
					result = append(result, u)
				}
			})
	}

	// neither the listing page itself nor the site root is an article
	filtered := result[:0]
	for _, u := range result {
		if strings.TrimSuffix(u, "/") != strings.TrimSuffix(pageURL, "/") && !isRootURL(u) {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

func isRootURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.Trim(u.Path, "/") == ""
}

// getBaseURL resolves relative links against <base>, then the page URL itself.
func getBaseURL(doc *goquery.Document, pageURL string) string {
	if baseHref, exists := doc.Find("base").First().Attr("href"); exists && baseHref != "" {
		if resolved := normalizeURL(baseHref, pageURL); resolved != "" {
			return resolved
		}
	}
	return pageURL
}

func extractLink(link *goquery.Selection, baseURL string, seen map[string]bool) string {
	href, exists := link.Attr("href")
	if !exists || href == "" {
		return ""
	}

	// Skip anchors, javascript, mailto, etc.
	if strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	normalized := normalizeURL(href, baseURL)
	if normalized == "" || seen[normalized] {
		return ""
	}
	seen[normalized] = true
	return normalized
}

// normalizeURL resolves href against baseURL and drops the fragment.
func normalizeURL(href, baseURL string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	parsed.Fragment = ""

	if parsed.IsAbs() {
		return parsed.String()
	}

	if baseURL != "" {
		if base, err := url.Parse(baseURL); err == nil {
			resolved := base.ResolveReference(parsed)
			resolved.Fragment = ""
			return resolved.String()
		}
	}
	return ""
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// isContentLink filters out the common non-article sections of a news site.
func isContentLink(href string) bool {
	skipPatterns := []string{
		"/tag/", "/tags/", "/category/", "/author/", "/archive/",
		"/page/", "/search", "/feed", "/rss", "/atom",
		"/login", "/register", "/about", "/contact",
		"/privacy", "/terms", "/cookie", "/newsletter",
	}

	lowerHref := strings.ToLower(href)
	for _, pattern := range skipPatterns {
		if strings.Contains(lowerHref, pattern) {
			return false
		}
	}
	return true
}
