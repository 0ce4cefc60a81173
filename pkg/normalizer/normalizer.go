// Package normalizer turns raw adapter output into the stored article shape.
package normalizer

import (
	"errors"
	"strings"
	"time"

	"news-digest/pkg/domain"
)

// UnknownSource is used when neither the caller nor the record names a source.
const UnknownSource = "unknown"

var (
	// ErrNoUsableURL is returned when a record has no URL after trimming.
	ErrNoUsableURL = errors.New("no usable url")
	// ErrMissingTitle marks an article that cannot be stored for lack of a title.
	ErrMissingTitle = errors.New("missing title")
)

// textual timestamps must carry an explicit offset or a trailing Z
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
}

// Normalize converts raw into an Article. A non-empty source overrides the
// record's own source. Malformed optional fields degrade to nil; only a missing
// URL is reported as an error.
func Normalize(raw domain.RawArticle, source string) (domain.Article, error) {
	article := domain.Article{
		URL:           strings.TrimSpace(raw.URL),
		Title:         optional(raw.Title),
		Media:         optional(raw.Media),
		Author:        optional(raw.Author),
		Content:       optional(raw.Content),
		PublishedTime: publishedTime(raw),
		Source:        pickSource(source, raw.Source),
	}
	if article.URL == "" {
		return article, ErrNoUsableURL
	}
	return article, nil
}

// Storable reports why a normalized article must not be persisted, if at all.
func Storable(article domain.Article) error {
	if article.URL == "" {
		return ErrNoUsableURL
	}
	if article.Title == nil {
		return ErrMissingTitle
	}
	return nil
}

// ParseTimestamp parses an ISO-8601 timestamp with an explicit offset and
// returns its wall-clock fields with the offset discarded.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "T") {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.Naive(t), true
		}
	}
	return time.Time{}, false
}

func publishedTime(raw domain.RawArticle) *time.Time {
	if raw.PublishedAt != nil && !raw.PublishedAt.IsZero() {
		t := domain.Naive(*raw.PublishedAt)
		return &t
	}
	if raw.PublishedRaw == "" {
		return nil
	}
	t, ok := ParseTimestamp(raw.PublishedRaw)
	if !ok {
		return nil
	}
	return &t
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func pickSource(override, recorded string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	if s := strings.TrimSpace(recorded); s != "" {
		return s
	}
	return UnknownSource
}
