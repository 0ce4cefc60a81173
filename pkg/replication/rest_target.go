package replication

import (
	"context"
	"fmt"

	supabase "github.com/supabase-community/supabase-go"

	"news-digest/pkg/domain"
)

// naiveLayout renders stored wall-clock times without an offset.
const naiveLayout = "2006-01-02T15:04:05"

// RESTTarget writes through the Supabase REST API when no direct database
// connection is available. The table must already exist.
type RESTTarget struct {
	client *supabase.Client
}

func NewRESTTarget(client *supabase.Client) *RESTTarget {
	return &RESTTarget{client: client}
}

type mirrorRow struct {
	URL           string  `json:"url"`
	Title         *string `json:"title"`
	Media         *string `json:"media"`
	PublishedTime *string `json:"published_time"`
	Author        *string `json:"author"`
	Content       *string `json:"content"`
	Source        string  `json:"source"`
	MongoID       *string `json:"mongo_id"`
}

func toMirrorRow(a domain.Article) mirrorRow {
	row := mirrorRow{
		URL:     a.URL,
		Title:   a.Title,
		Media:   a.Media,
		Author:  a.Author,
		Content: a.Content,
		Source:  a.Source,
		MongoID: mongoID(a),
	}
	if a.PublishedTime != nil {
		ts := a.PublishedTime.UTC().Format(naiveLayout)
		row.PublishedTime = &ts
	}
	return row
}

func (t *RESTTarget) EnsureSchema(ctx context.Context) error {
	if t.client == nil {
		return fmt.Errorf("supabase SDK not initialized")
	}
	return nil
}

func (t *RESTTarget) ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	set := make(map[string]bool)
	if len(urls) == 0 {
		return set, nil
	}

	var rows []struct {
		URL string `json:"url"`
	}
	if _, err := t.client.From(TableName).Select("url", "", false).In("url", urls).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("query existing urls: %w", err)
	}
	for _, r := range rows {
		if r.URL != "" {
			set[r.URL] = true
		}
	}
	return set, nil
}

func (t *RESTTarget) InsertArticles(ctx context.Context, batch []domain.Article) error {
	rows := make([]mirrorRow, 0, len(batch))
	for _, a := range batch {
		if a.URL != "" {
			rows = append(rows, toMirrorRow(a))
		}
	}
	if len(rows) == 0 {
		return nil
	}

	if _, _, err := t.client.From(TableName).Insert(rows, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("insert %d rows: %w", len(rows), err)
	}
	return nil
}
