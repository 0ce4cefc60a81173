package replication

import (
	"context"
	"crypto/md5"
	"database/sql"
	"fmt"
	"strings"

	"news-digest/pkg/db"
	"news-digest/pkg/domain"
)

// TableName is the mirror table in both SQL and REST mode.
const TableName = "news_article"

// SQLTarget writes through a database/sql handle.
type SQLTarget struct {
	provider db.SQLProvider
}

func NewSQLTarget(provider db.SQLProvider) *SQLTarget {
	return &SQLTarget{provider: provider}
}

func (t *SQLTarget) db() (*sql.DB, error) {
	if t.provider == nil || t.provider.DB() == nil {
		return nil, fmt.Errorf("postgres DB not connected")
	}
	return t.provider.DB(), nil
}

func (t *SQLTarget) EnsureSchema(ctx context.Context) error {
	conn, err := t.db()
	if err != nil {
		return err
	}

	// published_time stays without a zone, matching the stored wall clock.
	const ddl = `
CREATE TABLE IF NOT EXISTS ` + TableName + ` (
  url TEXT PRIMARY KEY,
  title TEXT,
  media TEXT,
  published_time TIMESTAMP,
  author TEXT,
  content TEXT,
  source TEXT NOT NULL DEFAULT 'unknown',
  mongo_id TEXT,
  mirrored_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS ` + TableName + `_published_idx ON ` + TableName + ` (published_time DESC);`

	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create %s table: %w", TableName, err)
	}
	return nil
}

func (t *SQLTarget) ExistingURLs(ctx context.Context, urls []string) (map[string]bool, error) {
	conn, err := t.db()
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return map[string]bool{}, nil
	}

	query, args := buildURLInQuery(urls)
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query existing urls: %w", err)
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		if url != "" {
			set[url] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return set, nil
}

// buildURLInQuery builds the IN query for urls. The leading comment makes the
// text unique per batch so parallel batches never share a cached statement.
func buildURLInQuery(urls []string) (string, []any) {
	var hashSuffix string
	if len(urls) > 0 {
		hash := md5.Sum([]byte(urls[0]))
		hashSuffix = fmt.Sprintf("%x", hash[:4])
	}

	var b strings.Builder
	fmt.Fprintf(&b, `/* q_%d_%s */ SELECT url FROM %s WHERE url IN (`, len(urls), hashSuffix, TableName)
	args := make([]any, len(urls))
	for i, url := range urls {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i+1)
		args[i] = url
	}
	b.WriteString(")")
	return b.String(), args
}

// InsertArticles inserts a batch in one transaction, ignoring URLs that
// appeared since the existence check.
func (t *SQLTarget) InsertArticles(ctx context.Context, batch []domain.Article) error {
	conn, err := t.db()
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insertQuery = `
INSERT INTO ` + TableName + ` (url, title, media, published_time, author, content, source, mongo_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (url) DO NOTHING`

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range batch {
		if a.URL == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, a.URL, a.Title, a.Media, a.PublishedTime, a.Author, a.Content, a.Source, mongoID(a)); err != nil {
			return fmt.Errorf("insert article url=%q: %w", a.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func mongoID(a domain.Article) *string {
	if a.ID.IsZero() {
		return nil
	}
	id := a.ID.Hex()
	return &id
}
