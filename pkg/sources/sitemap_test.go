package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"news-digest/pkg/httpclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSitemap(t *testing.T) {
	xmlData := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url>
		<loc>https://news.example.com/post1</loc>
		<lastmod>2024-01-15</lastmod>
	</url>
	<url>
		<loc> https://news.example.com/post2 </loc>
	</url>
	<url>
		<loc></loc>
	</url>
</urlset>`

	entries, err := parseSitemap(strings.NewReader(xmlData))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, sitemapEntry{Location: "https://news.example.com/post1", LastMod: "2024-01-15"}, entries[0])
	assert.Equal(t, "https://news.example.com/post2", entries[1].Location)
}

func TestParseSitemapIndex(t *testing.T) {
	xmlData := `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<sitemap><loc>https://news.example.com/sitemap1.xml</loc></sitemap>
	<sitemap><loc>https://news.example.com/sitemap2.xml</loc></sitemap>
</sitemapindex>`

	urls, err := parseSitemapIndex(strings.NewReader(xmlData))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://news.example.com/sitemap1.xml",
		"https://news.example.com/sitemap2.xml",
	}, urls)
}

func TestSitemapAdapter_NewestFirst(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<sitemapindex><sitemap><loc>` + server.URL + `/news.xml</loc></sitemap></sitemapindex>`))
	})
	mux.HandleFunc("/news.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<urlset>
  <url><loc>` + server.URL + `/old</loc><lastmod>2024-04-01</lastmod></url>
  <url><loc>` + server.URL + `/new</loc><lastmod>2024-05-01T08:00:00+00:00</lastmod></url>
</urlset>`))
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(articlePage("Newest", "Ann", "https://img.example.com/n.jpg", "2024-05-01T08:00:00Z")))
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(articlePage("Oldest", "Ben", "https://img.example.com/o.jpg", "2024-04-01T08:00:00Z")))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	adapter := NewSitemapAdapter(httpclient.NewClient(httpclient.BrowserClient, 5*time.Second), Options{MaxArticles: 1})
	items, err := adapter.Fetch(context.Background(), server.URL+"/sitemap.xml")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Newest", items[0].Title)
}
