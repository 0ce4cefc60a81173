package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"news-digest/pkg/domain"
	"news-digest/pkg/httpclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"
  xmlns:content="http://purl.org/rss/1.0/modules/content/"
  xmlns:dc="http://purl.org/dc/elements/1.1/"
  xmlns:media="http://search.yahoo.com/mrss/">
<channel>
  <title>Test News</title>
  <item>
    <title>Bitcoin tops $70k</title>
    <link>https://news.example.com/btc-70k</link>
    <pubDate>Wed, 01 May 2024 03:30:00 +0000</pubDate>
    <dc:creator>By Jane Doe</dc:creator>
    <description>short summary</description>
    <content:encoded><![CDATA[<p>Bitcoin <b>rallied</b> today.</p><p>Analysts &amp; traders cheered.</p>]]></content:encoded>
    <media:content url="https://img.example.com/btc.jpg" medium="image"/>
  </item>
  <item>
    <title>ETH upgrade ships</title>
    <link>https://news.example.com/eth</link>
    <description><![CDATA[<img src="https://img.example.com/inline.png"/> The upgrade is live.]]></description>
    <enclosure url="https://img.example.com/eth.jpg" type="image/jpeg" length="1"/>
  </item>
  <item>
    <title>Headline only</title>
    <link>https://news.example.com/headline</link>
  </item>
</channel>
</rss>`

func TestRSSAdapter_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
	defer server.Close()

	adapter := NewRSSAdapter(httpclient.NewClient(httpclient.BrowserClient, 5*time.Second))
	items, err := adapter.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, items, 3)

	first := items[0]
	assert.Equal(t, "https://news.example.com/btc-70k", first.URL)
	assert.Equal(t, "Bitcoin tops $70k", first.Title)
	assert.Equal(t, "Bitcoin rallied today. Analysts & traders cheered.", first.Content)
	assert.Equal(t, "Jane Doe", first.Author)
	assert.Equal(t, "https://img.example.com/btc.jpg", first.Media)
	require.NotNil(t, first.PublishedAt)
	assert.Equal(t, 10, first.PublishedAt.Hour(), "feed time is converted into the storage zone")
	assert.Equal(t, domain.LocalZone, first.PublishedAt.Location())

	second := items[1]
	assert.Equal(t, "The upgrade is live.", second.Content)
	assert.Equal(t, "https://img.example.com/eth.jpg", second.Media)
	assert.Nil(t, second.PublishedAt)
	assert.Empty(t, second.Author)

	third := items[2]
	assert.Equal(t, "Headline only", third.Content)
	assert.Empty(t, third.Media)
}

func TestRSSAdapter_FetchErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			_, _ = w.Write([]byte("<html>not a feed"))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	adapter := NewRSSAdapter(httpclient.NewClient(httpclient.BrowserClient, 5*time.Second))

	_, err := adapter.Fetch(context.Background(), server.URL+"/down")
	assert.Error(t, err)

	_, err = adapter.Fetch(context.Background(), server.URL+"/broken")
	assert.Error(t, err)
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: "  hello   world ", want: "hello world"},
		{name: "blocks", in: "<p>one</p><p>two</p>", want: "one two"},
		{name: "entities", in: "Q&amp;A &#8211; today", want: "Q&A – today"},
		{name: "script dropped", in: "<script>alert(1)</script>text", want: "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, htmlToText(tt.in))
		})
	}
}

func TestNew(t *testing.T) {
	client := httpclient.NewClient(httpclient.BrowserClient, time.Second)

	for _, kind := range []Kind{KindRSS, KindPage, KindSitemap} {
		a, err := New(kind, client, Options{})
		require.NoError(t, err)
		assert.NotNil(t, a)
		assert.True(t, ValidKind(string(kind)))
	}

	_, err := New("carrier-pigeon", client, Options{})
	assert.Error(t, err)
	assert.False(t, ValidKind("carrier-pigeon"))
}
