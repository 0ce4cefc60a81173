package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"news-digest/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func strPtr(s string) *string { return &s }

func TestSaveBulletin_ReferencesAndImageComeFromUsedArticles(t *testing.T) {
	bulletins := newFakeCollection()
	c := newClient(nil, bulletins)
	c.now = func() time.Time { return time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC) }
	var pickedFrom int
	c.pick = func(n int) int { pickedFrom = n; return n - 1 }

	used := []domain.Article{
		{URL: "https://example.com/a"},
		{URL: "https://example.com/b", Media: strPtr("https://img/b.png")},
		{URL: "https://example.com/c", Media: strPtr("")},
		{URL: "https://example.com/d", Media: strPtr("https://img/d.png")},
	}
	meta := domain.BulletinMetadata{
		TotalFoundInDB: 9,
		SourcesUsed:    []string{"alpha", "beta"},
		FilterInfo:     domain.FilterInfo{Hours: 8, Limit: 20},
	}

	res := c.SaveBulletin(context.Background(), "digest text", meta, used)

	require.True(t, res.Success, res.Error)
	assert.True(t, strings.HasPrefix(res.BulletinID, "bulletin_"))
	assert.NotEmpty(t, res.InsertedID)
	assert.Equal(t, []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
		"https://example.com/d",
	}, res.References)
	assert.Equal(t, 2, pickedFrom)
	require.NotNil(t, res.ImageURL)
	assert.Equal(t, "https://img/d.png", *res.ImageURL)
	assert.Equal(t, 4, res.ArticlesProcessed)
	assert.Equal(t, 2, res.SourcesCount)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), res.CreatedAt)

	require.Len(t, bulletins.inserted, 1)
	doc := bulletins.inserted[0].(domain.Bulletin)
	assert.Equal(t, domain.BulletinType, doc.Type)
	assert.Equal(t, "digest text", doc.Content)
	assert.Equal(t, res.References, doc.References)
	assert.True(t, doc.Metadata.Success)
	assert.Equal(t, 9, doc.Metadata.TotalFoundInDB)
	assert.Equal(t, 8, doc.Metadata.FilterInfo.Hours)
}

func TestSaveBulletin_NoMediaGivesNilImage(t *testing.T) {
	bulletins := newFakeCollection()
	c := newClient(nil, bulletins)
	c.pick = func(n int) int {
		t.Fatal("pick must not be called without media")
		return 0
	}

	res := c.SaveBulletin(context.Background(), "text", domain.BulletinMetadata{}, []domain.Article{{URL: "A"}, {URL: "B"}})

	require.True(t, res.Success)
	assert.Nil(t, res.ImageURL)
	assert.Equal(t, []string{"A", "B"}, res.References)
}

func TestSaveBulletin_WriteFailureIsReported(t *testing.T) {
	bulletins := newFakeCollection()
	bulletins.insertErr = errors.New("not primary")
	c := newClient(nil, bulletins)

	res := c.SaveBulletin(context.Background(), "text", domain.BulletinMetadata{}, []domain.Article{{URL: "A"}})

	assert.False(t, res.Success)
	assert.Equal(t, "not primary", res.Error)
	assert.Empty(t, res.BulletinID)
}

func TestSaveBulletin_IDsAreUnique(t *testing.T) {
	c := newClient(nil, newFakeCollection())

	first := c.SaveBulletin(context.Background(), "one", domain.BulletinMetadata{}, nil)
	second := c.SaveBulletin(context.Background(), "two", domain.BulletinMetadata{}, nil)

	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.NotEqual(t, first.BulletinID, second.BulletinID)
	assert.Empty(t, first.References)
}

func TestQueryBulletins_Filter(t *testing.T) {
	bulletins := newFakeCollection()
	bulletins.findDocs = []interface{}{
		domain.Bulletin{BulletinID: "bulletin_1", Content: "x", CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
	}
	c := newClient(nil, bulletins)
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	got, err := c.QueryBulletins(context.Background(), BulletinQuery{From: &from, Limit: 10, Sort: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bulletin_1", got[0].BulletinID)

	require.Len(t, bulletins.findFilters, 1)
	assert.Equal(t, bson.M{"created_at": bson.M{"$gte": time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)}}, bulletins.findFilters[0])
	assert.Equal(t, bson.D{{Key: "created_at", Value: 1}}, bulletins.findOpts[0].Sort)
}

func TestQueryBulletinsPage(t *testing.T) {
	bulletins := newFakeCollection()
	bulletins.count = 25
	c := newClient(nil, bulletins)

	page, err := c.QueryBulletinsPage(context.Background(), 3, 10)
	require.NoError(t, err)

	assert.Equal(t, int64(25), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, bulletins.findOpts, 1)
	assert.Equal(t, int64(20), *bulletins.findOpts[0].Skip)
	assert.Equal(t, int64(10), *bulletins.findOpts[0].Limit)
}

func TestLatestBulletin_NotFound(t *testing.T) {
	c := newClient(nil, newFakeCollection())

	_, err := c.LatestBulletin(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}
