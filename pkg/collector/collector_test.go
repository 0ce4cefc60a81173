package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"news-digest/pkg/domain"
	"news-digest/pkg/sources"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	batches map[string][]domain.RawArticle
	skipped map[string][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		batches: map[string][]domain.RawArticle{},
		skipped: map[string][]string{},
	}
}

func (s *fakeStore) UpsertBatch(ctx context.Context, source string, items []domain.RawArticle) domain.BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[source] = items
	return domain.BatchResult{
		Source:         source,
		TotalItems:     len(items),
		ProcessedItems: len(items) - len(s.skipped[source]),
		Upserted:       int64(len(items) - len(s.skipped[source])),
		SkippedItems:   s.skipped[source],
	}
}

func itemsAdapter(n int) sources.Adapter {
	return sources.AdapterFunc(func(ctx context.Context, seed string) ([]domain.RawArticle, error) {
		items := make([]domain.RawArticle, n)
		for i := range items {
			items[i] = domain.RawArticle{URL: fmt.Sprintf("%s/%d", seed, i), Title: "t"}
		}
		return items, nil
	})
}

func failingAdapter(msg string) sources.Adapter {
	return sources.AdapterFunc(func(ctx context.Context, seed string) ([]domain.RawArticle, error) {
		return nil, errors.New(msg)
	})
}

func TestCollectAll_IsolatesFailures(t *testing.T) {
	store := newFakeStore()
	c := NewCollector(3, store, 0, nil)

	summary := c.CollectAll(context.Background(), []Source{
		{Name: "alpha", Seed: "https://alpha", Adapter: itemsAdapter(3)},
		{Name: "beta", Seed: "https://beta", Adapter: failingAdapter("dns failure")},
		{Name: "gamma", Seed: "https://gamma", Adapter: itemsAdapter(2)},
		{Name: "delta", Seed: "https://delta", Adapter: failingAdapter("503")},
		{Name: "epsilon", Seed: "https://epsilon", Adapter: itemsAdapter(4)},
	})

	assert.Equal(t, 5, summary.Summary.TotalSources)
	assert.Equal(t, 3, summary.Summary.SuccessfulSources)
	assert.Equal(t, 2, summary.Summary.FailedSources)
	assert.Equal(t, 9, summary.Summary.TotalArticles)
	assert.Equal(t, int64(9), summary.DatabaseSummary.TotalUpserted)
	assert.Equal(t, 9, summary.DatabaseSummary.TotalProcessed)
	assert.Empty(t, summary.DatabaseSummary.SourcesWithErrors)

	require.Len(t, summary.Results, 5)
	assert.Equal(t, "beta", summary.Results[1].Source)
	assert.Equal(t, domain.StatusError, summary.Results[1].Status)
	assert.Equal(t, "dns failure", summary.Results[1].Error)
	assert.Nil(t, summary.Results[1].DB)
	assert.Equal(t, domain.StatusSuccess, summary.Results[0].Status)
	require.NotNil(t, summary.Results[0].DB)

	_, stored := store.batches["beta"]
	assert.False(t, stored, "failed sources must not reach the store")
	assert.Len(t, store.batches["epsilon"], 4)
}

func TestCollectAll_ReportsSourcesWithSkips(t *testing.T) {
	store := newFakeStore()
	store.skipped["alpha"] = []string{"Item 1: Missing URL"}
	c := NewCollector(2, store, 0, nil)

	summary := c.CollectAll(context.Background(), []Source{
		{Name: "alpha", Seed: "a", Adapter: itemsAdapter(3)},
		{Name: "beta", Seed: "b", Adapter: itemsAdapter(1)},
	})

	assert.Equal(t, 1, summary.DatabaseSummary.TotalSkipped)
	assert.Equal(t, []domain.SourceErrors{{Source: "alpha", SkippedItems: 1}}, summary.DatabaseSummary.SourcesWithErrors)
}

func TestCollectAll_SlowSourceTimesOutAlone(t *testing.T) {
	store := newFakeStore()
	c := NewCollector(2, store, 50*time.Millisecond, nil)

	slow := sources.AdapterFunc(func(ctx context.Context, seed string) ([]domain.RawArticle, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	summary := c.CollectAll(context.Background(), []Source{
		{Name: "slow", Seed: "s", Adapter: slow},
		{Name: "fast", Seed: "f", Adapter: itemsAdapter(2)},
	})

	assert.Equal(t, 1, summary.Summary.SuccessfulSources)
	assert.Equal(t, 1, summary.Summary.FailedSources)
	assert.Contains(t, summary.Results[0].Error, "deadline exceeded")
	assert.Equal(t, 2, summary.Results[1].Count)
}

func TestCollectAll_RecoversAdapterPanic(t *testing.T) {
	c := NewCollector(2, newFakeStore(), 0, nil)

	boom := sources.AdapterFunc(func(ctx context.Context, seed string) ([]domain.RawArticle, error) {
		panic("unexpected markup")
	})

	summary := c.CollectAll(context.Background(), []Source{
		{Name: "boom", Seed: "b", Adapter: boom},
		{Name: "ok", Seed: "o", Adapter: itemsAdapter(1)},
		{Name: "none", Seed: "n"},
	})

	assert.Equal(t, 1, summary.Summary.SuccessfulSources)
	assert.Equal(t, 2, summary.Summary.FailedSources)
	assert.Contains(t, summary.Results[0].Error, "unexpected markup")
	assert.Equal(t, "no adapter configured", summary.Results[2].Error)
}

func TestCollectAll_BoundsConcurrency(t *testing.T) {
	var inFlight, maxInFlight int32
	adapter := sources.AdapterFunc(func(ctx context.Context, seed string) ([]domain.RawArticle, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil, nil
	})

	var srcs []Source
	for i := 0; i < 6; i++ {
		srcs = append(srcs, Source{Name: fmt.Sprintf("s%d", i), Seed: "x", Adapter: adapter})
	}

	summary := NewCollector(2, newFakeStore(), 0, nil).CollectAll(context.Background(), srcs)

	assert.Equal(t, 6, summary.Summary.SuccessfulSources)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(2))
}

func TestCollectAll_NoSources(t *testing.T) {
	summary := NewCollector(0, newFakeStore(), 0, nil).CollectAll(context.Background(), nil)
	assert.Equal(t, 0, summary.Summary.TotalSources)
	assert.Empty(t, summary.Results)
}
