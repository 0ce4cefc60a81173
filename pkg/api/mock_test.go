package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"news-digest/pkg/bulletin"
	"news-digest/pkg/db"
	"news-digest/pkg/domain"
)

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) QueryByWindow(ctx context.Context, q db.WindowQuery) ([]domain.Article, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Article), args.Error(1)
}

func (m *MockStore) CountArticles(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) StatsBySource(ctx context.Context) ([]domain.SourceCount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SourceCount), args.Error(1)
}

func (m *MockStore) CountDuplicateURLs(ctx context.Context) ([]domain.DuplicateURL, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DuplicateURL), args.Error(1)
}

func (m *MockStore) PruneDuplicates(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) QueryBulletins(ctx context.Context, q db.BulletinQuery) ([]domain.Bulletin, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Bulletin), args.Error(1)
}

func (m *MockStore) QueryBulletinsPage(ctx context.Context, page, pageSize int) (domain.BulletinPage, error) {
	args := m.Called(ctx, page, pageSize)
	return args.Get(0).(domain.BulletinPage), args.Error(1)
}

func (m *MockStore) LatestBulletin(ctx context.Context) (*domain.Bulletin, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bulletin), args.Error(1)
}

func (m *MockStore) BulletinStats(ctx context.Context) (domain.BulletinStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.BulletinStats), args.Error(1)
}

// MockSynthesizer is a mock implementation of Synthesizer
type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Candidates(ctx context.Context, req bulletin.Request) ([]domain.Article, []domain.Article, error) {
	args := m.Called(ctx, req)
	var found, usable []domain.Article
	if v := args.Get(0); v != nil {
		found = v.([]domain.Article)
	}
	if v := args.Get(1); v != nil {
		usable = v.([]domain.Article)
	}
	return found, usable, args.Error(2)
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, req bulletin.Request) (bulletin.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(bulletin.Result), args.Error(1)
}
