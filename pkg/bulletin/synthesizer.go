// Package bulletin selects recent content-complete articles and turns them
// into a stored bulletin.
package bulletin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"news-digest/pkg/db"
	"news-digest/pkg/domain"
	"news-digest/pkg/llm"
	"news-digest/pkg/metrics"
)

var (
	ErrInvalidHours = errors.New("hours must be greater than 0")
	ErrInvalidLimit = errors.New("limit must be greater than 0")
	// ErrSynthesis wraps generator failures.
	ErrSynthesis = errors.New("bulletin synthesis failed")
)

// Status distinguishes the non-error outcomes of a synthesis run.
type Status string

const (
	StatusCreated         Status = "created"
	StatusNotFound        Status = "not_found"
	StatusNoUsableContent Status = "no_usable_content"
	// StatusNotSaved means text was generated but the bulletin could not be stored.
	StatusNotSaved Status = "not_saved"
)

// Store is the persistence the synthesizer reads from and writes to.
type Store interface {
	QueryByWindow(ctx context.Context, q db.WindowQuery) ([]domain.Article, error)
	SaveBulletin(ctx context.Context, content string, meta domain.BulletinMetadata, used []domain.Article) domain.SaveResult
}

// Generator writes bulletin text for a set of articles.
type Generator interface {
	Generate(ctx context.Context, articles []llm.Article) (llm.Result, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, articles []llm.Article) (llm.Result, error)

func (f GeneratorFunc) Generate(ctx context.Context, articles []llm.Article) (llm.Result, error) {
	return f(ctx, articles)
}

// Request selects the window a bulletin is built from. Empty Sources means all.
type Request struct {
	Hours   int
	Sources []string
	Limit   int
}

func (r Request) validate() error {
	if r.Hours <= 0 {
		return ErrInvalidHours
	}
	if r.Limit <= 0 {
		return ErrInvalidLimit
	}
	return nil
}

func (r Request) filterInfo() domain.FilterInfo {
	sources := r.Sources
	if sources == nil {
		sources = []string{}
	}
	return domain.FilterInfo{Hours: r.Hours, Sources: sources, Limit: r.Limit}
}

// Result describes one synthesis run.
type Result struct {
	Status        Status             `json:"status"`
	Bulletin      string             `json:"bulletin,omitempty"`
	ArticlesFound int                `json:"total_found_in_db"`
	ArticlesUsed  int                `json:"articles_processed"`
	SourcesUsed   []string           `json:"sources_used"`
	GeneratedAt   *time.Time         `json:"generated_at,omitempty"`
	Filter        domain.FilterInfo  `json:"filter_info"`
	Save          *domain.SaveResult `json:"db_save_result,omitempty"`
}

// Synthesizer builds bulletins.
type Synthesizer struct {
	store     Store
	generator Generator
	logger    *slog.Logger
	now       func() time.Time
}

// NewSynthesizer creates a new synthesizer
func NewSynthesizer(store Store, generator Generator, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		store:     store,
		generator: generator,
		logger:    logger,
		now:       time.Now,
	}
}

// Candidates returns the articles found in the window and the content-complete
// subset of them.
func (s *Synthesizer) Candidates(ctx context.Context, req Request) (found, usable []domain.Article, err error) {
	if err := req.validate(); err != nil {
		return nil, nil, err
	}

	from := s.now().Add(-time.Duration(req.Hours) * time.Hour)
	found, err = s.store.QueryByWindow(ctx, db.WindowQuery{
		From:    &from,
		Sources: req.Sources,
		Limit:   req.Limit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("query articles: %w", err)
	}

	usable = make([]domain.Article, 0, len(found))
	for _, a := range found {
		if a.ContentComplete() {
			usable = append(usable, a)
		}
	}
	return found, usable, nil
}

// Synthesize builds and stores one bulletin from the last req.Hours hours.
// Validation errors and ErrSynthesis are returned as errors; an empty window
// or a window without usable articles is reported through Result.Status and
// never reaches the generator.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (Result, error) {
	result := Result{Filter: req.filterInfo(), SourcesUsed: []string{}}

	found, usable, err := s.Candidates(ctx, req)
	if err != nil {
		return result, err
	}
	result.ArticlesFound = len(found)

	if len(found) == 0 {
		result.Status = StatusNotFound
		metrics.RecordBulletin(string(result.Status))
		return result, nil
	}
	if len(usable) == 0 {
		result.Status = StatusNoUsableContent
		metrics.RecordBulletin(string(result.Status))
		return result, nil
	}

	generated, err := s.generator.Generate(ctx, toLLMArticles(usable))
	if err != nil {
		metrics.RecordBulletin("error")
		s.logger.Error("bulletin generation failed", "articles", len(usable), "error", err)
		return result, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	result.Bulletin = generated.Text
	result.ArticlesUsed = len(usable)
	if generated.SourcesUsed != nil {
		result.SourcesUsed = generated.SourcesUsed
	}
	generatedAt := generated.GeneratedAt
	result.GeneratedAt = &generatedAt

	save := s.store.SaveBulletin(ctx, generated.Text, domain.BulletinMetadata{
		TotalFoundInDB: len(found),
		SourcesUsed:    result.SourcesUsed,
		GeneratedAt:    generatedAt,
		FilterInfo:     result.Filter,
	}, usable)
	result.Save = &save

	if !save.Success {
		result.Status = StatusNotSaved
		metrics.RecordBulletin(string(result.Status))
		s.logger.Error("bulletin generated but not saved", "error", save.Error)
		return result, nil
	}

	result.Status = StatusCreated
	metrics.RecordBulletin(string(result.Status))
	s.logger.Info("bulletin created",
		"bulletin_id", save.BulletinID,
		"articles_processed", len(usable),
		"total_found", len(found),
		"sources_count", len(result.SourcesUsed))
	return result, nil
}

func toLLMArticles(articles []domain.Article) []llm.Article {
	out := make([]llm.Article, 0, len(articles))
	for _, a := range articles {
		out = append(out, llm.Article{
			Title:         deref(a.Title),
			Content:       deref(a.Content),
			Source:        a.Source,
			URL:           a.URL,
			Author:        deref(a.Author),
			PublishedTime: a.PublishedTime,
		})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
