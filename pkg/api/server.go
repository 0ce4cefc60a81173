// Package api exposes ingestion, bulletin synthesis and read access over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"news-digest/pkg/auth"
	"news-digest/pkg/bulletin"
	"news-digest/pkg/db"
	"news-digest/pkg/domain"
)

// Store is the read side of persistence used by the handlers.
type Store interface {
	QueryByWindow(ctx context.Context, q db.WindowQuery) ([]domain.Article, error)
	CountArticles(ctx context.Context) (int64, error)
	StatsBySource(ctx context.Context) ([]domain.SourceCount, error)
	CountDuplicateURLs(ctx context.Context) ([]domain.DuplicateURL, error)
	PruneDuplicates(ctx context.Context) (int64, error)
	QueryBulletins(ctx context.Context, q db.BulletinQuery) ([]domain.Bulletin, error)
	QueryBulletinsPage(ctx context.Context, page, pageSize int) (domain.BulletinPage, error)
	LatestBulletin(ctx context.Context) (*domain.Bulletin, error)
	BulletinStats(ctx context.Context) (domain.BulletinStats, error)
}

// Synthesizer builds bulletins and exposes the articles it would use.
type Synthesizer interface {
	Candidates(ctx context.Context, req bulletin.Request) (found, usable []domain.Article, err error)
	Synthesize(ctx context.Context, req bulletin.Request) (bulletin.Result, error)
}

// IngestFunc runs one collection pass over every configured source.
type IngestFunc func(ctx context.Context) domain.RunSummary

// SourceInfo describes a configured source for clients.
type SourceInfo struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	URL    string `json:"url"`
	Avatar string `json:"avatar,omitempty"`
}

// Defaults are the window parameters used when a request omits them.
type Defaults struct {
	BulletinHours int
	BulletinLimit int
	NewsHours     int
	NewsLimit     int
}

type Options struct {
	Store       Store
	Synthesizer Synthesizer
	Ingest      IngestFunc
	Tokens      auth.TokenService
	Credentials auth.Credentials
	Sources     []SourceInfo
	Defaults    Defaults
	Logger      *slog.Logger
}

// Server wires the handlers onto an echo instance.
type Server struct {
	echo        *echo.Echo
	store       Store
	synthesizer Synthesizer
	ingest      IngestFunc
	tokens      auth.TokenService
	credentials auth.Credentials
	sources     []SourceInfo
	defaults    Defaults
	logger      *slog.Logger
	now         func() time.Time
}

// NewServer creates the server and registers every route.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sources == nil {
		opts.Sources = []SourceInfo{}
	}

	s := &Server{
		echo:        echo.New(),
		store:       opts.Store,
		synthesizer: opts.Synthesizer,
		ingest:      opts.Ingest,
		tokens:      opts.Tokens,
		credentials: opts.Credentials,
		sources:     opts.Sources,
		defaults:    opts.Defaults,
		logger:      opts.Logger,
		now:         time.Now,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogError:   true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				s.logger.Info("request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				s.logger.Error("request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	v1.POST("/admin/login", s.login)
	v1.GET("/sources", s.listSources)
	v1.GET("/news", s.news)
	v1.GET("/news_for_bulletin", s.newsForBulletin)
	v1.GET("/bulletins", s.bulletins)
	v1.GET("/bulletins/page", s.bulletinsPage)
	v1.GET("/bulletins/latest", s.latestBulletin)
	v1.GET("/bulletins/stats", s.bulletinStats)
	v1.GET("/stats", s.articleStats)

	v1.GET("/get_all_news", s.getAllNews, s.requireAdmin)
	v1.POST("/create_bulletin", s.createBulletin, s.requireAdmin)
	v1.GET("/stats/duplicates", s.duplicates, s.requireAdmin)
	v1.POST("/stats/duplicates/prune", s.pruneDuplicates, s.requireAdmin)
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting api server", "address", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
