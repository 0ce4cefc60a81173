package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"news-digest/pkg/bulletin"
	"news-digest/pkg/db"
	"news-digest/pkg/domain"
)

const (
	defaultNewsLimit     = 100
	maxNewsLimit         = 1000
	defaultBulletinHours = 24
	defaultBulletinsList = 20
	maxBulletinsList     = 100
	defaultPageSize      = 10
)

func (s *Server) health(c echo.Context) error {
	return respond(c, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, err)
	}
	if req.Username == "" {
		req.Username = c.QueryParam("username")
	}
	if req.Password == "" {
		req.Password = c.QueryParam("password")
	}

	if err := s.credentials.Check(req.Username, req.Password); err != nil {
		s.logger.Warn("admin login rejected", "username", req.Username)
		return respondError(c, http.StatusUnauthorized, err)
	}

	token, expiresAt, err := s.tokens.Sign(req.Username)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, err)
	}

	s.logger.Info("admin logged in", "username", req.Username)
	return respond(c, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}

func (s *Server) listSources(c echo.Context) error {
	return respond(c, http.StatusOK, s.sources)
}

func (s *Server) getAllNews(c echo.Context) error {
	summary := s.ingest(c.Request().Context())
	return respond(c, http.StatusOK, summary)
}

// news returns stored articles in a publication-time window. When neither
// bound is given, hours (if set) opens the window that far back from now.
func (s *Server) news(c echo.Context) error {
	from, err := timeParam(c, "from")
	if err != nil {
		return respondError(c, http.StatusBadRequest, err)
	}
	to, err := timeParam(c, "to")
	if err != nil {
		return respondError(c, http.StatusBadRequest, err)
	}
	hours, err := intParam(c, "hours", 0)
	if err != nil {
		return respondError(c, http.StatusBadRequest, err)
	}
	limit, err := intParam(c, "limit", defaultNewsLimit)
	if err != nil {
		return respondError(c, http.StatusBadRequest, err)
	}
	if limit < 1 || limit > maxNewsLimit {
		return respondError(c, http.StatusBadRequest, fmt.Errorf("limit must be between 1 and %d", maxNewsLimit))
	}
	if hours < 0 {
		return respondError(c, http.StatusBadRequest, bulletin.ErrInvalidHours)
	}
	if from == nil && to == nil && hours > 0 {
		f := s.now().Add(-time.Duration(hours) * time.Hour)
		from = &f
	}

	articles, err := s.store.QueryByWindow(c.Request().Context(), db.WindowQuery{
		From:    from,
		To:      to,
		Sources: sourcesParam(c),
		Limit:   limit,
	})
	if err != nil {
		return respondError(c, http.StatusInternalServerError, err)
	}
	return respond(c, http.StatusOK, articles)
}

func (s *Server) bulletinRequest(c echo.Context, defHours, defLimit int) (bulletin.Request, error) {
	hours, err := intParam(c, "hours", defHours)
	if err != nil {
		return bulletin.Request{}, err
	}
	limit, err := intParam(c, "limit", defLimit)
	if err != nil {
		return bulletin.Request{}, err
	}
	return bulletin.Request{Hours: hours, Limit: limit, Sources: sourcesParam(c)}, nil
}

type bulletinArticle struct {
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Source        string     `json:"source"`
	URL           string     `json:"url"`
	PublishedTime *time.Time `json:"published_time"`
	Author        string     `json:"author"`
}

type candidateStats struct {
	SourcesFound        []string `json:"sources_found"`
	ArticlesWithContent int      `json:"articles_with_content"`
	TotalFoundInDB      int      `json:"total_found_in_db"`
}

type candidatesResponse struct {
	TotalArticles int               `json:"total_articles"`
	Articles      []bulletinArticle `json:"articles"`
	FilterInfo    domain.FilterInfo `json:"filter_info"`
	Statistics    candidateStats    `json:"statistics"`
}

// newsForBulletin returns the content-complete articles a bulletin would be
// built from, without generating one.
func (s *Server) newsForBulletin(c echo.Context) error {
	req, err := s.bulletinRequest(c, s.defaults.NewsHours, s.defaults.NewsLimit)
	if err != nil {
		return respondError(c, http.StatusBadRequest, err)
	}

	found, usable, err := s.synthesizer.Candidates(c.Request().Context(), req)
	switch {
	case isValidation(err):
		return respondError(c, http.StatusBadRequest, err)
	case err != nil:
		return respondError(c, http.StatusInternalServerError, err)
	}

	sources := req.Sources
	if sources == nil {
		sources = []string{}
	}
	out := candidatesResponse{
		Articles:   make([]bulletinArticle, 0, len(usable)),
		FilterInfo: domain.FilterInfo{Hours: req.Hours, Sources: sources, Limit: req.Limit},
		Statistics: candidateStats{SourcesFound: []string{}, TotalFoundInDB: len(found)},
	}

	seen := make(map[string]bool)
	for _, a := range usable {
		out.Articles = append(out.Articles, bulletinArticle{
			Title:         deref(a.Title),
			Content:       deref(a.Content),
			Source:        a.Source,
			URL:           a.URL,
			PublishedTime: a.PublishedTime,
			Author:        deref(a.Author),
		})
		if !seen[a.Source] {
			seen[a.Source] = true
			out.Statistics.SourcesFound = append(out.Statistics.SourcesFound, a.Source)
		}
	}
	out.TotalArticles = len(out.Articles)
	out.Statistics.ArticlesWithContent = len(out.Articles)

	if len(found) == 0 {
		return respond(c, http.StatusNotFound, out)
	}
	return respond(c, http.StatusOK, out)
}

func (s *Server) createBulletin(c echo.Context) error {
	req, err := s.bulletinRequest(c, s.defaults.BulletinHours, s.defaults.BulletinLimit)
	if err != nil {
		return respondError(c, http.StatusBadRequest, err)
	}

	result, err := s.synthesizer.Synthesize(c.Request().Context(), req)
	switch {
	case isValidation(err):
		return respondError(c, http.StatusBadRequest, err)
	case errors.Is(err, bulletin.ErrSynthesis):
		return respond(c, http.StatusInternalServerError, synthesisFailure{Result: result, Error: err.Error()})
	case err != nil:
		return respondError(c, http.StatusInternalServerError, err)
	}

	switch result.Status {
	case bulletin.StatusNotFound:
		return respond(c, http.StatusNotFound, result)
	case bulletin.StatusNoUsableContent:
		return respond(c, http.StatusBadRequest, result)
	case bulletin.StatusNotSaved:
		return respond(c, http.StatusInternalServerError, result)
	default:
		return respond(c, http.StatusOK, result)
	}
}

type synthesisFailure struct {
	bulletin.Result
	Error string `json:"error"`
}

func isValidation(err error) bool {
	return errors.Is(err, bulletin.ErrInvalidHours) || errors.Is(err, bulletin.ErrInvalidLimit)
}

// bulletins lists stored bulletins. Without from/to the window is the last
// hours hours.
func (s *Server) bulletins(c echo.Context) error {
	from, err := timeParam(c, "from")
	if err != nil {
		return respondError(c, http.StatusBadRequest, err)
	}
	to, err := timeParam(c, "to")
	if err != nil {
		return respondError(c, http.StatusBadRequest, err)
	}
	hours, err := intParam(c, "hours", defaultBulletinHours)
	if err != nil {
		return respondError(c, http.StatusBadRequest, err)
	}
	if hours <= 0 {
		return respondError(c, http.StatusBadRequest, bulletin.ErrInvalidHours)
	}
	limit, err := intParam(c, "limit", defaultBulletinsList)
	if err != nil {
		return respondError(c, http.StatusBadRequest, err)
	}
	if limit < 1 || limit > maxBulletinsList {
		return respondError(c, http.StatusBadRequest, fmt.Errorf("limit must be between 1 and %d", maxBulletinsList))
	}
	if from == nil && to == nil {
		f := s.now().Add(-time.Duration(hours) * time.Hour)
		from = &f
	}

	list, err := s.store.QueryBulletins(c.Request().Context(), db.BulletinQuery{
		From:  from,
		To:    to,
		Limit: limit,
		Sort:  sortParam(c),
	})
	if err != nil {
		return respondError(c, http.StatusInternalServerError, err)
	}
	return respond(c, http.StatusOK, list)
}

func (s *Server) bulletinsPage(c echo.Context) error {
	page, err := intParam(c, "page", 1)
	if err != nil {
		return respondError(c, http.StatusBadRequest, err)
	}
	size, err := intParam(c, "page_size", defaultPageSize)
	if err != nil {
		return respondError(c, http.StatusBadRequest, err)
	}
	if page < 1 || size < 1 || size > maxBulletinsList {
		return respondError(c, http.StatusBadRequest, fmt.Errorf("page must be positive and page_size between 1 and %d", maxBulletinsList))
	}

	out, err := s.store.QueryBulletinsPage(c.Request().Context(), page, size)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, err)
	}
	return respond(c, http.StatusOK, out)
}

func (s *Server) latestBulletin(c echo.Context) error {
	b, err := s.store.LatestBulletin(c.Request().Context())
	switch {
	case errors.Is(err, db.ErrNotFound):
		return respond(c, http.StatusNotFound, nil)
	case err != nil:
		return respondError(c, http.StatusInternalServerError, err)
	}
	return respond(c, http.StatusOK, b)
}

func (s *Server) bulletinStats(c echo.Context) error {
	stats, err := s.store.BulletinStats(c.Request().Context())
	if err != nil {
		return respondError(c, http.StatusInternalServerError, err)
	}
	return respond(c, http.StatusOK, stats)
}

type articleStats struct {
	Total    int64                `json:"total"`
	BySource []domain.SourceCount `json:"by_source"`
}

func (s *Server) articleStats(c echo.Context) error {
	ctx := c.Request().Context()
	total, err := s.store.CountArticles(ctx)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, err)
	}
	bySource, err := s.store.StatsBySource(ctx)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, err)
	}
	if bySource == nil {
		bySource = []domain.SourceCount{}
	}
	return respond(c, http.StatusOK, articleStats{Total: total, BySource: bySource})
}

type duplicatesResponse struct {
	TotalDuplicates int                   `json:"total_duplicates"`
	Duplicates      []domain.DuplicateURL `json:"duplicates"`
}

func (s *Server) duplicates(c echo.Context) error {
	dups, err := s.store.CountDuplicateURLs(c.Request().Context())
	if err != nil {
		return respondError(c, http.StatusInternalServerError, err)
	}
	if dups == nil {
		dups = []domain.DuplicateURL{}
	}
	return respond(c, http.StatusOK, duplicatesResponse{TotalDuplicates: len(dups), Duplicates: dups})
}

func (s *Server) pruneDuplicates(c echo.Context) error {
	deleted, err := s.store.PruneDuplicates(c.Request().Context())
	if err != nil {
		return respondError(c, http.StatusInternalServerError, err)
	}
	s.logger.Info("pruned duplicate articles", "deleted", deleted)
	return respond(c, http.StatusOK, map[string]int64{"deleted": deleted})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
