// Package scheduler periodically triggers ingestion and bulletin synthesis
// on a running API server.
package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"news-digest/pkg/domain"
	"news-digest/pkg/httpclient"
	"news-digest/pkg/metrics"
)

const (
	TaskIngest   = "get_all_news"
	TaskBulletin = "create_bulletin"

	ingestPath   = "/v1/get_all_news"
	bulletinPath = "/v1/create_bulletin"
	loginPath    = "/v1/admin/login"
)

var (
	ErrIngestionFailed = errors.New("ingestion call failed")
	ErrBulletinFailed  = errors.New("bulletin call failed")
	ErrStopped         = errors.New("scheduler stopped")
)

// State is the scheduler's position in its loop.
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running-cycle"
	}
	return "idle"
}

// Config controls the trigger loop.
type Config struct {
	BaseURL           string
	Interval          time.Duration
	RunOnStartup      bool
	DelayBetweenTasks time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	ErrorPause        time.Duration
	BulletinHours     int
	BulletinLimit     int
	BulletinSources   []string

	// Token is sent as a bearer token. When empty and Username is set the
	// scheduler logs in and caches the issued token.
	Token    string
	Username string
	Password string
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSleep replaces the wait between the ingestion and bulletin calls.
func WithSleep(sleep SleepFunc) Option {
	return func(s *Scheduler) { s.sleep = sleep }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// Scheduler runs cycles of ingestion followed by bulletin synthesis.
type Scheduler struct {
	cfg    Config
	client *httpclient.HTTPClient
	logger *slog.Logger
	sleep  SleepFunc

	onRetry func(task string, next time.Duration)

	state    atomic.Int32
	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once

	tokenMu sync.Mutex
	token   string
}

// New creates a scheduler calling the API at cfg.BaseURL through client.
func New(cfg Config, client *httpclient.HTTPClient, opts ...Option) *Scheduler {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	s := &Scheduler{
		cfg:    cfg,
		client: client,
		logger: slog.Default(),
		sleep:  sleepContext,
		stopCh: make(chan struct{}),
		token:  cfg.Token,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State reports whether a cycle is in progress.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Stop ends the loop before its next cycle. A call already in flight is
// allowed to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		close(s.stopCh)
	})
}

// Run executes cycles until ctx is cancelled or Stop is called.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"interval", s.cfg.Interval,
		"run_on_startup", s.cfg.RunOnStartup,
		"bulletin_hours", s.cfg.BulletinHours,
		"bulletin_limit", s.cfg.BulletinLimit)

	if s.cfg.RunOnStartup && !s.stopped.Load() {
		s.runGuarded(ctx)
	}

	for {
		if s.stopped.Load() {
			s.logger.Info("scheduler stopped")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		s.logger.Info("next cycle scheduled", "at", time.Now().Add(s.cfg.Interval).Format(time.DateTime))
		if err := s.wait(ctx, s.cfg.Interval); err != nil {
			if errors.Is(err, ErrStopped) {
				s.logger.Info("scheduler stopped")
				return nil
			}
			return err
		}
		if s.stopped.Load() {
			continue
		}
		s.runGuarded(ctx)
	}
}

// wait blocks for d, returning early on stop or cancellation.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-s.stopCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runGuarded runs one cycle. Failed calls are logged and the loop moves on;
// anything else pauses the loop for ErrorPause.
func (s *Scheduler) runGuarded(ctx context.Context) {
	err := s.safeCycle(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrIngestionFailed), errors.Is(err, ErrBulletinFailed):
		s.logger.Warn("cycle failed", "error", err)
	case ctx.Err() != nil:
	default:
		s.logger.Error("scheduler loop error, pausing", "error", err, "pause", s.cfg.ErrorPause)
		if err := s.wait(ctx, s.cfg.ErrorPause); err != nil {
			s.logger.Debug("error pause interrupted", "error", err)
		}
	}
}

func (s *Scheduler) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	return s.RunCycle(ctx)
}

// RunCycle runs one ingestion call and, if it succeeded, one bulletin call.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	s.state.Store(int32(StateRunning))
	defer s.state.Store(int32(StateIdle))

	start := time.Now()
	s.logger.Info("cycle started")
	defer func() {
		s.logger.Info("cycle ended", "duration", time.Since(start).Round(time.Millisecond))
	}()

	if err := s.runIngestion(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrIngestionFailed, err)
	}

	if err := s.sleep(ctx, s.cfg.DelayBetweenTasks); err != nil {
		return err
	}

	if err := s.runBulletin(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrBulletinFailed, err)
	}

	s.logger.Info("cycle completed", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (s *Scheduler) runIngestion(ctx context.Context) error {
	data, err := s.call(ctx, TaskIngest, http.MethodGet, ingestPath, nil)
	if err != nil {
		return err
	}

	var summary domain.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		s.logger.Warn("unreadable ingestion summary", "error", err)
		return nil
	}
	s.logger.Info("ingestion completed",
		"successful_sources", summary.Summary.SuccessfulSources,
		"total_sources", summary.Summary.TotalSources,
		"total_articles", summary.Summary.TotalArticles,
		"execution_time_seconds", summary.ExecutionTimeSeconds)
	return nil
}

type bulletinSummary struct {
	Status       string   `json:"status"`
	ArticlesUsed int      `json:"articles_processed"`
	SourcesUsed  []string `json:"sources_used"`
}

func (s *Scheduler) runBulletin(ctx context.Context) error {
	q := url.Values{}
	q.Set("hours", strconv.Itoa(s.cfg.BulletinHours))
	q.Set("limit", strconv.Itoa(s.cfg.BulletinLimit))
	for _, src := range s.cfg.BulletinSources {
		q.Add("sources", src)
	}

	data, err := s.call(ctx, TaskBulletin, http.MethodPost, bulletinPath, q)
	if err != nil {
		return err
	}

	var summary bulletinSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		s.logger.Warn("unreadable bulletin summary", "error", err)
		return nil
	}
	s.logger.Info("bulletin completed",
		"status", summary.Status,
		"articles_processed", summary.ArticlesUsed,
		"sources_used", len(summary.SourcesUsed))
	return nil
}

// call performs one triggered request with up to MaxRetries attempts and a
// constant delay between them.
func (s *Scheduler) call(ctx context.Context, task, method, path string, query url.Values) (json.RawMessage, error) {
	attempt := 0
	op := func() (json.RawMessage, error) {
		attempt++
		s.logger.Info("calling api", "task", task, "method", method, "path", path, "attempt", attempt)
		data, err := s.do(ctx, method, path, query)
		if err != nil {
			s.logger.Warn("api call attempt failed", "task", task, "attempt", attempt, "error", err)
		}
		return data, err
	}

	notify := func(_ error, next time.Duration) {
		metrics.RecordSchedulerRetry(task)
		s.logger.Info("retrying api call", "task", task, "retry_in", next)
		if s.onRetry != nil {
			s.onRetry(task, next)
		}
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(s.cfg.RetryDelay)),
		backoff.WithMaxTries(uint(s.cfg.MaxRetries)),
		backoff.WithNotify(notify),
		backoff.WithMaxElapsedTime(s.retryBudget()),
	}

	data, err := backoff.Retry(ctx, op, opts...)
	if err != nil {
		metrics.RecordSchedulerCall(task, "error")
		s.logger.Error("all api call attempts failed", "task", task, "path", path, "attempts", attempt)
		return nil, err
	}
	metrics.RecordSchedulerCall(task, "success")
	return data, nil
}

// retryBudget bounds the whole retried call so the library's default
// elapsed-time cap never cuts attempts short.
func (s *Scheduler) retryBudget() time.Duration {
	timeout := s.client.HTTP().Timeout
	if timeout <= 0 {
		timeout = time.Hour
	}
	// one extra delay of slack for the time spent outside the request itself
	return time.Duration(s.cfg.MaxRetries+1) * (timeout + s.cfg.RetryDelay)
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

func (s *Scheduler) do(ctx context.Context, method, path string, query url.Values) (json.RawMessage, error) {
	token, err := s.authToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	env, status, err := s.send(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized && s.cfg.Token == "" {
		s.clearToken()
	}
	// a rejected static token stays rejected
	if s.cfg.Token != "" && (status == http.StatusUnauthorized || status == http.StatusForbidden) {
		return nil, backoff.Permanent(fmt.Errorf("status %d: %s", status, env.Message))
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", status, env.Message)
	}
	return env.Data, nil
}

func (s *Scheduler) send(req *http.Request) (envelope, int, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return envelope{}, 0, fmt.Errorf("failed to call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, resp.StatusCode, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	return env, resp.StatusCode, nil
}

func (s *Scheduler) authToken(ctx context.Context) (string, error) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	if s.token != "" || s.cfg.Username == "" {
		return s.token, nil
	}

	payload, err := json.Marshal(map[string]string{
		"username": s.cfg.Username,
		"password": s.cfg.Password,
	})
	if err != nil {
		return "", err
	}
	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + loginPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	env, status, err := s.send(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("login: status %d: %s", status, env.Message)
	}

	var login struct {
		Token string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &login); err != nil || login.Token == "" {
		return "", fmt.Errorf("login: no token in response")
	}

	s.token = login.Token
	s.logger.Info("scheduler logged in", "username", s.cfg.Username)
	return s.token, nil
}

func (s *Scheduler) clearToken() {
	s.tokenMu.Lock()
	s.token = ""
	s.tokenMu.Unlock()
}
