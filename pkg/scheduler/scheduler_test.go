package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-digest/pkg/httpclient"
)

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordedSleeps) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		Interval:          time.Hour,
		DelayBetweenTasks: time.Second,
		MaxRetries:        3,
		RetryDelay:        5 * time.Millisecond,
		ErrorPause:        time.Minute,
		BulletinHours:     3,
		BulletinLimit:     30,
		Token:             "static-token",
	}
}

const ingestOK = `{"statusCode":200,"message":"Success","count":1,"data":{"execution_time_seconds":1.5,"summary":{"total_sources":6,"successful_sources":4,"failed_sources":2,"total_articles":40}}}`
const bulletinOK = `{"statusCode":200,"message":"Success","count":1,"data":{"status":"created","articles_processed":12,"sources_used":["coindesk","decrypt"]}}`

type recordedRetries struct {
	mu    sync.Mutex
	tasks []string
	waits []time.Duration
}

func (r *recordedRetries) record(task string, next time.Duration) {
	r.mu.Lock()
	r.tasks = append(r.tasks, task)
	r.waits = append(r.waits, next)
	r.mu.Unlock()
}

func (r *recordedRetries) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

func newScheduler(t *testing.T, handler http.Handler, cfg func(*Config)) (*Scheduler, *recordedSleeps) {
	s, sleeps, _ := newSchedulerWithRetries(t, handler, cfg)
	return s, sleeps
}

func newSchedulerWithRetries(t *testing.T, handler http.Handler, cfg func(*Config)) (*Scheduler, *recordedSleeps, *recordedRetries) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := testConfig(srv.URL)
	if cfg != nil {
		cfg(&c)
	}
	sleeps := &recordedSleeps{}
	retries := &recordedRetries{}
	s := New(c, httpclient.NewClient(httpclient.APIClient, 5*time.Second), WithSleep(sleeps.sleep))
	s.onRetry = retries.record
	return s, sleeps, retries
}

func TestRunCycle_RetriesUntilSuccess(t *testing.T) {
	var ingestCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(ingestPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer static-token", r.Header.Get("Authorization"))
		if ingestCalls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"statusCode":500,"message":"Server error","count":0,"data":null}`))
			return
		}
		_, _ = w.Write([]byte(ingestOK))
	})
	mux.HandleFunc(bulletinPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(bulletinOK))
	})

	s, sleeps, retries := newSchedulerWithRetries(t, mux, nil)

	require.NoError(t, s.RunCycle(context.Background()))
	assert.Equal(t, int32(3), ingestCalls.Load())

	assert.Equal(t, []time.Duration{5 * time.Millisecond, 5 * time.Millisecond}, retries.all())
	assert.Equal(t, []string{TaskIngest, TaskIngest}, retries.tasks)
	// only the delay before the bulletin call goes through the task sleep
	assert.Equal(t, []time.Duration{time.Second}, sleeps.all())
	assert.Equal(t, StateIdle, s.State())
}

func TestRunCycle_IngestionExhaustedSkipsBulletin(t *testing.T) {
	var ingestCalls, bulletinCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(ingestPath, func(w http.ResponseWriter, r *http.Request) {
		ingestCalls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"statusCode":502,"message":"Server error"}`))
	})
	mux.HandleFunc(bulletinPath, func(w http.ResponseWriter, r *http.Request) {
		bulletinCalls.Add(1)
	})

	s, sleeps, retries := newSchedulerWithRetries(t, mux, nil)

	err := s.RunCycle(context.Background())
	require.ErrorIs(t, err, ErrIngestionFailed)
	assert.Equal(t, int32(3), ingestCalls.Load())
	assert.Zero(t, bulletinCalls.Load())
	assert.Len(t, retries.all(), 2)
	assert.Empty(t, sleeps.all())
}

func TestRunCycle_RejectedStaticTokenIsNotRetried(t *testing.T) {
	var ingestCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(ingestPath, func(w http.ResponseWriter, r *http.Request) {
		ingestCalls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"statusCode":403,"message":"Forbidden"}`))
	})

	s, _, retries := newSchedulerWithRetries(t, mux, nil)

	err := s.RunCycle(context.Background())
	require.ErrorIs(t, err, ErrIngestionFailed)
	assert.Contains(t, err.Error(), "status 403")
	assert.Equal(t, int32(1), ingestCalls.Load())
	assert.Empty(t, retries.all())
}

func TestRunCycle_CancelledDuringRetryWait(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(ingestPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"statusCode":503,"message":"Server error"}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	s, _, _ := newSchedulerWithRetries(t, mux, func(c *Config) { c.RetryDelay = time.Hour })
	s.onRetry = func(string, time.Duration) { cancel() }

	done := make(chan error, 1)
	go func() { done <- s.RunCycle(ctx) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrIngestionFailed)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("retry wait ignored cancellation")
	}
}

func TestRunCycle_BulletinParameters(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(ingestPath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ingestOK))
	})
	mux.HandleFunc(bulletinPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "3", q.Get("hours"))
		assert.Equal(t, "30", q.Get("limit"))
		assert.Equal(t, []string{"coindesk", "decrypt"}, q["sources"])
		_, _ = w.Write([]byte(bulletinOK))
	})

	s, _ := newScheduler(t, mux, func(c *Config) {
		c.BulletinSources = []string{"coindesk", "decrypt"}
	})
	require.NoError(t, s.RunCycle(context.Background()))
}

func TestRunCycle_BulletinFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(ingestPath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ingestOK))
	})
	mux.HandleFunc(bulletinPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"statusCode":400,"message":"Bad request"}`))
	})

	s, _ := newScheduler(t, mux, func(c *Config) { c.MaxRetries = 1 })
	assert.ErrorIs(t, s.RunCycle(context.Background()), ErrBulletinFailed)
}

func TestLoginIsCachedAndRefreshedOnUnauthorized(t *testing.T) {
	var logins, ingestCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		n := logins.Add(1)
		_, _ = w.Write([]byte(`{"statusCode":200,"message":"Success","count":1,"data":{"access_token":"tok-` + string(rune('0'+n)) + `"}}`))
	})
	mux.HandleFunc(ingestPath, func(w http.ResponseWriter, r *http.Request) {
		if ingestCalls.Add(1) == 1 {
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"statusCode":401,"message":"Unauthorized"}`))
			return
		}
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(ingestOK))
	})
	mux.HandleFunc(bulletinPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(bulletinOK))
	})

	s, _ := newScheduler(t, mux, func(c *Config) {
		c.Token = ""
		c.Username = "admin"
		c.Password = "secret"
	})

	require.NoError(t, s.RunCycle(context.Background()))
	assert.Equal(t, int32(2), logins.Load())
}

func TestRun_StopEndsLoop(t *testing.T) {
	var cycles atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(ingestPath, func(w http.ResponseWriter, r *http.Request) {
		cycles.Add(1)
		_, _ = w.Write([]byte(ingestOK))
	})
	mux.HandleFunc(bulletinPath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bulletinOK))
	})

	s, _ := newScheduler(t, mux, func(c *Config) {
		c.RunOnStartup = true
		c.Interval = time.Hour
	})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool { return cycles.Load() == 1 && s.State() == StateIdle }, 2*time.Second, 10*time.Millisecond)
	s.Stop()
	s.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(1), cycles.Load())
}

func TestRun_IntervalDrivesCycles(t *testing.T) {
	var cycles atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(ingestPath, func(w http.ResponseWriter, r *http.Request) {
		cycles.Add(1)
		_, _ = w.Write([]byte(ingestOK))
	})
	mux.HandleFunc(bulletinPath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bulletinOK))
	})

	s, _ := newScheduler(t, mux, func(c *Config) {
		c.RunOnStartup = false
		c.Interval = 20 * time.Millisecond
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return cycles.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running-cycle", StateRunning.String())
}
