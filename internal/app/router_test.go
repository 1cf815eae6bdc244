package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/userboard/internal/dashboard"
	"github.com/noah-isme/userboard/internal/directory"
	"github.com/noah-isme/userboard/internal/observability"
	"github.com/noah-isme/userboard/internal/shared"
	"github.com/noah-isme/userboard/internal/testing/fakedirectory"
	"github.com/noah-isme/userboard/internal/view"
	"github.com/noah-isme/userboard/jobs"
	_ "github.com/noah-isme/userboard/testing"
)

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

type testEnv struct {
	srv      *httptest.Server
	upstream *fakedirectory.Server
	redis    *miniredis.Miniredis
	registry *dashboard.Registry
}

func newTestEnv(t *testing.T, enqueuer jobs.InvalidationEnqueuer, readiness ...ReadinessCheck) *testEnv {
	t.Helper()
	upstream := fakedirectory.New(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	templates, err := view.NewEngine()
	require.NoError(t, err)

	service := directory.NewService(directory.NewClientWithHTTP(upstream.URL, upstream.Client()), directory.NewCache(client, time.Minute), metrics, logger)
	registry := dashboard.NewRegistry(dashboard.RegistryConfig{Lister: service, PerPage: 4, Logger: logger, Metrics: metrics})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go registry.Run(ctx)

	csrf := shared.NewCSRFManager("csrfsecret")
	sessions := shared.NewSessionManager(client, "userboard_session", time.Hour, false)
	router := NewRouter(RouterParams{
		Logger:           logger,
		Config:           &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second},
		SessionManager:   sessions,
		CSRFManager:      csrf,
		DashboardHandler: dashboard.NewHandler(logger, registry, templates, csrf, time.Second),
		JobHandler:       jobs.NewHandler(nil, enqueuer, logger),
		Metrics:          metrics,
		Readiness:        readiness,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, upstream: upstream, redis: mr, registry: registry}
}

func newTestServer(t *testing.T, readiness ...ReadinessCheck) (*httptest.Server, *fakedirectory.Server) {
	t.Helper()
	env := newTestEnv(t, nil, readiness...)
	return env.srv, env.upstream
}

type countingEnqueuer struct {
	calls atomic.Int32
}

func (c *countingEnqueuer) EnqueueDirectoryInvalidate(ctx context.Context) (*asynq.TaskInfo, error) {
	c.calls.Add(1)
	return &asynq.TaskInfo{ID: "task-1", Type: jobs.TaskDirectoryInvalidate}, nil
}

func noRedirectClient(t *testing.T) *http.Client {
	t.Helper()
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestDashboardFlowWithSessionAndCSRF(t *testing.T) {
	srv, upstream := newTestServer(t)
	client := noRedirectClient(t)

	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Leanne Graham")
	cookies := resp.Cookies()
	require.NotEmpty(t, cookies)
	match := csrfPattern.FindStringSubmatch(body)
	require.Len(t, match, 2)
	token := match[1]

	post := func(path string, form url.Values) *http.Response {
		req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for _, c := range cookies {
			req.AddCookie(c)
		}
		resp, err := client.Do(req)
		require.NoError(t, err)
		_ = readBody(t, resp)
		return resp
	}

	assert.Equal(t, http.StatusForbidden, post("/search", url.Values{"q": {"Clement"}}).StatusCode)

	resp = post("/search", url.Values{"q": {"Clement"}, "csrf_token": {token}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
	require.NoError(t, err)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err = client.Do(req)
	require.NoError(t, err)
	body = readBody(t, resp)
	assert.Contains(t, body, "Clementine Bauch")
	assert.Contains(t, body, "Clementina DuBuque")
	assert.NotContains(t, body, "Leanne Graham")
	assert.Equal(t, "Clement", upstream.LastQuery()["name_like"])
}

func TestHealthAndStatic(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, readBody(t, resp))

	resp, err = http.Get(srv.URL + "/static/css/app.css")
	require.NoError(t, err)
	_ = readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "public, max-age=3600", resp.Header.Get("Cache-Control"))

	resp, err = http.Get(srv.URL + "/jobs/health")
	require.NoError(t, err)
	_ = readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadiness(t *testing.T) {
	srv, _ := newTestServer(t, ReadinessCheck{Name: "directory", Check: func(ctx context.Context) error {
		return errors.New("unreachable")
	}})

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, "directory")

	okSrv, _ := newTestServer(t)
	resp, err = http.Get(okSrv.URL + "/readyz")
	require.NoError(t, err)
	_ = readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpointCountsFetches(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	_ = readBody(t, resp)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Contains(t, body, `userboard_directory_fetches_total{outcome="success"} 1`)
	assert.Contains(t, body, `userboard_http_requests_total{code="200",route="/"}`)
}

func TestStateWithoutCookieLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := http.Get(env.srv.URL + "/api/state")
	require.NoError(t, err)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Contains(t, body, `"status":"idle"`)
	assert.Empty(t, resp.Cookies())
	assert.Empty(t, env.redis.Keys())
	assert.Zero(t, env.registry.Len())
	assert.Zero(t, env.upstream.Requests())
}

func TestDirectoryInvalidateRequiresCSRF(t *testing.T) {
	enqueuer := &countingEnqueuer{}
	env := newTestEnv(t, enqueuer)
	client := noRedirectClient(t)

	resp, err := client.Get(env.srv.URL + "/")
	require.NoError(t, err)
	body := readBody(t, resp)
	require.Contains(t, body, `action="/jobs/directory/invalidate"`)
	cookies := resp.Cookies()
	match := csrfPattern.FindStringSubmatch(body)
	require.Len(t, match, 2)

	post := func(form url.Values) *http.Response {
		req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/jobs/directory/invalidate", strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		for _, c := range cookies {
			req.AddCookie(c)
		}
		resp, err := client.Do(req)
		require.NoError(t, err)
		_ = readBody(t, resp)
		return resp
	}

	assert.Equal(t, http.StatusForbidden, post(url.Values{}).StatusCode)
	assert.Zero(t, enqueuer.calls.Load())

	resp = post(url.Values{"csrf_token": {match[1]}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.EqualValues(t, 1, enqueuer.calls.Load())
}
