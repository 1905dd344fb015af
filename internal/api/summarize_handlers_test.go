package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-summarizer/internal/config"
	"go-summarizer/internal/metrics"
	"go-summarizer/internal/ratelimit"
	"go-summarizer/internal/summarizer"
	"go-summarizer/internal/tools"
)

type summarizeCall struct {
	text    string
	bullets int
}

type fakeSummarizer struct {
	mu     sync.Mutex
	calls  []summarizeCall
	result summarizer.Result
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string, bullets int) summarizer.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, summarizeCall{text: text, bullets: bullets})
	if strings.TrimSpace(text) == "" {
		return summarizer.Result{Outcome: summarizer.OutcomeEmptyInput}
	}
	return f.result
}

func (f *fakeSummarizer) Model() string { return "test-model" }

type fakePages struct {
	page *tools.PageText
	err  error
	urls []string
}

func (f *fakePages) FetchText(_ context.Context, u string) (*tools.PageText, error) {
	f.urls = append(f.urls, u)
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}

type testServer struct {
	router  *gin.Engine
	sum     *fakeSummarizer
	pages   *fakePages
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, cfg *config.Config, limiter ratelimit.Limiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if cfg == nil {
		cfg = &config.Config{}
	}
	ts := &testServer{
		sum: &fakeSummarizer{result: summarizer.Result{
			Outcome: summarizer.OutcomeSummary,
			Summary: "- one\n- two\n- three",
		}},
		pages:   &fakePages{},
		metrics: metrics.New(),
	}
	ts.router = SetupRouter(cfg, Deps{
		Summarizer: ts.sum,
		Pages:      ts.pages,
		Limiter:    limiter,
		Metrics:    ts.metrics,
	})
	return ts
}

func (ts *testServer) postJSON(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeSummary(t *testing.T, w *httptest.ResponseRecorder) SummarizeResponse {
	t.Helper()
	var resp SummarizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSummarizeJSON_DefaultBullets(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	w := ts.postJSON(t, "/api/summarize", `{"text":"Cats sleep a lot."}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeSummary(t, w)
	assert.Equal(t, "- one\n- two\n- three", resp.Result)
	assert.Equal(t, "summary", resp.Outcome)
	require.Len(t, ts.sum.calls, 1)
	assert.Equal(t, summarizeCall{text: "Cats sleep a lot.", bullets: 3}, ts.sum.calls[0])
}

func TestSummarizeJSON_BulletsPassedThrough(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	for _, n := range []int{1, 10, 0, -2, 50} {
		ts.sum.calls = nil
		body, _ := json.Marshal(map[string]any{"text": "abc", "bullets": n})
		w := ts.postJSON(t, "/api/summarize", string(body))
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, ts.sum.calls, 1)
		assert.Equal(t, n, ts.sum.calls[0].bullets)
	}
}

func TestSummarizeJSON_EmptyText(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	w := ts.postJSON(t, "/api/summarize", `{"text":"   "}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeSummary(t, w)
	assert.Equal(t, "Please enter some text to summarize.", resp.Result)
	assert.Equal(t, "empty_input", resp.Outcome)
}

func TestSummarizeJSON_UpstreamErrorIsDisplayed(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	ts.sum.result = summarizer.Result{
		Outcome:    summarizer.OutcomeUpstreamStatus,
		StatusCode: 500,
		Body:       "model crashed",
	}

	w := ts.postJSON(t, "/api/summarize", `{"text":"abc"}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeSummary(t, w)
	assert.Equal(t, "Error from upstream (500): model crashed", resp.Result)
	assert.Equal(t, "upstream_status", resp.Outcome)
}

func TestSummarizeJSON_BadRequests(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	for _, body := range []string{
		`{"text":`,
		`{"text":"abc","bullets":"three"}`,
		`{"text":"abc","bullets":2.5}`,
	} {
		w := ts.postJSON(t, "/api/summarize", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Contains(t, w.Body.String(), `"message"`, body)
	}
	assert.Empty(t, ts.sum.calls)
}

func TestSummarizeJSON_URLInput(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	ts.pages.page = &tools.PageText{URL: "https://example.com/a", Title: "A", Text: "Fetched article text.", WordCount: 3}

	w := ts.postJSON(t, "/api/summarize", `{"url":"https://example.com/a","bullets":2}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"https://example.com/a"}, ts.pages.urls)
	require.Len(t, ts.sum.calls, 1)
	assert.Equal(t, summarizeCall{text: "Fetched article text.", bullets: 2}, ts.sum.calls[0])
}

func TestSummarizeJSON_TextWinsOverURL(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	w := ts.postJSON(t, "/api/summarize", `{"text":"typed","url":"https://example.com/a"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, ts.pages.urls)
	require.Len(t, ts.sum.calls, 1)
	assert.Equal(t, "typed", ts.sum.calls[0].text)
}

func TestSummarizeJSON_PageFetchError(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	ts.pages.err = errors.New("status 404")

	w := ts.postJSON(t, "/api/summarize", `{"url":"https://example.com/missing"}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeSummary(t, w)
	assert.Equal(t, "Error: could not fetch page: status 404", resp.Result)
	assert.Equal(t, "page_error", resp.Outcome)
	assert.Empty(t, ts.sum.calls)
}

func TestSummarizeJSON_LoopbackURLRefused(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var hits atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><p>INTERNAL-SECRET-TOKEN=abc123</p></body></html>"))
	}))
	defer internal.Close()

	cfg := &config.Config{}
	cfg.Fetch.TimeoutSeconds = 5
	sum := &fakeSummarizer{result: summarizer.Result{Outcome: summarizer.OutcomeSummary, Summary: "echo"}}
	r := SetupRouter(cfg, Deps{Summarizer: sum})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/summarize",
		strings.NewReader(`{"url":"`+internal.URL+`/admin"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeSummary(t, w)
	assert.Equal(t, "page_error", resp.Outcome)
	assert.True(t, strings.HasPrefix(resp.Result, "Error: could not fetch page: "), resp.Result)
	assert.Contains(t, resp.Result, tools.ErrForbiddenAddress.Error())
	assert.NotContains(t, resp.Result, "INTERNAL-SECRET-TOKEN")
	assert.Empty(t, sum.calls)
	assert.Zero(t, hits.Load())
}

func TestSummarizeJSON_RateLimited(t *testing.T) {
	ts := newTestServer(t, nil, ratelimit.NewMemoryLimiter(0, 1))

	w := ts.postJSON(t, "/api/summarize", `{"text":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.postJSON(t, "/api/summarize", `{"text":"abc"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Too many requests")
	assert.Len(t, ts.sum.calls, 1)

	// Reads are never limited.
	h := httptest.NewRecorder()
	ts.router.ServeHTTP(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, h.Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return true, errors.New("redis down")
}

func TestSummarizeJSON_LimiterErrorAllows(t *testing.T) {
	ts := newTestServer(t, nil, failingLimiter{})

	w := ts.postJSON(t, "/api/summarize", `{"text":"abc"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, ts.sum.calls, 1)
}

func TestIndexPage(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "AI-Powered Text Summarizer")
	assert.Contains(t, body, `min="1" max="10"`)
	assert.Contains(t, body, `value="3"`)
	assert.Contains(t, body, "test-model")
	assert.Empty(t, ts.sum.calls)
}

func TestFormSummarize(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	w := ts.postForm(t, "/", url.Values{"text": {"Cats sleep a lot."}, "bullets": {"5"}})

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "- one\n- two\n- three")
	assert.Contains(t, body, "Cats sleep a lot.")
	assert.Contains(t, body, `value="5"`)
	require.Len(t, ts.sum.calls, 1)
	assert.Equal(t, 5, ts.sum.calls[0].bullets)
}

func TestFormSummarize_EmptyText(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	w := ts.postForm(t, "/", url.Values{"text": {""}})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please enter some text to summarize.")
	require.Len(t, ts.sum.calls, 1)
	assert.Equal(t, 3, ts.sum.calls[0].bullets)
}

func TestFormSummarize_BadBullets(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	w := ts.postForm(t, "/", url.Values{"text": {"abc"}, "bullets": {"many"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), msgBadBullets)
	assert.Empty(t, ts.sum.calls)
}

func TestFormSummarize_RateLimited(t *testing.T) {
	ts := newTestServer(t, nil, ratelimit.NewMemoryLimiter(0, 1))

	w := ts.postForm(t, "/", url.Values{"text": {"abc"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.postForm(t, "/", url.Values{"text": {"abc"}})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), msgRateLimited)
	assert.Len(t, ts.sum.calls, 1)
}

func TestFormSummarize_Subpath(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Subpath = "tools/summarize/"
	ts := newTestServer(t, cfg, nil)

	w := ts.postForm(t, "/tools/summarize", url.Values{"text": {"abc"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/tools/summarize"`)

	w = ts.postJSON(t, "/tools/summarize/api/summarize", `{"text":"abc"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, ts.sum.calls, 2)
}

func TestMetricsRecordOutcomes(t *testing.T) {
	ts := newTestServer(t, nil, nil)

	ts.postJSON(t, "/api/summarize", `{"text":"abc"}`)
	ts.postJSON(t, "/api/summarize", `{"text":""}`)

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `summarizer_requests_total{outcome="summary"} 1`)
	assert.Contains(t, w.Body.String(), `summarizer_requests_total{outcome="empty_input"} 1`)
}
