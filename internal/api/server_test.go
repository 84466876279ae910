package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openvideo/channelsearch/internal/catalog"
	"github.com/openvideo/channelsearch/internal/config"
)

type fakeStore struct {
	searchResults  []catalog.Channel
	searchErr      error
	searchedQuery  string
	searchedLimit  int
	searchCalls    int
	suggestions    []catalog.Suggestion
	suggestErr     error
	suggestedQuery string
	suggestedLimit int
	statsResult    catalog.Stats
	statsErr       error
	schemaErr      error
	schemaCalls    int
}

func (f *fakeStore) Exists(context.Context, string) (bool, error) { return false, nil }

func (f *fakeStore) Upsert(context.Context, catalog.Candidate, catalog.Metadata) (int64, error) {
	return 0, nil
}

func (f *fakeStore) Search(_ context.Context, query string, limit int) ([]catalog.Channel, error) {
	f.searchCalls++
	f.searchedQuery = query
	f.searchedLimit = limit
	return f.searchResults, f.searchErr
}

func (f *fakeStore) Suggest(_ context.Context, prefix string, limit int) ([]catalog.Suggestion, error) {
	f.suggestedQuery = prefix
	f.suggestedLimit = limit
	if strings.TrimSpace(prefix) == "" || len(strings.TrimSpace(prefix)) < 2 {
		return nil, nil
	}
	return f.suggestions, f.suggestErr
}

func (f *fakeStore) Stats(context.Context) (catalog.Stats, error) {
	return f.statsResult, f.statsErr
}

func (f *fakeStore) ListAll(context.Context) ([]catalog.Channel, error) { return nil, nil }

func (f *fakeStore) InitSchema(context.Context) error {
	f.schemaCalls++
	return f.schemaErr
}

type fakeRunner struct {
	report   catalog.RunReport
	err      error
	maxItems int
	delay    time.Duration
	calls    int
}

func (f *fakeRunner) Run(_ context.Context, maxItems int, delay time.Duration) (catalog.RunReport, error) {
	f.calls++
	f.maxItems = maxItems
	f.delay = delay
	return f.report, f.err
}

type fakeExporter struct {
	count int
	err   error
}

func (f *fakeExporter) Export(context.Context) (int, error) { return f.count, f.err }

func (f *fakeExporter) Path() string { return "data/channels_index.json" }

func newTestServer(store *fakeStore, runner *fakeRunner) *Server {
	cfg := config.Config{
		Auth:    config.AuthConfig{Enabled: true, Token: "hunter2"},
		Indexer: config.IndexerConfig{DefaultMax: 100, DefaultDelayMs: 500},
	}
	return NewServer(store, runner, &fakeExporter{count: 3}, cfg, zap.NewNop())
}

func doRequest(s *Server, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

var authHeader = map[string]string{"Authorization": "Bearer hunter2"}

func TestSearchReturnsResults(t *testing.T) {
	t.Parallel()

	name := "Cooking"
	store := &fakeStore{searchResults: []catalog.Channel{{Handle: "cooking", Name: &name}}}
	s := newTestServer(store, &fakeRunner{})

	rec := doRequest(s, http.MethodGet, "/api/search?q=cook+recipe", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "cook recipe", store.searchedQuery)
	require.Equal(t, 20, store.searchedLimit)

	var body struct {
		Results []catalog.Channel `json:"results"`
		Count   int               `json:"count"`
		Query   string            `json:"query"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	require.Equal(t, "cooking", body.Results[0].Handle)
}

func TestSearchEmptyQueryShortCircuits(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	s := newTestServer(store, &fakeRunner{})

	for _, target := range []string{"/api/search", "/api/search?q=", "/api/search?q=++"} {
		rec := doRequest(s, http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `"results":[]`)
	}
	require.Zero(t, store.searchCalls)
}

func TestSearchCustomLimit(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	s := newTestServer(store, &fakeRunner{})

	rec := doRequest(s, http.MethodGet, "/api/search?q=cook&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, store.searchedLimit)
}

func TestSearchInvalidLimit(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeStore{}, &fakeRunner{})

	for _, target := range []string{"/api/search?q=x&limit=abc", "/api/search?q=x&limit=0", "/api/search?q=x&limit=-1"} {
		rec := doRequest(s, http.MethodGet, target, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestSearchStoreErrorIs500(t *testing.T) {
	t.Parallel()

	store := &fakeStore{searchErr: catalog.ErrStore}
	s := newTestServer(store, &fakeRunner{})

	rec := doRequest(s, http.MethodGet, "/api/search?q=cook", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAutocompleteThreshold(t *testing.T) {
	t.Parallel()

	store := &fakeStore{suggestions: []catalog.Suggestion{{Text: "Cooking", Handle: "cooking"}}}
	s := newTestServer(store, &fakeRunner{})

	rec := doRequest(s, http.MethodGet, "/api/autocomplete?q=c", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"suggestions":[]`)

	rec = doRequest(s, http.MethodGet, "/api/autocomplete?q=co", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"cooking"`)
	require.Equal(t, 10, store.suggestedLimit)
}

func TestStats(t *testing.T) {
	t.Parallel()

	store := &fakeStore{statsResult: catalog.Stats{
		TotalChannels:       2,
		TotalVideos:         100,
		AvgVideosPerChannel: 100.0,
	}}
	s := newTestServer(store, &fakeRunner{})

	rec := doRequest(s, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats catalog.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, int64(2), stats.TotalChannels)
	require.Equal(t, int64(100), stats.TotalVideos)
	require.InDelta(t, 100.0, stats.AvgVideosPerChannel, 0.001)
}

func TestIndexRequiresAuth(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	s := newTestServer(&fakeStore{}, runner)

	rec := doRequest(s, http.MethodPost, "/api/index", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/index", map[string]string{"Authorization": "Bearer wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Core logic never ran.
	require.Zero(t, runner.calls)
}

func TestIndexRunsWithDefaults(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{report: catalog.RunReport{
		Indexed:        2,
		Skipped:        1,
		TotalProcessed: 3,
	}}
	s := newTestServer(&fakeStore{}, runner)

	rec := doRequest(s, http.MethodPost, "/api/index", authHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 100, runner.maxItems)
	require.Equal(t, 500*time.Millisecond, runner.delay)

	var body struct {
		Success        bool `json:"success"`
		Indexed        int  `json:"indexed"`
		Skipped        int  `json:"skipped"`
		Errors         int  `json:"errors"`
		TotalProcessed int  `json:"total_processed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, 2, body.Indexed)
	require.Equal(t, 1, body.Skipped)
	require.Equal(t, 0, body.Errors)
	require.Equal(t, 3, body.TotalProcessed)
}

func TestIndexCustomParams(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	s := newTestServer(&fakeStore{}, runner)

	rec := doRequest(s, http.MethodPost, "/api/index?max=3&rate=200", authHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, runner.maxItems)
	require.Equal(t, 200*time.Millisecond, runner.delay)
}

func TestIndexInvalidParams(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	s := newTestServer(&fakeStore{}, runner)

	for _, target := range []string{
		"/api/index?max=abc",
		"/api/index?max=0",
		"/api/index?max=-2",
		"/api/index?rate=abc",
		"/api/index?rate=-1",
	} {
		rec := doRequest(s, http.MethodPost, target, authHeader)
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	require.Zero(t, runner.calls)
}

// detachedRunner cancels the incoming request context mid-run and
// records whether its own context was cancelled along with it.
type detachedRunner struct {
	cancelRequest context.CancelFunc
	ctxCancelled  bool
	ctxErr        error
}

func (f *detachedRunner) Run(ctx context.Context, _ int, _ time.Duration) (catalog.RunReport, error) {
	f.cancelRequest()
	select {
	case <-ctx.Done():
		f.ctxCancelled = true
	default:
	}
	f.ctxErr = ctx.Err()
	return catalog.RunReport{Indexed: 1, TotalProcessed: 1}, nil
}

func TestIndexRunSurvivesClientDisconnect(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &detachedRunner{cancelRequest: cancel}
	cfg := config.Config{
		Auth:    config.AuthConfig{Enabled: true, Token: "hunter2"},
		Indexer: config.IndexerConfig{DefaultMax: 100, DefaultDelayMs: 500},
	}
	s := NewServer(&fakeStore{}, runner, &fakeExporter{}, cfg, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/index", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer hunter2")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, runner.ctxCancelled)
	require.NoError(t, runner.ctxErr)
}

func TestIndexFatalSitemapFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: catalog.ErrFetch}
	s := newTestServer(&fakeStore{}, runner)

	rec := doRequest(s, http.MethodPost, "/api/index", authHeader)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":false`)
}

func TestSchemaInit(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	s := newTestServer(store, &fakeRunner{})

	rec := doRequest(s, http.MethodPost, "/api/schema/init", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, store.schemaCalls)

	rec = doRequest(s, http.MethodPost, "/api/schema/init", authHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, store.schemaCalls)
}

func TestSchemaInitError(t *testing.T) {
	t.Parallel()

	store := &fakeStore{schemaErr: errors.New("permission denied")}
	s := newTestServer(store, &fakeRunner{})

	rec := doRequest(s, http.MethodPost, "/api/schema/init", authHeader)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestExportEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeStore{}, &fakeRunner{})

	rec := doRequest(s, http.MethodPost, "/api/export", authHeader)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"channels":3`)
}

func TestRetrievalEndpointsAreUnauthenticated(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeStore{}, &fakeRunner{})

	for _, target := range []string{"/api/search?q=x", "/api/autocomplete?q=xy", "/api/stats", "/healthz"} {
		rec := doRequest(s, http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, rec.Code, target)
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeStore{}, &fakeRunner{})
	rec := doRequest(s, http.MethodGet, "/healthz", nil)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
