/*
handlers_test.go - End-to-end tests for the HTTP API

Tests drive the full chi router (auth, metrics, logging, handlers) against
an in-memory store with real bearer tokens.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/daily-reflections/auth"
	"github.com/warp/daily-reflections/reflection"
	"github.com/warp/daily-reflections/reflection/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testSecret = "api-test-secret-0123456789abcdef"

var (
	cet = time.FixedZone("CET", 60*60)
	// now is 10:00 local on 2024-04-20.
	now = time.Date(2024, time.April, 20, 10, 0, 0, 0, cet)
)

type testServer struct {
	t        *testing.T
	router   http.Handler
	tokens   *auth.TokenManager
	registry *prometheus.Registry
	logs     *observer.ObservedLogs
}

func newTestServer(t *testing.T, st reflection.Store) *testServer {
	t.Helper()
	if st == nil {
		st = store.NewMemory()
	}

	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	registry := prometheus.NewRegistry()
	tokens := auth.NewTokenManager(testSecret, "daily-reflections", time.Hour)

	svc := reflection.NewService(st,
		reflection.WithLocation(cet),
		reflection.WithClock(func() time.Time { return now }),
		reflection.WithLogger(logger),
	)
	h := NewHandler(svc, logger, NewMetrics(registry))

	return &testServer{
		t: t,
		router: NewRouter(RouterConfig{
			Handler:     h,
			Auth:        tokens,
			Registry:    registry,
			Logger:      logger,
			CORSOrigins: []string{"http://localhost:5173"},
		}),
		tokens:   tokens,
		registry: registry,
		logs:     logs,
	}
}

func (s *testServer) token(userID string) string {
	tok, _, err := s.tokens.Issue(userID)
	require.NoError(s.t, err)
	return tok
}

// do sends a request as userID ("" sends no Authorization header).
func (s *testServer) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(userID))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func strPtr(s string) *string {
	return &s
}

func (s *testServer) create(userID string, req CreateReflectionRequest) ReflectionDTO {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/reflections", userID, req)
	require.Contains(s.t, []int{http.StatusCreated, http.StatusOK}, rec.Code, rec.Body.String())
	return decodeBody[ReflectionDTO](s.t, rec)
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestAPI_RequiresBearerToken(t *testing.T) {
	// GIVEN: Every /api route
	// WHEN: Called without a token, or with a bad one
	// THEN: 401 {"error":"unauthorized"}, and the handler never runs
	s := newTestServer(t, nil)
	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/reflections"},
		{http.MethodPost, "/api/reflections"},
		{http.MethodPost, "/api/reflections/new"},
		{http.MethodGet, "/api/reflections/today"},
		{http.MethodGet, "/api/reflections/2024-04-20"},
		{http.MethodGet, "/api/reflections/some-id"},
		{http.MethodPut, "/api/reflections/some-id"},
		{http.MethodPost, "/api/reflections/some-id"},
		{http.MethodDelete, "/api/reflections/some-id"},
		{http.MethodGet, "/api/stats"},
	}
	badHeaders := []string{"", "Bearer", "Bearer not-a-token", "Basic dXNlcjpwYXNz", "Token abc"}

	for _, route := range routes {
		for _, header := range badHeaders {
			req := httptest.NewRequest(route.method, route.path, strings.NewReader(`{}`))
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s [%s]", route.method, route.path, header)
			assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
		}
	}

	list := s.do(http.MethodGet, "/api/reflections", "user-a", nil)
	assert.Empty(t, decodeBody[[]ReflectionDTO](t, list), "no reflection was created by rejected calls")
}

func TestAPI_LowercaseBearerScheme(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/reflections", nil)
	req.Header.Set("Authorization", "bearer "+s.token("user-a"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// CREATE
// =============================================================================

func TestAPI_Create_201ThenExisting200(t *testing.T) {
	// GIVEN: No reflection for April 20
	s := newTestServer(t, nil)

	// WHEN: Posting twice for the same day
	first := s.do(http.MethodPost, "/api/reflections", "user-a", CreateReflectionRequest{
		Date:             "2024-04-20T21:30:00",
		KnowledgeLearned: strPtr("context cancellation"),
	})
	second := s.do(http.MethodPost, "/api/reflections/new", "user-a", CreateReflectionRequest{
		Date:             "2024-04-20",
		KnowledgeLearned: strPtr("ignored"),
	})

	// THEN: 201 then 200, same record, first answers kept
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())

	a := decodeBody[ReflectionDTO](t, first)
	b := decodeBody[ReflectionDTO](t, second)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "context cancellation", *b.KnowledgeLearned)
	assert.Equal(t, "2024-04-20", a.Day)
	assert.Equal(t, "2024-04-20T00:00:00+01:00", a.Date)
	assert.Equal(t, "user-a", a.UserID)
	assert.Nil(t, a.InterestingAction)
}

func TestAPI_Create_DefaultsToToday(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/api/reflections", "user-a", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "2024-04-20", decodeBody[ReflectionDTO](t, rec).Day)
}

func TestAPI_Create_Validation(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/api/reflections", "user-a", CreateReflectionRequest{Date: "the day after"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Details, "date")

	long := strings.Repeat("x", reflection.MaxFieldLength+1)
	rec = s.do(http.MethodPost, "/api/reflections", "user-a", CreateReflectionRequest{
		Date: "2024-04-20", KnowledgeLearned: &long,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Details, "knowledgeLearned")

	rec = s.do(http.MethodPost, "/api/reflections", "user-a", `{"date": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decodeBody[ErrorResponse](t, rec).Error)
}

func TestAPI_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, nil)
	huge := `{"knowledgeLearned":"` + strings.Repeat("a", MaxBodyBytes) + `"}`

	rec := s.do(http.MethodPost, "/api/reflections", "user-a", huge)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request body too large", decodeBody[ErrorResponse](t, rec).Error)
}

// =============================================================================
// READ
// =============================================================================

func TestAPI_DayLookup(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/api/reflections/2024-04-20", "user-a", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	miss := decodeBody[DayLookupResponse](t, rec)
	assert.False(t, miss.Exists)
	assert.NotEmpty(t, miss.Message)

	created := s.create("user-a", CreateReflectionRequest{Date: "2024-04-20"})

	rec = s.do(http.MethodGet, "/api/reflections/2024-04-20", "user-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hit := decodeBody[DayLookupResponse](t, rec)
	assert.True(t, hit.Exists)
	require.NotNil(t, hit.Data)
	assert.Equal(t, created.ID, hit.Data.ID)

	rec = s.do(http.MethodGet, "/api/reflections/today", "user-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeBody[DayLookupResponse](t, rec).Data.ID)

	rec = s.do(http.MethodGet, "/api/reflections/2024-04-20", "user-b", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other users see nothing")
}

func TestAPI_GetByID(t *testing.T) {
	s := newTestServer(t, nil)
	created := s.create("user-a", CreateReflectionRequest{Date: "2024-04-20", PeopleSolved: strPtr("a colleague")})

	rec := s.do(http.MethodGet, "/api/reflections/"+created.ID, "user-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a colleague", *decodeBody[ReflectionDTO](t, rec).PeopleSolved)

	rec = s.do(http.MethodGet, "/api/reflections/"+created.ID, "user-b", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/reflections/does-not-exist", "user-a", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ListNewestFirst(t *testing.T) {
	s := newTestServer(t, nil)
	for _, day := range []string{"2024-04-18", "2024-04-20", "2024-04-19"} {
		s.create("user-a", CreateReflectionRequest{Date: day})
	}
	s.create("user-b", CreateReflectionRequest{Date: "2024-04-21"})

	rec := s.do(http.MethodGet, "/api/reflections", "user-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeBody[[]ReflectionDTO](t, rec)
	require.Len(t, list, 3)
	assert.Equal(t, "2024-04-20", list[0].Day)
	assert.Equal(t, "2024-04-19", list[1].Day)
	assert.Equal(t, "2024-04-18", list[2].Day)
}

// =============================================================================
// UPDATE / DELETE
// =============================================================================

func TestAPI_Update(t *testing.T) {
	s := newTestServer(t, nil)
	created := s.create("user-a", CreateReflectionRequest{
		Date:             "2024-04-20",
		KnowledgeLearned: strPtr("before"),
		PeopleSolved:     strPtr("kept"),
	})
	path := "/api/reflections/" + created.ID

	rec := s.do(http.MethodPut, path, "user-a", UpdateReflectionRequest{KnowledgeLearned: strPtr("after")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[ReflectionDTO](t, rec)
	assert.Equal(t, "after", *updated.KnowledgeLearned)
	assert.Equal(t, "kept", *updated.PeopleSolved)

	// POST to the id behaves like PUT.
	rec = s.do(http.MethodPost, path, "user-a", UpdateReflectionRequest{
		Date:              "2024-04-20T08:00:00",
		InterestingAction: strPtr("via post"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "via post", *decodeBody[ReflectionDTO](t, rec).InterestingAction)

	rec = s.do(http.MethodPut, path, "user-a", UpdateReflectionRequest{Date: "2024-04-21"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[ErrorResponse](t, rec).Details, "date")
}

func TestAPI_OtherUserGets403OnWrites(t *testing.T) {
	// GIVEN: user-a's reflection
	s := newTestServer(t, nil)
	created := s.create("user-a", CreateReflectionRequest{Date: "2024-04-20", KnowledgeLearned: strPtr("mine")})
	path := "/api/reflections/" + created.ID

	// WHEN: user-b updates and deletes it
	put := s.do(http.MethodPut, path, "user-b", UpdateReflectionRequest{KnowledgeLearned: strPtr("theirs")})
	del := s.do(http.MethodDelete, path, "user-b", nil)

	// THEN: Both are refused and the record is intact
	assert.Equal(t, http.StatusForbidden, put.Code)
	assert.Equal(t, http.StatusForbidden, del.Code)

	rec := s.do(http.MethodGet, path, "user-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mine", *decodeBody[ReflectionDTO](t, rec).KnowledgeLearned)
}

func TestAPI_Delete(t *testing.T) {
	s := newTestServer(t, nil)
	created := s.create("user-a", CreateReflectionRequest{Date: "2024-04-20"})
	path := "/api/reflections/" + created.ID

	rec := s.do(http.MethodDelete, path, "user-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, "user-a", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/reflections/2024-04-20", "user-a", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, path, "user-a", nil).Code)

	again := s.do(http.MethodPost, "/api/reflections", "user-a", CreateReflectionRequest{Date: "2024-04-20"})
	assert.Equal(t, http.StatusCreated, again.Code)
	assert.NotEqual(t, created.ID, decodeBody[ReflectionDTO](t, again).ID)
}

// =============================================================================
// STATS
// =============================================================================

func TestAPI_Stats(t *testing.T) {
	s := newTestServer(t, nil)
	s.create("user-a", CreateReflectionRequest{Date: "2024-03-31", KnowledgeLearned: strPtr("x")})
	s.create("user-a", CreateReflectionRequest{Date: "2024-04-01", KnowledgeLearned: strPtr("  ")})
	s.create("user-a", CreateReflectionRequest{Date: "2024-04-02", KnowledgeLearned: strPtr("")})
	s.create("user-a", CreateReflectionRequest{Date: "2024-04-03"})

	rec := s.do(http.MethodGet, "/api/stats", "user-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.JSONEq(t, `{
		"totalCount": 4,
		"knowledgeCount": 1,
		"actionCount": 0,
		"helpCount": 0,
		"monthlyCounts": [{"month": "2024-03", "count": 1}, {"month": "2024-04", "count": 3}],
		"completionRates": {"knowledge": "0.25", "action": "0", "help": "0"}
	}`, rec.Body.String())

	empty := s.do(http.MethodGet, "/api/stats", "user-b", nil)
	require.Equal(t, http.StatusOK, empty.Code)
	assert.Equal(t, []MonthCountDTO{}, decodeBody[StatsDTO](t, empty).MonthlyCounts)
}

// =============================================================================
// FAILURES
// =============================================================================

// failingStore fails every call with a message no client should ever see.
type failingStore struct {
	reflection.Store
}

var errDriver = errors.New(`pq: password authentication failed for user "reflections_admin"`)

func (failingStore) ListByUser(context.Context, string) ([]reflection.Reflection, error) {
	return nil, errDriver
}

func (failingStore) InsertIfAbsent(context.Context, reflection.Reflection) (bool, error) {
	return false, errDriver
}

func TestAPI_StorageFailure_DoesNotLeak(t *testing.T) {
	// GIVEN: A store whose driver errors carry credentials
	s := newTestServer(t, failingStore{store.NewMemory()})

	// WHEN: Requests hit the store
	list := s.do(http.MethodGet, "/api/reflections", "user-a", nil)
	create := s.do(http.MethodPost, "/api/reflections", "user-a", CreateReflectionRequest{Date: "2024-04-20"})

	// THEN: Clients get a generic 500, the log gets the detail
	for _, rec := range []*httptest.ResponseRecorder{list, create} {
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "password")
	}

	failures := s.logs.FilterMessage("reflection service error").FilterField(zap.Bool("retryable", true))
	require.GreaterOrEqual(t, failures.Len(), 2)
	assert.Contains(t, failures.All()[0].ContextMap()["error"], "password authentication failed")
}

// =============================================================================
// INFRASTRUCTURE ROUTES
// =============================================================================

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	h := NewHandler(reflection.NewService(store.NewMemory()), nil, nil)
	down := NewRouter(RouterConfig{
		Handler: h,
		Auth:    s.tokens,
		Ping:    func(context.Context) error { return errors.New("db down") },
	})
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	s.create("user-a", CreateReflectionRequest{Date: "2024-04-20"})
	s.create("user-a", CreateReflectionRequest{Date: "2024-04-20"})

	rec := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `daily_reflection_creates_total{outcome="created"} 1`)
	assert.Contains(t, body, `daily_reflection_creates_total{outcome="existing"} 1`)
	assert.Contains(t, body, `daily_http_requests_total{method="POST"`)
	assert.Contains(t, body, `status="201"`)
	assert.NotContains(t, body, "2024-04-20", "routes are labelled by pattern")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/reflections", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
}
