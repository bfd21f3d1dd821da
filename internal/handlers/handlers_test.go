package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"typingclass/internal/anticheat"
	"typingclass/internal/middleware/ratelimit"
	"typingclass/internal/models"
	"typingclass/internal/session"
)

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) Insert(ctx context.Context, rec *models.Record) (int64, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRecordStore) TopByMode(ctx context.Context, mode models.Mode, n int) ([]models.Record, error) {
	args := m.Called(ctx, mode, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Record), args.Error(1)
}

func (m *MockRecordStore) Page(ctx context.Context, mode models.Mode, limit, offset int) ([]models.Record, int, error) {
	args := m.Called(ctx, mode, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Record), args.Int(1), args.Error(2)
}

func (m *MockRecordStore) Stats(ctx context.Context) (*models.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stats), args.Error(1)
}

func (m *MockRecordStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// fakeSessionStore is an in-memory session.Store with claim-once
// semantics.
type fakeSessionStore struct {
	sessions map[string]*session.PracticeSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*session.PracticeSession)}
}

func (f *fakeSessionStore) Issue(ctx context.Context, sid string, mode models.Mode) (*session.PracticeSession, error) {
	ps := &session.PracticeSession{
		Token:     "issued-token-" + sid,
		StartedAt: time.Now().UTC(),
		Mode:      mode,
	}
	f.sessions[sid] = ps
	return ps, nil
}

func (f *fakeSessionStore) Get(ctx context.Context, sid string) (*session.PracticeSession, error) {
	return f.sessions[sid], nil
}

func (f *fakeSessionStore) Claim(ctx context.Context, sid string) (*session.PracticeSession, error) {
	ps := f.sessions[sid]
	delete(f.sessions, sid)
	return ps, nil
}

// deadRedis returns a client whose backend never answers, so cache reads
// miss and best-effort writes fail silently.
func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

type fixture struct {
	handler  *Handler
	store    *MockRecordStore
	sessions *fakeSessionStore
}

func newFixture(maxPerWindow int) *fixture {
	store := new(MockRecordStore)
	sessions := newFakeSessionStore()
	ledger := ratelimit.NewLedgerWithLimits(300*time.Second, maxPerWindow)
	pipeline := anticheat.NewPipeline(ledger)
	h := NewHandler(store, sessions, pipeline, deadRedis(), time.Minute)
	return &fixture{handler: h, store: store, sessions: sessions}
}

func doJSON(h echo.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = h(c)
	return rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func submissionJSON(token string, durationSec int) string {
	return fmt.Sprintf(`{
		"student_id": "10218 홍길동",
		"mode": "positional",
		"wpm": 50,
		"accuracy": 80,
		"score": 3200,
		"duration_sec": %d,
		"practice_token": %q
	}`, durationSec, token)
}

func submitRequest(payload, sid string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/records", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: sid})
	}
	return req
}

func TestCreateRecordAcceptsAndConsumesToken(t *testing.T) {
	f := newFixture(3)

	// Session started long enough ago for a 310s claim to be plausible.
	f.sessions.sessions["sid-1"] = &session.PracticeSession{
		Token:     "tok-1",
		StartedAt: time.Now().Add(-310 * time.Second),
		Mode:      models.ModePositional,
	}

	f.store.On("Insert", mock.Anything, mock.MatchedBy(func(r *models.Record) bool {
		return r.StudentID == "10218 홍길동" && r.Mode == models.ModePositional && r.Score == 3200
	})).Return(int64(7), nil).Once()

	rec := doJSON(f.handler.CreateRecord, submitRequest(submissionJSON("tok-1", 310), "sid-1"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := parseBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(7), body["id"])
	f.store.AssertExpectations(t)

	// The token was consumed; replaying the exact same submission is an
	// auth failure, not a second record.
	rec = doJSON(f.handler.CreateRecord, submitRequest(submissionJSON("tok-1", 310), "sid-1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(anticheat.ReasonUnauthenticated), parseBody(t, rec)["reason"])
}

func TestCreateRecordWithoutSession(t *testing.T) {
	f := newFixture(3)

	rec := doJSON(f.handler.CreateRecord, submitRequest(submissionJSON("tok-1", 310), ""))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(anticheat.ReasonUnauthenticated), parseBody(t, rec)["reason"])
}

func TestCreateRecordMalformedBody(t *testing.T) {
	f := newFixture(3)
	f.sessions.sessions["sid-1"] = &session.PracticeSession{
		Token:     "tok-1",
		StartedAt: time.Now().Add(-310 * time.Second),
		Mode:      models.ModePositional,
	}

	tests := []struct {
		name    string
		payload string
	}{
		{"invalid json", `{"student_id": `},
		{"wpm as string", `{"student_id":"10218 홍길동","mode":"positional","wpm":"fifty","accuracy":80,"score":3200,"duration_sec":310,"practice_token":"tok-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(f.handler.CreateRecord, submitRequest(tt.payload, "sid-1"))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, string(anticheat.ReasonMalformedInput), parseBody(t, rec)["reason"])
		})
	}
}

func TestCreateRecordRateLimited(t *testing.T) {
	f := newFixture(0)
	f.sessions.sessions["sid-1"] = &session.PracticeSession{
		Token:     "tok-1",
		StartedAt: time.Now().Add(-310 * time.Second),
		Mode:      models.ModePositional,
	}

	rec := doJSON(f.handler.CreateRecord, submitRequest(submissionJSON("tok-1", 310), "sid-1"))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, string(anticheat.ReasonRateLimited), parseBody(t, rec)["reason"])
}

func TestCreateRecordStorageFailure(t *testing.T) {
	f := newFixture(3)
	f.sessions.sessions["sid-1"] = &session.PracticeSession{
		Token:     "tok-1",
		StartedAt: time.Now().Add(-310 * time.Second),
		Mode:      models.ModePositional,
	}

	f.store.On("Insert", mock.Anything, mock.Anything).Return(int64(0), fmt.Errorf("connection lost")).Once()

	rec := doJSON(f.handler.CreateRecord, submitRequest(submissionJSON("tok-1", 310), "sid-1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// Generic body only; internals stay in the server log.
	assert.Equal(t, string(anticheat.ReasonStorageFailure), parseBody(t, rec)["reason"])
}

func TestStartPracticeIssuesToken(t *testing.T) {
	f := newFixture(3)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/practice/word", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("mode")
	c.SetParamValues("word")

	require.NoError(t, f.handler.StartPractice(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := parseBody(t, rec)
	assert.Equal(t, "word", body["mode"])
	assert.NotEmpty(t, body["practice_token"])

	// First contact mints the session cookie.
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
}

func TestStartPracticeUnknownMode(t *testing.T) {
	f := newFixture(3)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/practice/speedrun", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("mode")
	c.SetParamValues("speedrun")

	err := f.handler.StartPractice(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestGetRecordsPagination(t *testing.T) {
	f := newFixture(3)

	// 25 total records, last page from offset 20 holds 5.
	lastPage := make([]models.Record, 5)
	f.store.On("Page", mock.Anything, models.ModePositional, 10, 20).
		Return(lastPage, 25, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/records?limit=10&offset=20", nil)
	rec := doJSON(f.handler.GetRecords, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := parseBody(t, rec)
	pagination := body["pagination"].(map[string]interface{})
	assert.Equal(t, float64(25), pagination["total"])
	assert.Equal(t, false, pagination["has_more"])
	assert.Equal(t, float64(5), pagination["current_count"])
	f.store.AssertExpectations(t)
}

func TestGetRecordsMiddlePageHasMore(t *testing.T) {
	f := newFixture(3)

	page := make([]models.Record, 10)
	f.store.On("Page", mock.Anything, models.ModePositional, 10, 10).
		Return(page, 25, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/records?limit=10&offset=10", nil)
	rec := doJSON(f.handler.GetRecords, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	pagination := parseBody(t, rec)["pagination"].(map[string]interface{})
	assert.Equal(t, true, pagination["has_more"])
	assert.Equal(t, float64(10), pagination["current_count"])
}

func TestGetRecordsClampsParams(t *testing.T) {
	f := newFixture(3)

	f.store.On("Page", mock.Anything, models.ModeWord, 10000, 0).
		Return([]models.Record{}, 0, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/records?mode=word&limit=99999&offset=-5", nil)
	rec := doJSON(f.handler.GetRecords, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	f.store.AssertExpectations(t)
}

func TestGetTopRecordsDefaultsToPositional(t *testing.T) {
	f := newFixture(3)

	f.store.On("TopByMode", mock.Anything, models.ModePositional, 10).
		Return([]models.Record{{ID: 1}, {ID: 2}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/records/top", nil)
	rec := doJSON(f.handler.GetTopRecords, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := parseBody(t, rec)
	assert.Equal(t, "positional", body["mode"])
	assert.Equal(t, float64(2), body["total"])
	f.store.AssertExpectations(t)
}

func TestGetTopRecordsRejectsUnknownMode(t *testing.T) {
	f := newFixture(3)

	req := httptest.NewRequest(http.MethodGet, "/api/records/top?mode=speedrun", nil)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := f.handler.GetTopRecords(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestGetStatsFallsBackToDatabase(t *testing.T) {
	f := newFixture(3)

	f.store.On("Stats", mock.Anything).
		Return(&models.Stats{TotalStudents: 3, TotalRecords: 12, AvgWPM: 41.5, AvgAccuracy: 93.2}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/records/stats", nil)
	rec := doJSON(f.handler.GetStats, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := parseBody(t, rec)
	assert.Equal(t, float64(3), body["total_students"])
	assert.Equal(t, float64(12), body["total_records"])
	assert.Equal(t, 41.5, body["avg_wpm"])
	f.store.AssertExpectations(t)
}

func TestHealthCheckReportsRedisDown(t *testing.T) {
	f := newFixture(3)
	f.store.On("Ping", mock.Anything).Return(nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := doJSON(f.handler.HealthCheck, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := parseBody(t, rec)
	assert.Equal(t, "healthy", body["database"])
	assert.Equal(t, "unhealthy", body["redis"])
	assert.Equal(t, "unhealthy", body["status"])
}
