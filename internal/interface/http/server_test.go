package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alem-hub/progression-engine/internal/application/command"
	"github.com/alem-hub/progression-engine/internal/application/query"
	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
	"github.com/alem-hub/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progression-engine/internal/interface/http/handlers"
	"github.com/alem-hub/progression-engine/pkg/logger"
	"github.com/alem-hub/progression-engine/pkg/timeutil"
)

var testNow = time.Date(2026, time.March, 20, 12, 0, 0, 0, time.UTC)

func newTestDeps() Dependencies {
	store := memory.NewStore(progression.DefaultCatalog())

	var seq atomic.Int64
	env := command.Environment{
		Publisher: shared.NopPublisher{},
		Calendar:  timeutil.UTCCalendar(),
		Clock:     func() time.Time { return testNow },
		NewID:     func() string { return fmt.Sprintf("tx-%d", seq.Add(1)) },
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Policy:    command.DefaultPolicy(),
	}
	settings := query.DefaultSettings()
	settings.Clock = timeutil.FixedClock(testNow)

	evaluator := command.NewEvaluator(store, store, store, store, env)

	return Dependencies{
		AwardXPHandler:           command.NewAwardXPHandler(store, evaluator, env),
		RecordActivityHandler:    command.NewRecordActivityHandler(store, env),
		ApplyFreezeHandler:       command.NewApplyFreezeHandler(store, env),
		CheckAchievementsHandler: command.NewCheckAchievementsHandler(store, evaluator),

		GetUserXPHandler:           query.NewGetUserXPHandler(store, settings),
		GetUserStreakHandler:       query.NewGetUserStreakHandler(store, settings),
		GetDailyGoalHandler:        query.NewGetDailyGoalHandler(store, settings),
		GetActivityCalendarHandler: query.NewGetActivityCalendarHandler(store, settings),
		GetUserAchievementsHandler: query.NewGetUserAchievementsHandler(store, store, store, store, store, settings),
		ListAchievementsHandler:    query.NewListAchievementsHandler(store),
		GetLeaderboardHandler:      query.NewGetLeaderboardHandler(store, store, settings, nil),

		Logger: logger.Nop(),
	}
}

func newTestServer(t *testing.T, deps Dependencies) http.Handler {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	return NewServer(cfg, deps).Handler()
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	Meta      *ResponseMeta   `json:"meta"`
	RequestID string          `json:"request_id"`
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestServer_AwardXP(t *testing.T) {
	h := newTestServer(t, newTestDeps())

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{name: "valid award", body: `{"amount":150,"reason":"chapter done","sourceType":"chapter","sourceId":"ch-1"}`, wantCode: http.StatusCreated},
		{name: "zero amount", body: `{"amount":0,"reason":"x","sourceType":"manual"}`, wantCode: http.StatusBadRequest, wantErr: "invalid_amount"},
		{name: "negative amount", body: `{"amount":-5,"reason":"x","sourceType":"manual"}`, wantCode: http.StatusBadRequest, wantErr: "invalid_amount"},
		{name: "fractional amount", body: `{"amount":2.5,"reason":"x","sourceType":"manual"}`, wantCode: http.StatusBadRequest, wantErr: "invalid_amount"},
		{name: "missing amount", body: `{"reason":"x","sourceType":"manual"}`, wantCode: http.StatusBadRequest, wantErr: "invalid_amount"},
		{name: "unknown source", body: `{"amount":5,"reason":"x","sourceType":"video"}`, wantCode: http.StatusBadRequest, wantErr: "invalid_input"},
		{name: "unknown field", body: `{"amount":5,"points":3}`, wantCode: http.StatusBadRequest, wantErr: "invalid_request"},
		{name: "malformed json", body: `{"amount":`, wantCode: http.StatusBadRequest, wantErr: "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, "/api/v1/users/alice/xp", tt.body)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantErr != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.wantErr, env.Error.Code)
				assert.False(t, env.Success)
				return
			}

			var result command.AwardXPResult
			require.NoError(t, json.Unmarshal(env.Data, &result))
			assert.True(t, env.Success)
			assert.Equal(t, 150, result.NewTotalXP)
			assert.Equal(t, 2, result.NewLevel)
			assert.True(t, result.LeveledUp)
			assert.Equal(t, 250, result.XPToNextLevel)
			require.NotNil(t, result.Streak)
			assert.Equal(t, 1, result.Streak.CurrentStreak)
		})
	}

	// Only the valid award reached the ledger.
	_, env := do(t, h, http.MethodGet, "/api/v1/users/alice/xp", "")
	var xp query.GetUserXPResult
	require.NoError(t, json.Unmarshal(env.Data, &xp))
	assert.Equal(t, 150, xp.TotalXP)
	assert.Len(t, xp.RecentTransactions, 1)
}

func TestServer_StreakFreeze(t *testing.T) {
	h := newTestServer(t, newTestDeps())

	for want := 2; want >= 0; want-- {
		rec, env := do(t, h, http.MethodPost, "/api/v1/users/bob/streak/freeze", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var result command.ApplyFreezeResult
		require.NoError(t, json.Unmarshal(env.Data, &result))
		assert.Equal(t, want, result.FreezesRemaining)
	}

	rec, env := do(t, h, http.MethodPost, "/api/v1/users/bob/streak/freeze", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_freeze_available", env.Error.Code)

	_, env = do(t, h, http.MethodGet, "/api/v1/users/bob/streak", "")
	var streak query.GetUserStreakResult
	require.NoError(t, json.Unmarshal(env.Data, &streak))
	assert.Equal(t, 0, streak.FreezesAvailable)
	assert.Equal(t, 3, streak.FreezesUsed)
	assert.Equal(t, 0, streak.CurrentStreak)
}

func TestServer_RecordActivity(t *testing.T) {
	h := newTestServer(t, newTestDeps())

	rec, env := do(t, h, http.MethodPost, "/api/v1/users/carol/activity", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result command.RecordActivityResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.Streak.CurrentStreak)

	// A client-supplied date is ignored; the day comes from the server clock.
	nextWeek := testNow.AddDate(0, 0, 7).Format(time.RFC3339)
	rec, env = do(t, h, http.MethodPost, "/api/v1/users/carol/activity", `{"occurredAt":"`+nextWeek+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, progression.StreakUnchanged, result.Outcome)
	assert.Equal(t, 1, result.Streak.CurrentStreak)
	assert.Equal(t, progression.DayOf(testNow, time.UTC), result.Streak.LastActivityDate.UTC())
}

func TestServer_ReadEndpoints(t *testing.T) {
	h := newTestServer(t, newTestDeps())

	_, _ = do(t, h, http.MethodPost, "/api/v1/users/alice/xp", `{"amount":30,"reason":"quiz","sourceType":"quiz"}`)

	tests := []struct {
		path     string
		wantCode int
	}{
		{path: "/api/v1/users/alice/daily-goal", wantCode: http.StatusOK},
		{path: "/api/v1/users/alice/activity?days=7", wantCode: http.StatusOK},
		{path: "/api/v1/users/alice/activity?days=400", wantCode: http.StatusBadRequest},
		{path: "/api/v1/users/alice/activity?days=week", wantCode: http.StatusBadRequest},
		{path: "/api/v1/users/alice/achievements", wantCode: http.StatusOK},
		{path: "/api/v1/users/alice/xp?recent=x", wantCode: http.StatusBadRequest},
		{path: "/api/v1/achievements", wantCode: http.StatusOK},
		{path: "/api/v1/users/alice/unknown", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	_, env := do(t, h, http.MethodGet, "/api/v1/users/alice/daily-goal", "")
	var goal query.GetDailyGoalResult
	require.NoError(t, json.Unmarshal(env.Data, &goal))
	assert.Equal(t, 30, goal.CurrentXP)
	assert.Equal(t, "2026-03-20", goal.Day)

	_, env = do(t, h, http.MethodGet, "/api/v1/achievements", "")
	assert.Equal(t, len(progression.DefaultCatalog()), env.Meta.TotalCount)
}

func TestServer_CheckAchievements(t *testing.T) {
	h := newTestServer(t, newTestDeps())

	rec, _ := do(t, h, http.MethodPost, "/api/v1/users/alice/achievements/check", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, h, http.MethodPost, "/api/v1/users/alice/achievements/check", `{"eventType":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", env.Error.Code)
}

func TestServer_Leaderboard(t *testing.T) {
	h := newTestServer(t, newTestDeps())

	for _, user := range []string{"zed", "amy", "bob"} {
		amount := 300
		if user == "bob" {
			amount = 120
		}
		rec, _ := do(t, h, http.MethodPost, "/api/v1/users/"+user+"/xp",
			fmt.Sprintf(`{"amount":%d,"reason":"r","sourceType":"manual"}`, amount))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, env := do(t, h, http.MethodGet, "/api/v1/leaderboard?timeframe=weekly&limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page query.GetLeaderboardResult
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Entries, 2)
	assert.Equal(t, shared.UserID("amy"), page.Entries[0].UserID)
	assert.Equal(t, shared.UserID("zed"), page.Entries[1].UserID)
	assert.True(t, env.Meta.HasMore)
	assert.Equal(t, 3, env.Meta.TotalCount)

	rec, env = do(t, h, http.MethodGet, "/api/v1/leaderboard?timeframe=yearly", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", env.Error.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/leaderboard?offset=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/leaderboard?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_AuthAndHealth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	auth, err := handlers.NewAPIKeyAuth("X-API-Key", []string{string(hash)})
	require.NoError(t, err)

	deps := newTestDeps()
	deps.Auth = auth
	h := newTestServer(t, deps)

	rec, _ := do(t, h, http.MethodGet, "/api/v1/achievements", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/achievements", nil)
	req.Header.Set("X-API-Key", "s3cret")
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))

	rec, env := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, env.RequestID)

	rec, _ = do(t, h, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Unhealthy(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("v1")
	checker.AddCheck("postgres", func(context.Context) error { return errors.New("down") })

	deps := newTestDeps()
	deps.HealthChecker = checker
	h := newTestServer(t, deps)

	rec, _ := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_NotConfigured(t *testing.T) {
	h := newTestServer(t, Dependencies{Logger: logger.Nop()})

	rec, env := do(t, h, http.MethodGet, "/api/v1/leaderboard", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, "not_implemented", env.Error.Code)
}

func TestServer_RecoversFromPanics(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{Logger: logger.Nop()})
	t.Cleanup(s.rateLimiter.Stop)

	h := s.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_server_error")
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid amount", fmt.Errorf("award_xp: %w", shared.ErrInvalidAmount), http.StatusBadRequest, "invalid_amount"},
		{"invalid user id", shared.ErrInvalidUserID, http.StatusBadRequest, "invalid_input"},
		{"invalid page", shared.ErrInvalidPage, http.StatusBadRequest, "invalid_input"},
		{"not found", shared.ErrAchievementNotFound, http.StatusNotFound, "not_found"},
		{"no freeze", fmt.Errorf("apply_freeze: %w", shared.ErrNoFreezeAvailable), http.StatusConflict, "no_freeze_available"},
		{"conflict", shared.ErrAchievementConflict, http.StatusConflict, "conflict"},
		{"contended", shared.ErrLedgerContended, http.StatusConflict, "conflict"},
		{"unknown", errors.New("pool closed"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := errorStatus(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	clock := testNow
	rl := &rateLimiter{
		requests: make(map[string][]time.Time),
		limit:    2,
		window:   time.Minute,
		now:      func() time.Time { return clock },
		stop:     make(chan struct{}),
	}

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	clock = clock.Add(61 * time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))

	clock = clock.Add(2 * time.Minute)
	rl.cleanup()
	assert.Empty(t, rl.requests)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", getClientIP(req))
}
