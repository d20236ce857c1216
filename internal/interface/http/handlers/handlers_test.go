package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func hashKey(t *testing.T, key string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestNewAPIKeyAuth_Validation(t *testing.T) {
	_, err := NewAPIKeyAuth("", nil)
	assert.Error(t, err)

	_, err = NewAPIKeyAuth("", []string{"plain-text"})
	assert.Error(t, err)

	auth, err := NewAPIKeyAuth("", []string{hashKey(t, "k")})
	require.NoError(t, err)
	assert.Equal(t, "X-API-Key", auth.headerName)
}

func TestAPIKeyAuth_Middleware(t *testing.T) {
	auth, err := NewAPIKeyAuth("X-API-Key", []string{hashKey(t, "first"), hashKey(t, "second")})
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := auth.Middleware(ok)

	tests := []struct {
		name     string
		header   string
		value    string
		wantCode int
		wantBody string
	}{
		{name: "missing key", wantCode: http.StatusUnauthorized, wantBody: "missing_api_key"},
		{name: "wrong key", header: "X-API-Key", value: "third", wantCode: http.StatusUnauthorized, wantBody: "invalid_api_key"},
		{name: "header key", header: "X-API-Key", value: "second", wantCode: http.StatusNoContent},
		{name: "bearer key", header: "Authorization", value: "Bearer first", wantCode: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/achievements", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}

	// A verified key is served from the digest cache.
	assert.Len(t, auth.verified, 2)
	assert.True(t, auth.IsValid("first"))
	assert.False(t, auth.IsValid(""))
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	h := RequestSizeLimitMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":100000}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChainHandler_Order(t *testing.T) {
	var order []string
	mw := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := ChainHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("first"), NoCacheMiddleware, mw("second"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"first", "second", "handler"}, order)
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCompositeHealthChecker(t *testing.T) {
	up := NewPingCheck(pingFunc(func(context.Context) error { return nil }))
	down := NewPingCheck(pingFunc(func(context.Context) error { return errors.New("refused") }))

	tests := []struct {
		name        string
		setup       func(c *CompositeHealthChecker)
		wantStatus  string
		wantHealthy bool
		wantMessage string
	}{
		{
			name:        "no checks",
			setup:       func(*CompositeHealthChecker) {},
			wantStatus:  StatusOK,
			wantHealthy: true,
		},
		{
			name: "all up",
			setup: func(c *CompositeHealthChecker) {
				c.AddCheck("postgres", up)
				c.AddOptionalCheck("redis", up)
			},
			wantStatus:  StatusOK,
			wantHealthy: true,
		},
		{
			name: "optional down degrades",
			setup: func(c *CompositeHealthChecker) {
				c.AddCheck("postgres", up)
				c.AddOptionalCheck("redis", down)
			},
			wantStatus:  StatusDegraded,
			wantHealthy: true,
			wantMessage: "failing: redis",
		},
		{
			name: "required down",
			setup: func(c *CompositeHealthChecker) {
				c.AddCheck("postgres", down)
				c.AddOptionalCheck("redis", down)
			},
			wantStatus:  StatusDown,
			wantHealthy: false,
			wantMessage: "failing: postgres, redis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewCompositeHealthChecker("v1")
			tt.setup(checker)

			status := checker.Check(context.Background())
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Equal(t, tt.wantHealthy, status.Healthy)
			assert.Equal(t, tt.wantHealthy, status.Ready)
			assert.Equal(t, tt.wantMessage, status.Message)
			assert.Equal(t, "v1", status.Version)
		})
	}
}

func TestCompositeHealthChecker_RemoveCheck(t *testing.T) {
	checker := NewCompositeHealthChecker("v1")
	checker.AddCheck("postgres", NewPingCheck(pingFunc(func(context.Context) error { return errors.New("refused") })))

	status := checker.Check(context.Background())
	require.Contains(t, status.Checks, "postgres")
	assert.Equal(t, "refused", status.Checks["postgres"].Message)
	assert.True(t, status.Checks["postgres"].Required)

	checker.RemoveCheck("postgres")
	assert.True(t, checker.Check(context.Background()).Healthy)
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	checker := NewCompositeHealthChecker("v1")
	checker.SetTimeout(10 * time.Millisecond)
	checker.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := checker.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Checks["slow"].Message, "deadline")
}
