package httplimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowsUpToBurstThenRejects(t *testing.T) {
	l := NewLimiter(Config{MaxCallsPerMinute: 2, BurstSize: 2})

	assert.True(t, l.Allow("key1"))
	assert.True(t, l.Allow("key1"))
	assert.False(t, l.Allow("key1"))
}

func TestLimiter_DifferentKeysAreIndependent(t *testing.T) {
	l := NewLimiter(Config{MaxCallsPerMinute: 1, BurstSize: 1})

	assert.True(t, l.Allow("key1"))
	assert.False(t, l.Allow("key1"))
	assert.True(t, l.Allow("key2"))
}

func TestLimiter_DefaultsApplied(t *testing.T) {
	l := NewLimiter(Config{})
	assert.Equal(t, 30, l.cfg.MaxCallsPerMinute)
	assert.Equal(t, 60, l.cfg.BurstSize)
}

func TestLimiter_MiddlewareReturns429WhenExceeded(t *testing.T) {
	l := NewLimiter(Config{MaxCallsPerMinute: 1, BurstSize: 1})
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer token-1")

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req)
	require.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
	assert.Equal(t, "60", rec2.Header().Get("Retry-After"))
}

func TestLimiter_MiddlewareKeysOnRemoteAddrWithoutAuthHeader(t *testing.T) {
	l := NewLimiter(Config{MaxCallsPerMinute: 1, BurstSize: 1})
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req1 := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	req1.RemoteAddr = "10.0.0.1:1234"
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)
	assert.Equal(t, http.StatusOK, rec1.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	req2.RemoteAddr = "10.0.0.2:5555"
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code, "a different remote addr must have its own window")
}
