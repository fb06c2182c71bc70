package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestAllow_FixedWindow(t *testing.T) {
	mr, client := newTestRedis(t)
	l := New(client, Config{Prefix: "resend", Limit: 2, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
	}
	retry, err := l.Allow(ctx, "1.2.3.4")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, time.Minute, retry)

	_, err = l.Allow(ctx, "5.6.7.8")
	assert.NoError(t, err, "other clients have their own budget")

	mr.FastForward(time.Minute + time.Second)
	_, err = l.Allow(ctx, "1.2.3.4")
	assert.NoError(t, err)
}

func TestAllow_RedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	l := New(client, Config{Limit: 1, Window: time.Minute})
	mr.Close()

	_, err := l.Allow(context.Background(), "1.2.3.4")
	assert.ErrorIs(t, err, ErrRedisUnavailable)
}

func TestByIP(t *testing.T) {
	_, client := newTestRedis(t)
	l := New(client, Config{Limit: 1, Window: time.Hour})
	handler := ByIP(l, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/resend-verification", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)
	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
}

func TestByIP_FailsOpen(t *testing.T) {
	mr, client := newTestRedis(t)
	l := New(client, Config{Limit: 1, Window: time.Hour})
	mr.Close()

	handler := ByIP(l, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestByIP_NilLimiterIsPassthrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })
	rec := httptest.NewRecorder()
	ByIP(nil, zap.NewNop())(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
