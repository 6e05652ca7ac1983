package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestTokenBucketRefills(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tb := NewTokenBucket(ctx, 1, 2)
	now := time.Now()
	tb.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, _ := tb.Allow(ctx, "1.2.3.4")
		assert.True(t, ok)
	}
	ok, _ := tb.Allow(ctx, "1.2.3.4")
	assert.False(t, ok, "burst exhausted")
	ok, _ = tb.Allow(ctx, "5.6.7.8")
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Second)
	ok, _ = tb.Allow(ctx, "1.2.3.4")
	assert.True(t, ok, "one token refilled")
}

func TestRedisWindowPerSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewRedisWindow(client, "otp", 2, time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	r := chi.NewRouter()
	r.With(RateLimit(limiter, URLParam("token"))).Post("/api/verification/{token}/send", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	send := func(token string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/verification/"+token+"/send", nil))
		return w.Code
	}

	assert.Equal(t, http.StatusAccepted, send("tok-a"))
	assert.Equal(t, http.StatusAccepted, send("tok-a"))
	assert.Equal(t, http.StatusTooManyRequests, send("tok-a"))
	assert.Equal(t, http.StatusAccepted, send("tok-b"))

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusAccepted, send("tok-a"), "new window")
}

func TestRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := NewRedisWindow(client, "otp", 1, time.Minute)
	mr.Close()

	h := RateLimit(limiter, ClientIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
