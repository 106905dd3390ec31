package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/config"
	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func send(h http.Handler, remote string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", nil)
	req.RemoteAddr = remote
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_LoginBurstThenBlocked(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{LoginPerMinute: 5}, "test")
	h := limiter.Limit(TierLogin)(okHandler())

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, send(h, "192.168.1.100:1234", nil).Code, "request %d", i+1)
	}
	rec := send(h, "192.168.1.100:1234", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "12", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRateLimit_PerClientIsolation(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{LoginPerMinute: 1}, "test")
	h := limiter.Limit(TierLogin)(okHandler())

	assert.Equal(t, http.StatusOK, send(h, "192.168.1.100:1234", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, send(h, "192.168.1.100:1234", nil).Code)
	assert.Equal(t, http.StatusOK, send(h, "192.168.1.200:1234", nil).Code)
}

func TestRateLimit_ZeroBudgetIsUnlimited(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{}, "test")
	h := limiter.Limit(TierPublic)(okHandler())
	for i := 0; i < 50; i++ {
		assert.Equal(t, http.StatusOK, send(h, "10.0.0.1:1", nil).Code)
	}
}

func TestRateLimit_ForwardedForOnlyFromTrustedProxy(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{LoginPerMinute: 1, TrustedProxyCIDRs: []string{"10.0.0.0/8"}}, "test")
	h := limiter.Limit(TierLogin)(okHandler())

	// Behind the trusted proxy each forwarded client has its own bucket.
	assert.Equal(t, http.StatusOK, send(h, "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.1"}).Code)
	assert.Equal(t, http.StatusOK, send(h, "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.2, 10.0.0.1"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, send(h, "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.1"}).Code)

	// A direct client cannot escape its bucket by spoofing the header.
	assert.Equal(t, http.StatusOK, send(h, "198.51.100.7:1", map[string]string{"X-Forwarded-For": "1.1.1.1"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, send(h, "198.51.100.7:1", map[string]string{"X-Forwarded-For": "2.2.2.2"}).Code)
}

func TestRateLimit_CleanupEvictsIdleBuckets(t *testing.T) {
	limiter := NewRateLimiter(config.RateLimitConfig{PublicPerMinute: 10}, "test")
	now := time.Now()
	limiter.now = func() time.Time { return now }
	limiter.limiter(TierPublic, "a")
	limiter.limiter(TierPublic, "b")

	now = now.Add(limiterTTL + time.Minute)
	limiter.limiter(TierPublic, "b")
	limiter.cleanup()

	assert.Len(t, limiter.limiters, 1)
	assert.Contains(t, limiter.limiters, "public:b")
}
