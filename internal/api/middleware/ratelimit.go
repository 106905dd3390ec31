package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/api/problem"
	"github.com/Togather-Foundation/eventhub/internal/config"
	"golang.org/x/time/rate"
)

type RateLimitTier string

const (
	TierPublic RateLimitTier = "public"
	TierLogin  RateLimitTier = "login"
	TierAdmin  RateLimitTier = "admin"
)

const (
	limiterTTL      = 15 * time.Minute
	cleanupInterval = 5 * time.Minute
)

// RateLimiter keeps one token bucket per tier and client address. Each tier
// allows its per-minute budget as a burst and refills evenly over a minute.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	perMinute map[RateLimitTier]int
	trusted   []*net.IPNet
	env       string
	now       func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig, env string) *RateLimiter {
	l := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		perMinute: map[RateLimitTier]int{
			TierPublic: cfg.PublicPerMinute,
			TierLogin:  cfg.LoginPerMinute,
			TierAdmin:  cfg.AdminPerMinute,
		},
		env: env,
		now: time.Now,
	}
	for _, cidr := range cfg.TrustedProxyCIDRs {
		if _, block, err := net.ParseCIDR(strings.TrimSpace(cidr)); err == nil {
			l.trusted = append(l.trusted, block)
		}
	}
	return l
}

// Limit applies the tier's budget to the wrapped handler. A tier with no
// budget is unlimited.
func (l *RateLimiter) Limit(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := l.limiter(tier, l.clientKey(r))
			if limiter == nil || limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}
			retry := int(time.Minute.Seconds()) / max(l.perMinute[tier], 1)
			w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
			problem.Write(w, r, http.StatusTooManyRequests, problem.TypeRateLimited, "Too many requests", nil, l.env)
		})
	}
}

func (l *RateLimiter) limiter(tier RateLimitTier, key string) *rate.Limiter {
	limit := l.perMinute[tier]
	if limit <= 0 {
		return nil
	}
	lookup := string(tier) + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok := l.limiters[lookup]; ok {
		entry.lastSeen = l.now()
		return entry.limiter
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(limit)), limit)
	l.limiters[lookup] = &limiterEntry{limiter: limiter, lastSeen: l.now()}
	return limiter
}

// Run evicts idle buckets until ctx is cancelled.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *RateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-limiterTTL)
	for key, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
}

// clientKey identifies the caller by its remote address. Forwarding headers
// are honoured only when the peer is a trusted proxy.
func (l *RateLimiter) clientKey(r *http.Request) string {
	remoteIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remoteIP = r.RemoteAddr
	}
	if !l.isTrustedProxy(remoteIP) {
		return remoteIP
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return remoteIP
}

func (l *RateLimiter) isTrustedProxy(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, block := range l.trusted {
		if block.Contains(parsed) {
			return true
		}
	}
	return false
}
