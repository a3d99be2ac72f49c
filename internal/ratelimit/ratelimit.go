// Package ratelimit provides Redis-backed rate limiting for gateway endpoints.
// When Redis is unavailable (nil store), all rate limits are disabled — requests pass.
// This ensures the service degrades gracefully in dev/test environments without Redis.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Store is the minimal interface required for rate limiting.
// In production this is implemented by go-redis; in tests by an in-memory map.
type Store interface {
	// Incr atomically increments a counter key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets the TTL on a key (only if TTL not already set by the incr).
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL returns the remaining time-to-live on a key. Returns 0 or negative if expired/missing.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Del removes one or more keys.
	Del(ctx context.Context, keys ...string) error
}

// Limiter performs rate limit checks against a Store.
type Limiter struct {
	store Store
	cfg   Config
}

// Config holds the per-endpoint rate limit settings.
type Config struct {
	// Chat sends, keyed per owner (student id or guest id).
	ChatRate   int
	ChatWindow time.Duration

	// Proxy streams (manifest + segment fetches), keyed per client IP.
	ProxyRate   int
	ProxyWindow time.Duration

	// Resolve/sign/thumbnail API calls, keyed per client IP.
	ResolveRate   int
	ResolveWindow time.Duration
}

// DefaultConfig returns the production rate limit configuration.
//
//	Chat:    20 sends per minute per owner
//	Proxy:   300 fetches per minute per IP (HLS segment cadence)
//	Resolve: 120 calls per minute per IP
func DefaultConfig() Config {
	return Config{
		ChatRate:      20,
		ChatWindow:    time.Minute,
		ProxyRate:     300,
		ProxyWindow:   time.Minute,
		ResolveRate:   120,
		ResolveWindow: time.Minute,
	}
}

// New creates a Limiter backed by the given Store.
// If store is nil, the Limiter is a no-op that always allows requests.
func New(store Store, cfg Config) *Limiter {
	return &Limiter{store: store, cfg: cfg}
}

// Enabled reports whether a backing store is wired.
func (l *Limiter) Enabled() bool { return l.store != nil }

// CheckChatSend enforces the chat send limit for the given owner key.
// Returns (allowed bool, retryAfterSecs int).
func (l *Limiter) CheckChatSend(ctx context.Context, ownerKey string) (bool, int) {
	return l.check(ctx, fmt.Sprintf("rl:chat:%s", ownerKey), l.cfg.ChatRate, int(l.cfg.ChatWindow.Seconds()))
}

// CheckProxyStream enforces the proxy fetch limit for the given client IP.
func (l *Limiter) CheckProxyStream(ctx context.Context, ip string) (bool, int) {
	return l.check(ctx, fmt.Sprintf("rl:proxy:%s", ip), l.cfg.ProxyRate, int(l.cfg.ProxyWindow.Seconds()))
}

// CheckResolve enforces the resolve/sign/thumbnail limit for the given client IP.
func (l *Limiter) CheckResolve(ctx context.Context, ip string) (bool, int) {
	return l.check(ctx, fmt.Sprintf("rl:resolve:%s", ip), l.cfg.ResolveRate, int(l.cfg.ResolveWindow.Seconds()))
}

// Reset clears the chat counter for an owner key. Used by tests and admin tooling.
func (l *Limiter) Reset(ctx context.Context, ownerKey string) {
	if l.store == nil {
		return
	}
	l.store.Del(ctx, fmt.Sprintf("rl:chat:%s", ownerKey))
}

// ClientIP extracts the real client IP from a request, handling reverse proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return addr[:i]
	}
	return addr
}

// check is the generic increment-and-check against a Redis key.
// Returns (allowed, retryAfterSecs). If store is nil, always returns (true, 0).
func (l *Limiter) check(ctx context.Context, key string, max int, ttlSecs int) (bool, int) {
	if l.store == nil {
		return true, 0
	}

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		// Redis error — fail open (allow request, don't block on infra issues)
		return true, 0
	}

	if count == 1 {
		l.store.Expire(ctx, key, time.Duration(ttlSecs)*time.Second)
	}

	if count > int64(max) {
		ttl, _ := l.store.TTL(ctx, key)
		retry := int(ttl.Seconds())
		if retry < 1 {
			retry = ttlSecs
		}
		return false, retry
	}

	return true, 0
}
