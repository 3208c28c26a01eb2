// Package middleware provides HTTP middleware functions for the API.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"tacoshare-tracking-api/pkg/httpx"

	"github.com/go-redis/redis/v8"
)

// Limiter decides whether the request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimiter implements an in-memory fixed-window rate limiter.
// Use NewRedisRateLimiter when several instances share the limit.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*client
	rate     int           // requests per window
	window   time.Duration // time window
	cleanup  time.Duration // cleanup interval for expired entries
	stopChan chan struct{}
	stopOnce sync.Once
}

type client struct {
	tokens    int
	lastReset time.Time
}

// RateLimitConfig holds the configuration for the rate limiter
type RateLimitConfig struct {
	// Rate is the maximum number of requests allowed per window
	Rate int

	// Window is the time window for rate limiting
	Window time.Duration

	// CleanupInterval is how often to clean up expired client entries
	CleanupInterval time.Duration

	// KeyFunc extracts the rate limit key from the request (default: client IP)
	KeyFunc func(r *http.Request) string

	// Limiter overrides the in-memory limiter
	Limiter Limiter

	// Logger reports limiter backend failures
	Logger *slog.Logger
}

// DefaultRateLimitConfig returns a default rate limit configuration.
// 100 requests per minute per IP.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Rate:            100,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
		KeyFunc:         defaultKeyFunc,
	}
}

// defaultKeyFunc extracts the client IP from the request.
// It checks X-Forwarded-For and X-Real-IP headers first (for reverse proxies).
func defaultKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}

// UserKeyFunc keys the limit by authenticated user, falling back to client IP.
// Couriers behind the same carrier NAT share an IP but not a user ID.
func UserKeyFunc(r *http.Request) string {
	if id, ok := GetUserID(r.Context()); ok {
		return "user:" + id.String()
	}
	return defaultKeyFunc(r)
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		clients:  make(map[string]*client),
		rate:     config.Rate,
		window:   config.Window,
		cleanup:  config.CleanupInterval,
		stopChan: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// cleanupLoop periodically removes expired client entries
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupExpired()
		case <-rl.stopChan:
			return
		}
	}
}

// cleanupExpired removes client entries that haven't been accessed recently
func (rl *RateLimiter) cleanupExpired() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := time.Now().Add(-rl.window * 2)
	for key, c := range rl.clients {
		if c.lastReset.Before(threshold) {
			delete(rl.clients, key)
		}
	}
}

// Stop stops the cleanup goroutine. Call this when shutting down.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

// Allow checks if a request should be allowed based on the rate limit.
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	c, exists := rl.clients[key]
	if !exists || now.Sub(c.lastReset) >= rl.window {
		rl.clients[key] = &client{
			tokens:    rl.rate - 1,
			lastReset: now,
		}
		return true, nil
	}

	if c.tokens > 0 {
		c.tokens--
		return true, nil
	}

	return false, nil
}

// RedisRateLimiter counts requests per window in Redis
type RedisRateLimiter struct {
	client *redis.Client
	rate   int
	window time.Duration
	prefix string
}

// NewRedisRateLimiter creates a limiter shared by every instance using client
func NewRedisRateLimiter(client *redis.Client, rate int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, rate: rate, window: window, prefix: "ratelimit:"}
}

// Allow increments the window counter for key
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := rl.prefix + key

	count, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	// The first hit of a window starts its expiry
	if count == 1 {
		if err := rl.client.PExpire(ctx, redisKey, rl.window).Err(); err != nil {
			return true, err
		}
	}
	return count <= int64(rl.rate), nil
}

// RateLimit returns a middleware that limits requests per key.
// Limiter backend failures let the request through.
func RateLimit(config RateLimitConfig) func(http.Handler) http.Handler {
	limiter := config.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(config)
	}

	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = defaultKeyFunc
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), keyFunc(r))
			if err != nil {
				logger.Warn("rate limiter unavailable", slog.String("error", err.Error()))
				allowed = true
			}

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(config.Window.Seconds())))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Rate))

				httpx.RespondError(w, http.StatusTooManyRequests, "Límite de solicitudes excedido. Intenta de nuevo más tarde.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
