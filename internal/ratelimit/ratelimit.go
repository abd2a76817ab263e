// File: internal/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config holds rate limiting configuration
type Config struct {
	WindowSize    time.Duration // Time window for counting attempts
	MaxAttempts   int           // Maximum attempts per window
	CleanupPeriod time.Duration // How often to drop stale entries
	BanDuration   time.Duration // How long to block after exceeding the limit
}

// DefaultLoginConfig limits password attempts on /token/.
func DefaultLoginConfig() *Config {
	return &Config{
		WindowSize:    15 * time.Minute,
		MaxAttempts:   5,
		CleanupPeriod: 30 * time.Minute,
		BanDuration:   30 * time.Minute,
	}
}

// DefaultRefreshConfig is looser; clients refresh on every expired access
// token.
func DefaultRefreshConfig() *Config {
	return &Config{
		WindowSize:    time.Minute,
		MaxAttempts:   30,
		CleanupPeriod: 10 * time.Minute,
		BanDuration:   5 * time.Minute,
	}
}

// RateLimitInfo contains information about rate limit status
type RateLimitInfo struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
	Banned     bool
}

type attemptRecord struct {
	Count     int
	FirstSeen time.Time
	BannedAt  *time.Time
}

// MemoryRateLimiter counts attempts per client in memory.
type MemoryRateLimiter struct {
	config   *Config
	attempts map[string]*attemptRecord
	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewMemoryRateLimiter creates a limiter and starts its cleanup goroutine.
func NewMemoryRateLimiter(config *Config) *MemoryRateLimiter {
	limiter := &MemoryRateLimiter{
		config:   config,
		attempts: make(map[string]*attemptRecord),
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
	go limiter.cleanupLoop()
	return limiter
}

// Allow counts one attempt for identifier and reports whether it may proceed.
func (rl *MemoryRateLimiter) Allow(identifier string) (bool, *RateLimitInfo) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	record, exists := rl.attempts[identifier]

	if exists && record.BannedAt != nil {
		if elapsed := now.Sub(*record.BannedAt); elapsed < rl.config.BanDuration {
			return false, rl.info(false, 0, record.BannedAt.Add(rl.config.BanDuration), rl.config.BanDuration-elapsed, true)
		}
		exists = false
	}

	if !exists || now.Sub(record.FirstSeen) > rl.config.WindowSize {
		rl.attempts[identifier] = &attemptRecord{Count: 1, FirstSeen: now}
		return true, rl.info(true, rl.config.MaxAttempts-1, now.Add(rl.config.WindowSize), 0, false)
	}

	record.Count++
	if record.Count > rl.config.MaxAttempts {
		banTime := now
		record.BannedAt = &banTime
		return false, rl.info(false, 0, now.Add(rl.config.BanDuration), rl.config.BanDuration, true)
	}
	return true, rl.info(true, rl.config.MaxAttempts-record.Count, record.FirstSeen.Add(rl.config.WindowSize), 0, false)
}

func (rl *MemoryRateLimiter) info(allowed bool, remaining int, reset time.Time, retry time.Duration, banned bool) *RateLimitInfo {
	return &RateLimitInfo{
		Allowed:    allowed,
		Limit:      rl.config.MaxAttempts,
		Remaining:  remaining,
		ResetTime:  reset,
		RetryAfter: retry,
		Banned:     banned,
	}
}

// RecordSuccess forgets the attempts of identifier.
func (rl *MemoryRateLimiter) RecordSuccess(identifier string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, identifier)
}

// Tracked reports how many identifiers currently hold a record.
func (rl *MemoryRateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.attempts)
}

func (rl *MemoryRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup removes records whose window or ban has run out.
func (rl *MemoryRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for identifier, record := range rl.attempts {
		windowExpired := now.Sub(record.FirstSeen) > rl.config.WindowSize
		banExpired := record.BannedAt != nil && now.Sub(*record.BannedAt) > rl.config.BanDuration

		if (windowExpired && record.BannedAt == nil) || banExpired {
			delete(rl.attempts, identifier)
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (rl *MemoryRateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GetClientIP extracts the real client IP from request
func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if ip := parseFirstIP(forwarded); ip != "" {
			return ip
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func parseFirstIP(forwarded string) string {
	first, _, _ := strings.Cut(forwarded, ",")
	return strings.TrimSpace(first)
}
