package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter counts requests per client in fixed minute and hour windows.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int

	clients map[string]*clientUsage
	now     func() time.Time
}

type clientUsage struct {
	minuteStart time.Time
	minuteCount int
	hourStart   time.Time
	hourCount   int
}

// NewRateLimiter creates a limiter. A limit of 0 disables that window.
func NewRateLimiter(requestsPerMinute, requestsPerHour int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		clients:           make(map[string]*clientUsage),
		now:               time.Now,
	}
}

// CheckRateLimit records a request from client, or returns a *RateLimitError
// when a window is full.
func (rl *RateLimiter) CheckRateLimit(client string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.clients[client]
	if !ok {
		u = &clientUsage{minuteStart: now, hourStart: now}
		rl.clients[client] = u
	}
	if now.Sub(u.minuteStart) >= time.Minute {
		u.minuteStart, u.minuteCount = now, 0
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.hourStart, u.hourCount = now, 0
	}

	if rl.requestsPerMinute > 0 && u.minuteCount >= rl.requestsPerMinute {
		return &RateLimitError{Type: "minute", Limit: rl.requestsPerMinute, RetryAfter: time.Minute - now.Sub(u.minuteStart)}
	}
	if rl.requestsPerHour > 0 && u.hourCount >= rl.requestsPerHour {
		return &RateLimitError{Type: "hour", Limit: rl.requestsPerHour, RetryAfter: time.Hour - now.Sub(u.hourStart)}
	}
	u.minuteCount++
	u.hourCount++
	return nil
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter.Round(time.Second))
}
