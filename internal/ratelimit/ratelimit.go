// Package ratelimit enforces sliding-window request limits on the query
// API.
//
// The default backend is an in-memory window per process. Deployments
// running more than one instance substitute Redis for cross-instance
// coordination. A limiter malfunction fails open: telemetry queries are
// read-only, so permitting traffic is cheaper than blocking operators
// during a Redis outage.
package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// Rule is one named limit: at most Limit requests per Window, counted
// separately per key under the rule's prefix.
type Rule struct {
	Prefix string
	Limit  int
	Window time.Duration
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// FormatHeaders returns the standard X-RateLimit-* response headers.
func (r Result) FormatHeaders() map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(r.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(r.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(r.ResetAt.Unix(), 10),
	}
}

// backend counts a request against one fully-qualified key.
type backend interface {
	take(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
	close() error
}

// Limiter applies rules against a counting backend.
type Limiter struct {
	backend backend
	logger  *slog.Logger
}

// NewMemory creates a limiter backed by per-process sliding windows.
func NewMemory(logger *slog.Logger) *Limiter {
	return &Limiter{backend: newMemoryBackend(), logger: logger}
}

// noop permits everything; used when rate limiting is disabled.
type noop struct{}

func (noop) take(_ context.Context, _ string, limit int, window time.Duration) (Result, error) {
	return Result{Allowed: true, Limit: limit, Remaining: limit, ResetAt: time.Now().Add(window)}, nil
}

func (noop) close() error { return nil }

// NewNoop creates a limiter that permits every request.
func NewNoop(logger *slog.Logger) *Limiter {
	return &Limiter{backend: noop{}, logger: logger}
}

// Allow counts one request for key under rule. Backend errors fail open.
func (l *Limiter) Allow(ctx context.Context, rule Rule, key string) Result {
	res, err := l.backend.take(ctx, rule.Prefix+":"+key, rule.Limit, rule.Window)
	if err != nil {
		l.logger.Warn("ratelimit: backend error, failing open",
			"rule", rule.Prefix, "error", err)
		return Result{Allowed: true, Limit: rule.Limit, Remaining: rule.Limit, ResetAt: time.Now().Add(rule.Window)}
	}
	res.Limit = rule.Limit
	return res
}

// Close releases backend resources.
func (l *Limiter) Close() error { return l.backend.close() }
