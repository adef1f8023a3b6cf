// Package ratelimit provides fixed-window request counters keyed by an
// arbitrary string (session, IP, ...).
//
// Semantics shared by every backend:
//   - A bucket is created lazily on the first call for a key with one hit
//     and a reset time of now+window; the call is allowed.
//   - Once now reaches the reset time the bucket is reset wholesale and the
//     call counts as the first of a new window.
//   - Within a window, calls are allowed while hits < limit; each allowed
//     call consumes one unit, denied calls consume nothing.
//
// Memory is process-local and only suitable for single-instance setups and
// tests. SQL and Redis share state across every instance that talks to the
// same database or Redis server.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether one more request for key fits into the current
// window. Implementations must be safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Clock returns the current time. Backends take one so tests can move time.
type Clock func() time.Time

func systemClock() time.Time { return time.Now() }
