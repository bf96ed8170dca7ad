// Package ratelimit provides fixed-window request limiters keyed by an
// arbitrary string such as a client address.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type bucket struct {
	count int
	start time.Time
}

// Memory is an in-process limiter. It is only correct for a single instance.
type Memory struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]bucket
	lastGC  time.Time
	now     func() time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		window:  window,
		buckets: map[string]bucket{},
		lastGC:  time.Now().UTC(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (l *Memory) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastGC) > time.Minute {
		for k, b := range l.buckets {
			if now.Sub(b.start) > 3*l.window {
				delete(l.buckets, k)
			}
		}
		l.lastGC = now
	}
	b, ok := l.buckets[key]
	if !ok || now.Sub(b.start) >= l.window {
		l.buckets[key] = bucket{count: 1, start: now}
		return true, nil
	}
	if b.count >= l.limit {
		return false, nil
	}
	b.count++
	l.buckets[key] = b
	return true, nil
}
