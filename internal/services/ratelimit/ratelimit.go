// Package ratelimit provides a per-user sliding window limiter for expensive calls.
package ratelimit

import (
	"sync"
	"time"
)

const (
	window          = time.Minute
	cleanupInterval = 5 * time.Minute
)

type Limiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter starts a limiter and its background cleanup; call Stop to end it.
func NewLimiter() *Limiter {
	l := &Limiter{
		requests: make(map[string][]time.Time),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow records a request for key and reports whether it fits within limitRpm
// requests over the last minute. A limit of zero or less disables limiting.
func (l *Limiter) Allow(key string, limitRpm int) bool {
	if limitRpm <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := prune(l.requests[key], now.Add(-window))
	if len(recent) >= limitRpm {
		l.requests[key] = recent
		return false
	}

	l.requests[key] = append(recent, now)
	return true
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-window)
	for key, times := range l.requests {
		recent := prune(times, cutoff)
		if len(recent) == 0 {
			delete(l.requests, key)
			continue
		}
		l.requests[key] = recent
	}
}

// prune drops timestamps at or before cutoff; times are in ascending order.
func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
