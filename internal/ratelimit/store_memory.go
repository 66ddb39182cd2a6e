package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a sliding-window attempt counter. Not distributed; for a
// multi-replica deployment use the redis store.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
}

type slidingWindow struct {
	timestamps []time.Time
}

// NewInMemoryStore builds an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{windows: make(map[string]*slidingWindow)}
}

// Allow records one attempt under a sliding window. The window slides per
// attempt, so a burst at a boundary cannot double the effective limit.
func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sw := s.windows[key]
	if sw == nil {
		sw = &slidingWindow{}
		s.windows[key] = sw
	}
	sw.drop(now.Add(-window))

	if len(sw.timestamps) >= limit {
		return Result{
			Allowed: false,
			Limit:   limit,
			ResetAt: sw.timestamps[0].Add(window),
		}, nil
	}
	sw.timestamps = append(sw.timestamps, now)
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(window),
	}, nil
}

func (sw *slidingWindow) drop(cutoff time.Time) {
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}
