package bucket

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"usergate/internal/ratelimit/models"
)

const (
	shardCount = 32
	// Entries idle for this many windows are removed by the janitor.
	idleWindows = 3
)

// InMemoryBucketStore implements BucketStore with a fixed counting window per
// key. State is sharded so concurrent checks for unrelated keys do not contend
// on one lock; checks for the same key are atomic within its shard.
// Suitable for single-instance deployments; use RedisBucketStore when limits
// must hold across instances.
type InMemoryBucketStore struct {
	shards    [shardCount]*shard
	stop      chan struct{}
	closeOnce sync.Once
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*countingWindow
}

// countingWindow tracks admissions for one key within the current window.
type countingWindow struct {
	count       int
	windowStart time.Time
	window      time.Duration
	lastSeen    time.Time
}

// NewInMemoryBucketStore creates the store and starts a janitor goroutine that
// evicts idle keys to bound memory under high key cardinality.
func NewInMemoryBucketStore() *InMemoryBucketStore {
	s := &InMemoryBucketStore{stop: make(chan struct{})}
	for i := range s.shards {
		s.shards[i] = &shard{windows: make(map[string]*countingWindow)}
	}
	go s.janitor()
	return s
}

// Allow checks whether one more admission fits in the key's current window and
// consumes a permit if so. A denied check does not mutate the counter.
func (s *InMemoryBucketStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := time.Now()
	sh := s.shard(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	cw := sh.windows[key]
	if cw == nil {
		cw = &countingWindow{windowStart: now, window: window}
		sh.windows[key] = cw
	}
	if now.Sub(cw.windowStart) >= window {
		cw.count = 0
		cw.windowStart = now
	}
	cw.window = window
	cw.lastSeen = now

	resetAt := cw.windowStart.Add(window)
	if cw.count < limit {
		cw.count++
		return &models.RateLimitResult{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - cw.count,
			ResetAt:   resetAt,
		}, nil
	}

	return &models.RateLimitResult{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retryAfterSeconds(now, resetAt),
	}, nil
}

// Reset clears the counter for a key.
func (s *InMemoryBucketStore) Reset(_ context.Context, key string) error {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.windows, key)
	return nil
}

// Len reports the number of tracked keys across all shards.
func (s *InMemoryBucketStore) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.windows)
		sh.mu.Unlock()
	}
	return total
}

// Close stops the janitor. Safe to call more than once.
func (s *InMemoryBucketStore) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
}

func (s *InMemoryBucketStore) shard(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

func (s *InMemoryBucketStore) janitor() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.evictIdle(now)
		}
	}
}

func (s *InMemoryBucketStore) evictIdle(now time.Time) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, cw := range sh.windows {
			if now.Sub(cw.lastSeen) > time.Duration(idleWindows)*cw.window {
				delete(sh.windows, key)
			}
		}
		sh.mu.Unlock()
	}
}

func retryAfterSeconds(now, resetAt time.Time) int {
	secs := int(resetAt.Sub(now).Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return secs
}
