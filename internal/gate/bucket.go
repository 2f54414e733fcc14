package gate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// stepEpoch is the origin of the clock the limiters run on. One elapsed
// interval advances that clock by one second, so each step adds exactly
// refill tokens.
var stepEpoch = time.Unix(0, 0)

// BucketStore keeps one token bucket per client address and forgets idle ones.
// A bucket holds up to capacity tokens and gains refill tokens at the end of
// each full interval since it was created.
type BucketStore struct {
	mu           sync.Mutex
	entries      map[string]*bucketEntry
	capacity     int
	refill       int
	interval     time.Duration
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type bucketEntry struct {
	lim      *rate.Limiter
	created  time.Time
	lastSeen time.Time
}

type BucketOption func(*BucketStore)

func WithIdleTTL(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.cleanupEvery = d }
}

// NewBucketStore creates buckets holding capacity tokens and refilling
// refill tokens per interval. The idle TTL is raised to the time a drained
// bucket needs to fill up again, so eviction never hands out extra tokens.
func NewBucketStore(capacity, refill int, interval time.Duration, opts ...BucketOption) *BucketStore {
	s := &BucketStore{
		entries:      make(map[string]*bucketEntry),
		capacity:     capacity,
		refill:       refill,
		interval:     interval,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	if full := s.FullRefill(); s.idleTTL < full {
		s.idleTTL = full
	}
	return s
}

func (s *BucketStore) Capacity() int { return s.capacity }

// FullRefill is how long an empty bucket takes to reach capacity again.
func (s *BucketStore) FullRefill() time.Duration {
	if s.refill <= 0 || s.interval <= 0 {
		return 0
	}
	steps := (s.capacity + s.refill - 1) / s.refill
	return time.Duration(steps) * s.interval
}

// IdleTTL is how long a bucket may go unused before the janitor drops it.
func (s *BucketStore) IdleTTL() time.Duration { return s.idleTTL }

func (s *BucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *BucketStore) entry(key string, now time.Time) *bucketEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent
	}

	ent := &bucketEntry{
		lim:      rate.NewLimiter(rate.Limit(s.refill), s.capacity),
		created:  now,
		lastSeen: now,
	}
	s.entries[key] = ent
	return ent
}

// Take consumes one token from the bucket of key. When the bucket is empty it
// reports false and how long until the next refill.
func (s *BucketStore) Take(key string, now time.Time) (bool, time.Duration) {
	ent := s.entry(key, now)

	var steps int64
	if s.interval > 0 && now.After(ent.created) {
		steps = int64(now.Sub(ent.created) / s.interval)
	}
	if ent.lim.AllowN(stepEpoch.Add(time.Duration(steps)*time.Second), 1) {
		return true, 0
	}

	if s.refill <= 0 || s.interval <= 0 {
		return false, 0
	}
	next := ent.created.Add(time.Duration(steps+1) * s.interval)
	return false, next.Sub(now)
}

func (s *BucketStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor removes idle buckets periodically until ctx is cancelled.
func (s *BucketStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
