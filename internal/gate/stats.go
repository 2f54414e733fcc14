package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsEvent describes one gate decision.
//
// Key and Path are recorded as is; keep an eye on cardinality when tracking keys.
type StatsEvent struct {
	Key        string
	Conclusion Conclusion
	Reason     Reason
	Method     string
	Path       string
	At         time.Time
}

// StatsStore persists decision counters. Errors are logged by the gate and never fail a request.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl applies to time buckets and per-key hashes; totals never expire.
	ttl time.Duration

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "gate:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MinuteKey is the hash holding the counters of the minute containing at.
func (s *RedisStatsStore) MinuteKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
}

func (s *RedisStatsStore) TotalKey() string {
	return s.prefix + ":total"
}

func (s *RedisStatsStore) Record(ctx context.Context, ev StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := strings.ToLower(string(ev.Conclusion))
	if field == "" {
		field = "allow"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.TotalKey(), field, 1)
	if ev.Reason != ReasonNone {
		pipe.HIncrBy(ctx, s.prefix+":reason", string(ev.Reason), 1)
	}

	bucketKey := s.MinuteKey(at)
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	routeField := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path))
	if routeField != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", routeField+":"+field, 1)
	}

	if s.trackKeys {
		if k := strings.TrimSpace(ev.Key); k != "" {
			keyKey := s.prefix + ":key:" + k
			pipe.HIncrBy(ctx, keyKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// MemoryStatsStore counts decisions in process. It never expires anything.
type MemoryStatsStore struct {
	mu       sync.Mutex
	byResult map[Conclusion]int64
	byReason map[Reason]int64
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{
		byResult: make(map[Conclusion]int64),
		byReason: make(map[Reason]int64),
	}
}

func (s *MemoryStatsStore) Record(_ context.Context, ev StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byResult[ev.Conclusion]++
	if ev.Reason != ReasonNone {
		s.byReason[ev.Reason]++
	}
	return nil
}

func (s *MemoryStatsStore) Count(c Conclusion) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byResult[c]
}

func (s *MemoryStatsStore) CountReason(r Reason) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byReason[r]
}

// ErrStatsQueueFull is returned by AsyncStatsStore when an event is dropped.
var ErrStatsQueueFull = errors.New("stats queue is full")

// AsyncStatsStore queues events for a background worker, so a slow backend
// never holds up the request that produced them. Events are dropped when the
// queue is full.
type AsyncStatsStore struct {
	next    StatsStore
	events  chan StatsEvent
	timeout time.Duration
	dropped atomic.Int64
}

// NewAsyncStatsStore wraps next with a queue of size buffer. Each write to
// next is bounded by timeout.
func NewAsyncStatsStore(next StatsStore, buffer int, timeout time.Duration) *AsyncStatsStore {
	if buffer <= 0 {
		buffer = 1024
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	return &AsyncStatsStore{
		next:    next,
		events:  make(chan StatsEvent, buffer),
		timeout: timeout,
	}
}

func (s *AsyncStatsStore) Record(_ context.Context, ev StatsEvent) error {
	select {
	case s.events <- ev:
		return nil
	default:
		s.dropped.Add(1)
		return ErrStatsQueueFull
	}
}

// Dropped is the number of events discarded because the queue was full.
func (s *AsyncStatsStore) Dropped() int64 { return s.dropped.Load() }

// Start drains the queue until ctx is cancelled.
func (s *AsyncStatsStore) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-s.events:
				s.write(ctx, ev)
			}
		}
	}()
}

func (s *AsyncStatsStore) write(ctx context.Context, ev StatsEvent) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.next.Record(ctx, ev); err != nil {
		slog.Warn("failed to write gate stats", slog.String("error", err.Error()))
	}
}
