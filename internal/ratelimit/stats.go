package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsEvent is one rate limit decision.
type StatsEvent struct {
	Key     string
	Allowed bool
	Method  string
	Path    string
	At      time.Time
}

// StatsStore records decisions. Recording is best-effort.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}

type Counters struct {
	Allowed int64
	Denied  int64
}

// MemoryStatsStore keeps totals per route in memory. It never expires
// anything and is meant for tests and local runs.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{byRoute: make(map[string]Counters)}
}

func (s *MemoryStatsStore) Record(_ context.Context, ev StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byRoute[route]
	if ev.Allowed {
		s.total.Allowed++
		c.Allowed++
	} else {
		s.total.Denied++
		c.Denied++
	}
	s.byRoute[route] = c
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) Route(method, path string) Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byRoute[method+" "+path]
}

// RedisStatsStore keeps cumulative totals, per-route totals and per-minute
// buckets in Redis hashes. Minute buckets expire after ttl.
type RedisStatsStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStatsStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStatsStore {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = "ratelimit:stats"
	}
	return &RedisStatsStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStatsStore) Record(ctx context.Context, ev StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	route := strings.TrimSpace(ev.Method + " " + ev.Path)
	if route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
	}

	_, err := pipe.Exec(ctx)
	return err
}
