package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rule allows Limit requests per Period for each client key.
// Rules with the same Name share one bucket per key, so a rule attached to
// several routes acts as a cross-route ceiling.
type Rule struct {
	Name   string
	Limit  int
	Period time.Duration
}

func PerMinute(name string, n int) Rule { return Rule{Name: name, Limit: n, Period: time.Minute} }

func PerHour(name string, n int) Rule { return Rule{Name: name, Limit: n, Period: time.Hour} }

func PerDay(name string, n int) Rule { return Rule{Name: name, Limit: n, Period: 24 * time.Hour} }

func (r Rule) limiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(r.Period/time.Duration(r.Limit)), r.Limit)
}

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	// Rule is the name of the rule that rejected the request.
	Rule string
}

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Store keeps one token bucket per (rule, key) and forgets idle keys.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	idleTTL time.Duration
	now     func() time.Time
}

type StoreOption func(*Store)

// WithIdleTTL sets how long an unused bucket is kept. It should be at least
// the longest rule period, otherwise a daily ceiling resets early.
func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func withClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		idleTTL: 24 * time.Hour,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Decide reserves one token from every rule for key. If any rule has no
// token available now, all reservations are cancelled and the request is
// rejected, so a rejected request consumes nothing.
func (s *Store) Decide(key string, rules ...Rule) Decision {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	reservations := make([]*rate.Reservation, 0, len(rules))
	cancelAll := func() {
		for _, r := range reservations {
			r.CancelAt(now)
		}
	}

	for _, rule := range rules {
		if rule.Limit <= 0 {
			continue
		}

		lim := s.get(rule, key, now)
		res := lim.ReserveN(now, 1)
		if !res.OK() {
			cancelAll()
			return Decision{Allowed: false, RetryAfter: rule.Period, Rule: rule.Name}
		}

		reservations = append(reservations, res)
		if delay := res.DelayFrom(now); delay > 0 {
			cancelAll()
			return Decision{Allowed: false, RetryAfter: delay, Rule: rule.Name}
		}
	}

	return Decision{Allowed: true}
}

func (s *Store) get(rule Rule, key string, now time.Time) *rate.Limiter {
	id := rule.Name + "|" + key
	if ent, ok := s.entries[id]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rule.limiter()
	s.entries[id] = &entry{lim: lim, lastSeen: now}
	return lim
}

// Len reports the number of live buckets.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor removes idle buckets every interval until ctx is done.
func (s *Store) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
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
