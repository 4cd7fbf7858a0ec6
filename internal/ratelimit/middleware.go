package ratelimit

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"contact-service/internal/httputil"
	"contact-service/internal/metrics"

	"github.com/gin-gonic/gin"
)

type KeyFunc func(r *http.Request) string

// ClientAddrKey keys requests by client address. With trustXFF the first hop
// of X-Forwarded-For is used when present.
func ClientAddrKey(trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first := strings.TrimSpace(strings.Split(xff, ",")[0])
				if first != "" {
					return first
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

type Limiter struct {
	store   *Store
	keyFn   KeyFunc
	stats   StatsStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Limiter)

func WithKeyFunc(fn KeyFunc) Option {
	return func(l *Limiter) { l.keyFn = fn }
}

func WithStats(stats StatsStore) Option {
	return func(l *Limiter) { l.stats = stats }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

func New(store *Store, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		keyFn:  ClientAddrKey(false),
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Handler returns gin middleware enforcing rules on route.
func (l *Limiter) Handler(route string, rules ...Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := l.keyFn(c.Request)
		dec := l.store.Decide(key, rules...)

		if l.stats != nil {
			err := l.stats.Record(c.Request.Context(), StatsEvent{
				Key:     key,
				Allowed: dec.Allowed,
				Method:  c.Request.Method,
				Path:    route,
				At:      time.Now(),
			})
			if err != nil {
				l.logger.WarnContext(c.Request.Context(), "failed to record rate limit stats", "error", err)
			}
		}

		if !dec.Allowed {
			l.metrics.RecordThrottled(c.Request.Context(), route, dec.Rule)
			l.logger.InfoContext(c.Request.Context(), "request throttled", "route", route, "rule", dec.Rule, "key", key)

			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(dec.RetryAfter)))
			httputil.AbortWithError(c, http.StatusTooManyRequests, "too many requests")
			return
		}

		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
