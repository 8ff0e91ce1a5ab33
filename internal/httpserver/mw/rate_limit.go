package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/MrSnakeDoc/marksync/internal/utils"
)

// RateLimitConfig configures a token bucket per client. Authenticated
// requests are keyed by user, anonymous ones by client IP.
type RateLimitConfig struct {
	Burst         int
	RefillPerMin  int
	MaxEntries    int           // least recently used buckets are evicted past this
	SweepInterval time.Duration // how often idle buckets are dropped
	IdleTTL       time.Duration
	TrustProxy    bool // resolve IP from proxy headers when true
	Now           func() time.Time
}

type bucket struct {
	mu      sync.Mutex
	tokens  float64
	updated time.Time
}

// take refills the bucket up to capacity and spends one token if it can.
// When it cannot, wait is how long until the next token.
func (b *bucket) take(now time.Time, capacity, perSec float64) (ok bool, left int, wait time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if dt := now.Sub(b.updated).Seconds(); dt > 0 {
		b.tokens = math.Min(capacity, b.tokens+dt*perSec)
		b.updated = now
	}
	if b.tokens < 1 {
		return false, 0, time.Duration((1 - b.tokens) / perSec * float64(time.Second))
	}
	b.tokens--
	return true, int(b.tokens), 0
}

type limiter struct {
	cfg       RateLimitConfig
	perSec    float64
	capacity  float64
	buckets   *ttlcache.Cache[string, *bucket]
	sweepMu   sync.Mutex
	lastSweep time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.RefillPerMin < 1 {
		cfg.RefillPerMin = 1
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	opts := []ttlcache.Option[string, *bucket]{
		ttlcache.WithTTL[string, *bucket](cfg.IdleTTL),
	}
	if cfg.MaxEntries > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, *bucket](uint64(cfg.MaxEntries)))
	}

	return &limiter{
		cfg:       cfg,
		perSec:    float64(cfg.RefillPerMin) / 60,
		capacity:  float64(cfg.Burst),
		buckets:   ttlcache.New(opts...),
		lastSweep: time.Now(),
	}
}

// bucketFor returns the caller's bucket, creating a full one on first sight.
// A hit extends the bucket's idle TTL.
func (l *limiter) bucketFor(key string, now time.Time) *bucket {
	if item := l.buckets.Get(key); item != nil {
		return item.Value()
	}
	item, _ := l.buckets.GetOrSet(key, &bucket{tokens: l.capacity, updated: now})
	return item.Value()
}

func (l *limiter) sweep() {
	l.sweepMu.Lock()
	defer l.sweepMu.Unlock()
	if time.Since(l.lastSweep) < l.cfg.SweepInterval {
		return
	}
	l.buckets.DeleteExpired()
	l.lastSweep = time.Now()
}

func (l *limiter) key(r *http.Request) string {
	if uid := UserID(r.Context()); uid != "" {
		return "user:" + uid
	}
	return "ip:" + utils.ClientIP(r, l.cfg.TrustProxy)
}

// RateLimit rejects requests over budget with 429 and a Retry-After header.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limit := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l.sweep()

			now := l.cfg.Now()
			ok, left, wait := l.bucketFor(l.key(r), now).take(now, l.capacity, l.perSec)

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			if !ok {
				h.Set("Retry-After", strconv.Itoa(max(int(math.Ceil(wait.Seconds())), 1)))
				h.Set("X-RateLimit-Remaining", "0")
				WriteError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
				return
			}
			h.Set("X-RateLimit-Remaining", strconv.Itoa(left))

			next.ServeHTTP(w, r)
		})
	}
}
