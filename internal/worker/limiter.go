package worker

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// DefaultLimiterIdle is how long an owner's bucket survives without traffic.
const DefaultLimiterIdle = 10 * time.Minute

// Limiter manages per-key rate limiting. Keys are opaque (owner refs).
// Buckets untouched for the idle period are dropped; a returning key starts
// with a full burst.
type Limiter struct {
	keys      *gocache.Cache
	mu        sync.Mutex
	rate      rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
}

// NewLimiter creates a limiter allowing rps events per second per key.
// rps <= 0 disables limiting.
func NewLimiter(rps float64, burst int) *Limiter {
	return newLimiter(rps, burst, DefaultLimiterIdle)
}

func newLimiter(rps float64, burst int, idle time.Duration) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	// No janitor goroutine: expired buckets are swept inline.
	return &Limiter{
		keys:      gocache.New(idle, gocache.NoExpiration),
		rate:      limit,
		burst:     burst,
		idle:      idle,
		lastSweep: time.Now(),
	}
}

// Allow reports whether an event for key may happen now.
func (l *Limiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now := time.Now(); now.Sub(l.lastSweep) >= l.idle {
		l.keys.DeleteExpired()
		l.lastSweep = now
	}

	var limiter *rate.Limiter
	if v, ok := l.keys.Get(key); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(l.rate, l.burst)
	}
	// refresh the idle deadline
	l.keys.SetDefault(key, limiter)
	return limiter
}
