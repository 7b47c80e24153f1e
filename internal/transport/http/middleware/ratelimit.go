package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(r *http.Request) string

// RateLimiter is a keyed token-bucket rate limiter with automatic stale-entry
// cleanup. max requests refill evenly over window, with a burst of max.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	r        rate.Limit
	burst    int
	idle     time.Duration
	key      KeyFunc
	message  string
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a per-IP limiter allowing max requests per window.
func NewRateLimiter(max int, window time.Duration, message string) *RateLimiter {
	return NewKeyedRateLimiter(max, window, message, ByIP)
}

// NewKeyedRateLimiter is NewRateLimiter with a custom bucket key.
func NewKeyedRateLimiter(max int, window time.Duration, message string, key KeyFunc) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		r:        rate.Every(window / time.Duration(max)),
		burst:    max,
		idle:     2 * window,
		key:      key,
		message:  message,
		stop:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if v, ok := rl.limiters[key]; ok {
		v.lastSeen = time.Now()
		return v.limiter
	}
	l := rate.NewLimiter(rl.r, rl.burst)
	rl.limiters[key] = &clientLimiter{limiter: l, lastSeen: time.Now()}
	return l
}

// cleanup removes stale entries every 5 minutes until Stop is called.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.prune(time.Now())
		}
	}
}

func (rl *RateLimiter) prune(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, v := range rl.limiters {
		if now.Sub(v.lastSeen) > rl.idle {
			delete(rl.limiters, k)
		}
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Limit is the middleware handler that enforces the rate limit per key.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := rl.get(rl.key(r)).Reserve()
		if d := res.Delay(); d > 0 {
			res.Cancel()
			writeRateLimited(w, d, rl.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ByIP keys requests by client address.
func ByIP(r *http.Request) string {
	return realIP(r)
}

// ByIdentity keys authenticated requests by token email and falls back to
// the client address.
func ByIdentity(r *http.Request) string {
	if c, ok := ClaimsFromContext(r.Context()); ok && c.Email != "" {
		return "id:" + c.Email
	}
	return realIP(r)
}

// realIP prefers proxy headers, then the socket address without port.
func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xr := r.Header.Get("X-Real-Ip"); xr != "" {
		return strings.TrimSpace(xr)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
