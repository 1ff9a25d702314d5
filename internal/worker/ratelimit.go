package worker

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// tokenBucket is a single client's bucket. Callers hold the owning
// ClientLimiter's lock.
type tokenBucket struct {
	lastSeen time.Time
	tokens   float64
	requests int64
	rejected int64
}

// ClientLimiter applies a token bucket per client key. Analysis requests fan
// out into many ticket source queries, so clients are throttled before they
// reach the analyzer.
type ClientLimiter struct {
	now             func() time.Time
	lastCleanup     time.Time
	clients         map[string]*tokenBucket
	rate            float64
	burst           int
	cleanupInterval time.Duration
	maxIdleTime     time.Duration
	mu              sync.Mutex
}

// NewClientLimiter creates a limiter allowing rate requests per second per
// client, with bursts up to burst.
func NewClientLimiter(rate float64, burst int) *ClientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ClientLimiter{
		now:             time.Now,
		rate:            rate,
		burst:           burst,
		clients:         make(map[string]*tokenBucket),
		cleanupInterval: 5 * time.Minute,
		maxIdleTime:     10 * time.Minute,
		lastCleanup:     time.Now(),
	}
}

// Allow reports whether a request from clientKey may proceed. When it may
// not, the returned duration is how long until a token is available.
func (cl *ClientLimiter) Allow(clientKey string) (bool, time.Duration) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := cl.now()
	if now.Sub(cl.lastCleanup) > cl.cleanupInterval {
		cl.cleanupLocked(now)
	}

	b, ok := cl.clients[clientKey]
	if !ok {
		b = &tokenBucket{tokens: float64(cl.burst), lastSeen: now}
		cl.clients[clientKey] = b
	}

	b.requests++
	b.tokens += now.Sub(b.lastSeen).Seconds() * cl.rate
	if b.tokens > float64(cl.burst) {
		b.tokens = float64(cl.burst)
	}
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	b.rejected++
	if cl.rate <= 0 {
		return false, time.Minute
	}
	wait := time.Duration((1 - b.tokens) / cl.rate * float64(time.Second))
	return false, wait
}

// cleanupLocked drops idle clients. Caller holds cl.mu.
func (cl *ClientLimiter) cleanupLocked(now time.Time) {
	for key, b := range cl.clients {
		if now.Sub(b.lastSeen) > cl.maxIdleTime {
			delete(cl.clients, key)
		}
	}
	cl.lastCleanup = now
}

// Stats returns aggregate statistics.
func (cl *ClientLimiter) Stats() map[string]any {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	var totalRequests, totalRejected int64
	for _, b := range cl.clients {
		totalRequests += b.requests
		totalRejected += b.rejected
	}

	return map[string]any{
		"rate":           cl.rate,
		"burst":          cl.burst,
		"active_clients": len(cl.clients),
		"total_requests": totalRequests,
		"total_rejected": totalRejected,
		"rejection_rate": float64(totalRejected) / max(float64(totalRequests), 1),
	}
}

// RateLimit creates middleware that applies per-client rate limiting.
// Clients are identified by X-Real-IP (set by chi's RealIP) or RemoteAddr.
func RateLimit(limiter *ClientLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.RemoteAddr
			if ip := r.Header.Get("X-Real-IP"); ip != "" {
				clientKey = ip
			}

			if ok, wait := limiter.Allow(clientKey); !ok {
				secs := int(wait.Seconds())
				if wait%time.Second != 0 {
					secs++
				}
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
