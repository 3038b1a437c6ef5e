package http

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages rate limiting for client IPs
type RateLimiter struct {
	visitors        map[string]*visitor
	mu              sync.Mutex
	rps             rate.Limit
	burst           int
	cleanupInterval time.Duration
	done            chan struct{}
	stopOnce        sync.Once
	trustedProxies  map[string]bool
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithTrustedProxies honors X-Forwarded-For only on requests whose peer
// address is one of addrs. Without it the peer address is always the key.
func WithTrustedProxies(addrs ...string) RateLimiterOption {
	return func(rl *RateLimiter) {
		for _, a := range addrs {
			if a = strings.TrimSpace(a); a != "" {
				rl.trustedProxies[a] = true
			}
		}
	}
}

// NewRateLimiter creates a new rate limiter and starts evicting idle clients.
// Call Stop to end the eviction loop.
func NewRateLimiter(rps float64, burst int, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		visitors:        make(map[string]*visitor),
		rps:             rate.Limit(rps),
		burst:           burst,
		cleanupInterval: 10 * time.Minute,
		done:            make(chan struct{}),
		trustedProxies:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(rl)
	}

	go rl.cleanup()

	return rl
}

// GetLimiter returns a limiter for an IP
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()

	return v.limiter
}

// Stop ends the background eviction loop.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.evictIdle(now)
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.cleanupInterval {
			delete(rl.visitors, ip)
		}
	}
}

// RateLimitMiddleware creates a middleware for rate limiting
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl == nil {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.GetLimiter(rl.clientIP(r)).Allow() {
				w.Header().Set("Retry-After", "1")
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the peer address, or the nearest untrusted
// X-Forwarded-For hop when the peer is a trusted proxy.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	if !rl.trustedProxies[peer] {
		return peer
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" || rl.trustedProxies[hop] {
			continue
		}
		return hop
	}
	return peer
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
