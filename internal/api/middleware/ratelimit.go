package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter limits requests per client IP. Every resolution may
// queue behind the process-wide MusicBrainz gate, so a single noisy client
// is held back here instead of starving everyone else.
type ClientRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	every   time.Duration
	burst   int
	idleTTL time.Duration
}

// NewClientRateLimiter allows burst requests at once and then one request
// per interval for each client. Stale entries are dropped until ctx ends.
func NewClientRateLimiter(ctx context.Context, interval time.Duration, burst int) *ClientRateLimiter {
	if burst < 1 {
		burst = 1
	}
	rl := &ClientRateLimiter{
		clients: make(map[string]*clientEntry),
		every:   interval,
		burst:   burst,
		idleTTL: 15 * time.Minute,
	}
	if ctx != nil {
		go rl.cleanup(ctx)
	}
	return rl
}

// Middleware rejects over-limit requests with 429.
func (rl *ClientRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter(clientIP(r)).Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *ClientRateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.clients[ip]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(rate.Every(rl.every), rl.burst)}
		rl.clients[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (rl *ClientRateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evictIdle(time.Now())
		}
	}
}

func (rl *ClientRateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, entry := range rl.clients {
		if now.Sub(entry.lastSeen) > rl.idleTTL {
			delete(rl.clients, ip)
		}
	}
}

// clientIP returns the caller's address. Forwarding headers are honored only
// when the direct peer is a private or loopback address, i.e. a local proxy.
func clientIP(r *http.Request) string {
	remote, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remote = r.RemoteAddr
	}
	if !isPrivateIP(remote) {
		return remote
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if last := strings.TrimSpace(parts[len(parts)-1]); last != "" {
			return last
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-Ip")); xri != "" {
		return xri
	}
	return remote
}

func isPrivateIP(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}
