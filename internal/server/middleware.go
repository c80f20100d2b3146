package server

import (
	"container/list"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SecurityHeadersMiddleware adds security headers to all responses.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			// Pattern images live on other hosts; scripts and styles never do.
			// connect-src 'self' covers the same-origin websocket.
			w.Header().Set("Content-Security-Policy",
				"default-src 'self'; "+
					"script-src 'self'; "+
					"style-src 'self' 'unsafe-inline'; "+
					"img-src 'self' data: https:; "+
					"connect-src 'self'; "+
					"frame-ancestors 'none'")

			next.ServeHTTP(w, r)
		})
	}
}

// evictionLogInterval is the minimum time between eviction log messages.
const evictionLogInterval = 30 * time.Second

// ipLimiter tracks a per-IP token bucket and its position in the LRU list.
type ipLimiter struct {
	ip       string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-IP token bucket limiter that tracks at most maxIPs
// addresses, evicting the least recently seen.
type RateLimiter struct {
	rps    float64
	burst  int
	maxIPs int
	log    *zap.Logger

	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List // front = most recent, back = oldest

	lastEvictLog time.Time
	evictCount   int
}

// NewRateLimiter starts a limiter whose cleanup goroutine runs until ctx is
// cancelled. The returned channel is closed when that goroutine exits.
func NewRateLimiter(ctx context.Context, rps float64, burst, maxIPs int, logger *zap.Logger) (*RateLimiter, <-chan struct{}) {
	if maxIPs <= 0 {
		maxIPs = 10000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &RateLimiter{
		rps:    rps,
		burst:  burst,
		maxIPs: maxIPs,
		log:    logger.Named("ratelimit"),
		items:  make(map[string]*list.Element),
		order:  list.New(),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.sweep(time.Now(), 10*time.Minute)
			case <-ctx.Done():
				return
			}
		}
	}()
	return l, done
}

// sweep drops entries idle for longer than maxIdle. LRU order tracks access
// recency, not lastSeen, so every entry is checked.
func (l *RateLimiter) sweep(now time.Time, maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for e := l.order.Back(); e != nil; {
		lim := e.Value.(*ipLimiter)
		prev := e.Prev()
		if now.Sub(lim.lastSeen) > maxIdle {
			l.order.Remove(e)
			delete(l.items, lim.ip)
		}
		e = prev
	}
}

// Allow reports whether ip may make a request now and takes a token if so.
func (l *RateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	elem, exists := l.items[ip]
	if exists {
		l.order.MoveToFront(elem)
		elem.Value.(*ipLimiter).lastSeen = time.Now()
	} else {
		if l.order.Len() >= l.maxIPs {
			if back := l.order.Back(); back != nil {
				evicted := back.Value.(*ipLimiter)
				l.order.Remove(back)
				delete(l.items, evicted.ip)
				l.evictCount++
				if time.Since(l.lastEvictLog) >= evictionLogInterval {
					l.log.Info("evicted least-recent IPs",
						zap.Int("evicted", l.evictCount), zap.Int("capacity", l.maxIPs))
					l.lastEvictLog = time.Now()
					l.evictCount = 0
				}
			}
		}
		elem = l.order.PushFront(&ipLimiter{
			ip:       ip,
			limiter:  rate.NewLimiter(rate.Limit(l.rps), l.burst),
			lastSeen: time.Now(),
		})
		l.items[ip] = elem
	}
	return elem.Value.(*ipLimiter).limiter.Allow()
}

// Tracked is the number of IPs currently remembered.
func (l *RateLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(getClientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP from the request.
// It only trusts X-Forwarded-For / X-Real-IP when the immediate peer is a
// loopback or private address (i.e., behind a reverse proxy).
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	peerIP := net.ParseIP(host)
	trustedProxy := peerIP != nil && (peerIP.IsLoopback() || peerIP.IsPrivate())

	if trustedProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if first, _, _ := strings.Cut(xff, ","); strings.TrimSpace(first) != "" {
				return strings.TrimSpace(first)
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	if peerIP != nil {
		return peerIP.String()
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
