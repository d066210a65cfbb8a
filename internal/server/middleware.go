package server

import (
	"container/list"
	"context"
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
			w.Header().Set("Content-Security-Policy", "default-src 'self'; connect-src 'self'; frame-ancestors 'none'")
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer, which
// the WebSocket upgrade needs for hijacking.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// LoggingMiddleware logs one line per request.
func LoggingMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// WebSocket upgrades need the raw writer
			if isWebSocket(r) {
				log.Debug("websocket upgrade", zap.String("path", r.URL.Path), zap.String("ip", getClientIP(r)))
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

func isWebSocket(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// Limiter tuning. Idle clients are forgotten after clientIdleTTL.
const (
	defaultMaxClients   = 10000
	clientIdleTTL       = 10 * time.Minute
	sweepInterval       = 5 * time.Minute
	evictionLogInterval = 30 * time.Second
)

// clientLimiter is the token bucket of one client IP.
type clientLimiter struct {
	ip       string
	bucket   *rate.Limiter
	lastSeen time.Time
}

// clientLimiters holds per-IP buckets in LRU order, front most recent.
type clientLimiters struct {
	rps        rate.Limit
	burst      int
	maxClients int
	log        *zap.Logger

	mu       sync.Mutex
	byIP     map[string]*list.Element
	lru      *list.List
	evicted  int // Evictions since the last log line
	loggedAt time.Time
}

func (c *clientLimiters) allow(ip string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.byIP[ip]
	if ok {
		c.lru.MoveToFront(elem)
	} else {
		if c.lru.Len() >= c.maxClients {
			c.evictOldest(now)
		}
		elem = c.lru.PushFront(&clientLimiter{ip: ip, bucket: rate.NewLimiter(c.rps, c.burst)})
		c.byIP[ip] = elem
	}

	cl := elem.Value.(*clientLimiter)
	cl.lastSeen = now
	return cl.bucket.AllowN(now, 1)
}

func (c *clientLimiters) evictOldest(now time.Time) {
	back := c.lru.Back()
	if back == nil {
		return
	}
	c.lru.Remove(back)
	delete(c.byIP, back.Value.(*clientLimiter).ip)

	c.evicted++
	if now.Sub(c.loggedAt) >= evictionLogInterval {
		c.log.Warn("rate limiter full, evicted least recent clients",
			zap.Int("count", c.evicted), zap.Int("capacity", c.maxClients))
		c.loggedAt = now
		c.evicted = 0
	}
}

// sweep forgets clients idle for longer than clientIdleTTL. LRU order
// follows access, so every entry is checked.
func (c *clientLimiters) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.lru.Back(); e != nil; {
		prev := e.Prev()
		if cl := e.Value.(*clientLimiter); now.Sub(cl.lastSeen) > clientIdleTTL {
			c.lru.Remove(e)
			delete(c.byIP, cl.ip)
		}
		e = prev
	}
}

// RateLimitMiddleware limits each client IP to rps requests per second with
// the given burst. At most maxClients IPs are tracked (0 means 10000); the
// least recently seen is evicted when full.
//
// Idle clients are swept in the background until ctx is cancelled; the
// returned channel is closed once the sweeper has exited.
func RateLimitMiddleware(ctx context.Context, rps float64, burst int, maxClients int, log *zap.Logger) (func(http.Handler) http.Handler, <-chan struct{}) {
	if maxClients <= 0 {
		maxClients = defaultMaxClients
	}
	if log == nil {
		log = zap.NewNop()
	}
	limiters := &clientLimiters{
		rps:        rate.Limit(rps),
		burst:      burst,
		maxClients: maxClients,
		log:        log,
		byIP:       make(map[string]*list.Element),
		lru:        list.New(),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				limiters.sweep(now)
			case <-ctx.Done():
				return
			}
		}
	}()

	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.allow(getClientIP(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	return middleware, done
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
			if parts := strings.SplitN(xff, ",", 2); len(parts) > 0 {
				return strings.TrimSpace(parts[0])
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
