package handler

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wadjakorntonsri/go-shortlinks/pkg/config"
	"github.com/wadjakorntonsri/go-shortlinks/pkg/metrics"
)

type contextKey string

const userEmailKey contextKey = "user_email"

// UserEmail returns the signed-in admin stored by AuthMiddleware
func UserEmail(ctx context.Context) string {
	email, _ := ctx.Value(userEmailKey).(string)
	return email
}

type Middleware struct {
	jwtSecret  []byte
	trustProxy bool
	log        zerolog.Logger
}

func NewMiddleware(cfg *config.Config, log zerolog.Logger) *Middleware {
	return &Middleware{
		jwtSecret:  []byte(cfg.JWTSecret),
		trustProxy: cfg.TrustProxy,
		log:        log,
	}
}

// AuthMiddleware verifies the JWT token from the cookie
func (m *Middleware) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookie)
		if err != nil {
			m.reject(w, r)
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(cookie.Value, claims, func(token *jwt.Token) (interface{}, error) {
			return m.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			m.reject(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userEmailKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		writeJSON(w, m.log, map[string]string{"error": "unauthorized"}, http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, "/auth/google/login", http.StatusTemporaryRedirect)
}

func isAPIRequest(r *http.Request) bool {
	// Dashboard might be viewed in browser
	return strings.HasPrefix(r.URL.Path, "/api/") && r.URL.Path != "/api/v1/dashboard"
}

// RequestLogger tags every request with an id and logs it once served
func (m *Middleware) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		wrapped := wrapResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		event := m.log.Info()
		if wrapped.status >= http.StatusInternalServerError {
			event = m.log.Error()
		}
		event.
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Str("ip", clientIP(r, m.trustProxy)).
			Msg("http request")
	})
}

// Recovery turns a panic into a 500
func (m *Middleware) Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				m.log.Error().
					Interface("panic", err).
					Str("path", r.URL.Path).
					Msg("panic recovered")
				writeJSON(w, m.log, map[string]string{"error": "internal server error"}, http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// Metrics records request counts and latencies labelled by the matched
// route pattern, which keeps short codes out of label values.
func (m *Middleware) Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.HTTPInFlight.Inc()
		defer metrics.HTTPInFlight.Dec()

		wrapped := wrapResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(wrapped.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

// IPRateLimiter keeps one token bucket per client IP
type IPRateLimiter struct {
	mu          sync.Mutex
	ips         map[string]*rateLimiterEntry
	r           rate.Limit
	burst       int
	lastCleanup time.Time
	trustProxy  bool
	log         zerolog.Logger
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter allows perMinute requests per IP with bursts up to
// burst. perMinute <= 0 disables limiting. Clients are keyed by socket
// address unless trustProxy is set.
func NewIPRateLimiter(perMinute, burst int, trustProxy bool, log zerolog.Logger) *IPRateLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
	}
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimiter{
		ips:         make(map[string]*rateLimiterEntry),
		r:           limit,
		burst:       burst,
		lastCleanup: time.Now(),
		trustProxy:  trustProxy,
		log:         log,
	}
}

// GetLimiter returns the limiter for ip. Idle entries are swept at most
// once a minute.
func (rl *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastCleanup) > time.Minute {
		for key, entry := range rl.ips {
			if now.Sub(entry.lastSeen) > 3*time.Minute {
				delete(rl.ips, key)
			}
		}
		rl.lastCleanup = now
	}

	entry, exists := rl.ips[ip]
	if !exists {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.r, rl.burst)}
		rl.ips[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (rl *IPRateLimiter) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, rl.trustProxy)
		if !rl.GetLimiter(ip).Allow() {
			rl.log.Warn().Str("ip", ip).Str("path", r.URL.Path).Msg("rate limit exceeded")
			w.Header().Set("Retry-After", "60")
			writeJSON(w, rl.log, map[string]string{"error": "too many requests"}, http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// clientIP is the socket peer. Behind a trusted proxy the first
// X-Forwarded-For entry wins, since the peer is the proxy itself.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := forwardedFor(r); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
