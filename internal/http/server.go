package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"timbro/internal/cache"
	applog "timbro/internal/log"
	"timbro/internal/tracker"
)

type Server struct {
	http.Server
	svc         *tracker.Service
	rateLimiter *rateLimiter

	// Period totals are the hottest read; cached briefly and flushed on
	// every ledger mutation.
	totalsCache *cache.LRUCache[map[string]float64]

	cacheManager *cache.Manager
	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, svc *tracker.Service) *Server {
	mux := http.NewServeMux()

	// Every request flows through the logger and request-id middlewares,
	// so handlers can pull both back out of the context.
	logCfg := applog.DefaultConfig()
	logCfg.Component = applog.ComponentHTTP
	chain := applog.Middleware(applog.New(logCfg))(
		applog.RequestIDMiddleware(func(*http.Request) string { return generateRequestID() })(mux))

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      chain,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		svc:          svc,
		rateLimiter:  newRateLimiter(),
		totalsCache:  cache.NewLRUCache[map[string]float64](100, 30*time.Second),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.totalsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/api/people", s.withCommonHeaders(s.handlePeople))
	mux.HandleFunc("/api/clock/in", s.withCommonHeaders(s.handleClockIn))
	mux.HandleFunc("/api/clock/out", s.withCommonHeaders(s.handleClockOut))
	mux.HandleFunc("/api/clock/elapsed", s.withCommonHeaders(s.handleElapsed))
	mux.HandleFunc("/api/entries", s.withCommonHeaders(s.handleSubmitManual))
	mux.HandleFunc("/api/totals", s.withCommonHeaders(s.handleTotals))
	mux.HandleFunc("/api/progress", s.withCommonHeaders(s.handleProgress))
	mux.HandleFunc("/api/leaderboard", s.withCommonHeaders(s.handleLeaderboard))
	mux.HandleFunc("/api/vesting", s.withCommonHeaders(s.handleVesting))
	mux.HandleFunc("/api/notifications", s.withCommonHeaders(s.handleNotifications))
	mux.HandleFunc("/api/notifications/seen", s.withCommonHeaders(s.handleNotificationSeen))
	mux.HandleFunc("/api/ledger", s.withCommonHeaders(s.handleLedger))

	return s
}

// withCommonHeaders adds security headers, rate limiting and request
// logging to API handlers.
func (s *Server) withCommonHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		ctx := r.Context()
		reqLog := applog.NewStructuredLogger(applog.FromContext(ctx))

		reqLog.LogHTTPStart(ctx, r, clientIP)

		// Rate limit mutations only; reads are cheap and cached.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			applog.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		reqLog.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// invalidateTotals flushes cached period totals after a ledger mutation.
func (s *Server) invalidateTotals() {
	s.totalsCache.Flush()
}

func totalsCacheKey(start, end string) string {
	return fmt.Sprintf("%s|%s", start, end)
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()

		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}

		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
