package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	applog "spendscan/internal/log"
	"spendscan/internal/store"
	appweb "spendscan/web"
)

// HealthChecker reports whether the expense backend is reachable. The
// readiness probe uses it so orchestrators can tell a degraded instance
// from a dead one.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Server struct {
	http.Server
	templates    *template.Template
	store        *store.Store
	health       HealthChecker
	rateLimiter  *rateLimiter
	logger       *applog.Logger
	trace        *applog.StructuredLogger
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, st *store.Store, health HealthChecker) *Server {
	mux := http.NewServeMux()
	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: applog.Middleware(logger)(mux),
		},
		store:       st,
		health:      health,
		rateLimiter: newRateLimiter(),
		logger:      logger,
		trace:       applog.NewStructuredLogger(logger),
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Tiny cache for static assets
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /{$}", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	// UI partials, one per tab
	mux.HandleFunc("GET /ui/dashboard", s.withSecurityHeaders(s.handleDashboard))
	mux.HandleFunc("GET /ui/scanner", s.withSecurityHeaders(s.handleScanner))
	mux.HandleFunc("GET /ui/manual", s.withSecurityHeaders(s.handleManual))
	mux.HandleFunc("GET /ui/expenses", s.withSecurityHeaders(s.handleExpenses))
	mux.HandleFunc("GET /ui/analytics", s.withSecurityHeaders(s.handleAnalytics))

	// Mutations
	mux.HandleFunc("POST /expenses", s.withSecurityHeaders(s.handleCreateExpense))
	mux.HandleFunc("POST /expenses/{id}/delete", s.withSecurityHeaders(s.handleDeleteExpense))
	mux.HandleFunc("POST /scan", s.withSecurityHeaders(s.handleScanReceipt))
	mux.HandleFunc("POST /reload", s.withSecurityHeaders(s.handleReload))
	mux.HandleFunc("POST /draft/reset", s.withSecurityHeaders(s.handleResetDraft))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		// Generate request ID for tracing
		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		s.trace.LogHTTPStart(ctx, r, requestID, clientIP)

		// Apply rate limiting to mutations
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Capture status code for the completion log
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.trace.LogHTTPEnd(ctx, r, requestID, rw.statusCode, duration.Milliseconds(), clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
