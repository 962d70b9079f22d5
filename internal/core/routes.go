package core

import (
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"

	"mentorship/internal/types"
)

// defaultRedactedHeaders are masked in request logs.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"X-CSRF-Token",
}

// MountRoutes registers the global middleware chain, the operational
// endpoints, the form handlers and, when configured, the static site.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.NotFound(s.handleNotFound)
	s.router.MethodNotAllowed(s.handleMethodNotAllowed)

	s.router.Get("/health", s.HandleHealth)
	if s.MetricsHandler != nil {
		s.router.Method(http.MethodGet, "/metrics", s.MetricsHandler)
	}

	for _, registrar := range s.RouteRegistrars {
		registrar(s.router)
	}

	if dir := s.staticDir(); dir != "" {
		s.router.Handle("/*", NewStaticHandler(dir))
	}
}

// registerGlobalMiddleware applies middleware in strict order:
//  1. Recoverer      - outermost so panics still get a JSON body and CORS headers.
//  2. RequestID      - correlation id for logs.
//  3. CORS           - headers on every response; answers OPTIONS directly.
//  4. RequestLogger  - structured access log with redacted headers.
//  5. Metrics        - latency and count per route.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(s.MetricsMiddleware)
}

func (s *Server) staticDir() string {
	if s.Config == nil || s.Config.Server.StaticDir == "" {
		return ""
	}
	if info, err := os.Stat(s.Config.Server.StaticDir); err != nil || !info.IsDir() {
		s.Logger.Warn("static directory unavailable, not serving static files",
			"dir", s.Config.Server.StaticDir)
		return ""
	}
	return s.Config.Server.StaticDir
}

// NewStaticHandler serves dir with gzip compression for clients that accept it.
func NewStaticHandler(dir string) http.Handler {
	return gzhttp.GzipHandler(http.FileServer(http.Dir(dir)))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusNotFound, Envelope{Success: false, Message: "Not found"})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusMethodNotAllowed, Envelope{Success: false, Message: MethodNotAllowedMessage})
}

// RequestIDMiddleware propagates X-Request-Id or generates a new one, and
// stores it in the request context.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(types.WithRequestID(r.Context(), requestID)))
	})
}
