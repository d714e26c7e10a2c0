package bill

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server handles HTTP requests for the splitting session
type Server struct {
	session   *Session
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(session *Session, basicAuth BasicAuth) *Server {
	return NewServerWithMux(session, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(session *Session, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		session:   session,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="splittab"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// corsMiddleware adds CORS headers and answers preflight requests
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// statusRecorder captures the response status for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// logRequests logs every request and records its latency
func (s *Server) logRequests(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		duration := time.Since(start)
		requestDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Observe(duration.Seconds())
		if rec.status >= http.StatusInternalServerError {
			slog.Error("HTTP request failed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", duration.Milliseconds(),
			)
		} else {
			slog.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", duration.Milliseconds(),
			)
		}
	}
}

// registerRoutes registers all API routes on the server's mux.
// Routes go from most specific to least specific to avoid conflicts.
func (s *Server) registerRoutes() {
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /api/session", s.requireAuth(s.handleSession))

	// In-progress bill
	s.mux.HandleFunc("POST /api/bills", s.requireAuth(s.handleUploadReceipt))
	s.mux.HandleFunc("GET /api/bills/current/summary", s.requireAuth(s.handleSummary))
	s.mux.HandleFunc("POST /api/bills/current/save", s.requireAuth(s.handleSaveBill))
	s.mux.HandleFunc("GET /api/bills/current", s.requireAuth(s.handleCurrentBill))
	s.mux.HandleFunc("DELETE /api/bills/current", s.requireAuth(s.handleDiscardBill))

	// Edit operations
	s.mux.HandleFunc("POST /api/bills/current/participants", s.requireAuth(s.handleAddParticipant))
	s.mux.HandleFunc("DELETE /api/bills/current/participants/{id}", s.requireAuth(s.handleRemoveParticipant))
	s.mux.HandleFunc("POST /api/bills/current/items", s.requireAuth(s.handleAddItem))
	s.mux.HandleFunc("PUT /api/bills/current/items/{id}/assignment", s.requireAuth(s.handleAssignItem))
	s.mux.HandleFunc("PUT /api/bills/current/items/{id}", s.requireAuth(s.handleUpdateItem))
	s.mux.HandleFunc("DELETE /api/bills/current/items/{id}", s.requireAuth(s.handleRemoveItem))
	s.mux.HandleFunc("PUT /api/bills/current/charges", s.requireAuth(s.handleSetCharges))
	s.mux.HandleFunc("POST /api/bills/current/charges/service-fee/default", s.requireAuth(s.handleDefaultServiceFee))

	// History
	s.mux.HandleFunc("GET /api/history/{id}/image", s.requireAuth(s.handleStoredImage))
	s.mux.HandleFunc("GET /api/history/{id}", s.requireAuth(s.handleViewStored))
	s.mux.HandleFunc("DELETE /api/history/{id}", s.requireAuth(s.handleDeleteStored))
	s.mux.HandleFunc("GET /api/history", s.requireAuth(s.handleListHistory))
	s.mux.HandleFunc("DELETE /api/history", s.requireAuth(s.handleClearHistory))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(s.logRequests(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		}))(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
