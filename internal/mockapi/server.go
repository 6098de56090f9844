// Package mockapi is an in-process stand-in for the Hush HTTP API. It mirrors
// the server's CORS and bearer-auth middleware so the client can be exercised
// without the real framework.
package mockapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/samvad-hq/hush-client/internal/logger"
)

const (
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization"
	corsMaxAge       = "86400"

	// Tokens of this length or shorter are rejected.
	minTokenLength = 10

	// Fault counters idle for longer than this are forgotten.
	faultTTL = 5 * time.Minute
)

// Options configures the mock server.
type Options struct {
	// AdminTokens may access /admin routes.
	AdminTokens []string
	Logger      logger.Logger
}

// User is a record served by /api/users.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Server serves the mock API. The zero value is not usable; call New.
type Server struct {
	router chi.Router
	log    logger.Logger
	admins map[string]struct{}
	now    func() time.Time

	mu        sync.Mutex
	users     []User
	faults    map[string]faultCounter
	lastSweep time.Time
	hits      int64
}

// faultCounter tracks /flaky attempts for one request id.
type faultCounter struct {
	seen     int
	lastSeen time.Time
}

// New builds a mock server with a couple of seeded users.
func New(opts Options) *Server {
	s := &Server{
		log:    opts.Logger,
		admins: make(map[string]struct{}, len(opts.AdminTokens)),
		now:    time.Now,
		faults: make(map[string]faultCounter),
	}
	if s.log == nil {
		s.log = &logger.NopLogger{}
	}
	for _, tok := range opts.AdminTokens {
		if tok = strings.TrimSpace(tok); tok != "" {
			s.admins[tok] = struct{}{}
		}
	}

	now := time.Now().UTC()
	s.users = []User{
		{ID: uuid.NewString(), Name: "Alice", Email: "alice@example.com", CreatedAt: now},
		{ID: uuid.NewString(), Name: "Bob", Email: "bob@example.com", CreatedAt: now},
	}

	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors)

	r.Get("/health", s.health)
	r.Get("/user", s.currentUser)
	r.Get("/flaky/{failures}", s.flaky)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/users", s.listUsers)
		r.Post("/users", s.createUser)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Use(s.requireAdmin)
		r.Get("/dashboard", s.dashboard)
	})
	return r
}

// cors answers every preflight and stamps Allow-Origin on other responses.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
			w.Header().Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.log.InfoObj("mock request", "request", map[string]any{
				"request_id":  middleware.GetReqID(r.Context()),
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
			})
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Missing authorization token")
			return
		}
		if len(token) <= minTokenLength {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _ := bearerToken(r)
		if _, ok := s.admins[token]; !ok {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) currentUser(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Hello, World!"))
}

func (s *Server) listUsers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	users := make([]User, len(s.users))
	copy(users, s.users)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"total": len(users),
	})
}

type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "name and email are required")
		return
	}

	user := User{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.users = append(s.users, user)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) dashboard(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	total := len(s.users)
	hits := s.hits
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"users_total":   total,
		"flaky_hits":    hits,
		"generated_at":  time.Now().UTC().Format(time.RFC3339),
		"admin_enabled": true,
	})
}

// flaky fails with 503 for the first {failures} attempts of each request id,
// then succeeds.
func (s *Server) flaky(w http.ResponseWriter, r *http.Request) {
	failures, err := strconv.Atoi(chi.URLParam(r, "failures"))
	if err != nil || failures < 0 {
		writeError(w, http.StatusBadRequest, "failures must be a non-negative integer")
		return
	}
	key := r.Header.Get(middleware.RequestIDHeader)
	if key == "" {
		key = middleware.GetReqID(r.Context())
	}

	s.mu.Lock()
	now := s.now()
	s.sweepFaults(now)
	s.hits++
	fc := s.faults[key]
	fc.seen++
	fc.lastSeen = now
	seen := fc.seen
	if seen > failures {
		delete(s.faults, key)
	} else {
		s.faults[key] = fc
	}
	s.mu.Unlock()

	if seen <= failures {
		writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "attempt": seen})
}

// sweepFaults drops counters of request ids that stopped retrying.
// Callers hold s.mu.
func (s *Server) sweepFaults(now time.Time) {
	if now.Sub(s.lastSweep) < faultTTL {
		return
	}
	for key, fc := range s.faults {
		if now.Sub(fc.lastSeen) >= faultTTL {
			delete(s.faults, key)
		}
	}
	s.lastSweep = now
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
