package scoreboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/fentz26/reflex/internal/models"
)

// maxBodyBytes caps request bodies; every request is a username and a number.
const maxBodyBytes = 4 << 10

// Version is set at build time via -ldflags.
var Version = "0.1.0"

// Server provides the HTTP API for the scoring service.
type Server struct {
	service        *Service
	addr           string
	allowedOrigins []string
	logger         zerolog.Logger
	server         *http.Server
}

// NewServer creates a new HTTP server. allowedOrigins lists the browser
// origins permitted by CORS; empty allows any origin.
func NewServer(service *Service, addr string, allowedOrigins []string, logger zerolog.Logger) *Server {
	return &Server{
		service:        service,
		addr:           addr,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/register", s.handleRegister)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/update", s.handleUpdate)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/audit", s.handleAudit)

	origins := s.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.logRequests(mux))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info().Str("addr", s.addr).Msg("starting scoring service")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// --- Handlers ---

type usernameRequest struct {
	Username string `json:"username"`
}

type updateRequest struct {
	Username     string  `json:"username"`
	ReactionTime float64 `json:"reactionTime"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type loginResponse struct {
	Username     string   `json:"username"`
	ReactionTime *float64 `json:"reactionTime"`
}

type updateResponse struct {
	Message      string   `json:"message"`
	ReactionTime *float64 `json:"reactionTime"`
	Improved     bool     `json:"improved"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req usernameRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if _, err := s.service.Register(req.Username); err != nil {
		s.writeError(w, err, "Registration failed")
		return
	}
	writeMessage(w, http.StatusCreated, "User registered")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req usernameRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.service.Login(req.Username)
	if err != nil {
		s.writeError(w, err, "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Username: user.Username, ReactionTime: user.BestTimeMs})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req updateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.service.UpdateScore(req.Username, req.ReactionTime)
	if err != nil {
		s.writeError(w, err, "Update failed")
		return
	}

	msg := "Score recorded"
	if res.Improved {
		msg = "New best time"
	}
	writeJSON(w, http.StatusOK, updateResponse{
		Message:      msg,
		ReactionTime: res.User.BestTimeMs,
		Improved:     res.Improved,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if err := s.service.Ping(ctx); err != nil {
		health.OK = false
		health.DB = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries, err := s.service.ListAudit(r.URL.Query().Get("username"))
	if err != nil {
		s.writeError(w, err, "Audit query failed")
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// decodeBody reads a JSON request body of at most maxBodyBytes into v. On
// failure it writes the error response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// writeError maps service errors to status codes. Unknown errors are logged
// and reported with fallback.
func (s *Server) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrEmptyUsername), errors.Is(err, ErrInvalidTime):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUserExists):
		writeMessage(w, http.StatusConflict, "Username already exists")
	case errors.Is(err, ErrUserNotFound):
		writeMessage(w, http.StatusNotFound, "User not found")
	default:
		s.logger.Error().Err(err).Msg(fallback)
		writeMessage(w, http.StatusInternalServerError, fallback)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
