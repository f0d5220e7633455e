// Package server exposes the scope REST routes and the streaming endpoint
// over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/roman-kulish/sniper-scope/internal/scope"
	"github.com/roman-kulish/sniper-scope/internal/storage"
	"github.com/roman-kulish/sniper-scope/internal/stream"
	"github.com/rs/cors"
)

const (
	welcomeMessage = "Welcome to the Sniper Scope API!"

	// max size of a create scope request body
	maxBodySize = 1 << 16
)

// DefaultAllowedOrigins are the browser origins allowed when none are configured
var DefaultAllowedOrigins = []string{
	"http://localhost:5173",
	"http://localhost:8000",
	"http://localhost",
}

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) func(*Server) {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAllowedOrigins sets the origins allowed by CORS
func WithAllowedOrigins(origins ...string) func(*Server) {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// Server routes HTTP requests to the scope store and the stream handler.
type Server struct {
	store   storage.Store
	streams http.Handler
	logger  *slog.Logger

	allowedOrigins []string
}

// New creates a new Server with a discard logger
func New(store storage.Store, streams http.Handler, options ...func(*Server)) *Server {
	s := Server{
		store:          store,
		streams:        streams,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		allowedOrigins: DefaultAllowedOrigins,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Handler returns the routed HTTP handler wrapped with CORS
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /scopes", s.handleCreateScope)
	mux.HandleFunc("GET /scopes", s.handleListScopes)
	mux.HandleFunc("GET /scopes/{"+stream.ScopeIDPathValue+"}", s.handleGetScope)
	mux.Handle("GET /ws/scope/{"+stream.ScopeIDPathValue+"}", s.streams)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return c.Handler(mux)
}

// OriginPatterns converts CORS origins into the host patterns used to
// authorise WebSocket upgrades. Origins that do not parse are skipped.
func OriginPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}

type createScopeRequest struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Frequency *float64 `json:"frequency"`
	Amplitude *float64 `json:"amplitude"`
	Phase     float64  `json:"phase"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": welcomeMessage})
}

func (s *Server) handleCreateScope(w http.ResponseWriter, r *http.Request) {
	var req createScopeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "invalid scope: "+err.Error())
		return
	}
	if req.Frequency == nil || req.Amplitude == nil {
		s.writeError(w, http.StatusUnprocessableEntity, "invalid scope: frequency and amplitude are required")
		return
	}

	created, err := s.store.CreateScope(r.Context(), &scope.Scope{
		ID:        req.ID,
		Name:      req.Name,
		Frequency: *req.Frequency,
		Amplitude: *req.Amplitude,
		Phase:     req.Phase,
	})
	if errors.Is(err, storage.ErrScopeExists) {
		s.writeError(w, http.StatusConflict, "Scope already exists")
		return
	}
	if err != nil {
		s.logger.Error("creating scope", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "Scope could not be created")
		return
	}

	s.logger.Info("scope created", slog.String("scopeID", created.ID))
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListScopes(w http.ResponseWriter, r *http.Request) {
	scopes, err := s.store.Scopes(r.Context())
	if err != nil {
		s.logger.Error("listing scopes", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "Scopes could not be listed")
		return
	}
	if scopes == nil {
		scopes = []*scope.Scope{}
	}

	s.writeJSON(w, http.StatusOK, scopes)
}

func (s *Server) handleGetScope(w http.ResponseWriter, r *http.Request) {
	sc, err := s.store.Scope(r.Context(), r.PathValue(stream.ScopeIDPathValue))
	if errors.Is(err, scope.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Scope not found")
		return
	}
	if err != nil {
		s.logger.Error("getting scope", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "Scope could not be loaded")
		return
	}

	s.writeJSON(w, http.StatusOK, sc)
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorResponse{Detail: detail})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	p, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encoding response", slog.String("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(p); err != nil {
		s.logger.Debug("writing response", slog.String("error", err.Error()))
	}
}
