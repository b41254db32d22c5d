// Package server exposes the document store and auth service over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/ridwanullahh/qurandb/internal/auth"
	"github.com/ridwanullahh/qurandb/internal/docstore"
	"github.com/ridwanullahh/qurandb/internal/models"
)

// Server wires the HTTP API to the document store and auth service.
type Server struct {
	db      *docstore.Store
	auth    *auth.Service
	limiter *Limiter
	log     *slog.Logger
}

// New returns the HTTP handler serving the API.
func New(db *docstore.Store, authSvc *auth.Service, limiter *Limiter, l *slog.Logger) http.Handler {
	if l == nil {
		l = slog.Default()
	}
	s := &Server{db: db, auth: authSvc, limiter: limiter, log: l}
	return s.routes()
}

// apiHandler is an HTTP handler that reports failures as errors instead of
// writing them itself.
type apiHandler func(w http.ResponseWriter, r *http.Request) error

// wrap turns an apiHandler into an http.Handler with uniform error
// rendering.
func (s *Server) wrap(h apiHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.writeError(w, r, err)
		}
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr models.ErrorWithStatus
	if !errors.As(err, &apiErr) {
		apiErr = models.Internal("internal server error").Wrap(err)
		s.log.Error("http", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	resp := models.ErrorResponse{
		Error: models.ErrorDetails{
			Code:    apiErr.Code(),
			Message: apiErr.Error(),
		},
		Details: apiErr.Details(),
	}
	writeJSON(w, apiErr.StatusCode(), resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readJSON decodes the request body into v, rejecting unknown fields.
func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return models.Validation("malformed request body").Wrap(err)
	}
	return nil
}

// clientKey identifies a client for rate limiting.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// rateLimit guards h with the per-client limiter.
func (s *Server) rateLimit(h http.Handler) http.Handler {
	if s.limiter == nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			s.writeError(w, r, models.RateLimited(s.limiter.RetryAfter()))
			return
		}
		h.ServeHTTP(w, r)
	})
}

// sessionToken extracts the bearer token, falling back to the auth cookie.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return h[7:]
	}
	if c, err := r.Cookie("auth-token"); err == nil {
		return c.Value
	}
	return ""
}

// withUser authenticates the request and passes the session user to h.
func (s *Server) withUser(h func(w http.ResponseWriter, r *http.Request, user docstore.Document) error) http.Handler {
	return s.wrap(func(w http.ResponseWriter, r *http.Request) error {
		user, err := s.auth.GetSession(r.Context(), sessionToken(r))
		if err != nil {
			return err
		}
		return h(w, r, user)
	})
}

// withAdmin is withUser restricted to the admin role.
func (s *Server) withAdmin(h func(w http.ResponseWriter, r *http.Request, user docstore.Document) error) http.Handler {
	return s.withUser(func(w http.ResponseWriter, r *http.Request, user docstore.Document) error {
		if !auth.HasRole(user, "admin") {
			return models.Forbidden("admin role required")
		}
		return h(w, r, user)
	})
}
