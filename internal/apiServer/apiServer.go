// Package apiServer exposes a partition's callable methods to its peers over
// JSON-over-HTTP.
package apiServer

import (
	"log/slog"
	"net/http"

	"github.com/i5heu/ouroboros-graph/pkg/partition"
)

type AuthFunc func(r *http.Request) error

func defaultAuth(*http.Request) error { return nil }

type Server struct {
	mux    *http.ServeMux
	router *partition.Router
	log    *slog.Logger
	auth   AuthFunc
}

type Option func(*Server)

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.log = logger }
}

// WithAuth installs a request authentication hook.
func WithAuth(auth AuthFunc) Option {
	return func(s *Server) { s.auth = auth }
}

func New(router *partition.Router, opts ...Option) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		router: router,
		log:    slog.Default(),
		auth:   defaultAuth,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /partition/call", s.handleCall)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := s.auth(r); err != nil {
		s.log.Warn("authentication failed", "error", err)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	s.mux.ServeHTTP(w, r)
}
