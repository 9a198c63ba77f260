// Package server exposes room lookups and the session lifecycle over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/livegate/internal/logger"
	"github.com/jmylchreest/livegate/internal/metrics"
	"github.com/jmylchreest/livegate/internal/version"
	"github.com/jmylchreest/livegate/pkg/live"
	"github.com/jmylchreest/livegate/pkg/session"
)

// Backend is the lookup client the server fronts. *livegate.Client
// implements it.
type Backend interface {
	GetInfo(ctx context.Context, ref string) (*live.Info, error)
	Session() *session.Session
	State() session.State
	Reset(ctx context.Context) error
}

// Config holds server settings.
type Config struct {
	Addr string

	// LookupTimeout bounds one /api/info request, including any session
	// acquisition it waits on. Zero means no bound beyond the client's.
	LookupTimeout time.Duration
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Addr:          "127.0.0.1:8090",
		LookupTimeout: 2 * time.Minute,
	}
}

// Server serves the HTTP API.
type Server struct {
	backend Backend
	metrics *metrics.Observer
	cfg     Config
	router  chi.Router
}

// New creates a server. m also receives a sample per lookup.
func New(b Backend, m *metrics.Observer, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	s := &Server{
		backend: b,
		metrics: m,
		cfg:     cfg,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(serverHeader)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", s.metrics.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/info", s.handleInfo)
		r.Get("/info/{room}", s.handleInfo)
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleSession)
			r.Post("/reset", s.handleReset)
		})
	})
	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", s.cfg.Addr)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.String(),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "room")
	if ref == "" {
		ref = r.URL.Query().Get("url")
	}
	if ref == "" {
		respondError(w, http.StatusBadRequest, errors.New("missing url parameter"))
		return
	}

	ctx := r.Context()
	if s.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.LookupTimeout)
		defer cancel()
	}

	start := time.Now()
	info, err := s.backend.GetInfo(ctx, ref)
	elapsed := time.Since(start)
	s.metrics.ObserveLookup(err, elapsed)

	if err != nil {
		logger.Warn("lookup failed", "ref", ref, "error", err)
		respondError(w, statusFor(err), err)
		return
	}
	respondJSON(w, http.StatusOK, newInfoResponse(ref, info, elapsed))
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, newSessionStatus(s.backend.State(), s.backend.Session(), time.Now()))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Reset(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	logger.Info("session reset via api")
	respondJSON(w, http.StatusOK, newSessionStatus(s.backend.State(), nil, time.Now()))
}

// statusFor maps lookup errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, live.ErrInvalidRef):
		return http.StatusBadRequest
	case errors.Is(err, live.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, live.ErrAcquireTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, live.ErrChallengeExhausted), errors.Is(err, live.ErrSessionReset):
		return http.StatusServiceUnavailable
	case errors.Is(err, live.ErrParse), errors.Is(err, live.ErrMapping), errors.Is(err, live.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// cookieNames lists the cookie names of s, sorted. Values stay private.
func cookieNames(s *session.Session) []string {
	cookies := s.Cookies()
	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	slices.Sort(names)
	return names
}
