// Package api serves the HTTP interface: account signup, token issuance and
// the authenticated transform and status endpoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/lisan-ai/lisan/pkg/auth"
	"github.com/lisan-ai/lisan/pkg/config"
	"github.com/lisan-ai/lisan/pkg/lifecycle"
)

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Controller *lifecycle.Controller
	Users      *auth.UserStore
	Tokens     *auth.Tokens
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Log     zerolog.Logger
}

// Server is the lisan HTTP API.
type Server struct {
	cfg    *config.Config
	ctrl   *lifecycle.Controller
	users  *auth.UserStore
	tokens *auth.Tokens
	log    zerolog.Logger
	router chi.Router
}

// New creates a Server wired with all dependencies.
func New(cfg *config.Config, d Deps) *Server {
	s := &Server{
		cfg:    cfg,
		ctrl:   d.Controller,
		users:  d.Users,
		tokens: d.Tokens,
		log:    d.Log.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(s.recoverer)
	r.Use(middleware.Compress(5, "application/json"))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})

	r.Get("/healthz", s.handleHealth)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/signup", s.handleSignup)
		api.Post("/token", s.handleToken)

		api.Group(func(p chi.Router) {
			p.Use(auth.Middleware(s.tokens, s.unauthorized))
			if cfg.RateLimit.Enabled {
				p.Use(newPrincipalLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst).Middleware)
			}
			p.Post("/translate/en2ar", s.handleTranslate)
			p.Post("/summarize", s.handleSummarize)
			p.Get("/status/{id}", s.handleStatus)
		})
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the server and shuts it down gracefully when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Listen).Msg("lisan listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		timeout := s.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.log.Info().Msg("shutting down http server")
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
