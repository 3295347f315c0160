// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package server exposes the session lifecycle coordinator to local
// applications over HTTP: a huma REST API for queries and commands and an SSE
// stream of client events.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr  string
	CORSOrigins []string
	ReadTimeout time.Duration
	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken string
	// Heartbeat is the SSE keep-alive interval.
	Heartbeat time.Duration
	// CommandRateLimit throttles session commands per client IP.
	CommandRateLimit RateLimitConfig
}

// Server wraps a chi router with the huma API and HTTP server.
type Server struct {
	router   chi.Router
	api      huma.API
	cfg      Config
	sessions SessionService
}

// New creates a Server with the session routes, the event stream, health
// endpoint, auth and CORS.
func New(cfg Config, sessions SessionService) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, wlerr.New(wlerr.CodeServerConfigInvalid, "listen address is required")
	}
	if sessions == nil {
		return nil, wlerr.New(wlerr.CodeServerConfigInvalid, "session service is required")
	}
	if err := cfg.CommandRateLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.Heartbeat == 0 {
		cfg.Heartbeat = 15 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(authMiddleware(cfg.APIToken))
	if cfg.CommandRateLimit.RequestsPerSecond > 0 {
		r.Use(rateLimitMiddleware(newCommandLimiter(cfg.CommandRateLimit, nil)))
	}

	humaConfig := huma.DefaultConfig("walletlink", "0.1.0")
	humaConfig.Info.Description = "WalletConnect session bridge API"
	api := humachi.New(r, humaConfig)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthBody{Status: "ok"}}, nil
	})

	srv := &Server{
		router:   r,
		api:      api,
		cfg:      cfg,
		sessions: sessions,
	}
	srv.registerRoutes()
	srv.registerEventRoute()

	return srv, nil
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API.
func (s *Server) API() huma.API {
	return s.api
}

// Start runs the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully. Event streams end when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return wlerr.Wrapf(err, wlerr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start over an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// WriteTimeout stays unset so event streams remain open.
	srv := &http.Server{
		Handler:     s.router,
		ReadTimeout: s.cfg.ReadTimeout,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return wlerr.Wrap(err, wlerr.CodeServerShutdownFailure, "shutting down")
	}

	if err := <-errCh; err != nil {
		return wlerr.Wrap(err, wlerr.CodeServerStartFailure, "serving")
	}
	return nil
}

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
