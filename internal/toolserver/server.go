// Package toolserver publishes the tool registry over HTTP.
package toolserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/errors"
	"github.com/rs/zerolog"

	"issuebridge/internal/auth"
	"issuebridge/internal/mcp"
	"issuebridge/internal/middleware"
	"issuebridge/internal/modules"
	"issuebridge/internal/observability"
)

const (
	readTimeout     = 15 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Options configures a Server.
type Options struct {
	Addr    string
	Version string
	// Verifier guards POST /mcp. A verifier without a secret leaves it open.
	Verifier *auth.Verifier
	// RateLimit is the per-caller requests-per-second limit on /mcp; 0 disables it.
	RateLimit int
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Off by default: those headers are caller-controlled and key the rate limiter.
	TrustProxy bool
	// ToolTimeout bounds one tool execution and sizes the write timeout.
	ToolTimeout time.Duration
	Logger      zerolog.Logger
}

// Server is the tool publication endpoint.
type Server struct {
	registry *modules.Registry
	opts     Options
	router   chi.Router
	logger   zerolog.Logger
}

// New builds the router. ctx bounds background work such as rate limiter
// cleanup.
func New(ctx context.Context, registry *modules.Registry, opts Options) *Server {
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = modules.DefaultToolTimeout
	}
	s := &Server{
		registry: registry,
		opts:     opts,
		logger:   opts.Logger.With().Str("component", "toolserver").Logger(),
	}
	s.router = s.routes(ctx)
	return s
}

func (s *Server) routes(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if s.opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLog(s.logger))
	r.Use(middleware.Recovery(s.logger))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/tools", s.handleTools)
	r.Method(http.MethodGet, "/metrics", observability.MetricsHandler())

	authorizer := middleware.NewAuthorizer(s.opts.Verifier, s.opts.Logger)
	if !s.opts.Verifier.Enabled() {
		s.logger.Warn().Msg("MCP_JWT_SECRET not set, /mcp accepts unauthenticated tool calls")
	}
	handler := mcp.NewHandler(s.registry, s.opts.Version, s.opts.Logger)

	r.Group(func(r chi.Router) {
		r.Use(authorizer.Authorize)
		if s.opts.RateLimit > 0 {
			r.Use(middleware.NewRateLimiter(ctx, s.opts.RateLimit).Middleware)
		}
		r.Handle("/mcp", middleware.Transport(handler, s.opts.Logger))
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.opts.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      s.opts.ToolTimeout + readTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("addr", ln.Addr().String()).
			Int("tools", len(s.registry.Tools())).
			Msg("tool server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down tool server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
