package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hongminglow/medimate-be/internal/config"
	"github.com/hongminglow/medimate-be/internal/http/handlers"
	"github.com/hongminglow/medimate-be/internal/middleware"
	"github.com/hongminglow/medimate-be/internal/models"
	"github.com/hongminglow/medimate-be/internal/ratelimit"
)

// Deps are the collaborators the routes need. Limiter and DB may be nil.
type Deps struct {
	Accounts handlers.AccountService
	Tokens   middleware.AccessVerifier
	DB       handlers.Pinger
	Limiter  *ratelimit.Limiter
	Logger   *zap.Logger
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RealIP(cfg.TrustedProxies))
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	authn := middleware.Authenticate(deps.Tokens)
	accounts := handlers.NewAuthHandler(deps.Accounts, handlers.CookiePolicy{
		Production: cfg.Production(),
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	}, logger)
	health := handlers.NewHealthHandler(time.Now(), deps.DB)

	r.Route("/api/v1", func(r chi.Router) {
		health.Routes(r)
		r.Route("/auth", func(r chi.Router) {
			accounts.Routes(r, authn, ratelimit.ByIP(deps.Limiter, logger))
		})
		r.With(authn, middleware.RequireRoles(models.Roles...)).Get("/medications", accounts.ListMedications)
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
