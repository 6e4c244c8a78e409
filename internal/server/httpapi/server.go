// Package httpapi is the HTTP/JSON boundary of the auth server: routing,
// request validation, bearer-token user resolution and the mapping of
// domain errors to status codes.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/unrolled/secure"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// AuthService is what the boundary needs from services.AuthService.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*models.UserResponse, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.AccessToken, error)
	VerifyAccessToken(token string) (string, error)
}

// UserService is what the boundary needs from services.UserService.
type UserService interface {
	GetUserByID(ctx context.Context, id string) (*models.UserResponse, error)
}

type Server struct {
	address  string
	auth     AuthService
	users    UserService
	logger   logging.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate
	config   *config.Config
	handler  http.Handler
}

func NewServer(c *config.Config, l logging.Logger, as AuthService, us UserService, m *metrics.Metrics) *Server {
	s := &Server{
		address:  c.EndpointAddrHTTP,
		auth:     as,
		users:    us,
		logger:   l.With("module", "http_server"),
		metrics:  m,
		validate: newValidator(),
		config:   c,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           s.config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !s.config.IsProduction(),
	})

	r.Use(
		middleware.RealIP,
		middleware.RequestID,
		s.requestLogger,
		s.metrics.Middleware,
		middleware.Recoverer,
		middleware.Timeout(s.config.RequestTimeout),
		secureMiddleware.Handler,
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, errNotFound, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, errMethodNotAllowed, nil)
	})

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		if limit := s.config.RateLimitPerMinute; limit > 0 {
			r.Use(httprate.Limit(limit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeAPIError(w, errTooManyRequests, nil)
				}),
			))
		}

		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)

		r.With(s.resolveUser, s.requireUser).Get("/me", s.handleAuthMe)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(s.resolveUser)

		r.With(s.requireUser).Get("/me", s.handleUsersMe)
		r.With(s.requireAdmin).Get("/admin", s.handleUsersAdmin)
		r.Get("/public", s.handleUsersPublic)
	})

	return r
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on l until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info(ctx, "Starting HTTP server", "address", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
