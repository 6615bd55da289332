package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forgeworks/auth-connector/internal/application"
)

// HandlerConfig carries the transport-level settings the handlers need
// beyond the application service itself.
type HandlerConfig struct {
	// ClientAppURL is where the callback redirects the browser after the
	// token cookies are set.
	ClientAppURL  string
	SecureCookies bool

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Handler is the HTTP adapter entrypoint for the auth use-cases.
type Handler struct {
	service   *application.Service
	cfg       HandlerConfig
	readiness func(ctx context.Context) error
}

// NewHandler constructs an HTTP handler bound to the application service.
// readiness may be nil; when set it gates /readyz on dependency health.
func NewHandler(service *application.Service, cfg HandlerConfig, readiness func(ctx context.Context) error) *Handler {
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	return &Handler{service: service, cfg: cfg, readiness: readiness}
}

// NewRouter registers the HTTP routes and middleware stack.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/auth/v1", func(r chi.Router) {
		r.Get("/login", handler.login)
		r.Get("/callback", handler.callback)
		r.Post("/refresh", handler.refresh)
		r.Post("/logout", handler.logout)
		r.Get("/me", handler.me)
	})

	return r
}
