// Package httpapi is the JSON surface of the auth service: login, refresh,
// logout, the caller's own record, an admin probe, metrics and health.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/intranetkit/portalauth"
	"github.com/intranetkit/portalauth/middleware"
)

// Options configures NewRouter. Engine is required.
type Options struct {
	Engine *portalauth.Engine
	Logger *slog.Logger
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Ready backs /healthz; nil means always healthy.
	Ready   func(context.Context) error
	Timeout time.Duration
}

// NewRouter builds the chi router with request id, logging and panic
// recovery applied outermost.
func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(
		requestID,
		logRequests(opts.Logger),
		recoverPanics,
		chimw.RealIP,
		clientIP,
	)
	if opts.Timeout > 0 {
		r.Use(chimw.Timeout(opts.Timeout))
	}

	h := &handlers{
		engine: opts.Engine,
		cfg:    opts.Engine.Config(),
		ready:  opts.Ready,
	}

	r.Get("/healthz", h.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.Post("/logout", h.logout)
		r.With(middleware.RequireAuth(opts.Engine)).Get("/me", h.me)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(opts.Engine))
		r.Get("/ping", h.adminPing)
	})

	return r
}
