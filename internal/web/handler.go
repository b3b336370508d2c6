// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package web exposes the auth operations over JSON HTTP.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/stockevaluator/authcore/internal/auth"
	"github.com/stockevaluator/authcore/internal/observability"
)

const instrumentationName = "github.com/stockevaluator/authcore/internal/web"

// Authenticator is the account and session surface the handlers call.
type Authenticator interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Account, error)
	Login(ctx context.Context, email, password string) (*auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
}

// PasswordResetter is the password reset surface the handlers call.
type PasswordResetter interface {
	RequestReset(ctx context.Context, email string) (string, error)
	CompletePasswordReset(ctx context.Context, token, newPassword string) error
}

// ResetNotifier delivers a plaintext reset token to the account owner.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// Handler serves the /auth routes.
type Handler struct {
	auth     Authenticator
	resets   PasswordResetter
	notifier ResetNotifier
	limiter  *ClientLimiter
	metrics  *observability.Metrics
	hub      *sentry.Hub
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time

	trustProxy bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithLoginLimiter sets the per-client limiter applied to login and reset
// requests. Without one those routes are unlimited.
func WithLoginLimiter(limiter *ClientLimiter) Option {
	return func(h *Handler) {
		h.limiter = limiter
	}
}

// WithTrustedProxy takes the client address from X-Forwarded-For or
// X-Real-IP. Enable it only behind a proxy that overwrites those headers;
// otherwise any caller can pick the address the login limiter keys on.
func WithTrustedProxy(trust bool) Option {
	return func(h *Handler) {
		h.trustProxy = trust
	}
}

// WithMetrics records per-route request counts and durations.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

// WithResetNotifier sets where reset tokens are delivered.
func WithResetNotifier(notifier ResetNotifier) Option {
	return func(h *Handler) {
		h.notifier = notifier
	}
}

// WithSentryHub sets the hub panics and server errors are reported to.
// Defaults to sentry.CurrentHub, which is inert until sentry.Init.
func WithSentryHub(hub *sentry.Hub) Option {
	return func(h *Handler) {
		h.hub = hub
	}
}

// WithTracerProvider sets the provider request spans are started from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *Handler) {
		h.tracer = tp.Tracer(instrumentationName)
	}
}

// WithHandlerLogger sets the request logger.
func WithHandlerLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithHandlerClock sets the clock used for expires_in and Retry-After.
func WithHandlerClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler creates a Handler over the auth and reset services.
func NewHandler(authn Authenticator, resets PasswordResetter, opts ...Option) (*Handler, error) {
	if authn == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("authenticator is required")
	}
	if resets == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("password resetter is required")
	}

	h := &Handler{
		auth:   authn,
		resets: resets,
		hub:    sentry.CurrentHub(),
		tracer: otel.Tracer(instrumentationName),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Routes returns the router for every /auth endpoint.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if h.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(h.instrument)
	r.Use(h.recoverer)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.With(h.rateLimit).Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.Post("/logout", h.logout)
		r.Get("/me", h.me)

		r.Route("/password-reset", func(r chi.Router) {
			r.With(h.rateLimit).Post("/request", h.requestReset)
			r.Post("/complete", h.completeReset)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
