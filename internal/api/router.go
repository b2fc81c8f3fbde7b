// Package api exposes name resolution over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smkaiser/songfix/internal/api/middleware"
	"github.com/smkaiser/songfix/internal/correction"
)

// Resolver is the resolution pipeline as seen by the HTTP layer.
type Resolver interface {
	Resolve(ctx context.Context, name string, typ correction.Type) correction.Result
}

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	Resolver Resolver
	Logger   *slog.Logger

	// ClientInterval and ClientBurst bound /fix requests per client IP.
	// A zero ClientInterval disables the limit.
	ClientInterval time.Duration
	ClientBurst    int

	// MetricsHandler serves /metrics. Defaults to the global Prometheus registry.
	MetricsHandler http.Handler
}

// Router sets up all HTTP routes for the application.
type Router struct {
	resolver       Resolver
	logger         *slog.Logger
	clientInterval time.Duration
	clientBurst    int
	metrics        http.Handler
}

// NewRouter creates a new Router.
func NewRouter(deps RouterDeps) *Router {
	metrics := deps.MetricsHandler
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	return &Router{
		resolver:       deps.Resolver,
		logger:         deps.Logger.With("component", "api"),
		clientInterval: deps.ClientInterval,
		clientBurst:    deps.ClientBurst,
		metrics:        metrics,
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
// ctx bounds background work owned by the handler, such as pruning the
// per-client limiter.
func (r *Router) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()

	fix := func(fn http.HandlerFunc) http.Handler { return fn }
	if r.clientInterval > 0 {
		limiter := middleware.NewClientRateLimiter(ctx, r.clientInterval, r.clientBurst)
		fix = func(fn http.HandlerFunc) http.Handler { return limiter.Middleware(fn) }
	}

	mux.HandleFunc("GET /health", r.handleHealth)
	mux.Handle("GET /fix", fix(r.handleFixGet))
	mux.Handle("POST /fix", fix(r.handleFixPost))
	mux.Handle("GET /metrics", r.metrics)

	var h http.Handler = mux
	h = middleware.Logging(r.logger)(h)
	h = middleware.CORS()(h)
	h = middleware.SecurityHeaders(h)
	h = middleware.RequestID(h)
	return h
}
