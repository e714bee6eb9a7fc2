// Package api assembles the HTTP surface of the favorites service.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/favorites/internal/api/handlers"
	"github.com/Togather-Foundation/favorites/internal/api/middleware"
	"github.com/Togather-Foundation/favorites/internal/audit"
	"github.com/Togather-Foundation/favorites/internal/config"
	"github.com/Togather-Foundation/favorites/internal/domain/favorites"
	"github.com/Togather-Foundation/favorites/internal/metrics"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Service     *favorites.Service
	Identity    middleware.UserIDExtractor
	RateLimiter *middleware.RateLimiter
	Checks      map[string]handlers.Pinger
	Build       BuildInfo
}

func NewRouter(cfg config.Config, logger zerolog.Logger, deps Deps) http.Handler {
	env := cfg.Environment
	lists := handlers.NewListsHandler(deps.Service, audit.NewLogger(logger), env)
	health := handlers.NewHealthChecker(deps.Build.withDefaults().Version, deps.Checks)
	requireUser := middleware.RequireUser(env)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("GET /version", VersionHandler(deps.Build))

	authed := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, requireUser(fn))
	}

	// Anonymous.
	mux.HandleFunc("GET /api/favorites/lists/public", lists.ListPublic)
	mux.HandleFunc("GET /api/favorites/public/{token}", lists.GetPublic)
	mux.HandleFunc("GET /api/favorites/public/{token}/with-events", lists.GetPublicWithEvents)

	authed("POST /api/favorites/lists", lists.Create)
	authed("GET /api/favorites/lists", lists.ListMine)
	authed("GET /api/favorites/lists/shared-with-me", lists.SharedWithMe)
	authed("GET /api/favorites/shared-with-me", lists.SharedWithMe)
	authed("GET /api/favorites/lists/shared-with-me/with-events", lists.SharedWithMeWithEvents)
	authed("POST /api/favorites/lists/events/byIds", lists.FetchEvents)
	authed("GET /api/favorites/lists/{id}", lists.Get)
	authed("PATCH /api/favorites/lists/{id}", lists.Rename)
	authed("DELETE /api/favorites/lists/{id}", lists.Delete)
	authed("GET /api/favorites/lists/{id}/with-events", lists.GetWithEvents)
	authed("GET /api/favorites/lists/{id}/details", lists.GetWithEvents)
	authed("GET /api/favorites/lists/{id}/owner-name", lists.OwnerName)
	authed("GET /api/favorites/lists/{id}/with-owner", lists.WithOwner)
	authed("POST /api/favorites/lists/{id}/events/{eventId}", lists.AddEvent)
	authed("DELETE /api/favorites/lists/{id}/events/{eventId}", lists.RemoveEvent)
	authed("PUT /api/favorites/lists/{id}/shared-with", lists.UpdateSharedWith)

	// Middlewares that replace the request run outside; the ones that read
	// the matched route sit next to the mux.
	var h http.Handler = mux
	h = middleware.RequestSize(middleware.DefaultMaxBodySize)(h)
	h = middleware.SecurityHeaders(h)
	h = metrics.HTTPMiddleware(h)
	h = middleware.TraceRoute(h)
	h = middleware.RequestLogging(h)
	if deps.RateLimiter != nil {
		h = deps.RateLimiter.Middleware(h)
	}
	h = middleware.Authenticate(deps.Identity, env)(h)
	h = middleware.Tracing(h)
	h = middleware.CorrelationID(logger)(h)
	return h
}
