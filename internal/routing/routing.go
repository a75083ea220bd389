package routing

import (
	"net/http"

	"coffeetime/internal/atproto"
	"coffeetime/internal/handlers"
	"coffeetime/internal/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Config holds the configuration needed for setting up routes
type Config struct {
	Handlers *handlers.Handler
	// OAuthManager is optional; without it requests are never authenticated.
	OAuthManager *atproto.OAuthManager
	RateLimits   *middleware.RateLimitConfig
	Logger       zerolog.Logger
}

// SetupRouter creates and configures the HTTP router with all routes and middleware
func SetupRouter(cfg Config) http.Handler {
	h := cfg.Handlers
	mux := http.NewServeMux()

	// OAuth routes
	mux.HandleFunc("POST /auth/login", h.HandleLoginSubmit)
	mux.HandleFunc("GET /oauth/callback", h.HandleOAuthCallback)
	mux.HandleFunc("POST /logout", h.HandleLogout)
	mux.HandleFunc("GET /client-metadata.json", h.HandleClientMetadata)
	mux.HandleFunc("GET /.well-known/oauth-client-metadata", h.HandleClientMetadata)

	// Journal
	mux.HandleFunc("GET /api/coffees", h.HandleCoffeeList)
	mux.HandleFunc("POST /api/coffees", h.HandleCoffeeCreate)
	mux.HandleFunc("GET /api/coffees/{id}", h.HandleCoffeeGet)
	mux.HandleFunc("PUT /api/coffees/{id}", h.HandleCoffeeUpdate)
	mux.HandleFunc("DELETE /api/coffees/{id}", h.HandleCoffeeDelete)

	mux.HandleFunc("GET /api/coffees/{id}/sessions", h.HandleSessionList)
	mux.HandleFunc("POST /api/coffees/{id}/sessions", h.HandleSessionCreate)
	mux.HandleFunc("PUT /api/coffees/{id}/sessions/{sid}", h.HandleSessionUpdate)
	mux.HandleFunc("DELETE /api/coffees/{id}/sessions/{sid}", h.HandleSessionDelete)

	// Legacy interchange and backups
	mux.HandleFunc("POST /api/import", h.HandleLegacyImport)
	mux.HandleFunc("GET /api/export", h.HandleLegacyExport)
	mux.HandleFunc("GET /api/backups", h.HandleBackupList)
	mux.HandleFunc("POST /api/backups", h.HandleBackupCreate)
	mux.HandleFunc("POST /api/backups/restore", h.HandleBackupRestore)

	// Preferences and status
	mux.HandleFunc("GET /api/preferences", h.HandlePreferencesGet)
	mux.HandleFunc("PUT /api/preferences", h.HandlePreferencesUpdate)
	mux.HandleFunc("GET /api/storage", h.HandleStorageInfo)
	mux.HandleFunc("GET /api/sync", h.HandleSyncStatus)
	mux.Handle("POST /api/sync", atproto.RequireAuth(http.HandlerFunc(h.HandleSyncTrigger)))

	mux.Handle("GET /metrics", promhttp.Handler())

	// Catch-all 404 handler - must be last, catches any unmatched routes
	mux.HandleFunc("/", h.HandleNotFound)

	// Apply middleware in order (outermost first, innermost last)
	var handler http.Handler = mux

	// 1. Limit request body size (innermost - runs first on request)
	handler = middleware.LimitBodyMiddleware(handler)

	// 2. Apply OAuth middleware to add auth context
	if cfg.OAuthManager != nil {
		handler = cfg.OAuthManager.AuthMiddleware(handler)
	}

	// 3. Apply rate limiting
	if cfg.RateLimits != nil {
		handler = middleware.RateLimitMiddleware(cfg.RateLimits)(handler)
	}

	// 4. Apply security headers
	handler = middleware.SecurityHeadersMiddleware(handler)

	// 5. Apply logging middleware (outermost - wraps everything)
	handler = middleware.LoggingMiddleware(cfg.Logger)(handler)

	return handler
}
