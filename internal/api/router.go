package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/nekonik/registry/internal/api/middleware"
	"github.com/nekonik/registry/internal/api/response"
	"github.com/nekonik/registry/internal/metrics"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Sessions      *mw.Sessions
	APIKeyAuth    *mw.APIKeyAuth
	RateLimit     *mw.RateLimit
	Metrics       metrics.Recorder
	AllowedOrigin string

	HealthHandler  http.HandlerFunc
	MetricsHandler http.Handler

	RegisterHandler      http.HandlerFunc
	LoginHandler         http.HandlerFunc
	SessionHandler       http.HandlerFunc
	LogoutHandler        http.HandlerFunc
	MeHandler            http.HandlerFunc
	UpdateProfileHandler http.HandlerFunc
	DeleteAccountHandler http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	EditKeyHandler   http.HandlerFunc
	DeleteKeyHandler http.HandlerFunc
	WhoAmIHandler    http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Instrument(rec))
	r.Use(mw.Recovery)
	r.Use(mw.CORS(deps.AllowedOrigin))

	// Public
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimit.ByIP)

		r.Post("/api/v1/users/register", orNotImplemented(deps.RegisterHandler))
		r.Post("/api/v1/users/login", orNotImplemented(deps.LoginHandler))
	})

	// Session routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Sessions.RequireSession)

		r.Get("/api/v1/users/session", orNotImplemented(deps.SessionHandler))
		r.Post("/api/v1/users/logout", orNotImplemented(deps.LogoutHandler))
		r.Get("/api/v1/users/me", orNotImplemented(deps.MeHandler))
		r.Put("/api/v1/users/me/profile", orNotImplemented(deps.UpdateProfileHandler))
		r.Delete("/api/v1/users/me", orNotImplemented(deps.DeleteAccountHandler))

		r.Post("/api/v1/api-keys", orNotImplemented(deps.CreateKeyHandler))
		r.Get("/api/v1/api-keys", orNotImplemented(deps.ListKeysHandler))
		r.Patch("/api/v1/api-keys/{keyID}", orNotImplemented(deps.EditKeyHandler))
		r.Delete("/api/v1/api-keys/{keyID}", orNotImplemented(deps.DeleteKeyHandler))
	})

	// API key routes
	r.Group(func(r chi.Router) {
		r.Use(deps.APIKeyAuth.Authenticate)
		r.Use(deps.RateLimit.ByKeyPrefix)

		r.Get("/api/v1/whoami", orNotImplemented(deps.WhoAmIHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
