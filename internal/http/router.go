package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/loyaltix/server/internal/auth"
	"github.com/loyaltix/server/internal/http/handlers"
	"github.com/loyaltix/server/internal/metrics"
	"github.com/loyaltix/server/internal/middleware"
	"github.com/loyaltix/server/internal/model"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Token    *handlers.TokenHandler
	Client   *handlers.ClientHandler
	Business *handlers.BusinessHandler
}

// NewRouter wires all routes. The public group carries issue/confirm/refresh;
// the mobile and web groups require an access token of the matching realm.
func NewRouter(h Handlers, svc *auth.Service, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)

	r.Get("/health", handlers.HandleHealth)
	r.Method("GET", "/metrics", metrics.Handler())

	limiter := middleware.NewRateLimiter(rate.Limit(10), 20)
	authMW := middleware.Auth(svc)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Business)
		r.Use(limiter.Handler)

		r.Post("/auth", h.Auth.HandleAuth)
		r.Post("/auth/confirm", h.Auth.HandleConfirm)
		r.Post("/token/refresh", h.Token.HandleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(authMW)
			r.Post("/token/logout", h.Token.HandleLogout)
			r.Post("/token/revoke-all", h.Token.HandleRevokeAll)
			r.Get("/token/issued", h.Token.HandleIssued)
		})
	})

	r.Route("/api/mobile/v1", func(r chi.Router) {
		r.Use(authMW)
		r.Use(middleware.RequireRealm(model.RealmMobile))

		r.Get("/user", h.Client.HandleGetProfile)
		r.Patch("/user", h.Client.HandleUpdateProfile)
		r.Get("/business", h.Client.HandleGetBusiness)
		r.Get("/news", h.Client.HandleNews)
	})

	r.Route("/api/web/v1", func(r chi.Router) {
		r.Use(authMW)
		r.Use(middleware.RequireRealm(model.RealmWeb))

		r.Get("/user", h.Business.HandleGetOwner)
		r.Get("/clients", h.Business.HandleListClients)
		r.Post("/clients/{clientID}/bonuses", h.Business.HandleAdjustBonuses)
	})

	return r
}
