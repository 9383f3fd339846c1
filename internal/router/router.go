package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-token-gate/internal/config"
	"go-token-gate/internal/handler"
	"go-token-gate/internal/metrics"
	"go-token-gate/internal/middleware"
	"go-token-gate/internal/model"
)

type Handlers struct {
	Auth  *handler.AuthHandler
	Posts *handler.PostHandler
}

func New(cfg *config.Config, gate *middleware.AuthMiddleware, handlers Handlers, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Post("/signin", handlers.Auth.SignIn)
		api.Post("/refresh", handlers.Auth.Refresh)
		api.Post("/logout", handlers.Auth.Logout)

		api.With(gate.Authenticate, gate.Rotate).Get("/posts", handlers.Posts.List)
		api.With(gate.Authenticate, gate.RequireRole(model.RoleAdmin), gate.Rotate).Post("/posts", handlers.Posts.Add)
	})

	return r
}
