package http

import (
	"net/http"

	"github.com/atinyakov/CipherStudio/internal/access"
	"github.com/atinyakov/CipherStudio/internal/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig collects what NewRouter needs besides the handlers.
type RouterConfig struct {
	// Verifier checks bearer tokens.
	Verifier access.TokenVerifier
	// AllowedOrigins lists the CORS origins; one "*" wildcard per entry is
	// allowed, e.g. "https://*.vercel.app".
	AllowedOrigins []string
	// Logger receives one line per request.
	Logger *zap.Logger
}

// NewRouter constructs and returns an HTTP handler that serves
// the CipherStudio API under /api.
//
// Routes:
//
//	GET    /api/health                       → health.Health
//	POST   /api/auth/register                → authHandler.Register
//	POST   /api/auth/login                   → authHandler.Login
//	GET    /api/auth/profile                 → authHandler.Profile (bearer required)
//	POST   /api/projects                     → projectHandler.Create
//	GET    /api/projects/user/projects       → projectHandler.ListMine (bearer required)
//	GET    /api/projects/{projectID}         → projectHandler.Get
//	PUT    /api/projects/{projectID}         → projectHandler.Update
//	DELETE /api/projects/{projectID}         → projectHandler.Delete
//	GET    /api/projects/{projectID}/preview → projectHandler.Preview
//
// Middleware chain (applied in order): request id, request logging, panic
// recovery, CORS, JSON content-type enforcement, identity resolution.
func NewRouter(
	authHandler *AuthHandler,
	projectHandler *ProjectHandler,
	health *HealthHandler,
	cfg RouterConfig,
) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", access.GuestHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	// Only allow requests with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(middleware.WithIdentity(cfg.Verifier))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.With(middleware.RequireUser).Get("/profile", authHandler.Profile)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", projectHandler.Create)
			// specific routes before parameterized ones
			r.With(middleware.RequireUser).Get("/user/projects", projectHandler.ListMine)
			r.Get("/{projectID}", projectHandler.Get)
			r.Put("/{projectID}", projectHandler.Update)
			r.Delete("/{projectID}", projectHandler.Delete)
			r.Get("/{projectID}/preview", projectHandler.Preview)
		})
	})

	return r
}
