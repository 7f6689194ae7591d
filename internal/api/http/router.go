package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/letter-service/internal/api/http/handlers"
	"github.com/spec-kit/letter-service/internal/auth"
	"github.com/spec-kit/letter-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Letters        *handlers.LettersHandler
	AdminLetters   *handlers.AdminLettersHandler
	AdminUsers     *handlers.AdminUsersHandler
	AuthMiddleware *auth.AuthMiddleware
	LoginLimiter   *auth.LoginRateLimiter
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes. Serial parameters arrive percent-encoded.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Handler())
	}

	authGroup := app.Group("/auth")
	if cfg.LoginLimiter != nil {
		authGroup.Post("/login", cfg.LoginLimiter.Handler(), cfg.Auth.Login)
	} else {
		authGroup.Post("/login", cfg.Auth.Login)
	}
	authGroup.Post("/logout", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Auth.Logout)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Auth.Me)

	letters := app.Group("/letters", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	letters.Get("/", cfg.Letters.Dashboard)
	letters.Get("/export", cfg.Letters.Export)
	letters.Get("/:serial", cfg.Letters.Detail)
	letters.Post("/:serial/reply", cfg.Letters.Reply)
	letters.Get("/:serial/attachments/:slot", cfg.Letters.Attachment)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireSuperuser())
	admin.Get("/letters", cfg.AdminLetters.List)
	admin.Post("/letters", cfg.AdminLetters.Create)
	admin.Get("/letters/export", cfg.AdminLetters.Export)
	admin.Get("/letters/:serial", cfg.AdminLetters.Get)
	admin.Put("/letters/:serial", cfg.AdminLetters.Update)
	admin.Delete("/letters/:serial", cfg.AdminLetters.Delete)

	admin.Get("/users", cfg.AdminUsers.List)
	admin.Post("/users", cfg.AdminUsers.Create)
	admin.Get("/users/:id", cfg.AdminUsers.Get)
	admin.Put("/users/:id", cfg.AdminUsers.Update)
	admin.Delete("/users/:id", cfg.AdminUsers.Delete)
}
