package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/letter-service/internal/policy"
	apperrors "github.com/spec-kit/letter-service/pkg/util/errorutil"
)

// RequireSuperuser ensures the caller may use admin management.
func RequireSuperuser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if err := policy.AuthorizeAdmin(principal.Actor); err != nil {
			return err
		}
		return c.Next()
	}
}

// RequireAuthenticated ensures a principal was loaded.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
