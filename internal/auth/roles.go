package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/edu-platform/credential-service/internal/domain"
	"github.com/edu-platform/credential-service/pkg/errorutil"
)

// RequireRole ensures the verified identity has one of the allowed roles.
// It must run after AuthMiddleware.Handle.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return errorutil.NewUnauthenticated("authentication required")
		}
		if len(allowed) > 0 && !identity.HasRole(allowed...) {
			return errorutil.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
