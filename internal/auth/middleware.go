package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/stephane-berube/keycloak/internal/db/models"
)

// AdminRole is the role required for the administrative endpoints.
const AdminRole = "admin"

// RequireRole returns a Fiber middleware that only lets requests through
// when the authenticated user holds the given role. The authentication
// middleware must have stored the current user in fiber.Locals first.
func RequireRole(s *Service, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := c.Locals("CurrentUser").(models.User)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "not authenticated",
			})
		}

		hasRole, err := s.HasRole(user.ID, role)
		if err != nil {
			log.Error().Err(err).Uint64("user_id", user.ID).Str("role", role).Msg("role check failed")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}

		if !hasRole {
			log.Debug().Uint64("user_id", user.ID).Str("role", role).Msg("access denied")

			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient privileges",
			})
		}

		return c.Next()
	}
}
