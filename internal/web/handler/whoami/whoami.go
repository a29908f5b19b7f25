// Package whoami provides the handler returning the authenticated user profile.
package whoami

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/stephane-berube/keycloak/internal/auth"
	"github.com/stephane-berube/keycloak/internal/config"
	"github.com/stephane-berube/keycloak/internal/db/models"
	"github.com/stephane-berube/keycloak/internal/web/handler"
)

// Path is the path to the whoami endpoint.
const Path = handler.RootPath + "whoami"

// Service is the whoami handler service.
type Service struct {
	handler.Service
	cfg         *config.Config
	db          *gorm.DB
	authService *auth.Service
}

// Handler is the whoami handler.
var Handler = Service{}

// Init initializes the whoami handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) error {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
	}

	s.db = db
	s.cfg = cfg
	s.authService = authService

	app.Get(Path, s.Get)

	return nil
}

// Get returns the current user and the roles assigned to them.
func (s *Service) Get(c *fiber.Ctx) error {
	user, ok := c.Locals("CurrentUser").(models.User)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "not authenticated",
		})
	}

	roles, err := s.authService.GetUserRoles(user.ID)
	if err != nil {
		log.Error().Err(err).Uint64("user_id", user.ID).Msg("failed to load user roles")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(fiber.Map{
		"id":          user.ID,
		"username":    user.Username,
		"email":       user.Email,
		"first_name":  user.FirstName,
		"last_name":   user.LastName,
		"locale":      user.Locale,
		"auth_source": user.AuthSource,
		"roles":       roles,
	})
}
