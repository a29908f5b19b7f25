// Package localemapping provides the administrative endpoints for managing
// host-to-provider locale mappings.
package localemapping

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/stephane-berube/keycloak/internal/auth"
	"github.com/stephane-berube/keycloak/internal/config"
	controller "github.com/stephane-berube/keycloak/internal/db/controller/localemapping"
	"github.com/stephane-berube/keycloak/internal/db/models"
	"github.com/stephane-berube/keycloak/internal/web/handler"
)

// Path is the path to the locale mapping administration endpoints.
const Path = handler.RootPath + "admin/locale-mappings"

// mappingRequest is the request body for creating or replacing a mapping.
type mappingRequest struct {
	HostLocaleID   string `json:"host_locale_id" form:"host_locale_id" validate:"required"`
	ProviderLocale string `json:"provider_locale" form:"provider_locale" validate:"required"`
	Label          string `json:"label" form:"label"`
}

// Service is the locale mapping administration handler service.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
}

// Handler is the locale mapping administration handler.
var Handler = Service{}

// Init initializes the locale mapping administration handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) error {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
	}

	s.db = db
	s.cfg = cfg
	s.validator = validator.New()

	requireAdmin := auth.RequireRole(authService, auth.AdminRole)

	app.Get(Path, requireAdmin, s.List)
	app.Put(Path, requireAdmin, s.Set)
	app.Delete(Path+"/:hostLocaleID", requireAdmin, s.Delete)

	return nil
}

// List returns all configured locale mappings.
func (s *Service) List(c *fiber.Ctx) error {
	mappings, err := controller.List(s.db)
	if err != nil {
		log.Error().Err(err).Msg("failed to list locale mappings")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(fiber.Map{"mappings": mappings})
}

// Set creates or replaces the mapping for a host locale.
func (s *Service) Set(c *fiber.Ctx) error {
	req := new(mappingRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := s.validator.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			messages := make([]string, len(validationErrors))
			for i, ve := range validationErrors {
				messages[i] = "field '" + ve.Field() + "' failed validation tag '" + ve.Tag() + "'"
			}

			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": strings.Join(messages, "; ")})
		}

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	mapping := &models.LocaleMapping{
		HostLocaleID:   req.HostLocaleID,
		ProviderLocale: req.ProviderLocale,
		Label:          req.Label,
	}

	if err := controller.Set(s.db, mapping); err != nil {
		log.Error().Err(err).Str("host_locale_id", req.HostLocaleID).Msg("failed to set locale mapping")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(mapping)
}

// Delete removes the mapping for a host locale.
func (s *Service) Delete(c *fiber.Ctx) error {
	if err := controller.Delete(s.db, c.Params("hostLocaleID")); err != nil {
		if errors.Is(err, controller.ErrMappingNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "mapping not found"})
		}

		log.Error().Err(err).Msg("failed to delete locale mapping")

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
