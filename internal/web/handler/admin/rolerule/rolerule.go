// Package rolerule provides the administrative endpoints for managing
// the group-to-role mapping rules.
package rolerule

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/stephane-berube/keycloak/internal/auth"
	"github.com/stephane-berube/keycloak/internal/config"
	controller "github.com/stephane-berube/keycloak/internal/db/controller/rolerule"
	"github.com/stephane-berube/keycloak/internal/db/models"
	"github.com/stephane-berube/keycloak/internal/web/handler"
)

// Path is the path to the role rule administration endpoints.
const Path = handler.RootPath + "admin/role-rules"

// ruleRequest is the request body for creating or updating a rule.
type ruleRequest struct {
	Weight        int    `json:"weight" form:"weight"`
	Role          string `json:"role" form:"role" validate:"required"`
	Action        string `json:"action" form:"action" validate:"required"`
	Operation     string `json:"operation" form:"operation" validate:"required"`
	Pattern       string `json:"pattern" form:"pattern"`
	CaseSensitive bool   `json:"case_sensitive" form:"case_sensitive"`
	Enabled       *bool  `json:"enabled" form:"enabled"`
}

// Service is the role rule administration handler service.
type Service struct {
	handler.Service
	cfg       *config.Config
	db        *gorm.DB
	validator *validator.Validate
}

// Handler is the role rule administration handler.
var Handler = Service{}

// Init initializes the role rule administration handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, authService *auth.Service) error {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
	}

	s.db = db
	s.cfg = cfg
	s.validator = validator.New()

	requireAdmin := auth.RequireRole(authService, auth.AdminRole)

	app.Get(Path, requireAdmin, s.List)
	app.Post(Path, requireAdmin, s.Create)
	app.Put(Path+"/:ruleID", requireAdmin, s.Update)
	app.Delete(Path+"/:ruleID", requireAdmin, s.Delete)

	return nil
}

// List returns all rules ordered by weight and declaration order.
func (s *Service) List(c *fiber.Ctx) error {
	ruleList, err := controller.List(s.db)
	if err != nil {
		log.Error().Err(err).Msg("failed to list role rules")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(fiber.Map{"rules": ruleList})
}

// Create adds a new rule at the end of its weight class.
func (s *Service) Create(c *fiber.Ctx) error {
	rule, err := s.parseRule(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err = controller.Create(s.db, rule); err != nil {
		return s.controllerError(c, err, "failed to create role rule")
	}

	return c.Status(fiber.StatusCreated).JSON(rule)
}

// Update replaces an existing rule identified by its stable rule ID.
func (s *Service) Update(c *fiber.Ctx) error {
	rule, err := s.parseRule(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	rule.RuleID = c.Params("ruleID")

	if err = controller.Update(s.db, rule); err != nil {
		return s.controllerError(c, err, "failed to update role rule")
	}

	return c.JSON(rule)
}

// Delete removes a rule by its stable rule ID.
func (s *Service) Delete(c *fiber.Ctx) error {
	if err := controller.Delete(s.db, c.Params("ruleID")); err != nil {
		return s.controllerError(c, err, "failed to delete role rule")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Service) parseRule(c *fiber.Ctx) (*models.RoleRule, error) {
	req := new(ruleRequest)
	if err := c.BodyParser(req); err != nil {
		return nil, errors.New("invalid request body")
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	return &models.RoleRule{
		Weight:        req.Weight,
		Role:          req.Role,
		Action:        req.Action,
		Operation:     req.Operation,
		Pattern:       req.Pattern,
		CaseSensitive: req.CaseSensitive,
		Enabled:       enabled,
	}, nil
}

func (s *Service) controllerError(c *fiber.Ctx, err error, logMsg string) error {
	switch {
	case errors.Is(err, controller.ErrRuleNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "rule not found"})
	case errors.Is(err, controller.ErrRoleEmpty),
		errors.Is(err, controller.ErrInvalidAction),
		errors.Is(err, controller.ErrInvalidOperation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Error().Err(err).Msg(logMsg)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}
