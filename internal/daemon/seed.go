package daemon

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/stephane-berube/keycloak/internal/auth"
	"github.com/stephane-berube/keycloak/internal/config"
	"github.com/stephane-berube/keycloak/internal/db/models"
)

func seed(cfg *config.Config, db *gorm.DB) {
	// Seed the admin role and a local fallback admin when the database is empty.

	adminRole := models.Role{
		Name:        auth.AdminRole,
		Description: "Full administrative access",
		IsSystem:    true,
	}

	if err := db.Where(models.Role{Name: auth.AdminRole}).FirstOrCreate(&adminRole).Error; err != nil {
		log.Error().Err(err).Msg("failed to seed admin role")
		return
	}

	if !cfg.Auth.LocalDB.Enabled {
		return
	}

	var count int64

	db.Model(&models.User{}).Count(&count)

	if count > 0 {
		return
	}

	admin := models.User{
		Username:   "admin",
		Password:   models.HashPassword("changeme"),
		Active:     true,
		AuthSource: models.AuthSourceLocal,
		Roles:      []models.Role{adminRole},
	}

	if err := db.Create(&admin).Error; err != nil {
		log.Error().Err(err).Msg("failed to seed admin user")
		return
	}

	log.Warn().Msg("seeded default admin user with password 'changeme', change it immediately")
}
