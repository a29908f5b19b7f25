// Package localemapping provides CRUD operations for locale overrides.
package localemapping

import (
	"errors"

	"gorm.io/gorm"

	"github.com/stephane-berube/keycloak/internal/db/models"
	"github.com/stephane-berube/keycloak/internal/locale"
)

var (
	// ErrMappingNotFound is returned when a mapping is not found.
	ErrMappingNotFound = errors.New("locale mapping not found")
	// ErrHostLocaleEmpty is returned when attempting to store a mapping without a host locale.
	ErrHostLocaleEmpty = errors.New("locale mapping host locale cannot be empty")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Set stores or replaces the override for one host locale.
func Set(db *gorm.DB, mapping *models.LocaleMapping) error {
	if db == nil {
		return ErrDBNil
	}

	if mapping.HostLocaleID == "" {
		return ErrHostLocaleEmpty
	}

	var existing models.LocaleMapping

	err := db.Where("host_locale_id = ?", mapping.HostLocaleID).First(&existing).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return db.Create(mapping).Error
	case err != nil:
		return err
	default:
		mapping.ID = existing.ID
		return db.Save(mapping).Error
	}
}

// Delete removes the override for one host locale.
func Delete(db *gorm.DB, hostLocaleID string) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Where("host_locale_id = ?", hostLocaleID).Delete(&models.LocaleMapping{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrMappingNotFound
	}

	return nil
}

// List returns all stored overrides as locale package values, in creation order.
func List(db *gorm.DB) ([]locale.Override, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var ms []models.LocaleMapping

	if err := db.Order("id asc").Find(&ms).Error; err != nil {
		return nil, err
	}

	overrides := make([]locale.Override, 0, len(ms))
	for _, m := range ms {
		overrides = append(overrides, locale.Override{
			HostID:         m.HostLocaleID,
			ProviderLocale: m.ProviderLocale,
			Label:          m.Label,
		})
	}

	return overrides, nil
}
