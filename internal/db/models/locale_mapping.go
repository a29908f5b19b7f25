package models

import "time"

// LocaleMapping overrides the provider locale for one host locale.
// Host locales without a mapping use their identifier verbatim as the
// provider locale.
type LocaleMapping struct {
	// ID is the unique identifier for the mapping.
	ID uint `gorm:"primaryKey"`
	// HostLocaleID is the host application's locale identifier.
	HostLocaleID string `gorm:"uniqueIndex;size:20;not null"`
	// ProviderLocale is the locale string sent to the identity provider.
	ProviderLocale string `gorm:"size:20;not null"`
	// Label is a human-readable description shown in administration views.
	Label string `gorm:"size:100"`
	// CreatedAt is the timestamp when the mapping was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the mapping was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the LocaleMapping model.
// This overrides GORM's default pluralized table naming.
func (LocaleMapping) TableName() string {
	return "locale_mappings"
}
