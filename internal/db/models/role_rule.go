package models

import "time"

// RoleRule maps identity-provider groups to host roles for authorization.
// When a user logs in via OIDC, the enabled rules are evaluated in order
// against the user's group claims; each matching rule grants or revokes its
// role. Rules are evaluated by weight ascending, ties broken by creation
// order (the auto-incremented ID).
type RoleRule struct {
	// ID is the unique identifier for the rule and encodes creation order.
	ID uint64 `gorm:"primaryKey"`
	// RuleID is an opaque identifier that stays stable when rules are
	// reordered or re-weighted.
	RuleID string `gorm:"uniqueIndex;size:36;not null"`
	// Weight defines the evaluation and display order (ascending).
	Weight int `gorm:"not null;index"`
	// Role is the name of the role this rule grants or revokes.
	Role string `gorm:"size:100;not null"`
	// Action is either "add" or "remove".
	Action string `gorm:"type:varchar(10);not null"`
	// Operation selects the matching semantics (equal, starts_with, regex, ...).
	Operation string `gorm:"type:varchar(20);not null"`
	// Pattern is the match pattern; its meaning depends on Operation and it is
	// ignored for the empty/not_empty operations.
	Pattern string `gorm:"size:255"`
	// CaseSensitive controls case folding for all operations.
	CaseSensitive bool
	// Enabled rules participate in evaluation; disabled rules are skipped.
	// No column default: a zero value is an explicit "disabled" and must be
	// stored as such.
	Enabled bool
	// CreatedAt is the timestamp when the rule was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the rule was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the RoleRule model.
// This overrides GORM's default pluralized table naming.
func (RoleRule) TableName() string {
	return "role_rules"
}
