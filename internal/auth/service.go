package auth

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/stephane-berube/keycloak/internal/claims"
	"github.com/stephane-berube/keycloak/internal/db/controller/rolerule"
	"github.com/stephane-berube/keycloak/internal/db/models"
	"github.com/stephane-berube/keycloak/internal/rules"
)

// Service provides authentication and authorization functionality.
type Service struct {
	db *gorm.DB
}

// NewService creates a new auth service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// SyncConfig controls how the group list is taken from the claims payload.
type SyncConfig struct {
	// GroupsClaim is the dot-delimited path to the group list.
	GroupsClaim string
	// SplitGroups splits hierarchical group paths into their segments.
	SplitGroups bool
	// SplitGroupsMaxLevel limits the kept segments per group (0 = all).
	SplitGroupsMaxLevel int
}

// SyncRoles reconciles the user's roles from the claims payload by running
// the enabled role rules in order. With no enabled rules it is a no-op.
// All resulting grants and revocations are committed in one batch.
func (s *Service) SyncRoles(user *models.User, payload map[string]any, cfg SyncConfig) error {
	enabled, err := rolerule.ListEnabled(s.db)
	if err != nil {
		return fmt.Errorf("failed to load role rules: %w", err)
	}

	if len(enabled) == 0 {
		return nil
	}

	groups := claims.Extract(cfg.GroupsClaim, payload)
	if cfg.SplitGroups {
		groups = claims.Split(groups, cfg.SplitGroupsMaxLevel)
	}

	decisions := rules.Evaluate(enabled, groups, strconv.FormatUint(user.ID, 10))

	acct, err := newRoleAccount(s.db, user)
	if err != nil {
		return err
	}

	return rules.Apply(acct, decisions)
}

// GetUserRoles retrieves the names of all roles granted to a user.
func (s *Service) GetUserRoles(userID uint64) ([]string, error) {
	var names []string

	err := s.db.Table("roles").
		Select("roles.name").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name asc").
		Pluck("roles.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}

	return names, nil
}

// HasRole checks if a user holds a specific role.
func (s *Service) HasRole(userID uint64, role string) (bool, error) {
	var count int64

	err := s.db.Table("roles").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ? AND roles.name = ?", userID, role).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}

	return count > 0, nil
}

// roleAccount adapts a user's persisted role set to the rule engine's
// Account interface. Changes accumulate in memory; Save commits the
// difference against the database in a single transaction.
type roleAccount struct {
	db      *gorm.DB
	user    *models.User
	current map[string]bool // roles held before this sync
	desired map[string]bool
}

func newRoleAccount(db *gorm.DB, user *models.User) (*roleAccount, error) {
	var names []string

	err := db.Table("roles").
		Select("roles.name").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", user.ID).
		Pluck("roles.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load current roles: %w", err)
	}

	acct := &roleAccount{
		db:      db,
		user:    user,
		current: make(map[string]bool, len(names)),
		desired: make(map[string]bool, len(names)),
	}

	for _, n := range names {
		acct.current[n] = true
		acct.desired[n] = true
	}

	return acct, nil
}

// AddRole grants the role. Granting a role the user already holds is a no-op.
func (a *roleAccount) AddRole(role string) {
	a.desired[role] = true
}

// RemoveRole revokes the role. Revoking an absent role is a no-op.
func (a *roleAccount) RemoveRole(role string) {
	delete(a.desired, role)
}

// Save commits the accumulated difference in one transaction.
func (a *roleAccount) Save() error {
	return a.db.Transaction(func(tx *gorm.DB) error {
		for role := range a.desired {
			if a.current[role] {
				continue
			}

			var dbRole models.Role

			err := tx.Where("name = ?", role).
				FirstOrCreate(&dbRole, models.Role{Name: role}).Error
			if err != nil {
				return fmt.Errorf("failed to get/create role %s: %w", role, err)
			}

			err = tx.Where(&models.UserRole{UserID: a.user.ID, RoleID: dbRole.ID}).
				FirstOrCreate(&models.UserRole{UserID: a.user.ID, RoleID: dbRole.ID}).Error
			if err != nil {
				return fmt.Errorf("failed to grant role %s: %w", role, err)
			}

			log.Debug().Uint64("user_id", a.user.ID).Str("role", role).Msg("role granted")
		}

		for role := range a.current {
			if a.desired[role] {
				continue
			}

			var dbRole models.Role

			err := tx.Where("name = ?", role).First(&dbRole).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("cannot revoke role %s: %w", role, ErrRoleNotFound)
			}

			if err != nil {
				return fmt.Errorf("failed to look up role %s: %w", role, err)
			}

			err = tx.Where("user_id = ? AND role_id = ?", a.user.ID, dbRole.ID).
				Delete(&models.UserRole{}).Error
			if err != nil {
				return fmt.Errorf("failed to revoke role %s: %w", role, err)
			}

			log.Debug().Uint64("user_id", a.user.ID).Str("role", role).Msg("role revoked")
		}

		return nil
	})
}
