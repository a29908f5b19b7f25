// Package rolerule provides CRUD operations for the group-to-role rules.
package rolerule

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stephane-berube/keycloak/internal/db/models"
	"github.com/stephane-berube/keycloak/internal/rules"
)

var (
	// ErrRuleNotFound is returned when a rule is not found.
	ErrRuleNotFound = errors.New("role rule not found")
	// ErrRoleEmpty is returned when attempting to create/update a rule without a target role.
	ErrRoleEmpty = errors.New("role rule target role cannot be empty")
	// ErrInvalidOperation is returned when the rule's operation is not one the engine implements.
	ErrInvalidOperation = errors.New("role rule operation is invalid")
	// ErrInvalidAction is returned when the rule's action is neither add nor remove.
	ErrInvalidAction = errors.New("role rule action must be add or remove")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

var validOperations = map[string]struct{}{
	string(rules.OpEqual):         {},
	string(rules.OpNotEqual):      {},
	string(rules.OpStartsWith):    {},
	string(rules.OpStartsNotWith): {},
	string(rules.OpEndsWith):      {},
	string(rules.OpEndsNotWith):   {},
	string(rules.OpContains):      {},
	string(rules.OpContainsNot):   {},
	string(rules.OpEmpty):         {},
	string(rules.OpNotEmpty):      {},
	string(rules.OpRegex):         {},
	string(rules.OpNotRegex):      {},
}

// Create stores a new rule and assigns its stable opaque identifier.
func Create(db *gorm.DB, rule *models.RoleRule) error {
	if db == nil {
		return ErrDBNil
	}

	if err := validate(rule); err != nil {
		return err
	}

	rule.RuleID = uuid.NewString()

	return db.Create(rule).Error
}

// Update modifies an existing rule, looked up by its stable identifier.
// The identifier itself never changes.
func Update(db *gorm.DB, rule *models.RoleRule) error {
	if db == nil {
		return ErrDBNil
	}

	if err := validate(rule); err != nil {
		return err
	}

	var existing models.RoleRule

	err := db.Where("rule_id = ?", rule.RuleID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRuleNotFound
	}

	if err != nil {
		return err
	}

	rule.ID = existing.ID

	return db.Save(rule).Error
}

// Delete removes a rule by its stable identifier.
func Delete(db *gorm.DB, ruleID string) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Where("rule_id = ?", ruleID).Delete(&models.RoleRule{})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}

	return nil
}

// List returns all rules in evaluation/display order: weight ascending,
// ties broken by creation order.
func List(db *gorm.DB) ([]models.RoleRule, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var rs []models.RoleRule

	err := db.Order("weight asc, id asc").Find(&rs).Error
	if err != nil {
		return nil, err
	}

	return rs, nil
}

// ListEnabled returns the enabled rules converted for the engine, already
// in evaluation order.
func ListEnabled(db *gorm.DB) ([]rules.Rule, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var rs []models.RoleRule

	err := db.Where("enabled = ?", true).Order("weight asc, id asc").Find(&rs).Error
	if err != nil {
		return nil, err
	}

	converted := make([]rules.Rule, 0, len(rs))
	for _, r := range rs {
		converted = append(converted, toEngineRule(r))
	}

	return converted, nil
}

func toEngineRule(r models.RoleRule) rules.Rule {
	return rules.Rule{
		ID:            r.RuleID,
		Weight:        r.Weight,
		Role:          r.Role,
		Action:        rules.Action(r.Action),
		Operation:     rules.Operation(r.Operation),
		Pattern:       r.Pattern,
		CaseSensitive: r.CaseSensitive,
		Enabled:       r.Enabled,
	}
}

// validate rejects malformed rules at write time so the engine never has to.
func validate(rule *models.RoleRule) error {
	if rule.Role == "" {
		return ErrRoleEmpty
	}

	if rule.Action != string(rules.ActionAdd) && rule.Action != string(rules.ActionRemove) {
		return ErrInvalidAction
	}

	if _, ok := validOperations[rule.Operation]; !ok {
		return ErrInvalidOperation
	}

	return nil
}
