package rules

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Account is the host-side account the engine applies its decisions to.
// The caller decides when to persist; the engine only signals intended
// grants and revocations through AddRole/RemoveRole.
type Account interface {
	AddRole(role string)
	RemoveRole(role string)
	Save() error
}

// Decision is one intended role change produced by a matching rule.
type Decision struct {
	// RuleID identifies the rule that produced the decision.
	RuleID string
	// Role is the affected role name.
	Role string
	// Action is the intended change.
	Action Action
}

// Evaluate runs the enabled rules in order against the extracted groups and
// returns the resulting role decisions. Rules are not short-circuited: every
// matching rule contributes a decision, in order, so a later rule can undo
// an earlier one.
//
// A malformed regex pattern fails only that rule (treated as non-match,
// logged at debug level); the remaining rules still run. An empty rule set
// yields no decisions.
func Evaluate(rs []Rule, groups []string, userID string) []Decision {
	var decisions []Decision

	enabled := make([]Rule, 0, len(rs))

	for _, r := range rs {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}

	if len(enabled) == 0 {
		return nil
	}

	Sort(enabled)

	for _, r := range enabled {
		matched := evalRule(r, groups)

		if log.Logger.GetLevel() <= zerolog.DebugLevel {
			log.Debug().
				Str("rule", r.ID).
				Str("role", r.Role).
				Str("user", userID).
				Str("operation", string(r.Operation)).
				Str("pattern", r.Pattern).
				Strs("groups", groups).
				Bool("matched", matched).
				Msg("role rule evaluated")
		}

		if !matched {
			continue
		}

		decisions = append(decisions, Decision{
			RuleID: r.ID,
			Role:   r.Role,
			Action: r.Action,
		})
	}

	return decisions
}

// evalRule reports whether a single rule matches the group list.
func evalRule(r Rule, groups []string) bool {
	switch r.Operation {
	case OpEmpty:
		return len(groups) == 0
	case OpNotEmpty:
		return len(groups) > 0
	}

	re, err := r.compile()
	if err != nil {
		log.Debug().
			Err(err).
			Str("rule", r.ID).
			Str("pattern", r.Pattern).
			Msg("role rule pattern did not compile, rule skipped")

		return false
	}

	anyMatch := false

	for _, group := range groups {
		if re.MatchString(group) {
			anyMatch = true
			break
		}
	}

	if r.Operation.negated() {
		return !anyMatch
	}

	return anyMatch
}

// Apply replays decisions onto the account in order and saves it once.
// Applying the same decisions twice yields the same final role set: grants
// of held roles and revocations of absent roles are no-ops by Account
// contract.
func Apply(acct Account, decisions []Decision) error {
	for _, d := range decisions {
		switch d.Action {
		case ActionAdd:
			acct.AddRole(d.Role)
		case ActionRemove:
			acct.RemoveRole(d.Role)
		}
	}

	return acct.Save()
}
