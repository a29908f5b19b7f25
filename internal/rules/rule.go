// Package rules implements the ordered group-to-role rule engine.
// Rules are evaluated against the group list extracted from a user's claims
// payload; each matching rule grants or revokes its target role.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

// Action decides whether a matching rule grants or revokes its role.
type Action string

const (
	// ActionAdd grants the rule's role on match.
	ActionAdd Action = "add"
	// ActionRemove revokes the rule's role on match.
	ActionRemove Action = "remove"
)

// Operation selects the matching semantics of a rule.
type Operation string

const (
	OpEqual         Operation = "equal"
	OpNotEqual      Operation = "not_equal"
	OpStartsWith    Operation = "starts_with"
	OpStartsNotWith Operation = "starts_not_with"
	OpEndsWith      Operation = "ends_with"
	OpEndsNotWith   Operation = "ends_not_with"
	OpContains      Operation = "contains"
	OpContainsNot   Operation = "contains_not"
	OpEmpty         Operation = "empty"
	OpNotEmpty      Operation = "not_empty"
	OpRegex         Operation = "regex"
	OpNotRegex      Operation = "not_regex"
)

// ErrUnknownOperation is returned when a rule carries an operation the engine
// does not implement.
var ErrUnknownOperation = errors.New("unknown rule operation")

// Rule is one configured group-matching rule. Rules are owned by
// configuration; the engine treats them as an immutable ordered sequence per
// invocation.
type Rule struct {
	// ID is an opaque identifier that stays stable across reorders.
	ID string
	// Weight defines the evaluation order (ascending); declaration order
	// breaks ties.
	Weight int
	// Role is the target role name.
	Role string
	// Action is add or remove.
	Action Action
	// Operation selects the matching semantics.
	Operation Operation
	// Pattern is the match pattern; ignored for empty/not_empty.
	Pattern string
	// CaseSensitive controls case folding for all operations.
	CaseSensitive bool
	// Enabled rules participate in evaluation.
	Enabled bool
}

// Sort orders rules by weight ascending. The sort is stable so rules with
// equal weight keep their declaration order.
func Sort(rs []Rule) {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].Weight < rs[j].Weight
	})
}

// negated reports whether the operation inverts its match result
// (success means "no group matches").
func (op Operation) negated() bool {
	switch op {
	case OpNotEqual, OpStartsNotWith, OpEndsNotWith, OpContainsNot, OpNotRegex:
		return true
	default:
		return false
	}
}

// compile turns the rule's pattern into a match predicate. Non-regex
// operations treat the pattern as a literal string with anchors per
// operation; regex operations use the pattern verbatim, unanchored.
func (r Rule) compile() (*regexp.Regexp, error) {
	var expr string

	literal := regexp.QuoteMeta(r.Pattern)

	switch r.Operation {
	case OpEqual, OpNotEqual:
		expr = "^" + literal + "$"
	case OpStartsWith, OpStartsNotWith:
		expr = "^" + literal
	case OpEndsWith, OpEndsNotWith:
		expr = literal + "$"
	case OpContains, OpContainsNot:
		expr = literal
	case OpRegex, OpNotRegex:
		expr = r.Pattern
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, r.Operation)
	}

	if !r.CaseSensitive {
		expr = "(?i)" + expr
	}

	return regexp.Compile(expr)
}
