package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAccount records role changes in order and tracks the final role set.
type fakeAccount struct {
	roles   map[string]bool
	applied []string
	saved   int
	saveErr error
}

func newFakeAccount(roles ...string) *fakeAccount {
	a := &fakeAccount{roles: make(map[string]bool)}
	for _, r := range roles {
		a.roles[r] = true
	}

	return a
}

func (a *fakeAccount) AddRole(role string) {
	a.roles[role] = true
	a.applied = append(a.applied, "+"+role)
}

func (a *fakeAccount) RemoveRole(role string) {
	delete(a.roles, role)
	a.applied = append(a.applied, "-"+role)
}

func (a *fakeAccount) Save() error {
	a.saved++
	return a.saveErr
}

func enabledRule(op Operation, pattern, role string, action Action) Rule {
	return Rule{
		Role:          role,
		Action:        action,
		Operation:     op,
		Pattern:       pattern,
		CaseSensitive: false,
		Enabled:       true,
	}
}

func TestEvalRule(t *testing.T) {
	testCases := []struct {
		name    string
		rule    Rule
		groups  []string
		matched bool
	}{
		{
			name:    "empty matches empty group set",
			rule:    enabledRule(OpEmpty, "", "r", ActionAdd),
			matched: true,
		},
		{
			name:   "empty does not match populated group set",
			rule:   enabledRule(OpEmpty, "", "r", ActionAdd),
			groups: []string{"a"},
		},
		{
			name:    "not_empty matches populated group set",
			rule:    enabledRule(OpNotEmpty, "", "r", ActionAdd),
			groups:  []string{"a"},
			matched: true,
		},
		{
			name: "not_empty does not match empty group set",
			rule: enabledRule(OpNotEmpty, "", "r", ActionAdd),
		},
		{
			name:    "equal full match",
			rule:    enabledRule(OpEqual, "admins", "r", ActionAdd),
			groups:  []string{"admins"},
			matched: true,
		},
		{
			name:   "equal rejects partial match",
			rule:   enabledRule(OpEqual, "admin", "r", ActionAdd),
			groups: []string{"admins"},
		},
		{
			name:    "starts_with case-insensitive matches",
			rule:    enabledRule(OpStartsWith, "Admin", "r", ActionAdd),
			groups:  []string{"admins"},
			matched: true,
		},
		{
			name: "starts_with case-sensitive does not match",
			rule: Rule{
				Role: "r", Action: ActionAdd, Operation: OpStartsWith,
				Pattern: "Admin", CaseSensitive: true, Enabled: true,
			},
			groups: []string{"admins"},
		},
		{
			name: "starts_with case-sensitive matches exact prefix",
			rule: Rule{
				Role: "r", Action: ActionAdd, Operation: OpStartsWith,
				Pattern: "Admin", CaseSensitive: true, Enabled: true,
			},
			groups:  []string{"Admin-Team"},
			matched: true,
		},
		{
			name:    "ends_with",
			rule:    enabledRule(OpEndsWith, "Team", "r", ActionAdd),
			groups:  []string{"Admin-Team"},
			matched: true,
		},
		{
			name:    "contains",
			rule:    enabledRule(OpContains, "min-T", "r", ActionAdd),
			groups:  []string{"Admin-Team"},
			matched: true,
		},
		{
			name:    "contains escapes regex metacharacters",
			rule:    enabledRule(OpContains, "a.b", "r", ActionAdd),
			groups:  []string{"xayb"},
			matched: false,
		},
		{
			name:    "not_equal succeeds when no group matches",
			rule:    enabledRule(OpNotEqual, "admins", "r", ActionAdd),
			groups:  []string{"users", "editors"},
			matched: true,
		},
		{
			name:   "not_equal fails when any group matches",
			rule:   enabledRule(OpNotEqual, "admins", "r", ActionAdd),
			groups: []string{"users", "admins"},
		},
		{
			name:    "regex verbatim unanchored",
			rule:    enabledRule(OpRegex, "^Adm.*s$", "r", ActionAdd),
			groups:  []string{"Admins"},
			matched: true,
		},
		{
			name:    "not_regex",
			rule:    enabledRule(OpNotRegex, "^ext", "r", ActionAdd),
			groups:  []string{"internal"},
			matched: true,
		},
		{
			name:   "malformed regex is a non-match",
			rule:   enabledRule(OpRegex, "(unclosed", "r", ActionAdd),
			groups: []string{"(unclosed"},
		},
		{
			name:   "unknown operation is a non-match",
			rule:   enabledRule(Operation("bogus"), "x", "r", ActionAdd),
			groups: []string{"x"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.matched, evalRule(tc.rule, tc.groups))
		})
	}
}

func TestEvaluateOrdering(t *testing.T) {
	// Input order deliberately scrambled; evaluation must follow weight
	// ascending, ties in declaration order.
	rs := []Rule{
		{ID: "c", Weight: 20, Role: "editor", Action: ActionAdd, Operation: OpNotEmpty, Enabled: true},
		{ID: "a", Weight: 10, Role: "viewer", Action: ActionAdd, Operation: OpNotEmpty, Enabled: true},
		{ID: "b", Weight: 10, Role: "viewer", Action: ActionRemove, Operation: OpNotEmpty, Enabled: true},
	}

	decisions := Evaluate(rs, []string{"any"}, "user-1")

	require.Len(t, decisions, 3)
	assert.Equal(t, "a", decisions[0].RuleID)
	assert.Equal(t, "b", decisions[1].RuleID)
	assert.Equal(t, "c", decisions[2].RuleID)
}

func TestEvaluateSkipsDisabledRules(t *testing.T) {
	rs := []Rule{
		{ID: "off", Weight: 1, Role: "admin", Action: ActionAdd, Operation: OpNotEmpty, Enabled: false},
		{ID: "on", Weight: 2, Role: "viewer", Action: ActionAdd, Operation: OpNotEmpty, Enabled: true},
	}

	decisions := Evaluate(rs, []string{"any"}, "user-1")

	require.Len(t, decisions, 1)
	assert.Equal(t, "on", decisions[0].RuleID)
}

func TestEvaluateNoEnabledRulesIsNoOp(t *testing.T) {
	assert.Empty(t, Evaluate(nil, []string{"any"}, "user-1"))
	assert.Empty(t, Evaluate([]Rule{{Enabled: false, Operation: OpNotEmpty}}, []string{"any"}, "user-1"))
}

func TestEvaluateMalformedRegexDoesNotAbort(t *testing.T) {
	rs := []Rule{
		{ID: "bad", Weight: 1, Role: "admin", Action: ActionAdd, Operation: OpRegex, Pattern: "(", Enabled: true},
		{ID: "good", Weight: 2, Role: "viewer", Action: ActionAdd, Operation: OpNotEmpty, Enabled: true},
	}

	decisions := Evaluate(rs, []string{"any"}, "user-1")

	require.Len(t, decisions, 1)
	assert.Equal(t, "good", decisions[0].RuleID)
}

func TestApplyLaterRuleWins(t *testing.T) {
	// An earlier remove is undone by a later add; the ordered walk makes the
	// last applicable action per role win.
	rs := []Rule{
		{ID: "1", Weight: 1, Role: "admin", Action: ActionRemove, Operation: OpContains, Pattern: "intern", Enabled: true},
		{ID: "2", Weight: 2, Role: "admin", Action: ActionAdd, Operation: OpEqual, Pattern: "admins", Enabled: true},
	}

	acct := newFakeAccount("admin")
	decisions := Evaluate(rs, []string{"interns", "admins"}, "user-1")

	require.NoError(t, Apply(acct, decisions))
	assert.Equal(t, []string{"-admin", "+admin"}, acct.applied)
	assert.True(t, acct.roles["admin"])
	assert.Equal(t, 1, acct.saved)
}

func TestApplyIdempotent(t *testing.T) {
	rs := []Rule{
		{ID: "1", Weight: 1, Role: "viewer", Action: ActionAdd, Operation: OpNotEmpty, Enabled: true},
		{ID: "2", Weight: 2, Role: "admin", Action: ActionRemove, Operation: OpNotEmpty, Enabled: true},
	}

	acct := newFakeAccount()
	groups := []string{"a"}

	require.NoError(t, Apply(acct, Evaluate(rs, groups, "user-1")))
	first := make(map[string]bool, len(acct.roles))
	for r := range acct.roles {
		first[r] = true
	}

	require.NoError(t, Apply(acct, Evaluate(rs, groups, "user-1")))
	assert.Equal(t, first, acct.roles)
}

func TestApplySaveError(t *testing.T) {
	acct := newFakeAccount()
	acct.saveErr = errors.New("boom")

	err := Apply(acct, []Decision{{Role: "viewer", Action: ActionAdd}})
	assert.Error(t, err)
}

func TestSortStable(t *testing.T) {
	rs := []Rule{
		{ID: "b", Weight: 5},
		{ID: "a", Weight: 1},
		{ID: "c", Weight: 5},
	}

	Sort(rs)

	assert.Equal(t, "a", rs[0].ID)
	assert.Equal(t, "b", rs[1].ID)
	assert.Equal(t, "c", rs[2].ID)
}
