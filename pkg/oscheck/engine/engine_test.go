// pkg/oscheck/engine/engine_test.go

package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// rule parses a JSON rule fragment so tests exercise the same types the
// rules loader produces.
func rule(t *testing.T, s string) any {
	t.Helper()
	var out any
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

func TestCompareScalarOps(t *testing.T) {
	tests := []struct {
		name string
		val  any
		rule string
		want bool
	}{
		{"eq pass", int64(1), `{"eq": 1}`, true},
		{"eq fail", int64(1), `{"eq": 2}`, false},
		{"eq string", "always", `{"eq": "always"}`, true},
		{"ne pass", int64(1), `{"ne": 2}`, true},
		{"gt pass", int64(10), `{"gt": 5}`, true},
		{"ge boundary", int64(5), `{"ge": 5}`, true},
		{"lt fail", int64(10), `{"lt": 5}`, false},
		{"le boundary", int64(5), `{"le": 5}`, true},
		{"range", int64(7), `{"gt": 5, "lt": 10}`, true},
		{"range fail", int64(12), `{"gt": 5, "lt": 10}`, false},
		{"bitwise_and pass", int64(7), `{"bitwise_and": 5}`, true},
		{"bitwise_and fail", int64(2), `{"bitwise_and": 5}`, false},
		{"contains string", "quiet splash", `{"contains": "quiet"}`, true},
		{"contains fail", "quiet splash", `{"contains": "verbose"}`, false},
		{"regex pass", "5.4.17-2136.el8uek.x86_64", `{"regex": "el8uek"}`, true},
		{"regex fail", "5.14.0-el9.x86_64", `{"regex": "uek"}`, false},
		{"string coerced to int", "4096", `{"ge": 1024}`, true},
		{"float vs int equality", 1.0, `{"eq": 1}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.val, rule(t, tt.rule), "attr", "TEST", &Options{})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareExists(t *testing.T) {
	opts := &Options{}
	assert.True(t, Compare("anything", rule(t, `{"exists": true}`), "a", "TEST", opts))
	assert.False(t, Compare(nil, rule(t, `{"exists": true}`), "a", "TEST", opts))
	assert.True(t, Compare(nil, rule(t, `{"exists": false}`), "a", "TEST", opts))
}

func TestCompareCoercionFailureIsFatal(t *testing.T) {
	var fatal []string
	opts := &Options{FatalErrs: &fatal}

	got := Compare("not-a-number", rule(t, `{"gt": 5}`), "attr", "TEST", opts)
	assert.False(t, got)
	require.Len(t, fatal, 1)
	assert.Contains(t, fatal[0], "type mismatch")
}

func TestCompareUnknownOperatorIsFatal(t *testing.T) {
	var fatal []string
	opts := &Options{FatalErrs: &fatal}

	got := Compare(int64(1), rule(t, `{"approximately": 1}`), "attr", "TEST", opts)
	assert.False(t, got)
	require.Len(t, fatal, 1)
	assert.Contains(t, fatal[0], "unknown comparison operator")
}

func TestCompareExpr(t *testing.T) {
	GlobalVars = map[string]any{"MemTotal": int64(8192)}
	defer func() { GlobalVars = map[string]any{} }()

	assert.True(t, Compare(int64(4096),
		rule(t, `{"eq": {"expr": "$MemTotal / 2"}}`), "attr", "TEST", &Options{}))
	assert.True(t, Compare(int64(100),
		rule(t, `{"le": {"expr": "$value * 2"}}`), "attr", "TEST", &Options{}))
}

func TestComparePluginOps(t *testing.T) {
	opts := &Options{
		PluginOps: map[string]PluginOp{
			"always_true": func(val, expected any) (bool, error) { return true, nil },
		},
	}
	assert.True(t, Compare("x", rule(t, `{"always_true": "y"}`), "attr", "TEST", opts))
}

func TestValidateRuleImplicitEq(t *testing.T) {
	passed, failures := ValidateRule(int64(1), float64(1), "attr", "TEST", &Options{})
	assert.True(t, passed)
	assert.Empty(t, failures)

	passed, failures = ValidateRule(int64(2), float64(1), "attr", "TEST", &Options{})
	assert.False(t, passed)
	assert.Len(t, failures, 1)
}

func TestValidateRuleAndAccumulatesFailures(t *testing.T) {
	r := rule(t, `{"and": [{"gt": 10}, {"lt": 5}]}`)
	passed, failures := ValidateRule(int64(7), r, "attr", "TEST", &Options{})
	assert.False(t, passed)
	assert.Len(t, failures, 2)
}

func TestValidateRuleOrShortCircuits(t *testing.T) {
	r := rule(t, `{"or": [{"eq": 1}, {"eq": 2}]}`)

	passed, failures := ValidateRule(int64(2), r, "attr", "TEST", &Options{})
	assert.True(t, passed)
	assert.Empty(t, failures)

	passed, failures = ValidateRule(int64(3), r, "attr", "TEST", &Options{})
	assert.False(t, passed)
	assert.Len(t, failures, 2)
}

func TestValidateRuleNot(t *testing.T) {
	r := rule(t, `{"not": {"eq": 1}}`)

	passed, failures := ValidateRule(int64(2), r, "attr", "TEST", &Options{})
	assert.True(t, passed)
	assert.Empty(t, failures)

	passed, failures = ValidateRule(int64(1), r, "attr", "TEST", &Options{})
	assert.False(t, passed)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "'not' condition")
}

func TestValidateRuleNotBareScalar(t *testing.T) {
	// A bare scalar under "not" is an implicit eq, inverted.
	r := rule(t, `{"not": "bar"}`)

	passed, failures := ValidateRule("foo", r, "attr", "TEST", &Options{})
	assert.True(t, passed)
	assert.Empty(t, failures)

	passed, failures = ValidateRule("bar", r, "attr", "TEST", &Options{})
	assert.False(t, passed)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "'not' condition")

	r = rule(t, `{"not": 1}`)
	passed, failures = ValidateRule(int64(2), r, "attr", "TEST", &Options{})
	assert.True(t, passed)
	assert.Empty(t, failures)

	passed, _ = ValidateRule(int64(1), r, "attr", "TEST", &Options{})
	assert.False(t, passed)
}

func TestValidateRuleDeMorgan(t *testing.T) {
	// not(A and B) must agree with (not A) or (not B), and not(A or B)
	// with (not A) and (not B), over pass/fail for scalar leaves.
	pairs := []struct{ a, b string }{
		{`{"gt": 5}`, `{"lt": 10}`},
		{`{"eq": 7}`, `{"ne": 7}`},
		{`3`, `{"ge": 3}`},
		{`"never"`, `"always"`},
	}
	values := []any{int64(3), int64(7), int64(12), "never", "always"}

	for _, pair := range pairs {
		notAnd := rule(t, `{"not": {"and": [`+pair.a+`, `+pair.b+`]}}`)
		orNots := rule(t, `{"or": [{"not": `+pair.a+`}, {"not": `+pair.b+`}]}`)
		notOr := rule(t, `{"not": {"or": [`+pair.a+`, `+pair.b+`]}}`)
		andNots := rule(t, `{"and": [{"not": `+pair.a+`}, {"not": `+pair.b+`}]}`)

		for _, val := range values {
			left, _ := ValidateRule(val, notAnd, "attr", "TEST", &Options{})
			right, _ := ValidateRule(val, orNots, "attr", "TEST", &Options{})
			assert.Equal(t, left, right, "not(and) vs or(not) for %v over %s %s", val, pair.a, pair.b)

			left, _ = ValidateRule(val, notOr, "attr", "TEST", &Options{})
			right, _ = ValidateRule(val, andNots, "attr", "TEST", &Options{})
			assert.Equal(t, left, right, "not(or) vs and(not) for %v over %s %s", val, pair.a, pair.b)
		}
	}
}

func TestNonexistenceRulesPassOnlyWhenAbsent(t *testing.T) {
	absent := map[string]any{"exists": false}
	present := map[string]any{"exists": true, "size": int64(42)}

	for _, s := range []string{`{"exists": false}`, `{"not": {"exists": true}}`} {
		r := rule(t, s)

		passed, failures := ValidateRule(absent, r, "path", "TEST", &Options{})
		assert.True(t, passed, s)
		assert.Empty(t, failures)

		passed, _ = ValidateRule(present, r, "path", "TEST", &Options{})
		assert.False(t, passed, s)
	}
}

func TestValidateRuleIdempotent(t *testing.T) {
	attrs := map[string]any{
		"active": "active",
		"ports":  int64(3),
	}
	r := rule(t, `{"and": [{"active": {"regex": "^act"}}, {"not": {"ports": {"gt": 5}}}]}`)

	firstPassed, firstFailures := ValidateRule(attrs, r, "unit", "TEST", &Options{})
	for i := 0; i < 3; i++ {
		passed, failures := ValidateRule(attrs, r, "unit", "TEST", &Options{})
		assert.Equal(t, firstPassed, passed)
		assert.Equal(t, firstFailures, failures)
	}
	assert.True(t, firstPassed)
}

func TestValidateRuleAttributeMap(t *testing.T) {
	attrs := map[string]any{
		"active": "active",
		"sub":    "running",
	}
	r := rule(t, `{"active": {"eq": "active"}, "sub": {"eq": "running"}}`)
	passed, _ := ValidateRule(attrs, r, "unit", "TEST", &Options{})
	assert.True(t, passed)

	r = rule(t, `{"active": {"eq": "inactive"}}`)
	passed, failures := ValidateRule(attrs, r, "unit", "TEST", &Options{})
	assert.False(t, passed)
	assert.Len(t, failures, 1)
}

func TestValidateRuleUnknownAttributeIsFatal(t *testing.T) {
	var fatal []string
	opts := &Options{FatalErrs: &fatal}

	attrs := map[string]any{"present": 1}
	passed, _ := ValidateRule(attrs, rule(t, `{"absent": {"eq": 1}}`), "x", "TEST", opts)
	assert.False(t, passed)
	require.Len(t, fatal, 1)
	assert.Contains(t, fatal[0], "unknown attribute")
}

func TestValidateRuleMissingAttrInsideNotTolerated(t *testing.T) {
	var fatal []string
	opts := &Options{FatalErrs: &fatal, AllowMissingAttrs: true}

	attrs := map[string]any{"present": 1}
	r := rule(t, `{"not": {"absent": {"eq": 1}}}`)
	passed, _ := ValidateRule(attrs, r, "x", "TEST", opts)
	assert.True(t, passed)
	assert.Empty(t, fatal)
}

func TestValidateRuleNestedAttributeMap(t *testing.T) {
	attrs := map[string]any{
		"parameters": map[string]any{
			"max_queue_depth": "1024",
			"debug":           "0",
		},
	}
	r := rule(t, `{"parameters": {"max_queue_depth": {"ge": 512}}}`)
	passed, _ := ValidateRule(attrs, r, "mod", "TEST", &Options{})
	assert.True(t, passed)

	r = rule(t, `{"parameters": {"debug": {"eq": 1}}}`)
	passed, failures := ValidateRule(attrs, r, "mod", "TEST", &Options{})
	assert.False(t, passed)
	assert.Len(t, failures, 1)
}

func TestValidateRuleNestedLogic(t *testing.T) {
	r := rule(t, `{"or": [
		{"and": [{"ge": 10}, {"le": 20}]},
		{"eq": 0}
	]}`)

	for val, want := range map[int64]bool{15: true, 0: true, 25: false} {
		passed, _ := ValidateRule(val, r, "attr", "TEST", &Options{})
		assert.Equal(t, want, passed, "value %d", val)
	}
}

func TestRuleImpliesNonexistence(t *testing.T) {
	assert.True(t, RuleImpliesNonexistence(rule(t, `{"exists": false}`)))
	assert.True(t, RuleImpliesNonexistence(rule(t, `{"not": {"exists": true}}`)))
	assert.False(t, RuleImpliesNonexistence(rule(t, `{"exists": true}`)))
	assert.False(t, RuleImpliesNonexistence(rule(t, `{"exists": false, "size": 1}`)))
	assert.False(t, RuleImpliesNonexistence("bare"))
}

func TestRequiredAttributes(t *testing.T) {
	r := rule(t, `{
		"and": [
			{"size": {"gt": 0}},
			{"or": [{"mode": 420}, {"not": {"user": "root"}}]}
		]
	}`)
	attrs := RequiredAttributes(r)
	assert.ElementsMatch(t, []string{"size", "gt", "mode", "user"}, attrs)
}

func TestCompareIdentical(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "ref.conf")
	require.NoError(t, os.WriteFile(ref, []byte("key = value\n"), 0o644))

	contents := "key = value\n"

	tests := []struct {
		name string
		rule string
		want bool
	}{
		{"file match", `{"identical": {"type": "file", "value": "` + ref + `"}}`, true},
		{"string match", `{"identical": {"type": "string", "value": "key = value"}}`, true},
		{"string mismatch", `{"identical": {"type": "string", "value": "other"}}`, false},
		{"sha256 match", `{"identical": {"type": "sha256", "value": "` + utils.HashString(contents) + `"}}`, true},
		{"base64 match", `{"identical": {"type": "base64", "value": "a2V5ID0gdmFsdWUK"}}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(contents, rule(t, tt.rule), "file_contents", "TEST", &Options{})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareIdenticalBadSpecIsFatal(t *testing.T) {
	var fatal []string
	opts := &Options{FatalErrs: &fatal}

	got := Compare("contents", rule(t, `{"identical": {"type": "rot13", "value": "x"}}`), "a", "TEST", opts)
	assert.False(t, got)
	assert.NotEmpty(t, fatal)
}
