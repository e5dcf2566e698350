// pkg/oscheck/engine/engine.go

// Package engine implements the oscheck rule evaluation core: a recursive
// walker over JSON boolean expression trees (and/or/not/attribute leaves),
// a comparison operator set, and a restricted arithmetic expression
// evaluator with $variable substitution.
package engine

import (
	"encoding/base64"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// GlobalVars holds host-derived variables available to rule expressions
// via $name substitution. Populated by the host prober before any rule
// is evaluated.
var GlobalVars = map[string]any{}

// PluginOp is a plugin-supplied comparison operator, e.g. the packages
// plugin's RPM EVR comparators.
type PluginOp func(val, expected any) (bool, error)

// Options carries per-evaluation context through the recursive walk.
type Options struct {
	// PluginOps maps extra operator names to plugin implementations.
	PluginOps map[string]PluginOp

	// FatalErrs, when non-nil, accumulates errors that indicate a broken
	// rule or an unreadable system rather than a failed comparison.
	FatalErrs *[]string

	// AllowMissingAttrs tolerates unknown attribute names inside a "not"
	// block instead of treating them as fatal.
	AllowMissingAttrs bool
}

func (o *Options) fatal(msg string) {
	if o != nil && o.FatalErrs != nil {
		*o.FatalErrs = append(*o.FatalErrs, msg)
	}
	logging.Internal.Debug().Msg(msg)
}

// RuleImpliesNonexistence returns true if a rule is checking for
// nonexistence, i.e. {"exists": false} or {"not": {"exists": true}}.
func RuleImpliesNonexistence(rule any) bool {
	m, ok := rule.(map[string]any)
	if !ok {
		return false
	}
	if len(m) == 1 {
		if v, ok := m["exists"]; ok && v == false {
			return true
		}
		if inner, ok := m["not"].(map[string]any); ok && len(inner) == 1 {
			if v, ok := inner["exists"]; ok && v == true {
				return true
			}
		}
	}
	return false
}

// RequiredAttributes walks a rule and returns the attribute names it
// references, so collectors can skip loading data no rule will look at.
func RequiredAttributes(rule any) []string {
	required := map[string]bool{}

	var walk func(r any)
	walk = func(r any) {
		switch v := r.(type) {
		case map[string]any:
			for k, val := range v {
				switch k {
				case "and", "or":
					if items, ok := val.([]any); ok {
						for _, item := range items {
							walk(item)
						}
					}
				case "not":
					walk(val)
				default:
					required[k] = true
					walk(val)
				}
			}
		case []any:
			for _, item := range v {
				walk(item)
			}
		}
	}

	walk(rule)

	out := make([]string, 0, len(required))
	for k := range required {
		out = append(out, k)
	}
	return out
}

// compareIdentical compares value against expected content which may come
// from another file, a sha256 hash, a base64-encoded string, or a literal
// string, per expected["type"].
func compareIdentical(value any, expected any, attr, context string, opts *Options) bool {
	logging.Internal.Debug().
		Str("attr", attr).Str("context", context).
		Msg("compareIdentical")

	m, ok := expected.(map[string]any)
	if !ok {
		opts.fatal(fmt.Sprintf("%s: %s : expected type/value map, got %v", context, attr, expected))
		return false
	}
	identType, _ := m["type"].(string)
	identVal := m["value"]
	if identType == "" || identVal == nil {
		opts.fatal(fmt.Sprintf("%s: %s : expected type/value map, got %v", context, attr, expected))
		return false
	}

	strVal, ok := value.(string)
	if !ok {
		opts.fatal(fmt.Sprintf("%s: %s - expected string contents, got %T: %v", context, attr, value, value))
		return false
	}

	switch strings.ToLower(identType) {
	case "file":
		path, _ := identVal.(string)
		if _, err := os.Stat(path); err != nil {
			opts.fatal(fmt.Sprintf("%s: %s - reference file '%s' does not exist", context, attr, path))
			return false
		}
		refContents, err := os.ReadFile(path)
		if err != nil {
			opts.fatal(fmt.Sprintf("%s: %s - failed to read file '%s': %v", context, attr, path, err))
			return false
		}
		return utils.ContentEqual(strVal, string(refContents))

	case "base64":
		encoded, _ := identVal.(string)
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			opts.fatal(fmt.Sprintf("%s: %s - error decoding base64 string: %v", context, attr, err))
			return false
		}
		return utils.ContentEqual(string(decoded), strVal)

	case "sha256":
		want, _ := identVal.(string)
		return utils.HashString(strVal) == want

	case "string":
		want, _ := identVal.(string)
		return utils.ContentEqual(strVal, want)
	}

	opts.fatal(fmt.Sprintf("%s: %s - invalid identical type: %s", context, attr, identType))
	return false
}

// Compare evaluates a single attribute's condition set against val. The
// condition is either an operator map (all operators must pass) or a bare
// scalar treated as an implicit eq.
func Compare(val any, rule any, attr, context string, opts *Options) bool {
	ruleMap, ok := rule.(map[string]any)
	if !ok {
		// A comparison against a non-map is an implicit equals rule.
		ruleMap = map[string]any{"eq": rule}
	}

	success := true

	for op, expected := range ruleMap {
		op = strings.ToLower(op)

		// An expected value of {"expr": ...} is evaluated first, with
		// $value bound to the left side.
		if exprMap, ok := expected.(map[string]any); ok {
			if expr, ok := exprMap["expr"].(string); ok {
				result, err := EvalExpr(expr, val)
				if err != nil {
					opts.fatal(fmt.Sprintf("%s: %s - error evaluating expression: %v", context, attr, err))
					return false
				}
				logging.Internal.Debug().Str("expr", expr).Float64("result", result).Msg("expr evaluated")
				expected = result
			}
		}

		if opts != nil && opts.PluginOps != nil {
			if pluginOp, ok := opts.PluginOps[op]; ok {
				result, err := pluginOp(val, expected)
				if err != nil {
					opts.fatal(fmt.Sprintf("%s: %s: error in plugin op %s: %v", context, attr, op, err))
					return false
				}
				if !result {
					logging.Internal.Debug().
						Str("op", op).Str("attr", attr).
						Msgf("%s failed plugin check (expected=%v, got=%v)", context, expected, val)
					success = false
				}
				continue
			}
		}

		if op == "identical" {
			if !compareIdentical(val, expected, attr, context, opts) {
				success = false
			}
			continue
		}

		// Coerce string values to numbers when the expected side is
		// numeric, as rule files carry sysctl-style values as strings.
		cmpVal := val
		if s, ok := val.(string); ok && isNumber(expected) {
			n, err := parseNumber(s)
			if err != nil {
				opts.fatal(fmt.Sprintf("%s: %s - type mismatch for %s: %v (value=%v, expected=%v)",
					context, attr, op, err, val, expected))
				success = false
				continue
			}
			cmpVal = n
		}

		var result bool

		switch op {
		case "eq":
			result = looseEqual(cmpVal, expected)
		case "ne":
			result = !looseEqual(cmpVal, expected)
		case "gt", "ge", "lt", "le":
			result = compareOrdered(op, cmpVal, expected)
		case "bitwise_and":
			l, lok := toInt(cmpVal)
			r, rok := toInt(expected)
			result = lok && rok && (l&r) == r
		case "exists":
			want, _ := expected.(bool)
			result = (val != nil) == want
		case "contains":
			result = contains(cmpVal, expected)
		case "regex":
			pattern, ok := expected.(string)
			result = val != nil && ok && regexSearch(pattern, fmt.Sprint(val))
		default:
			opts.fatal(fmt.Sprintf("%s: %s - unknown comparison operator: %s", context, attr, op))
			return false
		}

		if result {
			logging.Internal.Debug().
				Str("op", op).Str("attr", attr).
				Msgf("%s passed check (expected=%v, value=%v)", context, expected, val)
		} else {
			logging.Internal.Debug().
				Str("op", op).Str("attr", attr).
				Msgf("%s failed check (expected=%v, got=%v)", context, expected, val)
			success = false
		}
	}

	return success
}

// ValidateRule recursively validates a rule against the collected
// attributes. A rule can be a single comparison or an arbitrarily deep
// tree of logical operations. Returns whether the rule passed and the
// failures that made it fail; on success the failure list is empty.
func ValidateRule(attributes any, rule any, attr, context string, opts *Options) (bool, []string) {
	return validateRule(attributes, rule, attr, context, false, opts)
}

func validateRule(attributes any, rule any, attr, context string, insideNot bool, opts *Options) (bool, []string) {
	ruleMap, isRuleMap := rule.(map[string]any)
	attrMap, isAttrMap := attributes.(map[string]any)

	if !isRuleMap {
		// Bare value, treated as implicit eq.
		result := Compare(attributes, map[string]any{"eq": rule}, attr, context, opts)
		if !result && !insideNot {
			return false, []string{fmt.Sprintf("%s: %s failed condition eq %v", context, attr, rule)}
		}
		return result, nil
	}

	if conds, ok := ruleMap["and"].([]any); ok {
		allPassed := true
		var allFailures []string
		for _, cond := range conds {
			passed, failures := validateRule(attributes, cond, attr, context, insideNot, opts)
			if !passed {
				allPassed = false
				allFailures = append(allFailures, failures...)
			}
		}
		return allPassed, allFailures
	}

	if conds, ok := ruleMap["or"].([]any); ok {
		var allFailures []string
		for _, cond := range conds {
			passed, failures := validateRule(attributes, cond, attr, context, insideNot, opts)
			if passed {
				return true, nil
			}
			allFailures = append(allFailures, failures...)
		}
		return false, allFailures
	}

	if inner, ok := ruleMap["not"]; ok {
		passed, _ := validateRule(attributes, inner, attr, context, true, opts)
		if passed {
			return false, []string{fmt.Sprintf("%s: %s failed 'not' condition: %v", context, attr, inner)}
		}
		return true, nil
	}

	if isAttrMap {
		allPassed := true
		var allFailures []string
		for attrName, condition := range ruleMap {
			value, known := attrMap[attrName]
			if !known {
				if !(insideNot && opts != nil && opts.AllowMissingAttrs) {
					opts.fatal(fmt.Sprintf("%s: unknown attribute: %s", context, attrName))
				}
				allPassed = false
				continue
			}
			// Nested attribute dictionaries (e.g. module parameters)
			// recurse instead of going through operator comparison.
			if subAttrs, ok := value.(map[string]any); ok {
				passed, failures := validateRule(subAttrs, condition, attrName, context, insideNot, opts)
				if !passed {
					allPassed = false
					allFailures = append(allFailures, failures...)
				}
				continue
			}
			if !Compare(value, condition, attrName, context, opts) {
				if !insideNot {
					allFailures = append(allFailures,
						fmt.Sprintf("%s: %s failed condition %v", context, attrName, condition))
				}
				allPassed = false
			}
		}
		return allPassed, allFailures
	}

	// Non-map attribute value (e.g. a sysctl scalar).
	result := Compare(attributes, rule, attr, context, opts)
	if !result && !insideNot {
		return false, []string{fmt.Sprintf("%s: %s failed condition %v", context, attr, rule)}
	}
	return result, nil
}

// looseEqual compares two values, treating any pair of numbers as equal
// when numerically equal regardless of Go type.
func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func compareOrdered(op string, a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case "gt":
		return af > bf
	case "ge":
		return af >= bf
	case "lt":
		return af < bf
	case "le":
		return af <= bf
	}
	return false
}

func contains(val, expected any) bool {
	switch v := val.(type) {
	case string:
		s, ok := expected.(string)
		return ok && strings.Contains(v, s)
	case []any:
		for _, item := range v {
			if looseEqual(item, expected) {
				return true
			}
		}
	case []string:
		s, ok := expected.(string)
		if !ok {
			return false
		}
		for _, item := range v {
			if item == s {
				return true
			}
		}
	}
	return false
}

func regexSearch(pattern, s string) bool {
	re, err := regexp.Compile("(?m)" + pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func isNumber(v any) bool {
	_, ok := toFloat(v)
	return ok
}

// parseNumber parses s as an int when it has no decimal point, otherwise
// as a float.
func parseNumber(s string) (any, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to float", s)
		}
		return f, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot convert %q to int", s)
	}
	return n, nil
}
