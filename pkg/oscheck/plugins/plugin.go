// pkg/oscheck/plugins/plugin.go

// Package plugins contains the health check collectors. Each plugin owns
// one top-level section of the rules file, gathers the matching system
// attributes, and runs them through the rule engine.
package plugins

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/oscheck/engine"
)

// Result is the outcome of validating one rule against one matched
// system object.
type Result struct {
	Context  string
	Passed   bool
	Failures []string
}

// Plugin validates one section of the rules file against a live system
// ("/") or a sosreport tree.
type Plugin interface {
	// Name is the rules file key the plugin handles.
	Name() string
	Run(rules map[string]any, basePath string) []Result
}

// All returns the registered plugins keyed by name.
func All() map[string]Plugin {
	plugins := []Plugin{
		&SysctlPlugin{},
		&FilesPlugin{},
		&MountsPlugin{},
		&PackagesPlugin{},
		&ProcessesPlugin{},
		&SystemdPlugin{},
		&CmdlinePlugin{},
		&KmodPlugin{},
	}
	out := make(map[string]Plugin, len(plugins))
	for _, p := range plugins {
		out[p.Name()] = p
	}
	return out
}

// evaluate runs one rule through the engine and logs the outcome the way
// the report expects it.
func evaluate(attributes any, rule any, attr, context string, opts *engine.Options) Result {
	var fatal []string
	if opts == nil {
		opts = &engine.Options{}
	}
	opts.FatalErrs = &fatal

	passed, failures := engine.ValidateRule(attributes, rule, attr, context, opts)
	if passed && len(fatal) == 0 {
		logging.External.Info().Msgf("PASS: %s passed all checks", context)
		return Result{Context: context, Passed: true}
	}

	all := append(failures, fatal...)
	logging.External.Error().Msgf("FAIL: %s failed validation", context)
	for _, f := range all {
		logging.External.Error().Msgf("  -> %s", f)
	}
	return Result{Context: context, Passed: false, Failures: all}
}

// failed reports a failure that never reached the engine, such as a rule
// pattern with nothing to match it against.
func failed(context string, failures ...string) Result {
	logging.External.Error().Msgf("FAIL: %s", context)
	for _, f := range failures {
		logging.External.Error().Msgf("  -> %s", f)
	}
	return Result{Context: context, Passed: false, Failures: failures}
}

// Fails counts the failed results in a run.
func Fails(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}

// fnMatch matches name against a shell wildcard pattern. Unlike
// path.Match, '*' crosses path separators, which mount and file rules
// rely on.
func fnMatch(pattern, name string) bool {
	var sb strings.Builder
	sb.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		case '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end < 0 {
				sb.WriteString(regexp.QuoteMeta(string(c)))
				continue
			}
			class := pattern[i : i+end+1]
			if strings.HasPrefix(class, "[!") {
				class = "[^" + class[2:]
			}
			sb.WriteString(class)
			i += end
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return pattern == name
	}
	return re.MatchString(name)
}

// hasWildcard reports whether a rule key is a glob pattern rather than a
// literal path or name.
func hasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

func joinUnder(basePath, relPath string) string {
	return filepath.Join(basePath, strings.TrimPrefix(relPath, "/"))
}
