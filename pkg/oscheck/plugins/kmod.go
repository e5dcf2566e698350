// pkg/oscheck/plugins/kmod.go

package plugins

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/oscheck/engine"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

func parseModules(basePath string) map[string]map[string]any {
	content, err := utils.ReadFileUnder(basePath, "/proc/modules")
	if err != nil {
		logging.External.Error().Msg("Could not read /proc/modules")
		return nil
	}

	modules := map[string]map[string]any{}
	for _, line := range strings.Split(content, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 6 {
			continue
		}

		size, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			logging.External.Error().Msgf("Failed to parse line in /proc/modules: %s", strings.TrimSpace(line))
			continue
		}
		usageCount, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			logging.External.Error().Msgf("Failed to parse line in /proc/modules: %s", strings.TrimSpace(line))
			continue
		}

		var usedBy []string
		if parts[3] != "-" {
			usedBy = strings.Split(strings.TrimSuffix(parts[3], ","), ",")
		}

		modules[parts[0]] = map[string]any{
			"exists":      true,
			"size":        size,
			"usage_count": usageCount,
			"used_by":     usedBy,
			"state":       strings.ToLower(parts[4]),
			"offset":      parts[5],
		}
	}
	return modules
}

// moduleParameters reads /sys/module/<name>/parameters into a map of
// parameter name to value.
func moduleParameters(basePath, name string) map[string]any {
	paramDir := "sys/module/" + name + "/parameters"
	params := map[string]any{}
	for _, path := range utils.ListFilesUnder(basePath, paramDir, "") {
		content, err := os.ReadFile(path)
		if err != nil {
			logging.Internal.Debug().Msgf("unable to read module parameter %s: %v", path, err)
			continue
		}
		params[filepath.Base(path)] = strings.TrimSpace(string(content))
	}
	return params
}

// KmodPlugin validates loaded kernel modules from /proc/modules. Rule
// keys are exact module names; an unloaded module is evaluated against a
// dummy entry so nonexistence rules can pass.
type KmodPlugin struct{}

func (p *KmodPlugin) Name() string { return "kmod" }

func (p *KmodPlugin) Run(rules map[string]any, basePath string) []Result {
	modules := parseModules(basePath)

	var results []Result
	for name, rule := range rules {
		opts := &engine.Options{AllowMissingAttrs: true}

		attributes, loaded := modules[name]
		if !loaded {
			dummy := map[string]any{"exists": false}
			context := "KERNEL MODULE " + name + " (not loaded)"
			results = append(results, evaluate(dummy, rule, name, context, opts))
			continue
		}

		reqAttrs := engine.RequiredAttributes(rule)
		filtered := map[string]any{}
		for _, k := range reqAttrs {
			if k == "parameters" {
				filtered[k] = moduleParameters(basePath, name)
				continue
			}
			if v, ok := attributes[k]; ok {
				filtered[k] = v
			}
		}
		results = append(results,
			evaluate(filtered, rule, name, "KERNEL MODULE "+name, opts))
	}
	return results
}
