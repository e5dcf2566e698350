// pkg/oscheck/plugins/mounts.go

package plugins

import (
	"strings"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/oscheck/engine"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// MountsPlugin validates mounted filesystems and fstab entries. Rule keys
// are mountpoint patterns; each matches against both /proc/mounts and
// /etc/fstab, and a pattern with no match in either is a failure.
type MountsPlugin struct{}

func (p *MountsPlugin) Name() string { return "mounts" }

func parseMountLine(line, source string) map[string]any {
	parts := strings.Fields(line)
	if len(parts) < 6 {
		return nil
	}
	return map[string]any{
		"exists":     true,
		"device":     parts[0],
		"mountpoint": parts[1],
		"fstype":     parts[2],
		"options":    strings.Split(parts[3], ","),
		"dump":       parts[4],
		"pass":       parts[5],
		"source":     source,
	}
}

func parseProcMounts(basePath string) []map[string]any {
	content, err := utils.ReadFileUnder(basePath, "/proc/mounts")
	if err != nil {
		logging.External.Error().Msgf("Error reading /proc/mounts: %v", err)
		return nil
	}

	var out []map[string]any
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if entry := parseMountLine(line, "mounts"); entry != nil {
			out = append(out, entry)
		}
	}
	return out
}

func parseFstab(basePath string) []map[string]any {
	content, err := utils.ReadFileUnder(basePath, "/etc/fstab")
	if err != nil {
		return nil
	}

	var out []map[string]any
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if entry := parseMountLine(line, "fstab"); entry != nil {
			out = append(out, entry)
		}
	}
	return out
}

func (p *MountsPlugin) Run(rules map[string]any, basePath string) []Result {
	entries := append(parseProcMounts(basePath), parseFstab(basePath)...)

	reqAttrs := make(map[string][]string, len(rules))
	for pattern, rule := range rules {
		reqAttrs[pattern] = engine.RequiredAttributes(rule)
	}

	matched := map[string]bool{}
	var results []Result

	for _, entry := range entries {
		mnt, _ := entry["mountpoint"].(string)
		if mnt == "" {
			continue
		}
		for pattern, rule := range rules {
			if !fnMatch(pattern, mnt) {
				continue
			}
			matched[pattern] = true

			filtered := map[string]any{}
			for _, k := range reqAttrs[pattern] {
				if v, ok := entry[k]; ok {
					filtered[k] = v
				}
			}

			context := "MOUNT " + mnt + " (" + entry["source"].(string) + ")"
			results = append(results, evaluate(filtered, rule, mnt, context, nil))
		}
	}

	for pattern := range rules {
		if !matched[pattern] {
			results = append(results, failed(
				"MOUNT "+pattern,
				"no matching mount found"))
		}
	}
	return results
}
