// pkg/oscheck/plugins/systemd.go

package plugins

import (
	"strings"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/oscheck/engine"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// SystemdCollector gathers unit state from systemctl on a live system or
// from the captured listing in a sosreport.
type SystemdCollector struct {
	BasePath  string
	UnitAttrs map[string]map[string]any
}

func NewSystemdCollector(basePath string) *SystemdCollector {
	return &SystemdCollector{
		BasePath:  basePath,
		UnitAttrs: map[string]map[string]any{},
	}
}

func (c *SystemdCollector) Collect() {
	c.parseUnitOutput(c.unitListing())
	c.parseUnitFileOutput(c.unitFileListing())
}

func (c *SystemdCollector) unitListing() string {
	if c.BasePath == "/" {
		out, err := utils.ExecuteCommand("systemctl", "list-units", "--all",
			"--no-legend", "--no-pager")
		if err != nil {
			logging.External.Error().Msgf("Error running 'systemctl list-units': %v", err)
			return ""
		}
		return strings.TrimSpace(out)
	}

	relPath := "sos_commands/systemd/systemctl_list-units_--all"
	logging.Internal.Debug().Msgf("reading unit attributes from %s", relPath)
	content, err := utils.ReadFileUnder(c.BasePath, relPath)
	if err != nil {
		logging.External.Error().Msgf("Unable to read %s", relPath)
		return ""
	}
	return content
}

func (c *SystemdCollector) parseUnitOutput(output string) {
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 4 {
			continue
		}
		unit, load, active, sub := parts[0], parts[1], parts[2], parts[3]
		description := ""
		if len(parts) > 4 {
			description = strings.Join(parts[4:], " ")
		}

		c.UnitAttrs[unit] = map[string]any{
			"unit":        unit,
			"load":        load,
			"active":      active,
			"sub":         sub,
			"description": description,
			"exists":      int64(1),
			"state":       active + "/" + sub,
		}
	}
}

func (c *SystemdCollector) unitFileListing() string {
	if c.BasePath == "/" {
		out, err := utils.ExecuteCommand("systemctl", "list-unit-files",
			"--no-legend", "--no-pager")
		if err != nil {
			logging.External.Error().Msgf("Error running 'systemctl list-unit-files': %v", err)
			return ""
		}
		return strings.TrimSpace(out)
	}

	relPath := "sos_commands/systemd/systemctl_list-unit-files"
	content, err := utils.ReadFileUnder(c.BasePath, relPath)
	if err != nil {
		logging.Internal.Debug().Msgf("no unit-file listing at %s", relPath)
		return ""
	}
	return content
}

// parseUnitFileOutput merges enablement state from a list-unit-files
// listing into the unit attributes.
func (c *SystemdCollector) parseUnitFileOutput(output string) {
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		unit, state := parts[0], parts[1]
		if attrs, ok := c.UnitAttrs[unit]; ok {
			attrs["enabled"] = state
		} else {
			c.UnitAttrs[unit] = map[string]any{
				"unit":    unit,
				"enabled": state,
				"exists":  int64(1),
			}
		}
	}
}

// RequiredAttributes returns only the attributes a rule looks at for the
// named unit.
func (c *SystemdCollector) RequiredAttributes(unit string, required []string) map[string]any {
	full := c.UnitAttrs[unit]
	out := map[string]any{}
	for _, k := range required {
		if v, ok := full[k]; ok {
			out[k] = v
		}
	}
	return out
}

// UnitNames returns all discovered unit names.
func (c *SystemdCollector) UnitNames() []string {
	out := make([]string, 0, len(c.UnitAttrs))
	for unit := range c.UnitAttrs {
		out = append(out, unit)
	}
	return out
}

// SystemdPlugin validates systemd unit state. Rule keys are unit name
// patterns; a pattern matching no unit is evaluated against a dummy
// nonexistent unit so nonexistence rules can still pass.
type SystemdPlugin struct{}

func (p *SystemdPlugin) Name() string { return "systemd" }

func (p *SystemdPlugin) Run(rules map[string]any, basePath string) []Result {
	c := NewSystemdCollector(basePath)
	c.Collect()
	return validateSystemd(rules, c)
}

func validateSystemd(rules map[string]any, c *SystemdCollector) []Result {
	var results []Result
	for pattern, rule := range rules {
		var matchedUnits []string
		for _, unit := range c.UnitNames() {
			if fnMatch(pattern, unit) {
				matchedUnits = append(matchedUnits, unit)
			}
		}

		if len(matchedUnits) == 0 {
			logging.Internal.Debug().Msgf("%s not found in unit list, evaluating rule anyway", pattern)
			attrs := map[string]any{"exists": int64(0)}
			context := "SYSTEMD UNIT " + pattern + " (not found)"
			results = append(results, evaluate(attrs, rule, "systemd", context, nil))
			continue
		}

		reqAttrs := engine.RequiredAttributes(rule)
		for _, unit := range matchedUnits {
			attrs := c.RequiredAttributes(unit, reqAttrs)
			if len(attrs) == 0 {
				results = append(results, failed(
					"SYSTEMD UNIT "+unit,
					"attributes missing or unreadable"))
				continue
			}
			results = append(results,
				evaluate(attrs, rule, "systemd", "SYSTEMD UNIT "+unit, nil))
		}
	}
	return results
}
