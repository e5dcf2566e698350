// pkg/oscheck/plugins/cmdline.go

package plugins

import (
	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/oscheck/engine"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// CmdlinePlugin validates kernel boot parameters from /proc/cmdline.
// Bare flags like "quiet" carry the value "true"; parameters absent from
// the command line validate as nil so exists rules work.
type CmdlinePlugin struct{}

func (p *CmdlinePlugin) Name() string { return "cmdline" }

func (p *CmdlinePlugin) Run(rules map[string]any, basePath string) []Result {
	content, err := utils.ReadFileUnder(basePath, "/proc/cmdline")
	if err != nil {
		logging.External.Error().Msg("/proc/cmdline missing or unreadable")
		return []Result{failed("CMDLINE", "/proc/cmdline missing or unreadable")}
	}

	parsed := utils.ParseKVString(content, "=", true)
	attributes := make(map[string]any, len(parsed))
	for k, v := range parsed {
		attributes[k] = v
	}
	for _, attr := range engine.RequiredAttributes(rules) {
		if _, ok := attributes[attr]; !ok {
			attributes[attr] = nil
		}
	}

	var results []Result
	for ruleKey, ruleVal := range rules {
		context := "CMDLINE rule " + ruleKey
		opts := &engine.Options{AllowMissingAttrs: true}
		results = append(results, evaluate(
			attributes, map[string]any{ruleKey: ruleVal}, ruleKey, context, opts))
	}
	return results
}
