// pkg/oscheck/plugins/sysctl.go

package plugins

import (
	"os"
	"strconv"
	"strings"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// SysctlCollector gathers running sysctl values and the values configured
// in sysctl.conf files, from a live system or a sosreport tree.
type SysctlCollector struct {
	BasePath   string
	LiveData   map[string]any
	ConfigData map[string]map[string]any
}

// NewSysctlCollector returns a collector for basePath.
func NewSysctlCollector(basePath string) *SysctlCollector {
	return &SysctlCollector{
		BasePath:   basePath,
		LiveData:   map[string]any{},
		ConfigData: map[string]map[string]any{},
	}
}

// Collect loads both running and configured sysctl values.
func (c *SysctlCollector) Collect() {
	if c.BasePath == "/" {
		c.collectLive()
	} else {
		c.collectSosreport()
	}
	c.collectConfigFiles()
}

func (c *SysctlCollector) parseOutput(output string) {
	for _, line := range strings.Split(output, "\n") {
		if k, v, found := strings.Cut(line, "="); found {
			k = strings.TrimSpace(k)
			v = strings.TrimSpace(v)
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				c.LiveData[k] = n
			} else {
				c.LiveData[k] = v
			}
		}
	}
}

func (c *SysctlCollector) collectLive() {
	logging.Internal.Debug().Msg("getting sysctl -a output from command")
	out, err := utils.ExecuteCommand("sysctl", "-a")
	if err != nil {
		logging.External.Error().Msgf("Unable to run 'sysctl -a': %v", err)
		return
	}
	c.parseOutput(strings.TrimSpace(out))
}

func (c *SysctlCollector) collectSosreport() {
	path := "sos_commands/kernel/sysctl_-a"
	logging.Internal.Debug().Msgf("getting sysctl -a output from file %s", path)
	content, err := utils.ReadFileUnder(c.BasePath, path)
	if err != nil {
		logging.External.Error().Msgf("No sysctl -a output at %s", path)
		return
	}
	c.parseOutput(content)
}

func (c *SysctlCollector) collectConfigFiles() {
	configFiles := []string{joinUnder(c.BasePath, "etc/sysctl.conf")}
	configFiles = append(configFiles,
		utils.ListFilesUnder(c.BasePath, "etc/sysctl.d", ".conf")...)

	for _, path := range configFiles {
		if _, err := os.Stat(path); err != nil {
			logging.Internal.Debug().Msgf("%s does not exist, skipping", path)
			continue
		}
		logging.Internal.Debug().Msgf("reading configured sysctl data from %s", path)
		result, err := utils.ParseKVFile(path, "=", false)
		if err != nil || len(result) == 0 {
			logging.Internal.Debug().Msgf("no config data in file %s", path)
			continue
		}
		parsed := make(map[string]any, len(result))
		for k, v := range result {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				parsed[k] = n
			} else {
				parsed[k] = v
			}
		}
		c.ConfigData[path] = parsed
	}
}

// SysctlPlugin validates running and configured sysctl values. A rule
// pattern that matches neither source is a failure.
type SysctlPlugin struct{}

func (p *SysctlPlugin) Name() string { return "sysctl" }

func (p *SysctlPlugin) Run(rules map[string]any, basePath string) []Result {
	c := NewSysctlCollector(basePath)
	c.Collect()
	return validateSysctlSources(rules, c.LiveData, c.ConfigData)
}

func validateSysctlSources(rules map[string]any, live map[string]any,
	config map[string]map[string]any) []Result {

	var results []Result
	for pattern, rule := range rules {
		found := false

		for k, v := range live {
			if !fnMatch(pattern, k) {
				continue
			}
			found = true
			logging.Internal.Debug().Msgf("evaluating live sysctl key %s", k)
			results = append(results,
				evaluate(v, rule, k, "LIVE SYSCTL "+k, nil))
		}

		for path, fileData := range config {
			for k, v := range fileData {
				if !fnMatch(pattern, k) {
					continue
				}
				found = true
				logging.Internal.Debug().Msgf("evaluating sysctl config %s from %s", k, path)
				results = append(results,
					evaluate(v, rule, k, "CONFIG SYSCTL "+k+" from "+path, nil))
			}
		}

		if !found {
			results = append(results, failed(
				"SYSCTL "+pattern,
				pattern+" is missing from sysctl sources"))
		}
	}
	return results
}
