// pkg/oscheck/oscheck.go

// Package oscheck drives rule validation: it probes the host, selects and
// loads a rules file, runs each plugin over its rules section, and renders
// the results as an AsciiDoc report.
package oscheck

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/oscheck/host"
	"github.com/ryan-mccabe/oled-tools/pkg/oscheck/plugins"
	"github.com/ryan-mccabe/oled-tools/pkg/report"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

const (
	// RulesPath is where packaged rules files are installed.
	RulesPath = "/etc/oled/oscheck/rules"
)

// LogFile keeps a persistent copy of the run output.
var LogFile = "oscheck.log"

// pluginOrder fixes the execution order so reports are stable run to run.
var pluginOrder = []string{
	"sysctl", "cmdline", "kmod", "mounts",
	"files", "packages", "processes", "systemd",
}

// Options configures a single-host oscheck run.
type Options struct {
	// RulesFile is an explicit rules file path. When empty, the file is
	// selected from the probed host role and OS major version.
	RulesFile string

	// SosPath points at an extracted sosreport instead of the live system.
	SosPath string

	// ReportPath is where the AsciiDoc report is written.
	ReportPath string

	// Quiet suppresses the progress bar.
	Quiet bool

	// Include limits the run to the named plugins. Empty means all.
	Include []string

	// Skip drops the named plugins from the run.
	Skip []string
}

// pluginSelected applies the include/skip filters to a plugin name.
func pluginSelected(name string, include, skip []string) bool {
	for _, s := range skip {
		if s == name {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, s := range include {
		if s == name {
			return true
		}
	}
	return false
}

// LoadRules loads and parses a JSON rules file.
func LoadRules(path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load rules file %s: %v", path, err)
	}

	var rules map[string]any
	if err := json.Unmarshal(content, &rules); err != nil {
		return nil, fmt.Errorf("unable to parse rules file %s: %v", path, err)
	}
	return rules, nil
}

// DetermineRulesFile returns the packaged rules file for the probed host.
func DetermineRulesFile(h *host.Host) string {
	return filepath.Join(RulesPath, h.Role(), fmt.Sprint(h.OSMajor), "rules.json")
}

// Run executes a single-host check and returns the number of failures.
func Run(opts Options) (int, error) {
	closer, err := logging.TeeToFile(LogFile)
	if err != nil {
		logging.Internal.Warn().Msgf("unable to open %s: %v", LogFile, err)
	} else {
		defer closer.Close()
	}

	basePath := opts.SosPath
	if basePath == "" {
		basePath = "/"
	}

	h := host.New(basePath)
	logging.Internal.Debug().
		Int("os_major", h.OSMajor).Int("os_minor", h.OSMinor).
		Str("uek", h.UEKVer).Str("role", h.Role()).
		Str("vendor", h.HWVendor).Str("product", h.HWProduct).
		Msg("host probe")

	rulesFile := opts.RulesFile
	if rulesFile == "" {
		rulesFile = DetermineRulesFile(h)
	}
	rules, err := LoadRules(rulesFile)
	if err != nil {
		return 0, logging.NewError("oscheck", logging.ErrorKindRules, "unable to load rules", err)
	}

	hostname, _ := os.Hostname()
	if opts.SosPath != "" {
		hostname = opts.SosPath
	}

	reportPath := opts.ReportPath
	if reportPath == "" {
		reportPath = fmt.Sprintf("oscheck-%s.adoc", time.Now().Format("20060102-150405"))
	}

	rep := report.NewAsciiDocReport(reportPath)
	rep.Initialize(hostname, "OS Health Check Report")
	addHostInfoCheck(rep, h)

	registered := plugins.All()
	var active []plugins.Plugin
	for _, name := range pluginOrder {
		if _, ok := rules[name]; !ok {
			continue
		}
		if !pluginSelected(name, opts.Include, opts.Skip) {
			logging.Internal.Debug().Msgf("plugin %s filtered out", name)
			continue
		}
		active = append(active, registered[name])
	}
	for name := range rules {
		if _, ok := registered[name]; !ok {
			logging.External.Warn().Msgf("No plugin registered for rules section %q", name)
		}
	}

	var bar *progressbar.ProgressBar
	if !opts.Quiet {
		bar = progressbar.NewOptions(len(active),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(50),
			progressbar.OptionSetDescription("[cyan]Running health checks[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	fails := 0
	for _, plugin := range active {
		section, ok := rules[plugin.Name()].(map[string]any)
		if !ok {
			logging.External.Error().Msgf("Rules section %q is not an object", plugin.Name())
			fails++
			continue
		}

		logging.Internal.Debug().Msgf("running plugin %s with base path %s", plugin.Name(), basePath)
		results := plugin.Run(section, basePath)
		fails += plugins.Fails(results)
		addPluginChecks(rep, plugin.Name(), results)

		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}

	path, err := rep.Generate()
	if err != nil {
		return fails, logging.NewError("oscheck", logging.ErrorKindRuntime, "unable to write report", err)
	}
	path, err = compressReportIfNeeded(path)
	if err != nil {
		logging.External.Warn().Msgf("Unable to compress report: %v", err)
	}
	logging.External.Info().Msgf("Report written to %s", path)

	return fails, nil
}

// addHostInfoCheck records the probed host facts in the report.
func addHostInfoCheck(rep *report.AsciiDocReport, h *host.Host) {
	detail := fmt.Sprintf(
		"OS version:   %d.%d\nKernel:       %s\nUEK release:  %s\nVendor:       %s\nProduct:      %s\nRole:         %s\n",
		h.OSMajor, h.OSMinor, h.KernelVer, h.UEKVer, h.HWVendor, h.HWProduct, h.Role())

	rep.AddCheck(&report.Check{
		ID:       "host-info",
		Name:     "Host Information",
		Category: report.CategorySystemInfo,
		Result: report.Result{
			Status:    report.StatusInfo,
			Message:   fmt.Sprintf("Oracle Linux %d host, role %s", h.OSMajor, h.Role()),
			ResultKey: report.ResultKeyNotApplicable,
			Detail:    detail,
		},
	})
}

// addPluginChecks converts plugin results into report checks.
func addPluginChecks(rep *report.AsciiDocReport, pluginName string, results []plugins.Result) {
	for i, res := range results {
		check := &report.Check{
			ID:       fmt.Sprintf("%s-%03d", pluginName, i),
			Name:     res.Context,
			Category: report.PluginCategory(pluginName),
		}
		if res.Passed {
			check.Result = report.Result{
				Status:    report.StatusOK,
				Message:   "Passed all checks",
				ResultKey: report.ResultKeyNoChange,
			}
		} else {
			check.Result = report.Result{
				Status:    report.StatusCritical,
				Message:   "Failed validation",
				ResultKey: report.ResultKeyRequired,
				Detail:    strings.Join(res.Failures, "\n"),
			}
		}
		rep.AddCheck(check)
	}
}

// compressReportIfNeeded zips the report when COMPRESS_REPORT is set,
// protecting it with REPORT_PASSWORD when one is given.
func compressReportIfNeeded(reportPath string) (string, error) {
	compress := os.Getenv("COMPRESS_REPORT")
	if compress != "true" && compress != "1" {
		return reportPath, nil
	}

	zipPath, err := utils.CompressWithPassword(reportPath, os.Getenv("REPORT_PASSWORD"))
	if err != nil {
		return reportPath, err
	}
	if err := os.Remove(reportPath); err != nil {
		logging.Internal.Debug().Msgf("unable to remove %s: %v", reportPath, err)
	}
	return zipPath, nil
}
