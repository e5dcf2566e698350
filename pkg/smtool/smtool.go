// pkg/smtool/smtool.go

// Package smtool reports CPU speculative-execution vulnerability status
// and toggles the runtime-controllable mitigations.
package smtool

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// Status of one vulnerability as the kernel reports it.
type Status string

const (
	StatusNotAffected Status = "Not affected"
	StatusMitigated   Status = "Mitigated"
	StatusVulnerable  Status = "Vulnerable"
	StatusUnknown     Status = "Unknown"
)

// Vulnerability is one entry under /sys/devices/system/cpu/vulnerabilities.
type Vulnerability struct {
	Name   string
	Detail string
	Status Status
}

const vulnerabilitiesDir = "/sys/devices/system/cpu/vulnerabilities"

// Knob is one sysfs file through which a mitigation can be changed at
// runtime, with the values it accepts.
type Knob struct {
	Path         string
	EnableValue  string
	DisableValue string
	Valid        []string
}

// Variant is a known speculative-execution vulnerability: its boot-time
// kernel parameters and any runtime sysfs knobs.
type Variant struct {
	Name       string
	BootParams []string
	Knobs      []Knob
}

// variants lists the vulnerabilities the tool knows how to describe and,
// where the kernel allows, control at runtime.
var variants = []Variant{
	{
		Name:       "spectre_v1",
		BootParams: []string{"nospectre_v1"},
	},
	{
		Name:       "spectre_v2",
		BootParams: []string{"nospectre_v2", "spectre_v2"},
		Knobs: []Knob{
			{Path: "/sys/kernel/debug/x86/ibrs_enabled", EnableValue: "1", DisableValue: "0", Valid: []string{"0", "1", "2"}},
			{Path: "/sys/kernel/debug/x86/ibpb_enabled", EnableValue: "1", DisableValue: "0", Valid: []string{"0", "1", "2"}},
			{Path: "/sys/kernel/debug/x86/retp_enabled", EnableValue: "1", DisableValue: "0", Valid: []string{"0", "1"}},
		},
	},
	{
		Name:       "meltdown",
		BootParams: []string{"pti", "nopti"},
	},
	{
		Name:       "ssbd",
		BootParams: []string{"spec_store_bypass_disable", "nospec_store_bypass_disable"},
	},
	{
		Name:       "l1tf",
		BootParams: []string{"l1tf"},
		Knobs: []Knob{
			{Path: "/sys/devices/system/cpu/smt/control", EnableValue: "off", DisableValue: "on", Valid: []string{"on", "off", "forceoff"}},
		},
	},
	{
		Name:       "mds",
		BootParams: []string{"mds"},
		Knobs: []Knob{
			{Path: "/sys/kernel/debug/x86/mds_idle_clear", EnableValue: "1", DisableValue: "0", Valid: []string{"0", "1"}},
			{Path: "/sys/kernel/debug/x86/mds_user_clear", EnableValue: "1", DisableValue: "0", Valid: []string{"0", "1"}},
		},
	},
	{
		Name:       "itlb_multihit",
		BootParams: []string{"kvm.nx_huge_pages"},
		Knobs: []Knob{
			{Path: "/sys/module/kvm/parameters/nx_huge_pages", EnableValue: "Y", DisableValue: "N", Valid: []string{"Y", "N", "auto"}},
		},
	},
	{
		Name:       "tsx_async_abort",
		BootParams: []string{"tsx_async_abort", "tsx"},
	},
}

// classify maps kernel status text onto a status bucket. Everything that
// is neither vulnerable, unknown, nor unaffected counts as mitigated.
func classify(detail string) Status {
	detail = strings.TrimSpace(detail)
	switch {
	case detail == string(StatusNotAffected):
		return StatusNotAffected
	case strings.HasPrefix(detail, string(StatusVulnerable)):
		return StatusVulnerable
	case strings.HasPrefix(detail, string(StatusUnknown)):
		return StatusUnknown
	default:
		return StatusMitigated
	}
}

// Scan reads every vulnerability status file under basePath and returns
// the entries sorted by name.
func Scan(basePath string) ([]Vulnerability, error) {
	dir := filepath.Join(basePath, strings.TrimPrefix(vulnerabilitiesDir, "/"))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %v", dir, err)
	}

	var vulns []Vulnerability
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			logging.Internal.Debug().Msgf("skipping %s: %v", entry.Name(), err)
			continue
		}
		detail := strings.TrimSpace(string(content))
		vulns = append(vulns, Vulnerability{
			Name:   entry.Name(),
			Detail: detail,
			Status: classify(detail),
		})
	}

	sort.Slice(vulns, func(i, j int) bool { return vulns[i].Name < vulns[j].Name })
	return vulns, nil
}

// OverallMitigated is true when no scanned vulnerability is vulnerable or
// of unknown state.
func OverallMitigated(vulns []Vulnerability) bool {
	for _, v := range vulns {
		if v.Status == StatusVulnerable || v.Status == StatusUnknown {
			return false
		}
	}
	return true
}

// ShowScan prints the scan results and the overall verdict.
func ShowScan(w io.Writer, basePath string) error {
	vulns, err := Scan(basePath)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%-24s %-14s %s\n", "VULNERABILITY", "STATUS", "DETAIL")
	for _, v := range vulns {
		fmt.Fprintf(w, "%-24s %-14s %s\n", v.Name, v.Status, v.Detail)
	}

	if OverallMitigated(vulns) {
		fmt.Fprintln(w, "\nSystem is mitigated against all known variants.")
	} else {
		fmt.Fprintln(w, "\nSystem is NOT fully mitigated.")
	}
	return nil
}

// List prints the known variants, their kernel boot parameters, and which
// of those parameters are set on the current command line.
func List(w io.Writer, basePath string) error {
	cmdline, err := utils.ReadFileUnder(basePath, "/proc/cmdline")
	if err != nil {
		return err
	}
	bootParams := utils.ParseKVString(strings.TrimSpace(cmdline), "=", true)

	fmt.Fprintf(w, "%-18s %-10s %s\n", "VARIANT", "RUNTIME", "BOOT PARAMETERS")
	for _, v := range variants {
		var params []string
		for _, p := range v.BootParams {
			if value, ok := bootParams[p]; ok {
				if value == "true" {
					params = append(params, p+" (set)")
				} else {
					params = append(params, fmt.Sprintf("%s=%s (set)", p, value))
				}
			} else {
				params = append(params, p)
			}
		}
		runtime := "no"
		if len(v.Knobs) > 0 {
			runtime = "yes"
		}
		fmt.Fprintf(w, "%-18s %-10s %s\n", v.Name, runtime, strings.Join(params, ", "))
	}
	return nil
}

// findVariant looks a variant up by name.
func findVariant(name string) (Variant, error) {
	for _, v := range variants {
		if v.Name == name {
			return v, nil
		}
	}
	var names []string
	for _, v := range variants {
		names = append(names, v.Name)
	}
	return Variant{}, fmt.Errorf("unknown variant %q, known: %s", name, strings.Join(names, ", "))
}

// SetRuntimeOptions control SetRuntime.
type SetRuntimeOptions struct {
	Variant  string
	Enable   bool
	Yes      bool
	DryRun   bool
	BasePath string
	In       io.Reader
	Out      io.Writer
}

// SetRuntime writes the sysfs knobs that toggle a variant's mitigation at
// runtime. Variants without runtime control are rejected. A dry run only
// prints the intended writes.
func SetRuntime(opts SetRuntimeOptions) error {
	variant, err := findVariant(opts.Variant)
	if err != nil {
		return err
	}
	if len(variant.Knobs) == 0 {
		return fmt.Errorf("variant %s has no runtime-controllable mitigation, set boot parameters instead: %s",
			variant.Name, strings.Join(variant.BootParams, ", "))
	}

	action := "disable"
	if opts.Enable {
		action = "enable"
	}

	if opts.DryRun {
		for _, knob := range variant.Knobs {
			fmt.Fprintf(opts.Out, "would write %q to %s\n", knobValue(knob, opts.Enable), knob.Path)
		}
		return nil
	}

	if !opts.Yes {
		fmt.Fprintf(opts.Out, "%s the %s mitigation at runtime? [y/N] ", action, variant.Name)
		answer, _ := bufio.NewReader(opts.In).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(opts.Out, "aborted")
			return nil
		}
	}

	for _, knob := range variant.Knobs {
		value := knobValue(knob, opts.Enable)
		if !knob.accepts(value) {
			return fmt.Errorf("%s does not accept %q (valid: %s)",
				knob.Path, value, strings.Join(knob.Valid, ", "))
		}
		path := filepath.Join(opts.BasePath, strings.TrimPrefix(knob.Path, "/"))
		if err := os.WriteFile(path, []byte(value+"\n"), 0644); err != nil {
			return fmt.Errorf("unable to %s %s via %s: %v", action, variant.Name, knob.Path, err)
		}
		logging.External.Info().Msgf("wrote %q to %s", value, knob.Path)
	}
	return nil
}

func (k Knob) accepts(value string) bool {
	for _, v := range k.Valid {
		if v == value {
			return true
		}
	}
	return false
}

func knobValue(knob Knob, enable bool) string {
	if enable {
		return knob.EnableValue
	}
	return knob.DisableValue
}
