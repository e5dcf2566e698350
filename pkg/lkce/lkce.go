// pkg/lkce/lkce.go

// Package lkce configures the kernel core extractor and generates crash(8)
// reports from captured vmcores.
package lkce

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// ReportOptions describe a single `lkce report` invocation.
type ReportOptions struct {
	Vmcore    string
	Vmlinux   string
	CrashCmds string
	Compress  bool
}

// Configure writes the lkce configuration. With useDefaults it writes the
// stock config; otherwise it prompts on in/out for each value, keeping the
// current one on an empty answer.
func Configure(useDefaults bool, in io.Reader, out io.Writer) error {
	cfg, err := LoadConfig(ConfigPath())
	if err != nil {
		return err
	}

	if !useDefaults {
		reader := bufio.NewReader(in)
		cfg.VmlinuxPath = prompt(reader, out, "vmlinux path", cfg.VmlinuxPath)
		cfg.CrashCmdsFile = prompt(reader, out, "crash commands file", cfg.CrashCmdsFile)
		cfg.OutDir = prompt(reader, out, "output directory", cfg.OutDir)
		maxStr := prompt(reader, out, "max output files", strconv.Itoa(cfg.MaxOutFiles))
		n, err := strconv.Atoi(maxStr)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid max output files value %q", maxStr)
		}
		cfg.MaxOutFiles = n
	} else {
		defaults := DefaultConfig()
		defaults.Enable = cfg.Enable
		cfg = defaults
	}

	if err := SaveConfig(ConfigPath(), cfg); err != nil {
		return err
	}
	if err := WriteDefaultCrashCmds(cfg.CrashCmdsFile); err != nil {
		return err
	}
	logging.External.Info().Msgf("configuration written to %s", ConfigPath())
	return nil
}

// ShowConfig prints the effective configuration.
func ShowConfig(out io.Writer) error {
	cfg, err := LoadConfig(ConfigPath())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, cfg.String())
	return nil
}

// SetEnabled flips the enable flag in lkce.conf.
func SetEnabled(enable bool) error {
	cfg, err := LoadConfig(ConfigPath())
	if err != nil {
		return err
	}
	cfg.Enable = enable
	if err := SaveConfig(ConfigPath(), cfg); err != nil {
		return err
	}
	state := "disabled"
	if enable {
		state = "enabled"
	}
	logging.External.Info().Msgf("lkce %s", state)
	return nil
}

// Status reports the enable flag, the kdump service state, and the number
// of reports currently on disk.
func Status(out io.Writer) error {
	cfg, err := LoadConfig(ConfigPath())
	if err != nil {
		return err
	}

	enabled := "no"
	if cfg.Enable {
		enabled = "yes"
	}

	kdump := "unknown"
	if state, err := utils.ExecuteCommand("systemctl", "is-active", "kdump.service"); err == nil {
		kdump = strings.TrimSpace(state)
	}

	reports, _ := reportFiles(cfg.OutDir)
	fmt.Fprintf(out, "lkce enabled:    %s\n", enabled)
	fmt.Fprintf(out, "kdump service:   %s\n", kdump)
	fmt.Fprintf(out, "vmlinux path:    %s\n", cfg.VmlinuxPath)
	fmt.Fprintf(out, "output dir:      %s (%d reports, max %d)\n",
		cfg.OutDir, len(reports), cfg.MaxOutFiles)
	return nil
}

// Report runs crash in batch mode against a vmcore and writes the output
// under the configured output directory. Returns the report path.
func Report(opts ReportOptions) (string, error) {
	cfg, err := LoadConfig(ConfigPath())
	if err != nil {
		return "", logging.NewError("lkce", logging.ErrorKindConfig, "unable to load configuration", err)
	}

	vmlinux := opts.Vmlinux
	if vmlinux == "" {
		vmlinux = cfg.VmlinuxPath
	}
	crashCmds := opts.CrashCmds
	if crashCmds == "" {
		crashCmds = cfg.CrashCmdsFile
	}

	if !fileExists(opts.Vmcore) {
		return "", fmt.Errorf("vmcore not found: %s", opts.Vmcore)
	}
	if !fileExists(vmlinux) {
		return "", fmt.Errorf("vmlinux not found: %s (install the kernel debuginfo package)", vmlinux)
	}
	if !fileExists(crashCmds) {
		if err := WriteDefaultCrashCmds(crashCmds); err != nil {
			return "", err
		}
	}

	lock, err := utils.AcquireInstanceLock("lkce")
	if err != nil {
		return "", err
	}
	defer lock.Release()

	if err := os.MkdirAll(cfg.OutDir, 0755); err != nil {
		return "", fmt.Errorf("unable to create %s: %v", cfg.OutDir, err)
	}

	outPath := filepath.Join(cfg.OutDir,
		fmt.Sprintf("crash_%s.out", time.Now().Format("20060102_150405")))

	logging.External.Info().Msgf("running crash on %s, this can take a while", opts.Vmcore)
	output, err := utils.ExecuteCommand("crash", opts.Vmcore, vmlinux, "-i", crashCmds)
	if err != nil {
		return "", logging.NewError("lkce", logging.ErrorKindCollect, "crash invocation failed", err)
	}
	if err := os.WriteFile(outPath, []byte(output), 0600); err != nil {
		return "", fmt.Errorf("unable to write %s: %v", outPath, err)
	}

	if opts.Compress {
		zipPath, err := utils.CompressWithPassword(outPath, "")
		if err != nil {
			return "", err
		}
		os.Remove(outPath)
		outPath = zipPath
	}

	if removed := pruneReports(cfg.OutDir, cfg.MaxOutFiles); removed > 0 {
		logging.Internal.Debug().Msgf("pruned %d old reports from %s", removed, cfg.OutDir)
	}

	logging.External.Info().Msgf("report written to %s", outPath)
	return outPath, nil
}

// Clean removes old reports. With all set, every report goes; otherwise
// only those beyond max_out_files. Prompts on in unless yes is set.
func Clean(all, yes bool, in io.Reader, out io.Writer) error {
	cfg, err := LoadConfig(ConfigPath())
	if err != nil {
		return err
	}

	lock, err := utils.AcquireInstanceLock("lkce")
	if err != nil {
		return err
	}
	defer lock.Release()

	keep := cfg.MaxOutFiles
	if all {
		keep = 0
	}

	files, err := reportFiles(cfg.OutDir)
	if err != nil {
		return err
	}
	if len(files) <= keep {
		fmt.Fprintf(out, "nothing to clean in %s\n", cfg.OutDir)
		return nil
	}

	doomed := files[keep:]
	if !yes {
		fmt.Fprintf(out, "remove %d report(s) from %s? [y/N] ", len(doomed), cfg.OutDir)
		answer, _ := bufio.NewReader(in).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(out, "aborted")
			return nil
		}
	}

	for _, path := range doomed {
		if err := os.Remove(path); err != nil {
			logging.External.Warn().Msgf("unable to remove %s: %v", path, err)
		}
	}
	fmt.Fprintf(out, "removed %d report(s)\n", len(doomed))
	return nil
}

// List prints the reports on disk, newest first.
func List(out io.Writer) error {
	cfg, err := LoadConfig(ConfigPath())
	if err != nil {
		return err
	}

	files, err := reportFiles(cfg.OutDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "no reports in %s\n", cfg.OutDir)
		return nil
	}

	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "%s  %10d  %s\n",
			info.ModTime().Format("2006-01-02 15:04:05"), info.Size(), path)
	}
	return nil
}

// reportFiles returns the crash report paths in dir, newest first.
func reportFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "crash_*"))
	if err != nil {
		return nil, fmt.Errorf("unable to list %s: %v", dir, err)
	}

	sort.Slice(matches, func(i, j int) bool {
		ii, erri := os.Stat(matches[i])
		ij, errj := os.Stat(matches[j])
		if erri != nil || errj != nil {
			return matches[i] > matches[j]
		}
		return ii.ModTime().After(ij.ModTime())
	})
	return matches, nil
}

// pruneReports removes reports beyond keep, returning how many went.
func pruneReports(dir string, keep int) int {
	files, err := reportFiles(dir)
	if err != nil || len(files) <= keep {
		return 0
	}
	removed := 0
	for _, path := range files[keep:] {
		if os.Remove(path) == nil {
			removed++
		}
	}
	return removed
}

func prompt(reader *bufio.Reader, out io.Writer, label, current string) string {
	fmt.Fprintf(out, "%s [%s]: ", label, current)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return current
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	return line
}
