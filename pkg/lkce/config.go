// pkg/lkce/config.go

package lkce

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// Defaults for the kernel core extractor. The paths are package variables
// so tests can point them at a scratch directory.
var (
	ConfigDir       = "/etc/oled/lkce"
	DefaultOutDir   = "/var/crash/lkce"
	KdumpSysconfig  = "/etc/sysconfig/kdump"
	defaultMaxFiles = 50
)

// defaultCrashCmds is the batch fed to crash(8) when generating a vmcore
// report. The trailing quit keeps crash from dropping into its prompt.
const defaultCrashCmds = `bt
bt -a
bt -FF
dev
kmem -s
foreach bt
log
mod
mount
net
ps -m
ps -S
runq
quit
`

// Config holds the lkce.conf settings.
type Config struct {
	Enable        bool
	VmlinuxPath   string
	CrashCmdsFile string
	OutDir        string
	MaxOutFiles   int
}

// ConfigPath returns the location of lkce.conf.
func ConfigPath() string {
	return filepath.Join(ConfigDir, "lkce.conf")
}

// kdumpKernelVer returns the kernel version the kdump kernel captures for:
// KDUMP_KERNELVER from /etc/sysconfig/kdump when set, otherwise the running
// kernel release.
func kdumpKernelVer() string {
	if kv, err := utils.ParseKVFile(KdumpSysconfig, "=", false); err == nil {
		if ver := strings.TrimSpace(kv["KDUMP_KERNELVER"]); ver != "" {
			return ver
		}
	}
	out, err := utils.ExecuteCommand("uname", "-r")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// DefaultConfig builds the stock configuration for the current system.
func DefaultConfig() Config {
	return Config{
		Enable:        false,
		VmlinuxPath:   filepath.Join("/usr/lib/debug/lib/modules", kdumpKernelVer(), "vmlinux"),
		CrashCmdsFile: filepath.Join(ConfigDir, "crash_cmds"),
		OutDir:        DefaultOutDir,
		MaxOutFiles:   defaultMaxFiles,
	}
}

// LoadConfig reads lkce.conf from path, filling unset keys from defaults.
// A missing config file yields the defaults without error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if !fileExists(path) {
		return cfg, nil
	}
	kv, err := utils.ParseKVFile(path, "=", false)
	if err != nil {
		return cfg, fmt.Errorf("unable to parse %s: %v", path, err)
	}

	for key, value := range kv {
		switch key {
		case "enable":
			cfg.Enable = value == "yes"
		case "vmlinux_path":
			cfg.VmlinuxPath = value
		case "crash_cmds_file":
			cfg.CrashCmdsFile = value
		case "lkce_outdir":
			cfg.OutDir = value
		case "max_out_files":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return cfg, fmt.Errorf("invalid max_out_files value %q in %s", value, path)
			}
			cfg.MaxOutFiles = n
		default:
			return cfg, fmt.Errorf("unknown key %q in %s", key, path)
		}
	}
	return cfg, nil
}

// SaveConfig writes cfg to path in key=value form.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("unable to create %s: %v", filepath.Dir(path), err)
	}

	enable := "no"
	if cfg.Enable {
		enable = "yes"
	}

	var b strings.Builder
	b.WriteString("# lkce configuration\n")
	fmt.Fprintf(&b, "enable=%s\n", enable)
	fmt.Fprintf(&b, "vmlinux_path=%s\n", cfg.VmlinuxPath)
	fmt.Fprintf(&b, "crash_cmds_file=%s\n", cfg.CrashCmdsFile)
	fmt.Fprintf(&b, "lkce_outdir=%s\n", cfg.OutDir)
	fmt.Fprintf(&b, "max_out_files=%d\n", cfg.MaxOutFiles)

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("unable to write %s: %v", path, err)
	}
	return nil
}

// WriteDefaultCrashCmds creates the stock crash command file unless one
// already exists.
func WriteDefaultCrashCmds(path string) error {
	if fileExists(path) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("unable to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(defaultCrashCmds), 0644); err != nil {
		return fmt.Errorf("unable to write %s: %v", path, err)
	}
	return nil
}

// String renders the config the way `lkce configure --show` prints it.
func (c Config) String() string {
	enable := "no"
	if c.Enable {
		enable = "yes"
	}
	lines := []string{
		fmt.Sprintf("enable=%s", enable),
		fmt.Sprintf("vmlinux_path=%s", c.VmlinuxPath),
		fmt.Sprintf("crash_cmds_file=%s", c.CrashCmdsFile),
		fmt.Sprintf("lkce_outdir=%s", c.OutDir),
		fmt.Sprintf("max_out_files=%d", c.MaxOutFiles),
	}
	return strings.Join(lines, "\n")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
