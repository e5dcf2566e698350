// pkg/oscheck/host/host.go

// Package host probes the system (or a sosreport tree) for the facts used
// to select a rules file and to populate the rule engine's global
// variables.
package host

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/oscheck/engine"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// uekVersions maps uname release patterns to UEK release names.
var uekVersions = []struct {
	pattern *regexp.Regexp
	version string
}{
	{regexp.MustCompile(`^4\.14\..*el.*uek`), "UEK5"},
	{regexp.MustCompile(`^5\.4\..*el.*uek`), "UEK6"},
	{regexp.MustCompile(`^5\.15\..*el.*uek`), "UEK7"},
	{regexp.MustCompile(`^6\.12\..*el.*uek`), "UEK8"},
}

// UEKVersion returns the UEK release name for a kernel release string, or
// "" for non-UEK kernels.
func UEKVersion(unameRel string) string {
	for _, entry := range uekVersions {
		if entry.pattern.MatchString(unameRel) {
			return entry.version
		}
	}
	return ""
}

// Host holds the probed system facts used to determine which rules apply.
type Host struct {
	BasePath   string
	OSMajor    int
	OSMinor    int
	KernelVer  string
	UEKVer     string
	HWVendor   string
	HWProduct  string
	HWAssetTag string
	Exadata    bool
	OVSServer  bool
	VirtGuest  bool
}

// New probes host data from basePath ("/" for a live system, otherwise a
// sosreport root) and populates engine.GlobalVars.
func New(basePath string) *Host {
	if basePath == "" {
		basePath = "/"
	}
	h := &Host{BasePath: basePath}

	h.populateMeminfo()
	h.populateOSVersion()
	h.populateKernelInfo()
	h.populateHWInfo()
	h.populateVirtGuest()
	h.populateCPU()
	h.checkExadata()
	h.checkOVSServer()
	h.populateGlobalVars()

	logging.Internal.Debug().Interface("global_vars", engine.GlobalVars).Msg("host probe complete")
	return h
}

// Role returns the host role used for rules file selection (OCI node,
// bare metal, Exadata host, etc).
func (h *Host) Role() string {
	if h.VirtGuest {
		switch {
		case h.HWProduct == "HVM domU":
			return "OVM_host"
		case h.HWAssetTag == "OracleCloud.com":
			return "OCI_guest"
		case h.Exadata:
			return "Exadata_guest"
		}
		return ""
	}
	if h.OVSServer {
		return "OVS_server"
	}
	if h.Exadata {
		return "Exadata_host"
	}
	return "Baremetal"
}

func (h *Host) populateGlobalVars() {
	engine.GlobalVars["HOST_OS_MAJOR"] = h.OSMajor
	engine.GlobalVars["HOST_OS_MINOR"] = h.OSMinor
	engine.GlobalVars["HOST_EXADATA"] = boolToInt(h.Exadata)
	engine.GlobalVars["HOST_VIRT"] = boolToInt(h.VirtGuest)
	engine.GlobalVars["HOST_UEK_VER"] = h.UEKVer
	engine.GlobalVars["HOST_KERNEL_VER"] = h.KernelVer
	engine.GlobalVars["HOST_HW_VENDOR"] = h.HWVendor
	engine.GlobalVars["HOST_HW_PRODUCT"] = h.HWProduct
	engine.GlobalVars["HOST_HW_ASSET_TAG"] = h.HWAssetTag
	engine.GlobalVars["HOST_ROLE"] = h.Role()
}

// populateMeminfo loads /proc/meminfo fields into the engine globals,
// normalized to bytes and with non-word characters replaced so the keys
// are usable as $variables.
func (h *Host) populateMeminfo() {
	content, err := utils.ReadFileUnder(h.BasePath, "/proc/meminfo")
	if err != nil {
		logging.External.Error().Msg("Unable to load meminfo")
		return
	}

	nonWord := regexp.MustCompile(`[^\w]`)
	for _, line := range strings.Split(content, "\n") {
		key, valStr, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		tokens := strings.Fields(valStr)
		if len(tokens) == 0 {
			continue
		}

		var value any
		if n, err := strconv.ParseInt(tokens[0], 10, 64); err == nil {
			if len(tokens) > 1 && tokens[1] == "kB" {
				n *= 1024
			}
			value = n
		} else {
			value = tokens[0]
		}

		key = strings.TrimSuffix(nonWord.ReplaceAllString(strings.TrimSpace(key), "_"), "_")
		engine.GlobalVars[key] = value
	}
}

func (h *Host) populateOSVersion() {
	content, err := utils.ReadFileUnder(h.BasePath, "/etc/os-release")
	if err != nil {
		logging.External.Error().Msg("Unable to read /etc/os-release")
		return
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "VERSION_ID") {
			continue
		}
		_, versionID, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		versionID = strings.Trim(versionID, `"'`)

		major, minor, _ := strings.Cut(versionID, ".")
		if n, err := strconv.Atoi(major); err == nil {
			h.OSMajor = n
		}
		if n, err := strconv.Atoi(minor); err == nil {
			h.OSMinor = n
		}
		return
	}
}

func (h *Host) populateKernelInfo() {
	var release string
	if h.BasePath == "/" {
		out, err := utils.ExecuteCommand("uname", "-r")
		if err == nil {
			release = strings.TrimSpace(out)
		}
	} else {
		content, err := utils.ReadFileUnder(h.BasePath, "/sos_commands/kernel/uname_-a")
		if err == nil {
			tokens := strings.Fields(content)
			if len(tokens) >= 3 {
				release = tokens[2]
			}
		}
	}
	h.KernelVer = release
	h.UEKVer = UEKVersion(release)
}

// populateHWInfo gathers vendor, product, and asset tag from DMI sysfs on
// a live system, or from the dmidecode output captured in a sosreport.
func (h *Host) populateHWInfo() {
	if h.BasePath == "/" {
		readDMI := func(name string) string {
			content, err := utils.ReadFileUnder(h.BasePath, "/sys/class/dmi/id/"+name)
			if err != nil {
				return ""
			}
			return strings.TrimSpace(content)
		}
		h.HWVendor = readDMI("sys_vendor")
		h.HWProduct = readDMI("product_name")
		h.HWAssetTag = readDMI("chassis_asset_tag")
		return
	}

	content, err := utils.ReadFileUnder(h.BasePath, "/sos_commands/hardware/dmidecode")
	if err != nil {
		logging.External.Error().Msg("Unable to read dmidecode output")
		return
	}

	var inSysinfo, inChassis, inOEM bool
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			inSysinfo, inChassis, inOEM = false, false, false
			continue
		}
		switch {
		case strings.HasPrefix(line, "System Information"):
			inSysinfo, inChassis, inOEM = true, false, false
			continue
		case strings.HasPrefix(line, "Chassis Information"):
			inSysinfo, inChassis, inOEM = false, true, false
			continue
		case strings.HasPrefix(line, "OEM-specific Type"):
			inSysinfo, inChassis, inOEM = false, false, true
		}

		if inSysinfo {
			if v, ok := dmiField(line, "Manufacturer:"); ok {
				h.HWVendor = v
			} else if v, ok := dmiField(line, "Product Name:"); ok {
				h.HWProduct = v
			}
		}
		if inChassis {
			if v, ok := dmiField(line, "Asset Tag:"); ok {
				h.HWAssetTag = v
			}
		}
		if inOEM && strings.Contains(line, "Exadata") {
			h.Exadata = true
		}
	}
}

func dmiField(line, prefix string) (string, bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
}

func (h *Host) populateVirtGuest() {
	product := strings.ToLower(h.HWProduct)
	vendor := strings.ToLower(h.HWVendor)

	products := []string{"vmware", "kvm", "standard pc", "virtual machine",
		"virtualbox", "xen", "aws"}
	vendors := []string{"vmware", "qemu", "microsoft", "innotek", "xen", "amazon"}

	for _, p := range products {
		if product != "" && (strings.Contains(product, p) || strings.Contains(p, product)) {
			h.VirtGuest = true
			return
		}
	}
	for _, v := range vendors {
		if vendor != "" && (strings.Contains(vendor, v) || strings.Contains(v, vendor)) {
			h.VirtGuest = true
			return
		}
	}
}

// populateCPU counts physical cores and logical CPUs from /proc/cpuinfo.
func (h *Host) populateCPU() {
	content, err := utils.ReadFileUnder(h.BasePath, "/proc/cpuinfo")
	if err != nil {
		logging.External.Error().Msgf("Failed to parse /proc/cpuinfo: %v", err)
		return
	}

	var cpuinfo []map[string]string
	cpu := map[string]string{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if len(cpu) > 0 {
				cpuinfo = append(cpuinfo, cpu)
				cpu = map[string]string{}
			}
			continue
		}
		if k, v, found := strings.Cut(line, ":"); found {
			cpu[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	if len(cpu) > 0 {
		cpuinfo = append(cpuinfo, cpu)
	}

	physicalCores := map[[2]string]bool{}
	for _, proc := range cpuinfo {
		physID := proc["physical id"]
		if physID == "" {
			physID = proc["processor"]
		}
		coreID := proc["core id"]
		if coreID == "" {
			coreID = proc["processor"]
		}
		physicalCores[[2]string{physID, coreID}] = true
	}

	engine.GlobalVars["HOST_CPU_CORES"] = len(physicalCores)
	engine.GlobalVars["HOST_CPU_LOGICAL"] = len(cpuinfo)
}

func (h *Host) checkExadata() {
	if strings.HasPrefix(h.HWProduct, "ORACLE SERVER X") {
		h.Exadata = true
		return
	}
	if pathExistsUnder(h.BasePath, "/etc/tmpfiles.d/exadata.conf") {
		h.Exadata = true
	}
}

func (h *Host) checkOVSServer() {
	if pathExistsUnder(h.BasePath, "/etc/ovs-release") {
		h.OVSServer = true
	}
}

func pathExistsUnder(basePath, relPath string) bool {
	_, err := os.Stat(filepath.Join(basePath, strings.TrimPrefix(relPath, "/")))
	return err == nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
