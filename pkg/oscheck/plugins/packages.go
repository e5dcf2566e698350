// pkg/oscheck/plugins/packages.go

package plugins

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/oscheck/engine"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// EVRToTuple splits an [epoch:]version[-release] string into its parts,
// with "" for any missing element.
func EVRToTuple(evr string) (epoch, version, release string) {
	version = evr
	if e, rest, found := strings.Cut(version, ":"); found {
		epoch = e
		version = rest
	}
	if v, r, found := strings.Cut(version, "-"); found {
		version = v
		release = r
	}
	return epoch, version, release
}

// rpmvercmp compares two RPM version segments the way librpm does.
// Returns -1, 0, or 1.
func rpmvercmp(a, b string) int {
	if a == b {
		return 0
	}

	isAlnum := func(c byte) bool {
		return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
	}
	isDigit := func(c byte) bool { return c >= '0' && c <= '9' }

	i, j := 0, 0
	for i < len(a) || j < len(b) {
		for i < len(a) && !isAlnum(a[i]) && a[i] != '~' && a[i] != '^' {
			i++
		}
		for j < len(b) && !isAlnum(b[j]) && b[j] != '~' && b[j] != '^' {
			j++
		}

		// tilde sorts before everything, including end of string
		aTilde := i < len(a) && a[i] == '~'
		bTilde := j < len(b) && b[j] == '~'
		if aTilde || bTilde {
			if !bTilde {
				return -1
			}
			if !aTilde {
				return 1
			}
			i++
			j++
			continue
		}

		// caret sorts after end of string but before anything else
		aCaret := i < len(a) && a[i] == '^'
		bCaret := j < len(b) && b[j] == '^'
		if aCaret || bCaret {
			if i >= len(a) {
				return -1
			}
			if j >= len(b) {
				return 1
			}
			if !aCaret {
				return 1
			}
			if !bCaret {
				return -1
			}
			i++
			j++
			continue
		}

		if i >= len(a) || j >= len(b) {
			break
		}

		si, sj := i, j
		var numeric bool
		if isDigit(a[i]) {
			numeric = true
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			for j < len(b) && isDigit(b[j]) {
				j++
			}
		} else {
			for i < len(a) && isAlnum(a[i]) && !isDigit(a[i]) {
				i++
			}
			for j < len(b) && isAlnum(b[j]) && !isDigit(b[j]) {
				j++
			}
		}

		segA, segB := a[si:i], b[sj:j]
		if segB == "" {
			// numeric segments always beat alpha segments
			if numeric {
				return 1
			}
			return -1
		}

		if numeric {
			segA = strings.TrimLeft(segA, "0")
			segB = strings.TrimLeft(segB, "0")
			if len(segA) != len(segB) {
				if len(segA) > len(segB) {
					return 1
				}
				return -1
			}
		}
		if c := strings.Compare(segA, segB); c != 0 {
			if c > 0 {
				return 1
			}
			return -1
		}
	}

	if i >= len(a) && j >= len(b) {
		return 0
	}
	if i < len(a) {
		return 1
	}
	return -1
}

// EVRCompare compares two full [epoch:]version[-release] strings, epoch
// first, then version, then release. A missing epoch is zero.
func EVRCompare(a, b string) int {
	ae, av, ar := EVRToTuple(a)
	be, bv, br := EVRToTuple(b)

	epochNum := func(e string) int64 {
		n, err := strconv.ParseInt(e, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	if an, bn := epochNum(ae), epochNum(be); an != bn {
		if an > bn {
			return 1
		}
		return -1
	}
	if c := rpmvercmp(av, bv); c != 0 {
		return c
	}
	return rpmvercmp(ar, br)
}

func packageOp(want func(int) bool) engine.PluginOp {
	return func(val, expected any) (bool, error) {
		l, lok := val.(string)
		r, rok := expected.(string)
		if !lok || !rok {
			return false, fmt.Errorf("package comparison requires strings, got %T and %T", val, expected)
		}
		return want(EVRCompare(l, r)), nil
	}
}

// packageOps are the EVR comparison operators available to package rules.
var packageOps = map[string]engine.PluginOp{
	"package_gt": packageOp(func(c int) bool { return c > 0 }),
	"package_ge": packageOp(func(c int) bool { return c >= 0 }),
	"package_lt": packageOp(func(c int) bool { return c < 0 }),
	"package_le": packageOp(func(c int) bool { return c <= 0 }),
	"package_eq": packageOp(func(c int) bool { return c == 0 }),
	"package_ne": packageOp(func(c int) bool { return c != 0 }),
}

var rpmNameRE = regexp.MustCompile(`^(.+)-([^-]+)-([^-]+)\.([^.]+)$`)

// parseRPMName splits 'name-version-release.arch' into its parts.
func parseRPMName(rpmname string) (name, version, release, arch string, ok bool) {
	m := rpmNameRE.FindStringSubmatch(rpmname)
	if m == nil {
		return "", "", "", "", false
	}
	return m[1], m[2], m[3], m[4], true
}

// parsePackageData parses the tab-delimited rpm query output captured as
// sos_commands/rpm/package-data, or produced live by the same query
// format. Packages can appear more than once when multiple versions are
// installed.
func parsePackageData(pdata string) map[string][]map[string]any {
	packages := map[string][]map[string]any{}
	for _, line := range strings.Split(pdata, "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, "\t") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			logging.Internal.Debug().Msgf("malformed pkg line: %s", line)
			continue
		}

		rpmname := parts[0]
		name, version, release, arch, ok := parseRPMName(rpmname)
		if !ok {
			logging.Internal.Debug().Msgf("malformed pkg name: %s", rpmname)
			continue
		}

		packages[name] = append(packages[name], map[string]any{
			"exists":      true,
			"name":        name,
			"version":     version + "-" + release,
			"ver":         version,
			"release":     release,
			"arch":        arch,
			"rpm":         rpmname,
			"installdate": parts[1],
			"installtime": parts[2],
			"vendor":      parts[3],
			"buildhost":   parts[4],
			"signature":   parts[5],
			"key":         parts[6],
		})
	}
	return packages
}

// parsePkgsInstalled parses `dnf list installed` style output.
func parsePkgsInstalled(content string) map[string][]map[string]any {
	packages := map[string][]map[string]any{}
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "Installed Packages") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		nameArch, version, repo := fields[len(fields)-3], fields[len(fields)-2], fields[len(fields)-1]
		dot := strings.LastIndex(nameArch, ".")
		if dot < 0 {
			continue
		}
		name, arch := nameArch[:dot], nameArch[dot+1:]

		epoch, ver, rel := EVRToTuple(version)
		evr := ver + "-" + rel
		if epoch != "" {
			evr = epoch + ":" + evr
		}

		packages[name] = append(packages[name], map[string]any{
			"exists":  true,
			"name":    name,
			"version": ver + "-" + rel,
			"ver":     ver,
			"epoch":   epoch,
			"evr":     evr,
			"release": rel,
			"arch":    arch,
			"repo":    repo,
		})
	}
	return packages
}

// parseInstalledRPMs parses the plain installed-rpms listing older
// sosreports carry, one 'name-version-release.arch [install date]' per
// line.
func parseInstalledRPMs(content string) map[string][]map[string]any {
	packages := map[string][]map[string]any{}
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		name, version, release, arch, ok := parseRPMName(fields[0])
		if !ok {
			logging.Internal.Debug().Msgf("malformed pkg name: %s", fields[0])
			continue
		}

		entry := map[string]any{
			"exists":  true,
			"name":    name,
			"version": version + "-" + release,
			"ver":     version,
			"release": release,
			"arch":    arch,
			"rpm":     fields[0],
		}
		if len(fields) > 1 {
			entry["installdate"] = strings.Join(fields[1:], " ")
		}
		packages[name] = append(packages[name], entry)
	}
	return packages
}

const rpmQueryFormat = "%{NAME}-%{VERSION}-%{RELEASE}.%{ARCH}\\t" +
	"%{INSTALLTIME:date}\\t%{INSTALLTIME}\\t" +
	"%{VENDOR}\\t%{BUILDHOST}\\t" +
	"%{SIGPGP}\\t%{SIGPGP:pgpsig}\\n"

func getRPMsInstalled(basePath string) map[string][]map[string]any {
	if basePath == "/" {
		out, err := utils.ExecuteCommand("rpm", "--nodigest", "-qa", "--queryformat", rpmQueryFormat)
		if err != nil {
			logging.External.Error().Msgf("Failed to run rpm command: %v", err)
			return map[string][]map[string]any{}
		}
		return parsePackageData(out)
	}

	content, err := utils.ReadFileUnder(basePath, "sos_commands/rpm/package-data")
	if err == nil {
		return parsePackageData(content)
	}

	content, err = utils.ReadFileUnder(basePath, "installed-rpms")
	if err != nil {
		logging.External.Error().Msg("No package data in sosreport (sos_commands/rpm/package-data or installed-rpms)")
		return map[string][]map[string]any{}
	}
	return parseInstalledRPMs(content)
}

func getPkgsInstalled(basePath string) map[string][]map[string]any {
	var content string
	if basePath == "/" {
		out, err := utils.ExecuteCommand("dnf", "list", "installed")
		if err != nil {
			out, err = utils.ExecuteCommand("yum", "list", "installed")
			if err != nil {
				logging.External.Error().Msgf("Error running dnf/yum: %v", err)
				return map[string][]map[string]any{}
			}
		}
		content = out
	} else {
		for _, rel := range []string{
			"sos_commands/dnf/dnf_list_installed",
			"sos_commands/yum/yum_list_installed",
		} {
			if _, err := os.Stat(joinUnder(basePath, rel)); err != nil {
				continue
			}
			c, err := utils.ReadFileUnder(basePath, rel)
			if err != nil {
				logging.External.Error().Msgf("Failed to read %s: %v", rel, err)
				continue
			}
			content = c
			break
		}
	}
	if content == "" {
		return map[string][]map[string]any{}
	}
	return parsePkgsInstalled(strings.TrimSpace(content))
}

// mergePkgData joins the dnf/yum listing with the richer rpm query data,
// keyed by (name, version, arch).
func mergePkgData(rpmPkgs, pkgList map[string][]map[string]any) map[string][]map[string]any {
	type pkgKey struct{ name, version, arch string }

	rpmIndex := map[pkgKey]map[string]any{}
	for name, entries := range rpmPkgs {
		for _, entry := range entries {
			version, _ := entry["version"].(string)
			arch, _ := entry["arch"].(string)
			rpmIndex[pkgKey{name, version, arch}] = entry
		}
	}

	seen := map[pkgKey]bool{}
	result := map[string][]map[string]any{}
	for name, entries := range pkgList {
		for _, entry := range entries {
			version, _ := entry["version"].(string)
			arch, _ := entry["arch"].(string)
			key := pkgKey{name, version, arch}
			seen[key] = true

			if rpmData, ok := rpmIndex[key]; ok {
				for k, v := range rpmData {
					if _, exists := entry[k]; !exists {
						entry[k] = v
					}
				}
			} else {
				logging.External.Warn().Msgf(
					"Package %s-%s.%s found in dnf/yum but missing in rpm/package-data",
					name, version, arch)
			}
			result[name] = append(result[name], entry)
		}
	}

	for name, entries := range rpmPkgs {
		for _, entry := range entries {
			version, _ := entry["version"].(string)
			arch, _ := entry["arch"].(string)
			if !seen[pkgKey{name, version, arch}] {
				logging.External.Debug().Msgf(
					"Package %s-%s.%s found in rpm/package-data but missing in dnf/yum list",
					name, version, arch)
			}
		}
	}
	return result
}

// PackagesPlugin validates installed RPM packages. Rule keys are package
// name patterns; the package_* operators compare EVR strings.
type PackagesPlugin struct{}

func (p *PackagesPlugin) Name() string { return "packages" }

func (p *PackagesPlugin) Run(rules map[string]any, basePath string) []Result {
	packages := mergePkgData(getRPMsInstalled(basePath), getPkgsInstalled(basePath))

	var results []Result
	for pattern, rule := range rules {
		var matched []map[string]any
		for name, entries := range packages {
			if fnMatch(pattern, name) {
				matched = append(matched, entries...)
			}
		}

		opts := &engine.Options{PluginOps: packageOps}
		if len(matched) == 0 {
			dummy := map[string]any{"exists": false}
			context := "PACKAGE " + pattern + " (not installed)"
			results = append(results, evaluate(dummy, rule, pattern, context, opts))
			continue
		}

		reqAttrs := engine.RequiredAttributes(rule)
		for _, entry := range matched {
			filtered := map[string]any{}
			for _, k := range reqAttrs {
				if v, ok := entry[k]; ok {
					filtered[k] = v
				}
			}
			context := fmt.Sprintf("PACKAGE %v %v", entry["name"], entry["version"])
			results = append(results, evaluate(filtered, rule, pattern, context, opts))
		}
	}
	return results
}
