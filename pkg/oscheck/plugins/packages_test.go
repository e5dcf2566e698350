// pkg/oscheck/plugins/packages_test.go

package plugins

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRpmvercmp(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "2.0", -1},
		{"2.0", "1.0", 1},
		{"1.0.1", "1.0", 1},
		{"2.0.1", "2.0.1a", -1},
		{"5.14", "5.4", 1},
		{"1.05", "1.5", 0},
		{"10", "9", 1},
		{"fc4", "fc3", 1},
		{"alpha", "beta", -1},
		// numeric segments always beat alpha segments
		{"2a", "2.0", -1},
		{"1.0", "1.fc4", 1},
		// tilde sorts before everything, including end of string
		{"1.0~rc1", "1.0", -1},
		{"1.0~rc1", "1.0~rc2", -1},
		{"1.0~rc1~git123", "1.0~rc1", -1},
		// caret sorts after end of string but before other content
		{"1.0^", "1.0", 1},
		{"1.0^git1", "1.0", 1},
		{"1.0^git1", "1.01", -1},
		{"1.0^20160101", "1.0.1", -1},
		// separators only split segments
		{"1.0.0", "1_0_0", 0},
		{"2.0.1", "2-0-1", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rpmvercmp(tt.a, tt.b), "rpmvercmp(%q, %q)", tt.a, tt.b)
		assert.Equal(t, -tt.want, rpmvercmp(tt.b, tt.a), "rpmvercmp(%q, %q)", tt.b, tt.a)
	}
}

func TestEVRToTuple(t *testing.T) {
	tests := []struct {
		evr                     string
		epoch, version, release string
	}{
		{"1.2.3", "", "1.2.3", ""},
		{"1.2.3-4.el8", "", "1.2.3", "4.el8"},
		{"2:1.2.3-4.el8", "2", "1.2.3", "4.el8"},
		{"2:1.2.3", "2", "1.2.3", ""},
	}
	for _, tt := range tests {
		e, v, r := EVRToTuple(tt.evr)
		assert.Equal(t, tt.epoch, e, tt.evr)
		assert.Equal(t, tt.version, v, tt.evr)
		assert.Equal(t, tt.release, r, tt.evr)
	}
}

func TestEVRCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.3-4", "1.2.3-4", 0},
		{"1.2.3-5", "1.2.3-4", 1},
		{"1.2.4-1", "1.2.3-9", 1},
		// a newer epoch beats any version
		{"1:1.0-1", "2.0-1", 1},
		{"0:2.0-1", "2.0-1", 0},
		{"5.4.17-2136.318.7.1.el8uek", "5.4.17-2136", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EVRCompare(tt.a, tt.b), "EVRCompare(%q, %q)", tt.a, tt.b)
	}
}

func TestPackageOps(t *testing.T) {
	ge := packageOps["package_ge"]
	ok, err := ge("5.4.17-2136.318.7.1.el8uek", "5.4.17-2136")
	require.NoError(t, err)
	assert.True(t, ok)

	lt := packageOps["package_lt"]
	ok, err = lt("4.4.20-4.el8", "5.0")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = ge(int64(5), "5.0")
	assert.Error(t, err)
}

func TestParseRPMName(t *testing.T) {
	name, version, release, arch, ok := parseRPMName("kernel-uek-5.4.17-2136.318.7.1.el8uek.x86_64")
	require.True(t, ok)
	assert.Equal(t, "kernel-uek", name)
	assert.Equal(t, "5.4.17", version)
	assert.Equal(t, "2136.318.7.1.el8uek", release)
	assert.Equal(t, "x86_64", arch)

	_, _, _, _, ok = parseRPMName("garbage")
	assert.False(t, ok)
}

const samplePackageData = "bash-4.4.20-4.el8_6.x86_64\tTue 14 May 2024\t1715700000\tOracle America\tx86-ol8-builder-01.us.oracle.com\tRSA/SHA256, Tue 19 Apr 2022\tKey ID 72f97b74ec551f03\n" +
	"kernel-uek-5.4.17-2136.318.7.1.el8uek.x86_64\tTue 14 May 2024\t1715700100\tOracle America\tx86-ol8-builder-02.us.oracle.com\tRSA/SHA256, Mon 15 Apr 2024\tKey ID 72f97b74ec551f03\n" +
	"kernel-uek-5.4.17-2136.320.1.el8uek.x86_64\tTue 21 May 2024\t1716300000\tOracle America\tx86-ol8-builder-02.us.oracle.com\tRSA/SHA256, Mon 13 May 2024\tKey ID 72f97b74ec551f03\n" +
	"not a package line\n"

func TestParsePackageData(t *testing.T) {
	packages := parsePackageData(samplePackageData)
	require.Len(t, packages, 2)

	require.Len(t, packages["bash"], 1)
	bash := packages["bash"][0]
	assert.Equal(t, "4.4.20-4.el8_6", bash["version"])
	assert.Equal(t, "4.4.20", bash["ver"])
	assert.Equal(t, "x86_64", bash["arch"])
	assert.Equal(t, "Oracle America", bash["vendor"])
	assert.Equal(t, true, bash["exists"])

	// both installed kernels are kept
	assert.Len(t, packages["kernel-uek"], 2)
}

const sampleDnfList = `Installed Packages
bash.x86_64                 4.4.20-4.el8_6                 @ol8_baseos_latest
kernel-uek.x86_64           5.4.17-2136.318.7.1.el8uek     @ol8_UEKR6
kernel-uek.x86_64           5.4.17-2136.320.1.el8uek       @ol8_UEKR6
grub2-tools.x86_64          1:2.02-142.0.3.el8             @ol8_baseos_latest
`

func TestParsePkgsInstalled(t *testing.T) {
	packages := parsePkgsInstalled(sampleDnfList)
	require.Len(t, packages, 3)

	require.Len(t, packages["grub2-tools"], 1)
	grub := packages["grub2-tools"][0]
	assert.Equal(t, "1", grub["epoch"])
	assert.Equal(t, "2.02-142.0.3.el8", grub["version"])
	assert.Equal(t, "1:2.02-142.0.3.el8", grub["evr"])
	assert.Equal(t, "@ol8_baseos_latest", grub["repo"])

	assert.Len(t, packages["kernel-uek"], 2)
}

func TestParseInstalledRPMs(t *testing.T) {
	content := `bash-4.4.20-4.el8_6.x86_64                      Tue 19 Apr 2022 10:32:51 AM UTC
kernel-uek-5.4.17-2136.318.7.1.el8uek.x86_64    Mon 13 May 2024 02:11:04 PM UTC
gpg-pubkey-ec551f03-53619141
`
	// the dotless gpg-pubkey line does not parse as name-version-release.arch
	packages := parseInstalledRPMs(content)
	require.Len(t, packages, 2)

	bash := packages["bash"][0]
	assert.Equal(t, "4.4.20-4.el8_6", bash["version"])
	assert.Equal(t, "Tue 19 Apr 2022 10:32:51 AM UTC", bash["installdate"])
}

func TestGetRPMsInstalledFallback(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{
		"installed-rpms": "bash-4.4.20-4.el8_6.x86_64  Tue 19 Apr 2022\n",
	})

	packages := getRPMsInstalled(base)
	require.Len(t, packages, 1)
	assert.Equal(t, "bash", packages["bash"][0]["name"])
}

func TestMergePkgData(t *testing.T) {
	rpmPkgs := parsePackageData(samplePackageData)
	pkgList := parsePkgsInstalled(sampleDnfList)

	merged := mergePkgData(rpmPkgs, pkgList)

	require.Len(t, merged["bash"], 1)
	bash := merged["bash"][0]
	// dnf fields and rpm query fields are joined on (name, version, arch)
	assert.Equal(t, "@ol8_baseos_latest", bash["repo"])
	assert.Equal(t, "Oracle America", bash["vendor"])

	// grub2-tools only appears in the dnf listing and survives unmerged
	require.Len(t, merged["grub2-tools"], 1)
	assert.Nil(t, merged["grub2-tools"][0]["vendor"])
}

func TestPackagesPluginRun(t *testing.T) {
	useFakeExecutor(t, map[string]string{
		"rpm": samplePackageData,
		"dnf": sampleDnfList,
	})

	var rules map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"kernel-uek": {"version": {"package_ge": "5.4.17-2136"}},
		"bash": {"version": {"package_ge": "5.0"}},
		"telnet-server": {"exists": false}
	}`), &rules))

	results := (&PackagesPlugin{}).Run(rules, "/")

	// two kernel-uek entries, one bash, one dummy for telnet-server
	assert.Len(t, results, 4)
	assert.Equal(t, 1, Fails(results))

	for _, r := range results {
		if !r.Passed {
			assert.Contains(t, r.Context, "bash")
		}
	}
}
