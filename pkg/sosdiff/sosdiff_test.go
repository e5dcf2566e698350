// pkg/sosdiff/sosdiff_test.go

package sosdiff

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSosreport lays out a minimal extracted sosreport.
func writeSosreport(t *testing.T, files map[string]string) string {
	t.Helper()
	base := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(base, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return base
}

const unameA = "Linux host-a 5.15.0-200.el9uek.x86_64 #1 SMP Tue Mar 5 10:00:00 PST 2024 x86_64 x86_64 x86_64 GNU/Linux\n"
const unameB = "Linux host-b 5.15.0-200.el9uek.x86_64 #1 SMP Tue Mar 5 10:00:00 PST 2024 x86_64 x86_64 x86_64 GNU/Linux\n"
const unameOld = "Linux host-c 5.4.17-2136.318.7.1.el8uek.x86_64 #2 SMP Mon Jun 5 12:00:00 PDT 2023 x86_64 x86_64 x86_64 GNU/Linux\n"

func TestReadUname(t *testing.T) {
	dir := writeSosreport(t, map[string]string{
		"sos_commands/kernel/uname_-a": unameA,
	})

	info, err := readUname(dir)
	require.NoError(t, err)
	assert.Equal(t, "5.15.0-200.el9uek.x86_64", info.Release)
	assert.Equal(t, "x86_64", info.Arch)

	// Legacy top-level uname file works too.
	dir = writeSosreport(t, map[string]string{"uname": unameOld})
	info, err = readUname(dir)
	require.NoError(t, err)
	assert.Equal(t, "5.4.17-2136.318.7.1.el8uek.x86_64", info.Release)

	_, err = readUname(t.TempDir())
	require.Error(t, err)
}

func TestRunRejectsNonSosreport(t *testing.T) {
	dir := writeSosreport(t, map[string]string{
		"sos_commands/kernel/uname_-a": unameA,
	})

	var out strings.Builder
	err := Run(dir, t.TempDir(), Options{Out: &out})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not look like an extracted sosreport")
}

func TestUnamesMismatchAbortsWithoutOverride(t *testing.T) {
	dir1 := writeSosreport(t, map[string]string{"sos_commands/kernel/uname_-a": unameA})
	dir2 := writeSosreport(t, map[string]string{"sos_commands/kernel/uname_-a": unameOld})

	var out strings.Builder
	err := Run(dir1, dir2, Options{Out: &out})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--override")

	out.Reset()
	require.NoError(t, Run(dir1, dir2, Options{Out: &out, Override: true}))
	assert.Contains(t, out.String(), "==== rpms ====")
}

func TestSysctlDiffer(t *testing.T) {
	dir1 := writeSosreport(t, map[string]string{
		"sos_commands/kernel/uname_-a": unameA,
		"sos_commands/kernel/sysctl_-a": `kernel.panic = 10
kernel.hostname = host-a
kernel.random.boot_id = aaaa-bbbb
vm.swappiness = 10
fs.file-nr = 4352	0	9223372036854775807
`,
	})
	dir2 := writeSosreport(t, map[string]string{
		"sos_commands/kernel/uname_-a": unameB,
		"sos_commands/kernel/sysctl_-a": `kernel.panic = 0
kernel.hostname = host-b
kernel.random.boot_id = cccc-dddd
vm.swappiness = 10
fs.file-nr = 5120	0	9223372036854775807
`,
	})

	var out strings.Builder
	require.NoError(t, (&sysctlDiffer{}).Diff(dir1, dir2, Options{Out: &out}))
	text := out.String()

	assert.Contains(t, text, "kernel.panic")
	// Excluded and equal keys stay out.
	assert.NotContains(t, text, "kernel.hostname")
	assert.NotContains(t, text, "kernel.random.boot_id")
	assert.NotContains(t, text, "fs.file-nr")
	assert.NotContains(t, text, "vm.swappiness")
}

func TestSysctlDifferDetailIncludesEqualRows(t *testing.T) {
	dir1 := writeSosreport(t, map[string]string{
		"sos_commands/kernel/sysctl_-a": "vm.swappiness = 10\n",
	})
	dir2 := writeSosreport(t, map[string]string{
		"sos_commands/kernel/sysctl_-a": "vm.swappiness = 10\n",
	})

	var out strings.Builder
	require.NoError(t, (&sysctlDiffer{}).Diff(dir1, dir2, Options{Out: &out, Detail: true}))
	assert.Contains(t, out.String(), "vm.swappiness")
	assert.Contains(t, out.String(), "no differences")
}

func TestCmdlineDiffer(t *testing.T) {
	dir1 := writeSosreport(t, map[string]string{
		"proc/cmdline": "BOOT_IMAGE=/vmlinuz root=/dev/sda1 ro quiet crashkernel=auto\n",
	})
	dir2 := writeSosreport(t, map[string]string{
		"proc/cmdline": "BOOT_IMAGE=/vmlinuz root=/dev/sda1 ro crashkernel=512M\n",
	})

	var out strings.Builder
	require.NoError(t, (&cmdlineDiffer{}).Diff(dir1, dir2, Options{Out: &out}))
	text := out.String()

	assert.Contains(t, text, "crashkernel")
	assert.Contains(t, text, "auto")
	assert.Contains(t, text, "512M")
	// quiet only set on one side.
	assert.Regexp(t, `quiet\s+YES\s+MISSING`, text)
	assert.NotContains(t, text, "BOOT_IMAGE")
}

func TestMeminfoDiffer(t *testing.T) {
	dir1 := writeSosreport(t, map[string]string{
		"proc/meminfo": "MemTotal: 32614624 kB\nMemFree: 123 kB\nSwapTotal: 8388604 kB\nHugePages_Total:       0\n",
	})
	dir2 := writeSosreport(t, map[string]string{
		"proc/meminfo": "MemTotal: 65229248 kB\nMemFree: 456 kB\nSwapTotal: 8388604 kB\nHugePages_Total:     512\n",
	})

	var out strings.Builder
	require.NoError(t, (&meminfoDiffer{}).Diff(dir1, dir2, Options{Out: &out}))
	text := out.String()

	assert.Contains(t, text, "MemTotal")
	assert.Contains(t, text, "32614624")
	// Delta column.
	assert.Contains(t, text, "32614624")
	assert.Regexp(t, `MemTotal\s+32614624\s+65229248\s+32614624`, text)
	// MemFree is transient state, not in the compared key set.
	assert.NotContains(t, text, "MemFree")
	// Equal keys skipped without detail.
	assert.NotContains(t, text, "SwapTotal")
}

func TestMountsDiffer(t *testing.T) {
	dir1 := writeSosreport(t, map[string]string{
		"proc/mounts": `/dev/mapper/ol-root / xfs rw,relatime,attr2 0 0
/dev/sda1 /boot xfs rw,relatime 0 0
tmpfs /run tmpfs rw,nosuid,nodev 0 0
`,
	})
	dir2 := writeSosreport(t, map[string]string{
		"proc/mounts": `/dev/mapper/ol-root / xfs relatime,rw,attr2 0 0
/dev/sda1 /boot xfs ro,relatime 0 0
`,
	})

	var out strings.Builder
	require.NoError(t, (&mountsDiffer{}).Diff(dir1, dir2, Options{Out: &out}))
	text := out.String()

	// /run only mounted on one side.
	assert.Regexp(t, `/run\s+mounted\s+MISSING`, text)
	// /boot differs in options; / is equal once options are sorted.
	assert.Contains(t, text, "/boot")
	assert.Contains(t, text, "relatime,ro")
	assert.NotRegexp(t, `(?m)^/\s`, text)
}

func TestRpmsDiffer(t *testing.T) {
	dir1 := writeSosreport(t, map[string]string{
		"installed-rpms": `bash-4.4.20-4.el8.x86_64                  Mon Jan  1 10:00:00 2024
kernel-uek-5.4.17-2136.318.7.1.el8uek.x86_64  Mon Jan  1 10:00:00 2024
tmux-2.7-3.el8.x86_64                     Mon Jan  1 10:00:00 2024
`,
	})
	dir2 := writeSosreport(t, map[string]string{
		"installed-rpms": `bash-4.4.20-5.el8.x86_64                  Tue Feb  6 09:00:00 2024
kernel-uek-5.4.17-2136.318.7.1.el8uek.x86_64  Tue Feb  6 09:00:00 2024
`,
	})

	var out strings.Builder
	require.NoError(t, (&rpmsDiffer{}).Diff(dir1, dir2, Options{Out: &out}))
	text := out.String()

	assert.Regexp(t, `bash\s+4\.4\.20-4\.el8\.x86_64\s+4\.4\.20-5\.el8\.x86_64`, text)
	assert.Regexp(t, `tmux\s+2\.7-3\.el8\.x86_64\s+MISSING`, text)
	assert.NotContains(t, text, "kernel-uek")
	assert.Contains(t, text, "1 packages missing on one side, 1 at different versions")
}

func TestRunAllDiffersInOrder(t *testing.T) {
	files := map[string]string{
		"sos_commands/kernel/uname_-a":  unameA,
		"sos_commands/kernel/sysctl_-a": "kernel.panic = 10\n",
		"proc/cmdline":                  "root=/dev/sda1 ro\n",
		"proc/meminfo":                  "MemTotal: 1024 kB\n",
		"proc/mounts":                   "/dev/sda1 / xfs rw 0 0\n",
		"installed-rpms":                "bash-4.4.20-4.el8.x86_64\n",
	}
	dir1 := writeSosreport(t, files)
	dir2 := writeSosreport(t, files)

	var out strings.Builder
	require.NoError(t, Run(dir1, dir2, Options{Out: &out}))
	text := out.String()

	// unames first, the rest alphabetical.
	order := []string{"==== unames ====", "==== cmdline ====", "==== meminfo ====",
		"==== mounts ====", "==== rpms ====", "==== sysctl ===="}
	last := -1
	for _, marker := range order {
		idx := strings.Index(text, marker)
		require.GreaterOrEqual(t, idx, 0, marker)
		assert.Greater(t, idx, last)
		last = idx
	}
}
