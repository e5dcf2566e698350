// pkg/utils/files_test.go

package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFileUnder(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "proc"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "proc", "cmdline"),
		[]byte("root=/dev/sda1 ro quiet\n"), 0644))

	content, err := ReadFileUnder(base, "/proc/cmdline")
	require.NoError(t, err)
	assert.Equal(t, "root=/dev/sda1 ro quiet\n", content)

	// The leading slash is optional.
	content, err = ReadFileUnder(base, "proc/cmdline")
	require.NoError(t, err)
	assert.Equal(t, "root=/dev/sda1 ro quiet\n", content)

	_, err = ReadFileUnder(base, "/proc/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to read")
}

func TestListFilesUnder(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "etc", "sysctl.d")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "subdir"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "99-oracle.conf"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0644))

	files := ListFilesUnder(base, "/etc/sysctl.d", ".conf")
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "99-oracle.conf"), files[0])

	// No suffix filter returns regular files only.
	files = ListFilesUnder(base, "/etc/sysctl.d", "")
	assert.Len(t, files, 2)

	assert.Nil(t, ListFilesUnder(base, "/no/such/dir", ""))
}

func TestParseKVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kdump")
	content := `# kdump settings
KDUMP_KERNELVER="5.15.0-200.el9uek.x86_64"
KDUMP_COMMANDLINE_APPEND=irqpoll nr_cpus=1

bareflag
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	kv, err := ParseKVFile(path, "=", false)
	require.NoError(t, err)
	assert.Equal(t, "5.15.0-200.el9uek.x86_64", kv["KDUMP_KERNELVER"])
	assert.Equal(t, "irqpoll nr_cpus=1", kv["KDUMP_COMMANDLINE_APPEND"])
	assert.NotContains(t, kv, "bareflag")

	kv, err = ParseKVFile(path, "=", true)
	require.NoError(t, err)
	assert.Equal(t, "true", kv["bareflag"])

	_, err = ParseKVFile(filepath.Join(t.TempDir(), "missing"), "=", false)
	require.Error(t, err)
}

func TestParseKVString(t *testing.T) {
	kv := ParseKVString("root=/dev/sda1 ro console=\"ttyS0\" quiet", "=", true)
	assert.Equal(t, "/dev/sda1", kv["root"])
	assert.Equal(t, "ttyS0", kv["console"])
	assert.Equal(t, "true", kv["ro"])
	assert.Equal(t, "true", kv["quiet"])

	kv = ParseKVString("root=/dev/sda1 ro", "=", false)
	assert.NotContains(t, kv, "ro")
}

func TestHashStringAndFile(t *testing.T) {
	// sha256 of "hello\n".
	const want = "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03"
	assert.Equal(t, want, HashString("hello\n"))

	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0644))
	got, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = HashFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestContentEqual(t *testing.T) {
	assert.True(t, ContentEqual("a\nb\n", "a\nb"))
	assert.True(t, ContentEqual("a\r\nb\r\n", "a\nb"))
	assert.False(t, ContentEqual("a\nb", "a\nc"))
	assert.False(t, ContentEqual("a\n\nb", "a\nb"))
}
