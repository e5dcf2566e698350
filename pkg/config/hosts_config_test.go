// pkg/config/hosts_config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHostsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hosts.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromFileDefaultsAndGroups(t *testing.T) {
	path := writeHostsFile(t, `# inventory
[defaults]
user = opc
port = 2222
parallel_connections = 3
rules_file = /etc/oled/oscheck/rules/custom.json

[db]
db1.example.com
db2.example.com user=root port=22

[web]
web1.example.com rules=/tmp/web-rules.json
`)

	hc := NewHostsConfig()
	require.NoError(t, hc.LoadFromFile(path))

	assert.Equal(t, "opc", hc.Defaults.User)
	assert.Equal(t, "2222", hc.Defaults.Port)
	assert.Equal(t, 3, hc.Defaults.ParallelConnections)

	all := hc.GetAllHosts()
	require.Len(t, all, 3)

	// Defaults flow into hosts that do not override them.
	db1, ok := hc.GetHost("db1.example.com")
	require.True(t, ok)
	assert.Equal(t, "opc", db1.User)
	assert.Equal(t, "2222", db1.Port)
	assert.Equal(t, "/etc/oled/oscheck/rules/custom.json", db1.RulesFile)

	// Per-host settings win.
	db2, ok := hc.GetHost("db2.example.com")
	require.True(t, ok)
	assert.Equal(t, "root", db2.User)
	assert.Equal(t, "22", db2.Port)

	web1, ok := hc.GetHost("web1.example.com")
	require.True(t, ok)
	assert.Equal(t, "/tmp/web-rules.json", web1.RulesFile)

	assert.Len(t, hc.GetHostsByGroup("db"), 2)
	assert.Len(t, hc.GetHostsByGroup("web"), 1)
	assert.Empty(t, hc.GetHostsByGroup("missing"))
}

func TestLoadFromFileBuiltinDefaults(t *testing.T) {
	path := writeHostsFile(t, "host1\n")

	hc := NewHostsConfig()
	require.NoError(t, hc.LoadFromFile(path))

	host, ok := hc.GetHost("host1")
	require.True(t, ok)
	assert.Equal(t, "root", host.User)
	assert.Equal(t, "22", host.Port)
	assert.Equal(t, 5, hc.Defaults.ParallelConnections)
}

func TestLoadFromFileMissing(t *testing.T) {
	hc := NewHostsConfig()
	err := hc.LoadFromFile(filepath.Join(t.TempDir(), "nope.ini"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open hosts file")
}

func TestAllVarsSectionActsAsDefaults(t *testing.T) {
	path := writeHostsFile(t, `[all:vars]
ssh_user = admin

[hosts]
h1
`)

	hc := NewHostsConfig()
	require.NoError(t, hc.LoadFromFile(path))

	h1, ok := hc.GetHost("h1")
	require.True(t, ok)
	assert.Equal(t, "admin", h1.User)
}
