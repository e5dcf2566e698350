// pkg/oscheck/plugins/systemd_test.go

package plugins

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleUnitListing = `atd.service       loaded active   running Job spooling tools
chronyd.service   loaded active   running NTP client/server
firewalld.service loaded inactive dead    firewalld - dynamic firewall daemon
kdump.service     loaded active   exited  Crash recovery kernel arming
`

func TestSystemdCollectorParse(t *testing.T) {
	c := NewSystemdCollector("/")
	c.parseUnitOutput(sampleUnitListing)

	require.Len(t, c.UnitAttrs, 4)

	chronyd := c.UnitAttrs["chronyd.service"]
	assert.Equal(t, "loaded", chronyd["load"])
	assert.Equal(t, "active", chronyd["active"])
	assert.Equal(t, "running", chronyd["sub"])
	assert.Equal(t, "active/running", chronyd["state"])
	assert.Equal(t, "NTP client/server", chronyd["description"])
	assert.Equal(t, int64(1), chronyd["exists"])
}

func TestSystemdCollectorSosreport(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{
		"sos_commands/systemd/systemctl_list-units_--all": sampleUnitListing,
	})

	c := NewSystemdCollector(base)
	c.Collect()
	assert.Len(t, c.UnitAttrs, 4)
}

func TestSystemdCollectorUnitFiles(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{
		"sos_commands/systemd/systemctl_list-units_--all": sampleUnitListing,
		"sos_commands/systemd/systemctl_list-unit-files": "chronyd.service enabled\n" +
			"firewalld.service disabled\n" +
			"rescue.service    static\n",
	})

	c := NewSystemdCollector(base)
	c.Collect()

	assert.Equal(t, "enabled", c.UnitAttrs["chronyd.service"]["enabled"])
	assert.Equal(t, "disabled", c.UnitAttrs["firewalld.service"]["enabled"])
	// units known only from unit files still get a stub entry
	assert.Equal(t, "static", c.UnitAttrs["rescue.service"]["enabled"])
	assert.Equal(t, int64(1), c.UnitAttrs["rescue.service"]["exists"])
}

func TestSystemdCollectorLive(t *testing.T) {
	useFakeExecutor(t, map[string]string{"systemctl": sampleUnitListing})

	c := NewSystemdCollector("/")
	c.Collect()
	assert.Contains(t, c.UnitNames(), "kdump.service")
}

func TestSystemdPluginRun(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{
		"sos_commands/systemd/systemctl_list-units_--all": sampleUnitListing,
	})

	var rules map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"chronyd.service": {"active": "active", "sub": "running"},
		"firewalld.service": {"active": "inactive"},
		"kdump.service": {"state": "active/running"},
		"telnet.socket": {"exists": 0}
	}`), &rules))

	results := (&SystemdPlugin{}).Run(rules, base)
	assert.Len(t, results, 4)
	assert.Equal(t, 1, Fails(results))

	for _, r := range results {
		if !r.Passed {
			// kdump is active/exited, not active/running
			assert.Equal(t, "SYSTEMD UNIT kdump.service", r.Context)
		}
	}
}
