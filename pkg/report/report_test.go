// pkg/report/report_test.go

package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passCheck(name string, category Category) *Check {
	return &Check{
		ID:       name,
		Name:     name,
		Category: category,
		Result: Result{
			Status:    StatusOK,
			Message:   name + " passed all checks",
			ResultKey: ResultKeyNoChange,
		},
	}
}

func failCheck(name string, category Category) *Check {
	return &Check{
		ID:       name,
		Name:     name,
		Category: category,
		Result: Result{
			Status:          StatusCritical,
			Message:         name + " failed validation",
			ResultKey:       ResultKeyRequired,
			Detail:          "expected 1, found 0",
			Recommendations: []string{"Set the tunable and rerun the check."},
		},
	}
}

func TestPluginCategory(t *testing.T) {
	assert.Equal(t, CategoryKernelTunables, PluginCategory("sysctl"))
	assert.Equal(t, CategoryServices, PluginCategory("systemd"))
	assert.Equal(t, CategoryPackages, PluginCategory("packages"))
	assert.Equal(t, CategorySystemInfo, PluginCategory("anything-else"))
}

func TestFailCount(t *testing.T) {
	r := NewAsciiDocReport(filepath.Join(t.TempDir(), "r.adoc"))
	r.AddCheck(passCheck("sysctl kernel.panic", CategoryKernelTunables))
	r.AddCheck(failCheck("mounts /boot", CategoryFilesystems))
	r.AddCheck(&Check{
		Name: "svc", Category: CategoryServices,
		Result: Result{Status: StatusWarning, ResultKey: ResultKeyRecommended},
	})

	assert.Equal(t, 2, r.FailCount())
}

func TestGenerateReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "oscheck.adoc")
	r := NewAsciiDocReport(path)
	r.Initialize("db1.example.com", "OS Health Check Report")
	r.AddCheck(passCheck("sysctl vm.swappiness", CategoryKernelTunables))
	r.AddCheck(failCheck("packages kernel-uek", CategoryPackages))

	written, err := r.Generate()
	require.NoError(t, err)
	assert.Equal(t, path, written)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, "= OS Health Check Report")
	assert.Contains(t, text, "Host: db1.example.com")
	assert.Contains(t, text, "= Summary")
	assert.Contains(t, text, "# Kernel Tunables")
	assert.Contains(t, text, "# Packages")
	assert.Contains(t, text, "== packages kernel-uek")
	assert.Contains(t, text, "Changes Required")
	assert.Contains(t, text, "expected 1, found 0")
	assert.Contains(t, text, "Set the tunable and rerun the check.")
	// Failure details land in a source block.
	assert.Contains(t, text, "[source, text]")
}

func TestSummaryReport(t *testing.T) {
	dir := t.TempDir()

	good := NewAsciiDocReport(filepath.Join(dir, "good.adoc"))
	good.Initialize("web1", "r")
	good.AddCheck(passCheck("sysctl kernel.panic", CategoryKernelTunables))

	bad := NewAsciiDocReport(filepath.Join(dir, "bad.adoc"))
	bad.Initialize("db1", "r")
	bad.AddCheck(failCheck("mounts /boot", CategoryFilesystems))

	s := NewSummaryReport(dir)
	s.AddHostReport("web1", good)
	s.AddHostReport("db1", bad)

	path, err := s.Generate()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "summary.adoc"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, "= Multi-Host Health Check Summary")
	assert.Contains(t, text, "| web1")
	assert.Contains(t, text, "== Failures on db1")
	assert.Contains(t, text, "mounts /boot: mounts /boot failed validation")
	assert.NotContains(t, text, "Failures on web1")
}
