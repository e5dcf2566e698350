// pkg/oscheck/plugins/files_test.go

package plugins

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

func TestNeedsContents(t *testing.T) {
	assert.True(t, needsContents([]string{"size", "file_contents"}))
	assert.True(t, needsContents([]string{"identical"}))
	assert.False(t, needsContents([]string{"size", "mode", "uid"}))
}

func TestGetFileAttrs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grub")
	require.NoError(t, os.WriteFile(path, []byte("GRUB_TIMEOUT=5\n"), 0o600))

	var fatal []string
	attrs := getFileAttrs(path, []string{"size", "mode", "file_contents"}, &fatal)
	require.NotNil(t, attrs)
	assert.Empty(t, fatal)

	assert.Equal(t, true, attrs["exists"])
	assert.Equal(t, int64(15), attrs["size"])
	assert.Equal(t, int64(0o600), attrs["mode"])
	assert.Equal(t, "GRUB_TIMEOUT=5\n", attrs["file_contents"])
	assert.NotNil(t, attrs["uid"])
	assert.NotNil(t, attrs["user"])
}

func TestGetFileAttrsMissing(t *testing.T) {
	var fatal []string
	attrs := getFileAttrs(filepath.Join(t.TempDir(), "nope"), nil, &fatal)
	assert.Equal(t, map[string]any{"exists": false}, attrs)
	assert.Empty(t, fatal)
}

func TestFilesPluginRejectsSosreport(t *testing.T) {
	results := (&FilesPlugin{}).Run(map[string]any{}, t.TempDir())
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
}

func TestFilesPluginRun(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "oled.conf")
	require.NoError(t, os.WriteFile(conf, []byte("enable=yes\n"), 0o644))

	rulesJSON := fmt.Sprintf(`{
		"%s": {
			"exists": true,
			"size": {"gt": 0},
			"mode": %d,
			"file_contents": {"identical": {"type": "sha256", "value": "%s"}}
		},
		"%s": {"exists": false}
	}`, conf, 0o644, utils.HashString("enable=yes\n"), filepath.Join(dir, "absent.conf"))

	var rules map[string]any
	require.NoError(t, json.Unmarshal([]byte(rulesJSON), &rules))

	results := (&FilesPlugin{}).Run(rules, "/")
	assert.Len(t, results, 2)
	assert.Equal(t, 0, Fails(results))
}

func TestFilesPluginGlobNoMatch(t *testing.T) {
	pattern := filepath.Join(t.TempDir(), "*.rules")
	rules := map[string]any{pattern: map[string]any{"exists": true}}

	results := (&FilesPlugin{}).Run(rules, "/")
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Contains(t, results[0].Failures[0], "No matching paths found")
}
