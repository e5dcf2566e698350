// pkg/sosdiff/cmdline.go

package sosdiff

import (
	"strings"

	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

type cmdlineDiffer struct{}

func (d *cmdlineDiffer) Name() string { return "cmdline" }

// Diff compares kernel command lines token by token: key=value tokens by
// their value, bare flags as YES/MISSING.
func (d *cmdlineDiffer) Diff(dir1, dir2 string, opts Options) error {
	rows := diffMaps(parseCmdline(dir1), parseCmdline(dir2))
	printRows(opts.Out, rows, opts.Detail, "PARAMETER", dir1, dir2)
	return nil
}

func parseCmdline(dir string) map[string]string {
	content, ok := readSosFile(dir, "proc/cmdline")
	if !ok {
		return nil
	}

	result := make(map[string]string)
	for key, value := range utils.ParseKVString(strings.TrimSpace(content), "=", true) {
		if value == "true" {
			value = "YES"
		}
		result[key] = value
	}
	return result
}
