// pkg/sosdiff/mounts.go

package sosdiff

import (
	"fmt"
	"sort"
	"strings"
)

// sosMount is one /proc/mounts entry from a sosreport.
type sosMount struct {
	Device  string
	Fstype  string
	Options string
}

type mountsDiffer struct{}

func (d *mountsDiffer) Name() string { return "mounts" }

// Diff runs in two phases: first mountpoints present in only one report,
// then option differences on the mountpoints both share.
func (d *mountsDiffer) Diff(dir1, dir2 string, opts Options) error {
	m1 := parseSosMounts(dir1)
	m2 := parseSosMounts(dir2)

	present := func(m map[string]sosMount) map[string]string {
		out := make(map[string]string, len(m))
		for mp := range m {
			out[mp] = "mounted"
		}
		return out
	}
	fmt.Fprintln(opts.Out, "-- mountpoints --")
	printRows(opts.Out, diffMaps(present(m1), present(m2)), opts.Detail, "MOUNTPOINT", dir1, dir2)

	var common []string
	for mp := range m1 {
		if _, ok := m2[mp]; ok {
			common = append(common, mp)
		}
	}
	sort.Strings(common)

	var rows []row
	for _, mp := range common {
		a, b := m1[mp], m2[mp]
		rows = append(rows, row{
			Key:   mp,
			Left:  fmt.Sprintf("%s %s %s", a.Device, a.Fstype, a.Options),
			Right: fmt.Sprintf("%s %s %s", b.Device, b.Fstype, b.Options),
		})
	}
	fmt.Fprintln(opts.Out, "-- options --")
	printRows(opts.Out, rows, opts.Detail, "MOUNTPOINT", dir1, dir2)
	return nil
}

// parseSosMounts reads proc/mounts keyed by mountpoint, with the option
// list sorted so ordering differences do not read as changes.
func parseSosMounts(dir string) map[string]sosMount {
	content, ok := readSosFile(dir, "proc/mounts")
	if !ok {
		return nil
	}

	result := make(map[string]sosMount)
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		options := strings.Split(fields[3], ",")
		sort.Strings(options)
		result[fields[1]] = sosMount{
			Device:  fields[0],
			Fstype:  fields[2],
			Options: strings.Join(options, ","),
		}
	}
	return result
}
