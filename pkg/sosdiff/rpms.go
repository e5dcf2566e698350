// pkg/sosdiff/rpms.go

package sosdiff

import (
	"fmt"
	"regexp"
	"strings"
)

// rpmSplitRE splits "name-version-release.arch" at the first hyphen that
// is followed by a digit, which is where the version starts.
var rpmSplitRE = regexp.MustCompile(`^(.*?)-(\d.*)$`)

type rpmsDiffer struct{}

func (d *rpmsDiffer) Name() string { return "rpms" }

// Diff compares installed package versions and summarizes how many are
// missing on either side versus at a different version.
func (d *rpmsDiffer) Diff(dir1, dir2 string, opts Options) error {
	p1 := parseSosRPMs(dir1)
	p2 := parseSosRPMs(dir2)

	rows := diffMaps(p1, p2)
	printRows(opts.Out, rows, opts.Detail, "PACKAGE", dir1, dir2)

	var missing, mismatched int
	for _, r := range rows {
		switch {
		case r.Left == missingMarker || r.Right == missingMarker:
			missing++
		case !r.equal():
			mismatched++
		}
	}
	fmt.Fprintf(opts.Out, "%d packages missing on one side, %d at different versions\n",
		missing, mismatched)
	return nil
}

// parseSosRPMs reads installed-rpms into a name to version map. Lines
// carry the package NVRA in the first field, sometimes followed by the
// install date.
func parseSosRPMs(dir string) map[string]string {
	content, ok := readSosFile(dir, "installed-rpms")
	if !ok {
		return nil
	}

	result := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		m := rpmSplitRE.FindStringSubmatch(fields[0])
		if m == nil {
			continue
		}
		result[m[1]] = m[2]
	}
	return result
}
