// pkg/sosdiff/sosdiff.go

// Package sosdiff compares two extracted sosreport directories and prints
// the configuration that differs between them.
package sosdiff

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// missingMarker is shown when a key exists in only one report.
const missingMarker = "MISSING"

// Options control a diff run.
type Options struct {
	// Detail includes equal rows, not just differing ones.
	Detail bool
	// Override continues past a kernel release/arch mismatch.
	Override bool
	Out      io.Writer
}

// Differ compares one aspect of two sosreports.
type Differ interface {
	Name() string
	Diff(dir1, dir2 string, opts Options) error
}

// All returns the registered differs: unames always runs first so a
// mismatched pair aborts before anything else prints, the rest sorted by
// name.
func All() []Differ {
	rest := []Differ{
		&cmdlineDiffer{},
		&meminfoDiffer{},
		&mountsDiffer{},
		&rpmsDiffer{},
		&sysctlDiffer{},
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Name() < rest[j].Name() })
	return append([]Differ{&unamesDiffer{}}, rest...)
}

// Run validates both directories look like sosreports and runs every
// differ. Returns an error when validation fails or unames mismatch
// without override.
func Run(dir1, dir2 string, opts Options) error {
	for _, dir := range []string{dir1, dir2} {
		if _, err := readUname(dir); err != nil {
			return fmt.Errorf("%s does not look like an extracted sosreport: %v", dir, err)
		}
	}

	for _, d := range All() {
		fmt.Fprintf(opts.Out, "==== %s ====\n", d.Name())
		if err := d.Diff(dir1, dir2, opts); err != nil {
			return err
		}
		fmt.Fprintln(opts.Out)
	}
	return nil
}

// row is one table line: a key and its value in each report.
type row struct {
	Key   string
	Left  string
	Right string
}

func (r row) equal() bool { return r.Left == r.Right }

// diffMaps merges two key/value maps into sorted rows, marking keys
// present on only one side.
func diffMaps(left, right map[string]string) []row {
	keys := make(map[string]struct{})
	for k := range left {
		keys[k] = struct{}{}
	}
	for k := range right {
		keys[k] = struct{}{}
	}

	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	rows := make([]row, 0, len(sorted))
	for _, k := range sorted {
		l, lok := left[k]
		r, rok := right[k]
		if !lok {
			l = missingMarker
		}
		if !rok {
			r = missingMarker
		}
		rows = append(rows, row{Key: k, Left: l, Right: r})
	}
	return rows
}

// printRows writes the rows as an aligned table, skipping equal rows
// unless detail is requested. Returns how many rows differed.
func printRows(out io.Writer, rows []row, detail bool, columns ...string) int {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(columns, "\t"))

	differing := 0
	for _, r := range rows {
		if r.equal() {
			if !detail {
				continue
			}
		} else {
			differing++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Key, r.Left, r.Right)
	}
	w.Flush()

	if differing == 0 {
		fmt.Fprintln(out, "no differences")
	}
	return differing
}

// readSosFile reads a file from a sosreport, logging at debug level when
// it is absent.
func readSosFile(dir, relPath string) (string, bool) {
	content, err := utils.ReadFileUnder(dir, relPath)
	if err != nil {
		logging.Internal.Debug().Msgf("no %s in %s", relPath, dir)
		return "", false
	}
	return content, true
}
