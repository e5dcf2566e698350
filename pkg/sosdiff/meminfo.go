// pkg/sosdiff/meminfo.go

package sosdiff

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
)

// meminfoKeys are the fields worth comparing between hosts; the rest are
// snapshots of moment-to-moment state.
var meminfoKeys = []string{
	"MemTotal",
	"SwapTotal",
	"CommitLimit",
	"VmallocTotal",
	"Hugepagesize",
	"HugePages_Total",
	"Hugetlb",
	"DirectMap4k",
	"DirectMap2M",
	"DirectMap1G",
}

type meminfoDiffer struct{}

func (d *meminfoDiffer) Name() string { return "meminfo" }

// Diff compares the stable /proc/meminfo fields with a kB delta column.
func (d *meminfoDiffer) Diff(dir1, dir2 string, opts Options) error {
	m1 := parseMeminfoKB(dir1)
	m2 := parseMeminfoKB(dir2)

	w := tabwriter.NewWriter(opts.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "KEY\t%s\t%s\tDIFF (kB)\n", dir1, dir2)

	differing := 0
	for _, key := range meminfoKeys {
		v1, ok1 := m1[key]
		v2, ok2 := m2[key]
		if !ok1 && !ok2 {
			continue
		}

		left, right, diff := missingMarker, missingMarker, "-"
		if ok1 {
			left = strconv.FormatInt(v1, 10)
		}
		if ok2 {
			right = strconv.FormatInt(v2, 10)
		}
		if ok1 && ok2 {
			diff = strconv.FormatInt(v2-v1, 10)
		}

		if left == right {
			if !opts.Detail {
				continue
			}
		} else {
			differing++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", key, left, right, diff)
	}
	w.Flush()

	if differing == 0 {
		fmt.Fprintln(opts.Out, "no differences")
	}
	return nil
}

func parseMeminfoKB(dir string) map[string]int64 {
	content, ok := readSosFile(dir, "proc/meminfo")
	if !ok {
		return nil
	}

	result := make(map[string]int64)
	for _, line := range strings.Split(content, "\n") {
		key, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		if value, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
			result[strings.TrimSpace(key)] = value
		}
	}
	return result
}
