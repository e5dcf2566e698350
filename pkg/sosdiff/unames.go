// pkg/sosdiff/unames.go

package sosdiff

import (
	"fmt"
	"strings"
)

// unameInfo is the kernel identity of a sosreport.
type unameInfo struct {
	Release string
	Arch    string
	Raw     string
}

// readUname locates and parses the uname output of a sosreport, looking
// at sos_commands/kernel/uname_-a and the legacy top-level uname file.
func readUname(dir string) (unameInfo, error) {
	var content string
	var found bool
	for _, rel := range []string{"sos_commands/kernel/uname_-a", "uname"} {
		if c, ok := readSosFile(dir, rel); ok {
			content, found = c, true
			break
		}
	}
	if !found {
		return unameInfo{}, fmt.Errorf("no uname output found")
	}

	fields := strings.Fields(content)
	if len(fields) < 4 {
		return unameInfo{}, fmt.Errorf("malformed uname output: %q", strings.TrimSpace(content))
	}

	// "Linux host 5.15.0-200.el9uek.x86_64 #1 SMP ... x86_64 ... GNU/Linux":
	// the release is the third field, the arch sits just before GNU/Linux.
	return unameInfo{
		Release: fields[2],
		Arch:    fields[len(fields)-2],
		Raw:     strings.TrimSpace(content),
	}, nil
}

type unamesDiffer struct{}

func (d *unamesDiffer) Name() string { return "unames" }

// Diff compares kernel release and architecture. Comparing reports from
// different kernels is almost always a mistake, so a mismatch aborts the
// whole run unless --override is given.
func (d *unamesDiffer) Diff(dir1, dir2 string, opts Options) error {
	u1, err := readUname(dir1)
	if err != nil {
		return err
	}
	u2, err := readUname(dir2)
	if err != nil {
		return err
	}

	rows := []row{
		{Key: "release", Left: u1.Release, Right: u2.Release},
		{Key: "arch", Left: u1.Arch, Right: u2.Arch},
	}
	differing := printRows(opts.Out, rows, opts.Detail, "KEY", dir1, dir2)

	if differing > 0 && !opts.Override {
		return fmt.Errorf("kernel release/arch mismatch between %s and %s, rerun with --override to compare anyway", dir1, dir2)
	}
	return nil
}
