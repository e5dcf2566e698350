// pkg/sosdiff/sysctl.go

package sosdiff

import (
	"path"
	"strings"
)

// sysctlExcludes are keys expected to differ between any two hosts;
// reporting them would drown the interesting differences.
var sysctlExcludes = []string{
	"kernel.hostname",
	"kernel.random.*",
	"kernel.ns_last_pid",
	"kernel.pty.nr",
	"kernel.sched_domain.*",
	"fs.dentry-state",
	"fs.file-nr",
	"fs.inode-nr",
	"fs.inode-state",
	"fs.quota.syncs",
}

func sysctlExcluded(key string) bool {
	for _, pattern := range sysctlExcludes {
		if ok, _ := path.Match(pattern, key); ok {
			return true
		}
		// path.Match stops '*' at separators; sysctl keys have none,
		// but prefix patterns like kernel.sched_domain.* span dots.
		if strings.HasSuffix(pattern, ".*") &&
			strings.HasPrefix(key, strings.TrimSuffix(pattern, "*")) {
			return true
		}
	}
	return false
}

// parseSysctl parses `sysctl -a` output into a key/value map.
func parseSysctl(content string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" || sysctlExcluded(key) {
			continue
		}
		result[key] = strings.TrimSpace(value)
	}
	return result
}

type sysctlDiffer struct{}

func (d *sysctlDiffer) Name() string { return "sysctl" }

func (d *sysctlDiffer) Diff(dir1, dir2 string, opts Options) error {
	c1, _ := readSosFile(dir1, "sos_commands/kernel/sysctl_-a")
	c2, _ := readSosFile(dir2, "sos_commands/kernel/sysctl_-a")

	rows := diffMaps(parseSysctl(c1), parseSysctl(c2))
	printRows(opts.Out, rows, opts.Detail, "KEY", dir1, dir2)
	return nil
}
