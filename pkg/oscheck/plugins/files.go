// pkg/oscheck/plugins/files.go

package plugins

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/oscheck/engine"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// getXattrs returns the file's extended attributes formatted the way
// `getfattr -d` prints them, attr_name="attr_value".
func getXattrs(path string) []string {
	buf := make([]byte, 4096)
	n, err := unix.Listxattr(path, buf)
	if err != nil {
		logging.External.Error().Msgf("ERROR: unable to list xattrs for %s: %v", path, err)
		return nil
	}

	var out []string
	for _, attr := range strings.Split(strings.TrimRight(string(buf[:n]), "\x00"), "\x00") {
		if attr == "" {
			continue
		}
		val := make([]byte, 4096)
		vn, err := unix.Getxattr(path, attr, val)
		if err != nil {
			logging.External.Error().Msgf("ERROR: unable to retrieve xattr %s for %s: %v", attr, path, err)
			continue
		}
		out = append(out, fmt.Sprintf("%s=%q", attr, strings.TrimRight(string(val[:vn]), "\x00")))
	}
	return out
}

// getChattrFlags returns the chattr flags for path via lsattr.
func getChattrFlags(path string) string {
	out, err := utils.ExecuteCommand("lsattr", path)
	if err != nil {
		logging.External.Warn().Msgf("No chattr flags found for %s", path)
		return ""
	}
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) == 0 {
		return ""
	}
	logging.Internal.Debug().Msgf("retrieved chattr flags for %s: %s", path, fields[0])
	return fields[0]
}

// getSELinuxContext reads the file's SELinux label from its
// security.selinux xattr.
func getSELinuxContext(path string) string {
	val := make([]byte, 256)
	n, err := unix.Getxattr(path, "security.selinux", val)
	if err != nil {
		logging.External.Error().Msgf("Error reading SELinux context for %s: %v", path, err)
		return ""
	}
	return strings.TrimRight(string(val[:n]), "\x00")
}

func lookupUser(uid uint32) string {
	if u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10)); err == nil {
		return u.Username
	}
	return fmt.Sprintf("UID:%d", uid)
}

func lookupGroup(gid uint32) string {
	if g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10)); err == nil {
		return g.Name
	}
	return fmt.Sprintf("GID:%d", gid)
}

func needsContents(reqAttrs []string) bool {
	for _, attr := range reqAttrs {
		switch attr {
		case "file_contents", "identical", "contains", "regex":
			return true
		}
	}
	return false
}

// getFileAttrs retrieves mode, ownership, size, timestamps, SELinux
// context, xattrs, and chattr flags. File contents are loaded only when a
// rule needs them.
func getFileAttrs(path string, reqAttrs []string, fatalErrs *[]string) map[string]any {
	stats, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{"exists": false}
		}
		msg := fmt.Sprintf("ERROR: Failed to retrieve attributes for %s: %v", path, err)
		if os.IsPermission(err) {
			msg = fmt.Sprintf("ERROR: Permission denied: %s", path)
		}
		*fatalErrs = append(*fatalErrs, msg)
		return nil
	}

	attrs := map[string]any{
		"exists": true,
		"size":   stats.Size(),
		"mode":   int64(stats.Mode().Perm()),
		"mtime":  stats.ModTime().Unix(),
	}

	if st, ok := stats.Sys().(*syscall.Stat_t); ok {
		attrs["uid"] = int64(st.Uid)
		attrs["gid"] = int64(st.Gid)
		attrs["user"] = lookupUser(st.Uid)
		attrs["group"] = lookupGroup(st.Gid)
		attrs["atime"] = st.Atim.Sec
		attrs["ctime"] = st.Ctim.Sec
	}

	for _, attr := range reqAttrs {
		switch attr {
		case "xattr":
			attrs["xattr"] = getXattrs(path)
		case "chattr_flags":
			attrs["chattr_flags"] = getChattrFlags(path)
		case "selinux_context":
			attrs["selinux_context"] = getSELinuxContext(path)
		}
	}

	if needsContents(reqAttrs) {
		contents, err := os.ReadFile(path)
		if err != nil {
			logging.Internal.Debug().Msgf("reading contents of %s failed: %v", path, err)
			*fatalErrs = append(*fatalErrs, fmt.Sprintf("ERROR: unable to read contents of %s: %v", path, err))
			return nil
		}
		attrs["file_contents"] = string(contents)
	}

	return attrs
}

// FilesPlugin validates file attributes and contents. Rule keys are paths
// or glob patterns. Live systems only, as sosreports do not capture
// arbitrary file metadata.
type FilesPlugin struct{}

func (p *FilesPlugin) Name() string { return "files" }

func (p *FilesPlugin) Run(rules map[string]any, basePath string) []Result {
	if basePath != "/" && basePath != "" {
		logging.External.Error().Msg("The files plugin does not support sosreport yet")
		return []Result{failed("FILES", "plugin does not support sosreport input")}
	}

	var results []Result
	for pattern, rule := range rules {
		var paths []string
		if hasWildcard(pattern) {
			matches, err := filepath.Glob(pattern)
			if err != nil || len(matches) == 0 {
				results = append(results, failed(
					"FILE "+pattern,
					"No matching paths found for glob: "+pattern))
				continue
			}
			paths = matches
		} else {
			paths = []string{pattern}
		}

		reqAttrs := engine.RequiredAttributes(rule)
		for _, path := range paths {
			var fatal []string
			attrs := getFileAttrs(path, reqAttrs, &fatal)
			if attrs == nil {
				results = append(results, failed("FILE "+path,
					append([]string{"Could not get all file attributes."}, fatal...)...))
				continue
			}

			logging.Internal.Debug().Msgf("evaluating file rule for %s", path)
			results = append(results,
				evaluate(attrs, rule, "files", "FILE "+path, nil))

			// release contents
			delete(attrs, "file_contents")
		}
	}
	return results
}
