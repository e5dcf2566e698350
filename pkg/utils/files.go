// pkg/utils/files.go

package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReadFileUnder reads the file at basePath + relPath. basePath is "/" on a
// live system, or the root of an extracted sosreport.
func ReadFileUnder(basePath, relPath string) (string, error) {
	path := filepath.Join(basePath, strings.TrimPrefix(relPath, "/"))
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("unable to read %s: %v", path, err)
	}
	return string(content), nil
}

// ListFilesUnder returns the paths of files in basePath + relDir, optionally
// filtered by suffix (e.g. ".conf"). Returns an empty list on error.
func ListFilesUnder(basePath, relDir, suffix string) []string {
	dirPath := filepath.Join(basePath, strings.TrimPrefix(relDir, "/"))
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil
	}

	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if suffix != "" && !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		out = append(out, filepath.Join(dirPath, entry.Name()))
	}
	return out
}

// ParseKVFile parses key=value lines from the file at path. Lines starting
// with '#' and lines without the separator are ignored, unless
// includeBareKeys is set, in which case bare tokens map to "true".
func ParseKVFile(path, sep string, includeBareKeys bool) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %v", path, err)
	}

	result := make(map[string]string)
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if key, value, found := strings.Cut(line, sep); found {
			result[strings.TrimSpace(key)] = stripQuotes(strings.TrimSpace(value))
		} else if includeBareKeys {
			result[line] = "true"
		}
	}
	return result, nil
}

// ParseKVString parses a space-delimited key=value string, such as
// /proc/cmdline. Bare tokens map to "true" when includeBareKeys is set.
func ParseKVString(content, sep string, includeBareKeys bool) map[string]string {
	result := make(map[string]string)
	for _, tok := range strings.Fields(content) {
		if key, val, found := strings.Cut(tok, sep); found {
			result[key] = stripQuotes(val)
		} else if includeBareKeys {
			result[tok] = "true"
		}
	}
	return result
}

func stripQuotes(value string) string {
	if len(value) >= 2 && strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") {
		return value[1 : len(value)-1]
	}
	return value
}

// HashFile computes the SHA256 hash of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("unable to open %s: %v", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("sha256 hashing %s: %v", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// HashString computes the SHA256 hash of contents.
func HashString(contents string) string {
	sum := sha256.Sum256([]byte(contents))
	return hex.EncodeToString(sum[:])
}

// ContentEqual compares two file contents ignoring trailing newlines and
// carriage returns. Used by the identical comparison operator.
func ContentEqual(a, b string) bool {
	normalize := func(s string) string {
		s = strings.ReplaceAll(s, "\r\n", "\n")
		return strings.TrimRight(s, "\n")
	}
	return normalize(a) == normalize(b)
}
