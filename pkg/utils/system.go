// pkg/utils/system.go

package utils

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alexmullins/zip"
)

// IsOracleLinux checks if the system is running Oracle Linux
func IsOracleLinux() bool {
	if content, err := os.ReadFile("/etc/oracle-release"); err == nil {
		return strings.Contains(strings.ToLower(string(content)), "oracle")
	}

	// Secondary check via rpm
	cmd := exec.Command("rpm", "-q", "oraclelinux-release")
	return cmd.Run() == nil
}

// OracleLinuxVersion returns the OS major version ("el7", "el8", "el9"),
// defaulting to el8 when detection fails.
func OracleLinuxVersion() string {
	content, err := os.ReadFile("/etc/oracle-release")
	if err != nil {
		return "el8"
	}

	for _, field := range strings.Fields(string(content)) {
		if major, _, found := strings.Cut(field, "."); found {
			if n, err := strconv.Atoi(major); err == nil && n >= 6 {
				return "el" + major
			}
		}
	}
	return "el8"
}

// RunningAsRoot checks if the tool is running with root/sudo privileges
func RunningAsRoot() bool {
	return os.Geteuid() == 0
}

// RunCommand executes a command and returns its combined output
func RunCommand(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("command '%s %s' failed: %v", name, strings.Join(args, " "), err)
	}
	return string(output), nil
}

// RunCommandWithTimeout executes a command with a timeout in seconds
func RunCommandWithTimeout(name string, timeout int, args ...string) (string, error) {
	timeoutArgs := append([]string{strconv.Itoa(timeout), name}, args...)

	cmd := exec.Command("timeout", timeoutArgs...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(err.Error(), "exit status 124") {
			return string(output), fmt.Errorf("command timed out after %d seconds", timeout)
		}
		return string(output), fmt.Errorf("command '%s %s' failed: %v", name, strings.Join(args, " "), err)
	}
	return string(output), nil
}

// CompressWithPassword compresses a file with password protection
func CompressWithPassword(sourcePath string, password string) (string, error) {
	if _, err := os.Stat(sourcePath); os.IsNotExist(err) {
		return "", fmt.Errorf("source file not found: %s", sourcePath)
	}

	zipPath := sourcePath + ".zip"

	zipFile, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to create zip file: %v", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	defer zipWriter.Close()

	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %v", err)
	}
	defer sourceFile.Close()

	var writer io.Writer
	if password != "" {
		writer, err = zipWriter.Encrypt(filepath.Base(sourcePath), password)
	} else {
		writer, err = zipWriter.Create(filepath.Base(sourcePath))
	}
	if err != nil {
		return "", fmt.Errorf("failed to create zip entry: %v", err)
	}

	if _, err := io.Copy(writer, sourceFile); err != nil {
		return "", fmt.Errorf("failed to write to zip: %v", err)
	}

	return zipPath, nil
}
