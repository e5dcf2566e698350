// pkg/config/hosts_config.go

// Package config parses the INI-style inventory used by multi-host
// oscheck runs.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// HostsConfig represents the configuration for multiple hosts
type HostsConfig struct {
	Defaults DefaultConfig
	Hosts    []HostEntry
	Groups   map[string][]HostEntry
}

// DefaultConfig holds default settings for all hosts
type DefaultConfig struct {
	User                string
	Port                string
	Password            string
	SSHKeyFile          string
	SSHTimeout          int
	ParallelConnections int

	// RulesFile overrides the automatic rules file selection on the
	// remote hosts.
	RulesFile string
}

// HostEntry represents a single host configuration
type HostEntry struct {
	Hostname   string
	Port       string
	User       string
	Password   string
	SSHKeyFile string
	RulesFile  string
	Group      string
}

// NewHostsConfig creates a new hosts configuration with defaults
func NewHostsConfig() *HostsConfig {
	return &HostsConfig{
		Defaults: DefaultConfig{
			User:                "root",
			Port:                "22",
			SSHTimeout:          30,
			ParallelConnections: 5,
		},
		Hosts:  []HostEntry{},
		Groups: make(map[string][]HostEntry),
	}
}

// LoadFromFile loads hosts configuration from an INI-style file
func (hc *HostsConfig) LoadFromFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open hosts file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	currentGroup := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentGroup = strings.Trim(line, "[]")
			if currentGroup == "all:vars" {
				currentGroup = "defaults"
			}
			if currentGroup != "defaults" {
				if _, exists := hc.Groups[currentGroup]; !exists {
					hc.Groups[currentGroup] = []HostEntry{}
				}
			}
			continue
		}

		if currentGroup == "defaults" {
			hc.parseDefaultLine(line)
			continue
		}

		host, err := hc.parseHostLine(line, currentGroup)
		if err != nil {
			continue
		}
		hc.applyDefaultsToHost(&host)

		hc.Hosts = append(hc.Hosts, host)
		if currentGroup != "" {
			hc.Groups[currentGroup] = append(hc.Groups[currentGroup], host)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading hosts file: %v", err)
	}
	return nil
}

// parseDefaultLine parses a line from the defaults section
func (hc *HostsConfig) parseDefaultLine(line string) {
	key, value, found := strings.Cut(line, "=")
	if !found {
		return
	}
	key = strings.TrimSpace(key)
	value = strings.Trim(strings.TrimSpace(value), "\"'`")

	switch key {
	case "user", "ssh_user":
		hc.Defaults.User = value
	case "port", "ssh_port":
		hc.Defaults.Port = value
	case "password", "ssh_password":
		hc.Defaults.Password = value
	case "ssh_key_file", "ssh_key":
		hc.Defaults.SSHKeyFile = expandPath(value)
	case "ssh_timeout", "timeout":
		if timeout, err := strconv.Atoi(value); err == nil {
			hc.Defaults.SSHTimeout = timeout
		}
	case "parallel_connections", "parallel":
		if parallel, err := strconv.Atoi(value); err == nil {
			hc.Defaults.ParallelConnections = parallel
		}
	case "rules_file", "rules":
		hc.Defaults.RulesFile = value
	}
}

// parseHostLine parses a host line: hostname followed by key=value pairs
func (hc *HostsConfig) parseHostLine(line string, group string) (HostEntry, error) {
	host := HostEntry{Group: group}

	parts := strings.Fields(line)
	if len(parts) == 0 {
		return host, fmt.Errorf("empty host line")
	}

	host.Hostname = parts[0]
	if host.Hostname == "" || strings.Contains(host.Hostname, "=") {
		return host, fmt.Errorf("invalid hostname: %s", parts[0])
	}

	for _, part := range parts[1:] {
		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		value = strings.Trim(value, "\"'`")

		switch key {
		case "user", "ssh_user":
			host.User = value
		case "port", "ssh_port":
			host.Port = value
		case "password", "ssh_password":
			host.Password = value
		case "ssh_key_file", "ssh_key":
			host.SSHKeyFile = expandPath(value)
		case "rules_file", "rules":
			host.RulesFile = value
		}
	}

	return host, nil
}

// applyDefaultsToHost applies default values to a host entry
func (hc *HostsConfig) applyDefaultsToHost(host *HostEntry) {
	if host.Port == "" {
		host.Port = hc.Defaults.Port
	}
	if host.User == "" {
		host.User = hc.Defaults.User
	}
	if host.Password == "" {
		host.Password = hc.Defaults.Password
	}
	if host.SSHKeyFile == "" {
		host.SSHKeyFile = hc.Defaults.SSHKeyFile
	}
	if host.RulesFile == "" {
		host.RulesFile = hc.Defaults.RulesFile
	}
}

// GetAllHosts returns all configured hosts
func (hc *HostsConfig) GetAllHosts() []HostEntry {
	return hc.Hosts
}

// GetHostsByGroup returns hosts in a specific group
func (hc *HostsConfig) GetHostsByGroup(group string) []HostEntry {
	return hc.Groups[group]
}

// GetHost returns a specific host by name
func (hc *HostsConfig) GetHost(hostname string) (*HostEntry, bool) {
	for _, host := range hc.Hosts {
		if host.Hostname == hostname {
			return &host, true
		}
	}
	return nil, false
}

// expandPath expands ~ and environment variables in file paths
func expandPath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
