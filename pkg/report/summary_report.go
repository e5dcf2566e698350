// pkg/report/summary_report.go

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SummaryReport aggregates per-host reports from a multi-host run into a
// single consolidated document.
type SummaryReport struct {
	OutputDir   string
	HostReports map[string]*AsciiDocReport
}

// NewSummaryReport creates a summary report rooted at outputDir.
func NewSummaryReport(outputDir string) *SummaryReport {
	return &SummaryReport{
		OutputDir:   outputDir,
		HostReports: map[string]*AsciiDocReport{},
	}
}

// AddHostReport records a completed host report for the summary.
func (s *SummaryReport) AddHostReport(hostname string, r *AsciiDocReport) {
	s.HostReports[hostname] = r
}

// Generate writes the consolidated summary document.
func (s *SummaryReport) Generate() (string, error) {
	if err := os.MkdirAll(s.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.OutputDir, "summary.adoc")
	if err := os.WriteFile(path, []byte(s.generateContent()), 0644); err != nil {
		return "", fmt.Errorf("failed to write summary report: %w", err)
	}
	return path, nil
}

func (s *SummaryReport) generateContent() string {
	var sb strings.Builder

	sb.WriteString("= Multi-Host Health Check Summary\n\n")

	hostnames := make([]string, 0, len(s.HostReports))
	for hostname := range s.HostReports {
		hostnames = append(hostnames, hostname)
	}
	sort.Strings(hostnames)

	sb.WriteString("[cols=\"2,1,1,1\", options=header]\n|===\n|*Host*\n|*Checks*\n|*Passed*\n|*Failed*\n\n")
	for _, hostname := range hostnames {
		r := s.HostReports[hostname]
		total := len(r.Checks)
		fails := r.FailCount()
		sb.WriteString(fmt.Sprintf("| %s\n| %d\n| %d\n", hostname, total, total-fails))
		if fails > 0 {
			sb.WriteString(fmt.Sprintf("|\n{set:cellbgcolor:#FF0000}\n%d\n{set:cellbgcolor!}\n\n", fails))
		} else {
			sb.WriteString(fmt.Sprintf("|\n{set:cellbgcolor:#00FF00}\n%d\n{set:cellbgcolor!}\n\n", fails))
		}
	}
	sb.WriteString("|===\n\n")

	for _, hostname := range hostnames {
		r := s.HostReports[hostname]
		if r.FailCount() == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("== Failures on %s\n\n", hostname))
		for _, check := range r.Checks {
			if check.Result.Status != StatusCritical && check.Result.Status != StatusWarning {
				continue
			}
			sb.WriteString(fmt.Sprintf("* %s: %s\n", check.Name, check.Result.Message))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
