// pkg/report/asciidoc_report.go

// Package report renders oscheck results as AsciiDoc documents, one per
// checked host, plus a consolidated summary for multi-host runs.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Status represents the result status of a check
type Status string

const (
	// StatusOK indicates the check passed
	StatusOK Status = "OK"

	// StatusWarning indicates a potential issue that should be addressed
	StatusWarning Status = "Warning"

	// StatusCritical indicates a failed check that requires attention
	StatusCritical Status = "Critical"

	// StatusInfo indicates informational output
	StatusInfo Status = "Info"

	// StatusNotApplicable indicates the check does not apply to this host
	StatusNotApplicable Status = "Not Applicable"
)

// ResultKey represents the level of importance for a result in a report summary
type ResultKey string

const (
	// ResultKeyNoChange indicates no changes are needed
	ResultKeyNoChange ResultKey = "nochange"

	// ResultKeyRecommended indicates changes are recommended
	ResultKeyRecommended ResultKey = "recommended"

	// ResultKeyRequired indicates changes are required
	ResultKeyRequired ResultKey = "required"

	// ResultKeyAdvisory indicates additional information
	ResultKeyAdvisory ResultKey = "advisory"

	// ResultKeyNotApplicable indicates the check does not apply
	ResultKeyNotApplicable ResultKey = "na"
)

// Category represents a category of checks
type Category string

const (
	// CategorySystemInfo is for host facts gathered before validation
	CategorySystemInfo Category = "System Information"

	// CategoryKernelTunables is for sysctl checks
	CategoryKernelTunables Category = "Kernel Tunables"

	// CategoryBootParameters is for kernel command line checks
	CategoryBootParameters Category = "Boot Parameters"

	// CategoryKernelModules is for loaded module checks
	CategoryKernelModules Category = "Kernel Modules"

	// CategoryFilesystems is for mount and fstab checks
	CategoryFilesystems Category = "Filesystems"

	// CategoryFiles is for file attribute and content checks
	CategoryFiles Category = "Files"

	// CategoryPackages is for installed package checks
	CategoryPackages Category = "Packages"

	// CategoryProcesses is for running process checks
	CategoryProcesses Category = "Processes"

	// CategoryServices is for systemd unit checks
	CategoryServices Category = "Services"
)

// PluginCategory maps a rules file section name to its report category.
func PluginCategory(plugin string) Category {
	switch plugin {
	case "sysctl":
		return CategoryKernelTunables
	case "cmdline":
		return CategoryBootParameters
	case "kmod":
		return CategoryKernelModules
	case "mounts":
		return CategoryFilesystems
	case "files":
		return CategoryFiles
	case "packages":
		return CategoryPackages
	case "processes":
		return CategoryProcesses
	case "systemd":
		return CategoryServices
	}
	return CategorySystemInfo
}

// Result represents the result of a check
type Result struct {
	// Status indicates the result status (OK, Warning, Critical, etc.)
	Status Status

	// Message is a brief description of the result
	Message string

	// ResultKey indicates the importance of the result
	ResultKey ResultKey

	// Detail provides detailed information about the result
	Detail string

	// Recommendations are suggestions to address any issues
	Recommendations []string
}

// Check represents one evaluated rule
type Check struct {
	// ID is the unique identifier for the check
	ID string

	// Name is the human-readable name for the check
	Name string

	// Category identifies the category this check belongs to
	Category Category

	// Result contains the check result
	Result Result
}

// AsciiDocReport generates AsciiDoc reports for health checks
type AsciiDocReport struct {
	// OutputPath is where the report will be saved
	OutputPath string

	// Hostname is the hostname of the system being checked
	Hostname string

	// Title is the title of the report
	Title string

	// Checks are all the checks performed for this report
	Checks []*Check
}

// NewAsciiDocReport creates a new AsciiDoc report
func NewAsciiDocReport(outputPath string) *AsciiDocReport {
	return &AsciiDocReport{
		OutputPath: outputPath,
		Checks:     []*Check{},
	}
}

// Initialize sets up the report with hostname and title
func (r *AsciiDocReport) Initialize(hostname, title string) {
	r.Hostname = hostname
	r.Title = title
}

// AddCheck adds a check to the report
func (r *AsciiDocReport) AddCheck(check *Check) {
	r.Checks = append(r.Checks, check)
}

// FailCount returns the number of checks that did not pass.
func (r *AsciiDocReport) FailCount() int {
	n := 0
	for _, check := range r.Checks {
		if check.Result.Status == StatusCritical || check.Result.Status == StatusWarning {
			n++
		}
	}
	return n
}

// Generate generates the report and writes it to the output path
func (r *AsciiDocReport) Generate() (string, error) {
	outputDir := filepath.Dir(r.OutputPath)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	content := r.generateReportContent()
	if err := os.WriteFile(r.OutputPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return r.OutputPath, nil
}

// generateReportContent creates the full report content
func (r *AsciiDocReport) generateReportContent() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("= %s\n\n", r.Title))
	sb.WriteString(fmt.Sprintf("Host: %s\n\n", r.Hostname))
	sb.WriteString("ifdef::env-github[]\n:tip-caption: :bulb:\n:note-caption: :information_source:\n:important-caption: :heavy_exclamation_mark:\n:warning-caption: :warning:\nendif::[]\n\n")

	sb.WriteString(r.generateSummarySection())

	categorizedChecks := r.organizeChecksByCategory()
	for _, category := range r.getSortedCategories() {
		checks, exists := categorizedChecks[category]
		if !exists || len(checks) == 0 {
			continue
		}
		sb.WriteString(r.generateCategorySection(category, checks))
	}

	sb.WriteString("// Reset bgcolor for future tables\n[grid=none,frame=none]\n|===\n|{set:cellbgcolor!}\n|===\n\n")
	return sb.String()
}

// generateSummarySection generates the summary table with all checks
func (r *AsciiDocReport) generateSummarySection() string {
	var sb strings.Builder

	sb.WriteString("= Summary\n\n")
	sb.WriteString("[cols=\"1,2,3,2\", options=header]\n|===\n|*Category*\n|*Item Evaluated*\n|*Observed Result*\n|*Recommendation*\n\n")

	categorizedChecks := r.organizeChecksByCategory()
	for _, category := range r.getSortedCategories() {
		for _, check := range categorizedChecks[category] {
			sb.WriteString("// ------------------------ITEM START\n")
			sb.WriteString("|\n{set:cellbgcolor!}\n" + string(check.Category) + "\n\n")
			sb.WriteString("a|\n<<" + check.Name + ">>\n\n")
			sb.WriteString("| " + check.Result.Message + " \n\n")
			sb.WriteString(getResultFormatting(check.Result.ResultKey) + "\n\n")
			sb.WriteString("// ------------------------ITEM END\n\n")
		}
	}

	sb.WriteString("|===\n\n")
	sb.WriteString("<<<\n\n")
	sb.WriteString("{set:cellbgcolor!}\n\n")
	return sb.String()
}

// generateCategorySection creates a section for a specific category
func (r *AsciiDocReport) generateCategorySection(category Category, checks []*Check) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", category))
	for _, check := range checks {
		sb.WriteString(r.formatCheckDetail(check))
	}
	sb.WriteString("<<<\n\n")
	sb.WriteString("{set:cellbgcolor!}\n\n")
	return sb.String()
}

// formatCheckDetail formats detailed information about a check
func (r *AsciiDocReport) formatCheckDetail(check *Check) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("== %s\n\n", check.Name))
	sb.WriteString(getStatusTable(check.Result.ResultKey) + "\n\n")

	if check.Result.Detail != "" {
		sb.WriteString("[source, text]\n----\n")
		sb.WriteString(strings.TrimRight(check.Result.Detail, "\n"))
		sb.WriteString("\n----\n\n")
	}

	sb.WriteString("**Observation**\n\n")
	sb.WriteString(check.Result.Message + "\n\n")

	sb.WriteString("**Recommendation**\n\n")
	if len(check.Result.Recommendations) > 0 {
		for _, rec := range check.Result.Recommendations {
			sb.WriteString(rec + "\n\n")
		}
	} else {
		sb.WriteString("None\n\n")
	}

	return sb.String()
}

// organizeChecksByCategory groups checks by their category
func (r *AsciiDocReport) organizeChecksByCategory() map[Category][]*Check {
	categorized := make(map[Category][]*Check)
	for _, check := range r.Checks {
		categorized[check.Category] = append(categorized[check.Category], check)
	}
	return categorized
}

// getSortedCategories returns categories in the preferred order
func (r *AsciiDocReport) getSortedCategories() []Category {
	return []Category{
		CategorySystemInfo,
		CategoryKernelTunables,
		CategoryBootParameters,
		CategoryKernelModules,
		CategoryFilesystems,
		CategoryFiles,
		CategoryPackages,
		CategoryProcesses,
		CategoryServices,
	}
}

// getResultFormatting returns formatted AsciiDoc for a result key (used in tables)
func getResultFormatting(resultKey ResultKey) string {
	options := map[ResultKey]string{
		ResultKeyRequired: `|
{set:cellbgcolor:#FF0000}
Changes Required`,
		ResultKeyRecommended: `|
{set:cellbgcolor:#FEFE20}
Changes Recommended`,
		ResultKeyNoChange: `|
{set:cellbgcolor:#00FF00}
No Change`,
		ResultKeyAdvisory: `|
{set:cellbgcolor:#80E5FF}
Advisory`,
		ResultKeyNotApplicable: `|
{set:cellbgcolor:#A6B9BF}
Not Applicable`,
	}

	result, ok := options[resultKey]
	if !ok {
		return options[ResultKeyNotApplicable]
	}
	return result
}

// getStatusTable returns a colored status table for a result key (used in detailed sections)
func getStatusTable(resultKey ResultKey) string {
	options := map[ResultKey]string{
		ResultKeyRequired: `[cols="^"]
|===
|
{set:cellbgcolor:#FF0000}
Changes Required
|===`,
		ResultKeyRecommended: `[cols="^"]
|===
|
{set:cellbgcolor:#FEFE20}
Changes Recommended
|===`,
		ResultKeyNoChange: `[cols="^"]
|===
|
{set:cellbgcolor:#00FF00}
No Change
|===`,
		ResultKeyAdvisory: `[cols="^"]
|===
|
{set:cellbgcolor:#80E5FF}
Advisory
|===`,
		ResultKeyNotApplicable: `[cols="^"]
|===
|
{set:cellbgcolor:#A6B9BF}
Not Applicable
|===`,
	}

	result, ok := options[resultKey]
	if !ok {
		return options[ResultKeyNotApplicable]
	}
	return result
}
