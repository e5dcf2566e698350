// pkg/oscheck/multi.go

package oscheck

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/ryan-mccabe/oled-tools/pkg/config"
	"github.com/ryan-mccabe/oled-tools/pkg/report"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// MultiOptions configures a multi-host oscheck run.
type MultiOptions struct {
	// HostsFile is the INI inventory of hosts to check.
	HostsFile string

	// MaxParallel caps concurrent SSH connections; 0 uses the inventory
	// default.
	MaxParallel int

	// RulesFile overrides rules selection on every remote host.
	RulesFile string

	// OutputDir is where per-host output and the summary land.
	OutputDir string
}

type hostResult struct {
	hostname string
	fails    int
	output   string
	err      error
	duration time.Duration
}

// RunMulti checks every host in the inventory over SSH by running the
// installed oled binary remotely, then writes per-host output files and a
// consolidated summary report.
func RunMulti(opts MultiOptions) error {
	hostsConfig := config.NewHostsConfig()
	if err := hostsConfig.LoadFromFile(opts.HostsFile); err != nil {
		return fmt.Errorf("failed to load hosts file: %v", err)
	}
	if opts.MaxParallel > 0 {
		hostsConfig.Defaults.ParallelConnections = opts.MaxParallel
	}

	allHosts := hostsConfig.GetAllHosts()
	if len(allHosts) == 0 {
		return fmt.Errorf("no hosts found in %s", opts.HostsFile)
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join("reports",
			fmt.Sprintf("oscheck-multi-%s", time.Now().Format("20060102-150405")))
	}
	hostsOutputDir := filepath.Join(outputDir, "hosts")
	if err := os.MkdirAll(hostsOutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directories: %v", err)
	}

	fmt.Printf("Hosts to check:       %d\n", len(allHosts))
	fmt.Printf("Parallel connections: %d\n\n", hostsConfig.Defaults.ParallelConnections)

	bar := progressbar.NewOptions(len(allHosts),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetDescription("[cyan]Checking hosts[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	results := make(chan hostResult, len(allHosts))
	var wg sync.WaitGroup
	sem := make(chan struct{}, hostsConfig.Defaults.ParallelConnections)
	startTime := time.Now()

	for _, host := range allHosts {
		wg.Add(1)
		go func(entry config.HostEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			hostStart := time.Now()
			result := checkRemoteHost(entry, hostsConfig.Defaults.SSHTimeout, opts.RulesFile)
			result.duration = time.Since(hostStart)
			bar.Add(1)
			results <- result
		}(host)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	summary := report.NewSummaryReport(outputDir)
	var failedHosts []hostResult
	var okHosts []hostResult

	for result := range results {
		if result.err != nil {
			failedHosts = append(failedHosts, result)
			continue
		}
		okHosts = append(okHosts, result)

		outFile := filepath.Join(hostsOutputDir, sanitizeFilename(result.hostname)+"-oscheck.log")
		if err := os.WriteFile(outFile, []byte(result.output), 0644); err != nil {
			fmt.Printf("unable to write %s: %v\n", outFile, err)
		}
		summary.AddHostReport(result.hostname, hostReportFromOutput(result))
	}
	bar.Finish()
	fmt.Printf("\n\n")

	if len(okHosts) > 0 {
		fmt.Printf("Checked (%d):\n", len(okHosts))
		for _, h := range okHosts {
			fmt.Printf("  - %s: %d failures (%v)\n", h.hostname, h.fails, h.duration.Round(time.Second))
		}
		fmt.Printf("\n")
	}
	if len(failedHosts) > 0 {
		fmt.Printf("Unreachable (%d):\n", len(failedHosts))
		for _, h := range failedHosts {
			fmt.Printf("  - %s: %v\n", h.hostname, h.err)
		}
		fmt.Printf("\n")
	}

	if len(okHosts) > 0 {
		if _, err := summary.Generate(); err != nil {
			return err
		}
	}

	fmt.Printf("Total execution time: %s\n", time.Since(startTime).Round(time.Second))
	fmt.Printf("Reports location: %s\n", outputDir)
	return nil
}

// checkRemoteHost connects to one host and runs oscheck there. The remote
// host needs oled-tools installed.
func checkRemoteHost(entry config.HostEntry, sshTimeout int, rulesOverride string) hostResult {
	result := hostResult{hostname: entry.Hostname}

	sshConfig := &utils.SSHConfig{
		Host:     entry.Hostname,
		Port:     entry.Port,
		User:     entry.User,
		Password: entry.Password,
		KeyFile:  entry.SSHKeyFile,
		Timeout:  time.Duration(sshTimeout) * time.Second,
	}

	exec, err := utils.NewRemoteExecutor(sshConfig)
	if err != nil {
		result.err = err
		return result
	}
	defer exec.Close()

	if _, err := exec.RunCommandWithTimeout("echo", 5, "ping"); err != nil {
		result.err = fmt.Errorf("command execution failed: %v", err)
		return result
	}

	args := []string{"oscheck", "--quiet"}
	rulesFile := rulesOverride
	if entry.RulesFile != "" {
		rulesFile = entry.RulesFile
	}
	if rulesFile != "" {
		args = append(args, "--rules", rulesFile)
	}

	output, err := exec.RunCommandWithTimeout("oled", 600, args...)
	if err != nil {
		result.err = err
		return result
	}

	result.output = output
	result.fails = strings.Count(output, "FAIL: ")
	return result
}

// hostReportFromOutput builds a minimal per-host report from the remote
// run output so the summary can count and list failures.
func hostReportFromOutput(result hostResult) *report.AsciiDocReport {
	rep := report.NewAsciiDocReport("")
	rep.Initialize(result.hostname, "OS Health Check Report")

	for _, line := range strings.Split(result.output, "\n") {
		idx := strings.Index(line, "FAIL: ")
		if idx < 0 {
			continue
		}
		msg := strings.TrimSpace(line[idx+len("FAIL: "):])
		if strings.HasPrefix(msg, "->") {
			continue
		}
		rep.AddCheck(&report.Check{
			ID:       "remote",
			Name:     msg,
			Category: report.CategorySystemInfo,
			Result: report.Result{
				Status:    report.StatusCritical,
				Message:   msg,
				ResultKey: report.ResultKeyRequired,
			},
		})
	}
	return rep
}

// sanitizeFilename makes a hostname safe to use as a file name.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer("/", "_", ":", "_", " ", "_")
	return replacer.Replace(name)
}
