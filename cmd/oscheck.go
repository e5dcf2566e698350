// cmd/oscheck.go

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryan-mccabe/oled-tools/pkg/oscheck"
)

var (
	oscheckSosPath     string
	oscheckOutput      string
	oscheckQuiet       bool
	oscheckInclude     []string
	oscheckSkip        []string
	oscheckHostsFile   string
	oscheckMaxParallel int
)

func newOscheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oscheck [rules.json]",
		Short: "Run rule-based OS health checks",
		Long: `Validates the system (or an extracted sosreport) against a JSON rules
file covering sysctl settings, files, mounts, packages, processes, systemd
units, the kernel command line, and loaded modules. Exits non-zero when
any check fails.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runOscheck,
	}

	cmd.Flags().StringVar(&oscheckSosPath, "sos", "", "Check an extracted sosreport instead of the live system")
	cmd.Flags().StringVarP(&oscheckOutput, "output", "o", "", "AsciiDoc report path (default is automatically generated)")
	cmd.Flags().BoolVarP(&oscheckQuiet, "quiet", "q", false, "Suppress the progress bar")
	cmd.Flags().StringSliceVarP(&oscheckInclude, "include", "i", nil, "Only run the named plugins")
	cmd.Flags().StringSliceVarP(&oscheckSkip, "skip", "s", nil, "Skip the named plugins")
	cmd.Flags().StringVarP(&oscheckHostsFile, "hosts", "H", "", "Hosts configuration file for multi-host checks")
	cmd.Flags().IntVar(&oscheckMaxParallel, "max-parallel", 0, "Cap concurrent SSH connections in multi-host mode")
	return cmd
}

func runOscheck(cmd *cobra.Command, args []string) error {
	rulesFile := ""
	if len(args) > 0 {
		rulesFile = args[0]
	}

	if oscheckHostsFile != "" {
		return oscheck.RunMulti(oscheck.MultiOptions{
			HostsFile:   oscheckHostsFile,
			MaxParallel: oscheckMaxParallel,
			RulesFile:   rulesFile,
			OutputDir:   oscheckOutput,
		})
	}

	if oscheckSosPath == "" {
		if err := useLocalExecutor(); err != nil {
			return err
		}
	}

	fails, err := oscheck.Run(oscheck.Options{
		RulesFile:  rulesFile,
		SosPath:    oscheckSosPath,
		ReportPath: oscheckOutput,
		Quiet:      oscheckQuiet,
		Include:    oscheckInclude,
		Skip:       oscheckSkip,
	})
	if err != nil {
		return err
	}
	if fails > 0 {
		return fmt.Errorf("%d check(s) failed", fails)
	}
	return nil
}
