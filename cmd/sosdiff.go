// cmd/sosdiff.go

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ryan-mccabe/oled-tools/pkg/sosdiff"
)

var (
	sosdiffDetail   bool
	sosdiffOverride bool
)

func newSosdiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sosdiff DIR1 DIR2",
		Short: "Compare two extracted sosreports",
		Long: `Compares the kernel identity, sysctl settings, boot command line,
memory configuration, mounts, and installed packages of two extracted
sosreport directories and prints what differs.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sosdiff.Run(args[0], args[1], sosdiff.Options{
				Detail:   sosdiffDetail,
				Override: sosdiffOverride,
				Out:      os.Stdout,
			})
		},
	}

	cmd.Flags().BoolVar(&sosdiffDetail, "detail", false, "Include equal rows, not just differences")
	cmd.Flags().BoolVar(&sosdiffOverride, "override", false, "Continue past a kernel release/arch mismatch")
	return cmd
}
