// cmd/smtool.go

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ryan-mccabe/oled-tools/pkg/smtool"
)

var (
	smtoolRuntime string
	smtoolYes     bool
	smtoolDryRun  bool
)

func newSmtoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smtool",
		Short: "Speculative-execution mitigation tool",
		Long: `Reports the CPU speculative-execution vulnerability status the kernel
exposes and toggles the mitigations that can be changed at runtime.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "scan",
		Short: "Report the status of every known vulnerability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return smtool.ShowScan(os.Stdout, "/")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known variants and their kernel parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return smtool.List(os.Stdout, "/")
		},
	})

	enableCmd := newSmtoolToggleCmd("enable", true)
	disableCmd := newSmtoolToggleCmd("disable", false)
	cmd.AddCommand(enableCmd, disableCmd)
	return cmd
}

func newSmtoolToggleCmd(verb string, enable bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:               verb,
		Short:             verb + " a mitigation at runtime",
		PersistentPreRunE: requireRoot,
		RunE: func(cmd *cobra.Command, args []string) error {
			return smtool.SetRuntime(smtool.SetRuntimeOptions{
				Variant:  smtoolRuntime,
				Enable:   enable,
				Yes:      smtoolYes,
				DryRun:   smtoolDryRun,
				BasePath: "/",
				In:       os.Stdin,
				Out:      os.Stdout,
			})
		},
	}
	cmd.Flags().StringVar(&smtoolRuntime, "runtime", "", "Variant whose runtime mitigation to change")
	cmd.Flags().BoolVarP(&smtoolYes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&smtoolDryRun, "dry-run", false, "Print the sysfs writes without performing them")
	cmd.MarkFlagRequired("runtime")
	return cmd
}
