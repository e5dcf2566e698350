// cmd/root.go

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// Version of the oled tool family.
const Version = "1.0.0"

var (
	debugOutput bool
	rootCmd     = &cobra.Command{
		Use:     "oled",
		Short:   "Oracle Linux Enhanced Diagnostics",
		Version: Version,
		Long: `A collection of diagnostic and administration tools for Oracle Linux:
rule-based OS health checks, kernel core extraction, memory tracking and
analysis, speculative-execution mitigation control, and sosreport
comparison.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetDebug(debugOutput)
		},
	}
)

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debugOutput, "debug", "d", false, "Enable debug output")

	// Add subcommands
	rootCmd.AddCommand(newOscheckCmd())
	rootCmd.AddCommand(newLkceCmd())
	rootCmd.AddCommand(newMemtrackerCmd())
	rootCmd.AddCommand(newMemstateCmd())
	rootCmd.AddCommand(newSmtoolCmd())
	rootCmd.AddCommand(newSosdiffCmd())
}

// requireRoot rejects subcommands that change system state when not run
// as root. It replaces the root pre-run hook on the commands that use it,
// so it applies the debug flag as well.
func requireRoot(cmd *cobra.Command, args []string) error {
	logging.SetDebug(debugOutput)
	if !utils.RunningAsRoot() {
		return fmt.Errorf("%s requires root privileges", cmd.CommandPath())
	}
	return nil
}

// useLocalExecutor routes collector commands through the local system.
func useLocalExecutor() error {
	localExec, err := utils.NewLocalExecutor()
	if err != nil {
		return fmt.Errorf("failed to create local executor: %v", err)
	}
	utils.SetExecutor(localExec)
	return nil
}
