// cmd/lkce.go

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ryan-mccabe/oled-tools/pkg/lkce"
)

var (
	lkceDefaults  bool
	lkceShow      bool
	lkceVmcore    string
	lkceVmlinux   string
	lkceCrashCmds string
	lkceCompress  bool
	lkceAll       bool
	lkceYes       bool
)

func newLkceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "lkce",
		Short:             "Linux kernel core extractor",
		Long:              "Configures vmcore analysis and generates crash reports from captured kernel cores.",
		PersistentPreRunE: requireRoot,
	}

	configureCmd := &cobra.Command{
		Use:   "configure",
		Short: "Configure lkce interactively or with defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			if lkceShow {
				return lkce.ShowConfig(os.Stdout)
			}
			return lkce.Configure(lkceDefaults, os.Stdin, os.Stdout)
		},
	}
	configureCmd.Flags().BoolVar(&lkceDefaults, "default", false, "Write the default configuration without prompting")
	configureCmd.Flags().BoolVar(&lkceShow, "show", false, "Show the current configuration")

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Run crash against a vmcore and save the output",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := useLocalExecutor(); err != nil {
				return err
			}
			_, err := lkce.Report(lkce.ReportOptions{
				Vmcore:    lkceVmcore,
				Vmlinux:   lkceVmlinux,
				CrashCmds: lkceCrashCmds,
				Compress:  lkceCompress,
			})
			return err
		},
	}
	reportCmd.Flags().StringVar(&lkceVmcore, "vmcore", "", "Path to the vmcore to analyze")
	reportCmd.Flags().StringVar(&lkceVmlinux, "vmlinux", "", "Override the configured vmlinux path")
	reportCmd.Flags().StringVar(&lkceCrashCmds, "crash-cmds", "", "Override the configured crash commands file")
	reportCmd.Flags().BoolVar(&lkceCompress, "compress", false, "Zip the report after writing it")
	reportCmd.MarkFlagRequired("vmcore")

	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove old crash reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return lkce.Clean(lkceAll, lkceYes, os.Stdin, os.Stdout)
		},
	}
	cleanCmd.Flags().BoolVar(&lkceAll, "all", false, "Remove every report, not just those beyond max_out_files")
	cleanCmd.Flags().BoolVarP(&lkceYes, "yes", "y", false, "Do not ask for confirmation")

	cmd.AddCommand(configureCmd)
	cmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Enable vmcore report generation after a crash",
		RunE: func(cmd *cobra.Command, args []string) error {
			return lkce.SetEnabled(true)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Disable vmcore report generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return lkce.SetEnabled(false)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show lkce and kdump status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := useLocalExecutor(); err != nil {
				return err
			}
			return lkce.Status(os.Stdout)
		},
	})
	cmd.AddCommand(reportCmd)
	cmd.AddCommand(cleanCmd)
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the crash reports on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return lkce.List(os.Stdout)
		},
	})
	return cmd
}
