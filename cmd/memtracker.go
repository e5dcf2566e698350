// cmd/memtracker.go

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryan-mccabe/oled-tools/pkg/memtracker"
)

func newMemtrackerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "memtracker [interval-minutes]",
		Short: "Continuously log kernel memory statistics",
		Long: `Appends timestamped snapshots of /proc/vmstat, buddyinfo, slabinfo and
related files to /var/oled/memtracker so memory fragmentation can be
tracked over time. Runs until interrupted.`,
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: requireRoot,
		RunE: func(cmd *cobra.Command, args []string) error {
			interval := 5 * time.Minute
			if len(args) > 0 {
				minutes, err := strconv.Atoi(args[0])
				if err != nil || minutes < 1 {
					return fmt.Errorf("invalid interval %q, expected minutes", args[0])
				}
				interval = time.Duration(minutes) * time.Minute
			}

			if err := useLocalExecutor(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(),
				os.Interrupt, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM)
			defer stop()

			return memtracker.New(interval).Run(ctx)
		},
	}
}
