// cmd/memstate.go

package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryan-mccabe/oled-tools/pkg/memstate"
)

var (
	memstateSlabTop int
	memstateProcTop int
	memstateAll     bool
	memstateWatch   int
)

func newMemstateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memstate",
		Short: "Analyze system memory usage",
		Long: `Reports slab cache sizes, /proc/meminfo highlights, and the processes
with the largest resident sets. Watch mode appends the report to
/var/oled/memstate on an interval.`,
		RunE: runMemstate,
	}

	cmd.Flags().IntVarP(&memstateSlabTop, "slab", "s", -1, "Show the top N slab caches (0 for all)")
	cmd.Flags().IntVarP(&memstateProcTop, "processes", "p", -1, "Show the top N processes by RSS")
	cmd.Flags().BoolVarP(&memstateAll, "all", "a", false, "Show everything")
	cmd.Flags().IntVarP(&memstateWatch, "watch", "w", 0, "Log the report every N seconds until interrupted")
	cmd.Flags().Lookup("slab").NoOptDefVal = "10"
	cmd.Flags().Lookup("processes").NoOptDefVal = "10"
	return cmd
}

func memstateReport(w io.Writer, slabTop, procTop int, all bool) error {
	showSlab := all || slabTop >= 0
	showProcs := all || procTop >= 0
	showMeminfo := all || (!showSlab && !showProcs)

	if showMeminfo {
		if err := memstate.ShowMeminfo(w, "/"); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	if showSlab {
		if slabTop < 0 {
			slabTop = 10
		}
		if err := memstate.ShowSlab(w, "/", slabTop); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	if showProcs {
		if procTop < 0 {
			procTop = 10
		}
		if err := memstate.ShowProcesses(w, procTop); err != nil {
			return err
		}
	}
	return nil
}

func runMemstate(cmd *cobra.Command, args []string) error {
	if memstateWatch <= 0 {
		return memstateReport(os.Stdout, memstateSlabTop, memstateProcTop, memstateAll)
	}

	if err := requireRoot(cmd, args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(),
		os.Interrupt, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()

	return memstate.Watch(ctx, memstate.WatchOptions{
		Interval:      time.Duration(memstateWatch) * time.Second,
		OutFile:       "/var/oled/memstate",
		LogrotateFile: "/etc/logrotate.d/oled-memstate",
		Sample: func(w io.Writer) error {
			return memstateReport(w, memstateSlabTop, memstateProcTop, true)
		},
	})
}
