// pkg/memtracker/memtracker.go

// Package memtracker periodically appends kernel memory statistics to a
// log file so fragmentation and slab growth can be tracked over time.
package memtracker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
	"github.com/ryan-mccabe/oled-tools/pkg/utils"
)

// Files sampled on every interval.
var filesToLog = []string{
	"/proc/vmstat",
	"/proc/buddyinfo",
	"/proc/slabinfo",
	"/proc/zoneinfo",
	"/sys/kernel/debug/extfrag/unusable_index",
	"/sys/kernel/debug/extfrag/extfrag_index",
	"/sys/kernel/slab/dentry/objects",
	"/sys/kernel/slab/dentry/objects_partial",
	"/sys/kernel/slab/dentry/total_objects",
}

// Files that are costly for the kernel to produce; sampled at most once
// per expensiveDelay even when the interval is shorter.
var expensiveFiles = []string{
	"/proc/pagetypeinfo",
	"/sys/kernel/debug/extfrag/compactinfo",
}

// Commands whose output is appended alongside the files.
var commandsToLog = [][]string{
	{"numastat", "-m"},
	{"uname", "-a"},
}

const expensiveDelay = 596 * time.Second

const logrotateConf = `%s {
    compress
    copytruncate
    missingok
    rotate 15
    daily
}
`

// Tracker appends timestamped samples of kernel memory state to OutFile.
type Tracker struct {
	OutFile       string
	LogrotateFile string
	Interval      time.Duration

	// BasePath prefixes the sampled file paths. "/" on a real system.
	BasePath string

	lastExpensive time.Time
}

// New returns a tracker with the standard paths and the given interval.
func New(interval time.Duration) *Tracker {
	return &Tracker{
		OutFile:       "/var/oled/memtracker",
		LogrotateFile: "/etc/logrotate.d/oled-memtracker",
		Interval:      interval,
		BasePath:      "/",
	}
}

// SetupLogrotate writes a logrotate drop-in so the sample log cannot grow
// without bound.
func (tr *Tracker) SetupLogrotate() error {
	content := fmt.Sprintf(logrotateConf, tr.OutFile)
	if err := os.WriteFile(tr.LogrotateFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("unable to write %s: %v", tr.LogrotateFile, err)
	}
	return nil
}

// RemoveLogrotate deletes the drop-in written by SetupLogrotate.
func (tr *Tracker) RemoveLogrotate() {
	if err := os.Remove(tr.LogrotateFile); err != nil && !os.IsNotExist(err) {
		logging.External.Warn().Msgf("unable to remove %s: %v", tr.LogrotateFile, err)
	}
}

// Sample appends one timestamped block of all tracked files and commands
// to w. Expensive files are skipped when sampled too recently.
func (tr *Tracker) Sample(w io.Writer) error {
	now := time.Now()
	fmt.Fprintf(w, "======== zzz %s ========\n", now.Format("2006-01-02 15:04:05"))

	for _, path := range filesToLog {
		tr.logFile(w, path)
	}

	if now.Sub(tr.lastExpensive) >= expensiveDelay {
		for _, path := range expensiveFiles {
			tr.logFile(w, path)
		}
		tr.lastExpensive = now
	}

	for _, cmd := range commandsToLog {
		output, err := utils.ExecuteCommand(cmd[0], cmd[1:]...)
		fmt.Fprintf(w, "-------- %s --------\n", strings.Join(cmd, " "))
		if err != nil {
			fmt.Fprintf(w, "unavailable: %v\n", err)
			continue
		}
		io.WriteString(w, output)
		if !strings.HasSuffix(output, "\n") {
			io.WriteString(w, "\n")
		}
	}
	return nil
}

func (tr *Tracker) logFile(w io.Writer, path string) {
	fmt.Fprintf(w, "-------- %s --------\n", path)
	content, err := utils.ReadFileUnder(tr.BasePath, path)
	if err != nil {
		fmt.Fprintf(w, "unavailable: %v\n", err)
		return
	}
	io.WriteString(w, content)
	if !strings.HasSuffix(content, "\n") {
		io.WriteString(w, "\n")
	}
}

// Run samples immediately and then on every interval until ctx is
// cancelled. It holds the memtracker instance lock for its lifetime and
// cleans up the logrotate drop-in on exit.
func (tr *Tracker) Run(ctx context.Context) error {
	lock, err := utils.AcquireInstanceLock("memtracker")
	if err != nil {
		return err
	}
	defer lock.Release()

	if err := os.MkdirAll(filepath.Dir(tr.OutFile), 0755); err != nil {
		return fmt.Errorf("unable to create %s: %v", filepath.Dir(tr.OutFile), err)
	}
	out, err := os.OpenFile(tr.OutFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("unable to open %s: %v", tr.OutFile, err)
	}
	defer out.Close()

	if err := tr.SetupLogrotate(); err != nil {
		return err
	}
	defer tr.RemoveLogrotate()

	// Pre-age the expensive timer so the first sample includes the
	// expensive files.
	tr.lastExpensive = time.Now().Add(-2 * expensiveDelay)

	logging.External.Info().Msgf("logging memory statistics to %s every %s",
		tr.OutFile, tr.Interval)

	ticker := time.NewTicker(tr.Interval)
	defer ticker.Stop()

	for {
		if err := tr.Sample(out); err != nil {
			logging.External.Warn().Msgf("sample failed: %v", err)
		}
		select {
		case <-ctx.Done():
			logging.External.Info().Msg("memtracker stopping")
			return nil
		case <-ticker.C:
		}
	}
}
