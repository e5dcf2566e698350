// pkg/memstate/logfile.go

package memstate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
)

// Disk guard limits for watch mode: refuse to log when the target
// filesystem is nearly full.
const (
	maxDiskUtilPercent = 85
	minFreeMB          = 200
)

const logrotateConf = `%s {
    compress
    copytruncate
    missingok
    rotate 20
    size 20M
}
`

// WatchOptions control the periodic logging mode.
type WatchOptions struct {
	Interval      time.Duration
	OutFile       string
	LogrotateFile string

	// Sample writes one report block. Wired to the slab/meminfo/process
	// reporters by the CLI.
	Sample func(w io.Writer) error
}

// DiskSpaceOK checks utilization and free space of the filesystem holding
// dir against the guard limits.
func DiskSpaceOK(dir string) (bool, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(dir, &fs); err != nil {
		return false, fmt.Errorf("statfs %s: %v", dir, err)
	}

	total := fs.Blocks * uint64(fs.Bsize)
	free := fs.Bavail * uint64(fs.Bsize)
	if total == 0 {
		return false, fmt.Errorf("statfs %s reported zero size", dir)
	}

	utilPercent := 100 * (total - free) / total
	freeMB := free / (1024 * 1024)
	if utilPercent >= maxDiskUtilPercent || freeMB < minFreeMB {
		return false, nil
	}
	return true, nil
}

// WriteLogrotate installs the watch-mode logrotate drop-in.
func WriteLogrotate(dropIn, outFile string) error {
	content := fmt.Sprintf(logrotateConf, outFile)
	if err := os.WriteFile(dropIn, []byte(content), 0644); err != nil {
		return fmt.Errorf("unable to write %s: %v", dropIn, err)
	}
	return nil
}

// Watch appends a report block to opts.OutFile on every interval until
// ctx is cancelled. Logging stops rather than filling a nearly-full disk.
func Watch(ctx context.Context, opts WatchOptions) error {
	dir := filepath.Dir(opts.OutFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("unable to create %s: %v", dir, err)
	}

	if ok, err := DiskSpaceOK(dir); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("not enough free space on %s to start logging", dir)
	}

	out, err := os.OpenFile(opts.OutFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("unable to open %s: %v", opts.OutFile, err)
	}
	defer out.Close()

	if err := WriteLogrotate(opts.LogrotateFile, opts.OutFile); err != nil {
		return err
	}

	logging.External.Info().Msgf("logging memory state to %s every %s",
		opts.OutFile, opts.Interval)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		if ok, err := DiskSpaceOK(dir); err != nil || !ok {
			return fmt.Errorf("stopping, %s is running out of space", dir)
		}

		fmt.Fprintf(out, "======== %s ========\n", time.Now().Format("2006-01-02 15:04:05"))
		if err := opts.Sample(out); err != nil {
			logging.External.Warn().Msgf("sample failed: %v", err)
		}

		select {
		case <-ctx.Done():
			logging.External.Info().Msg("memstate watch stopping")
			return nil
		case <-ticker.C:
		}
	}
}
