// pkg/utils/lock.go

package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// InstanceLock is an advisory flock preventing two copies of the same tool
// from running at once (memtracker, lkce).
type InstanceLock struct {
	path string
	file *os.File
}

// AcquireInstanceLock takes an exclusive non-blocking flock on a per-tool
// lock file under /var/run. It fails immediately when another instance
// holds the lock.
func AcquireInstanceLock(tool string) (*InstanceLock, error) {
	path := filepath.Join("/var/run", fmt.Sprintf("oled-%s.lock", tool))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("unable to open lock file %s: %v", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("another instance of %s is already running", tool)
		}
		return nil, fmt.Errorf("unable to lock %s: %v", path, err)
	}

	return &InstanceLock{path: path, file: f}, nil
}

// Release drops the lock and removes the lock file.
func (l *InstanceLock) Release() error {
	if l.file == nil {
		return nil
	}
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("unable to unlock %s: %v", l.path, err)
	}
	err := l.file.Close()
	l.file = nil
	os.Remove(l.path)
	return err
}
