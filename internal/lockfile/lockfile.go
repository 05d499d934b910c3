// Package lockfile guards the bot's data directory against a second running
// instance. Two processes writing the same task document would race each
// other's renames, so run refuses to start while the lock is held.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrAlreadyLocked indicates another bot instance holds the lock.
	ErrAlreadyLocked = errors.New("data directory already locked by another instance")
)

// Lock is a held data-directory lock.
type Lock struct {
	path string
	f    *os.File
}

// AcquireDir takes the lock for a data directory, creating the directory if
// needed. The lock file is <dir>/lock.
func AcquireDir(dir string) (*Lock, error) {
	if dir == "" {
		return nil, errors.New("lock dir is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return Acquire(filepath.Join(dir, "lock"))
}

// Acquire takes an exclusive, non-blocking lock on path.
func Acquire(path string) (*Lock, error) {
	if path == "" {
		return nil, fmt.Errorf("lock path is empty")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}

	// Best-effort: record the holder's pid for troubleshooting.
	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Sync()

	return &Lock{path: path, f: f}, nil
}

func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	// Unlock first; close always.
	unlockErr := unlockFile(l.f)
	closeErr := l.f.Close()
	l.f = nil
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}
