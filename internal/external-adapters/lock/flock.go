// Package lock provides advisory file locks for serializing repairs.
package lock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/ochairo/jnirepair/internal/domain/failures"
	"github.com/ochairo/jnirepair/internal/domain/interfaces/gateways"
)

// ErrBusy is returned when another process holds the lock
var ErrBusy = errors.New("lock is held by another process")

// FileLocker takes exclusive, non-blocking flock(2) locks on lock files
type FileLocker struct{}

// NewFileLocker creates a new file locker
func NewFileLocker() *FileLocker {
	return &FileLocker{}
}

// Lock creates path if needed and locks it. Contention returns an error
// wrapping ErrBusy with kind AlreadySatisfied.
func (l *FileLocker) Lock(path string) (gateways.Unlocker, error) {
	//nolint:gosec // G304: path is derived from the container being repaired
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, failures.New(failures.Internal, "cannot open lock file "+path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, failures.New(failures.AlreadySatisfied, "another repair is running",
				fmt.Errorf("%s: %w", path, ErrBusy))
		}
		return nil, failures.New(failures.Internal, "cannot lock "+path, err)
	}
	return &fileLock{file: f}, nil
}

type fileLock struct {
	file *os.File
}

// Unlock releases the lock; the lock file itself is left in place so that a
// concurrent waiter never locks an unlinked inode
func (l *fileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}
