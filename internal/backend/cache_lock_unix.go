// SPDX-License-Identifier: MPL-2.0

//go:build unix

package backend

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// cacheLockName is the well-known lock file inside the shared cache
// directory. The zero-byte file is harmless if orphaned — the kernel
// releases the flock automatically when the fd is closed (including on
// process crash).
const cacheLockName = ".lock"

// cacheLock holds a blocking exclusive flock on the shared cache directory,
// serializing writers across driver processes. Readers do not take it.
type cacheLock struct {
	file *os.File
}

// acquireCacheLock opens (or creates) the lock file and acquires a blocking
// exclusive flock. The call blocks until the lock is available.
func acquireCacheLock(cacheDir string) (*cacheLock, error) {
	lockPath := filepath.Join(cacheDir, cacheLockName)

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", lockPath, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", lockPath, err)
	}

	return &cacheLock{file: f}, nil
}

// Release unlocks the flock and closes the file descriptor. It is safe to
// call multiple times — subsequent calls are no-ops.
func (l *cacheLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	// LOCK_UN before Close for explicitness; Close also releases the flock.
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}
