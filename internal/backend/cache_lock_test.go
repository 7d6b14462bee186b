// SPDX-License-Identifier: MPL-2.0

//go:build unix

package backend

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCacheLock_AcquireRelease(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	lock, err := acquireCacheLock(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, cacheLockName)); err != nil {
		t.Errorf("lock file missing: %v", err)
	}

	lock.Release()
	// Release is idempotent.
	lock.Release()

	// The lock can be re-acquired after release.
	again, err := acquireCacheLock(dir)
	if err != nil {
		t.Fatalf("re-acquire failed: %v", err)
	}
	again.Release()
}
