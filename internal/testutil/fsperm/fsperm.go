// Package fsperm asserts owner-only permissions on vault data in tests.
package fsperm

import (
	"os"
	"runtime"
	"testing"
)

// AssertPrivateDir fails unless dir is a directory with mode 0700.
func AssertPrivateDir(t testing.TB, dir string) {
	t.Helper()
	assertMode(t, dir, true, 0o700)
}

// AssertPrivateFile fails unless path is a regular file with mode 0600.
func AssertPrivateFile(t testing.TB, path string) {
	t.Helper()
	assertMode(t, path, false, 0o600)
}

func assertMode(t testing.TB, path string, wantDir bool, want os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if info.IsDir() != wantDir {
		t.Fatalf("%s: directory=%v, want %v", path, info.IsDir(), wantDir)
	}
	if runtime.GOOS == "windows" {
		return
	}
	if perm := info.Mode().Perm(); perm != want {
		t.Fatalf("%s: perm %04o, want %04o", path, perm, want)
	}
}
