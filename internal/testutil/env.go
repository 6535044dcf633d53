// Package testutil provides helpers shared by sidegen's tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// IsolateXDG points the settings and cache locations into a fresh temp dir
// for the duration of the test and returns that dir.
func IsolateXDG(t *testing.T) string {
	t.Helper()
	dir := TempDir(t)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	return dir
}

// TempDir is t.TempDir with symlinks resolved (/var vs /private/var on
// macOS), so paths compare equal to what the code under test reports.
func TempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	return dir
}

// Chdir switches to dir until the test ends.
func Chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() { os.Chdir(prev) })
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
