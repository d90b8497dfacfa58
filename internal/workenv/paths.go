// Package workenv implements the on-disk extraction cache of spec §4.7:
// locating, locking, validating, and populating the directory a
// launcher extracts its slots into before exec'ing the payload.
package workenv

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// CacheRoot returns $XDG_CACHE_HOME/flavor (or platform equivalent),
// honoring FLAVOR_CACHE_DIR as an override. Spec §4.7.
func CacheRoot() string {
	if dir := os.Getenv("FLAVOR_CACHE_DIR"); dir != "" {
		return dir
	}

	switch runtime.GOOS {
	case "darwin":
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, "Library", "Caches", "flavor")
		}
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "flavor", "cache")
		}
	default:
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "flavor")
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".cache", "flavor")
		}
	}

	return filepath.Join(os.TempDir(), "flavor", "cache")
}

// Dir returns the workenv directory for a given package identity:
// {cacheRoot}/workenv/{name}_{version}, per spec §4.7.
func Dir(name, version string) string {
	return filepath.Join(CacheRoot(), "workenv", fmt.Sprintf("%s_%s", name, version))
}

// LockFile is the advisory lock path beneath a workenv dir (spec §9
// "Concurrency primitives").
func LockFile(workenvDir string) string {
	return filepath.Join(workenvDir, ".extraction.lock")
}

// CompleteMarker is the extraction-complete marker path.
func CompleteMarker(workenvDir string) string {
	return filepath.Join(workenvDir, ".extraction.complete")
}

// Ensure creates the workenv directory if it doesn't already exist.
func Ensure(workenvDir string) error {
	return os.MkdirAll(workenvDir, 0o755)
}
