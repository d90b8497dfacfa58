// Package permissions provides octal file-mode parsing/formatting for
// the permission field a slot's metadata may declare (spec §3.4
// per-slot "permissions").
package permissions

import (
	"fmt"
	"os"
	"strconv"
)

const (
	// DefaultFilePerms is applied to extracted files with no declared
	// permissions.
	DefaultFilePerms = 0o600
	// DefaultExecutablePerms is applied to slots whose purpose is
	// "binary" or "tool".
	DefaultExecutablePerms = 0o700
	// DefaultDirPerms is applied to directories created implicitly
	// during extraction.
	DefaultDirPerms = 0o700
)

// ParseOctalString parses a string like "0755" or "755" into an
// os.FileMode.
func ParseOctalString(s string) (os.FileMode, error) {
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("permissions: invalid octal string %q: %w", s, err)
	}
	return os.FileMode(v), nil
}

// FormatOctal renders a mode as a zero-padded octal string, e.g. "0755".
func FormatOctal(mode os.FileMode) string {
	return fmt.Sprintf("%04o", mode.Perm())
}

// IsExecutable reports whether any execute bit is set.
func IsExecutable(mode os.FileMode) bool {
	return mode.Perm()&0o111 != 0
}

// IsDirectory reports whether the mode's directory bit is set.
func IsDirectory(mode os.FileMode) bool {
	return mode&os.ModeDir != 0
}
