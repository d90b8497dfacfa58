// Package storage implements the PSPF reader's storage backend contract:
// read-at-offset over either a memory-mapped file or positional file I/O
// (spec §4.1).
package storage

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrEmptyFile is returned by the mmap backend when asked to map a
	// zero-length file.
	ErrEmptyFile = errors.New("storage: cannot mmap an empty file")

	// ErrOffsetOutOfRange is returned when offset/len fall outside the
	// backend's bounds.
	ErrOffsetOutOfRange = errors.New("storage: offset out of range")

	// ErrAlreadyClosed is returned by any call made after Close.
	ErrAlreadyClosed = errors.New("storage: backend already closed")
)

// Mode selects which backend implementation Open constructs.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeMmap Mode = "mmap"
	ModeFile Mode = "file"
)

// Backend exposes read-only, offset-addressed access to a single file for
// the lifetime of a Reader. Exactly one backend instance borrows the file.
type Backend interface {
	// ReadAt returns an owned copy of len bytes starting at offset.
	ReadAt(offset, length int64) ([]byte, error)

	// ViewAt returns a borrowed view into len bytes starting at offset.
	// The view must not be used after Close.
	ViewAt(offset, length int64) ([]byte, error)

	// Size returns the total file size in bytes.
	Size() int64

	// Close releases the mapping or file handle. Idempotent.
	Close() error
}

// Open selects and constructs a backend for path according to mode.
// ModeAuto picks mmap when the file is larger than one page, otherwise
// file.
func Open(path string, mode Mode) (Backend, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("storage: stat %s: %w", path, err)
	}

	effective := mode
	if effective == ModeAuto || effective == "" {
		if info.Size() > int64(os.Getpagesize()) {
			effective = ModeMmap
		} else {
			effective = ModeFile
		}
	}

	switch effective {
	case ModeMmap:
		return newMmapBackend(path)
	case ModeFile:
		return newFileBackend(path)
	default:
		return nil, fmt.Errorf("storage: unknown backend mode %q", mode)
	}
}

func validateRange(offset, length, size int64) error {
	if offset < 0 || length < 0 || offset+length > size {
		return fmt.Errorf("%w: offset=%d length=%d size=%d", ErrOffsetOutOfRange, offset, length, size)
	}
	return nil
}
