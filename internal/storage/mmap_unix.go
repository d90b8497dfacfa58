//go:build !windows

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapBackend maps the full file once; ReadAt/ViewAt are slices of that
// single mapping. Views become dangling after Close, matching the "shared
// mapping" ownership model of spec §5.
type mmapBackend struct {
	file   *os.File
	data   []byte
	size   int64
	closed bool
}

func newMmapBackend(path string) (Backend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		f.Close()
		return nil, ErrEmptyFile
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &mmapBackend{file: f, data: data, size: info.Size()}, nil
}

func (b *mmapBackend) ViewAt(offset, length int64) ([]byte, error) {
	if b.closed {
		return nil, ErrAlreadyClosed
	}
	if err := validateRange(offset, length, b.size); err != nil {
		return nil, err
	}
	return b.data[offset : offset+length], nil
}

func (b *mmapBackend) ReadAt(offset, length int64) ([]byte, error) {
	view, err := b.ViewAt(offset, length)
	if err != nil {
		return nil, err
	}
	owned := make([]byte, length)
	copy(owned, view)
	return owned, nil
}

func (b *mmapBackend) Size() int64 {
	return b.size
}

func (b *mmapBackend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if err := unix.Munmap(b.data); err != nil {
		b.file.Close()
		return err
	}
	return b.file.Close()
}
