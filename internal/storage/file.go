package storage

import "os"

// fileBackend performs pread-style reads; all returns are owned copies.
type fileBackend struct {
	file   *os.File
	size   int64
	closed bool
}

func newFileBackend(path string) (Backend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileBackend{file: f, size: info.Size()}, nil
}

func (b *fileBackend) ReadAt(offset, length int64) ([]byte, error) {
	if b.closed {
		return nil, ErrAlreadyClosed
	}
	if err := validateRange(offset, length, b.size); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if length == 0 {
		return buf, nil
	}
	if _, err := b.file.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// ViewAt has no borrowed-view advantage over a file backend; it returns an
// owned copy like ReadAt, matching the "file backend returns owned
// buffers" semantics of spec §4.1.
func (b *fileBackend) ViewAt(offset, length int64) ([]byte, error) {
	return b.ReadAt(offset, length)
}

func (b *fileBackend) Size() int64 {
	return b.size
}

func (b *fileBackend) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.file.Close()
}
