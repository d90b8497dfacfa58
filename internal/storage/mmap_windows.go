//go:build windows

package storage

// Windows has no mapping grounded in the retrieval pack (no example repo
// demonstrates golang.org/x/sys/windows section-mapping); the mmap mode
// falls back to the positional-file backend there. See DESIGN.md.
func newMmapBackend(path string) (Backend, error) {
	return newFileBackend(path)
}
