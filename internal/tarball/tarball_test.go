package tarball

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildAndExtractRoundTrip(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "bin", "tool"), []byte("#!/bin/sh\necho hi\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "readme.txt"), []byte("hello"), 0o644))

	data, err := BuildDirTar(src, true)
	require.NoError(t, err)
	require.True(t, IsTarball(data))

	dst := t.TempDir()
	require.NoError(t, ExtractMode(data, dst, 0o700))

	got, err := os.ReadFile(filepath.Join(dst, "readme.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	got, err = os.ReadFile(filepath.Join(dst, "bin", "tool"))
	require.NoError(t, err)
	require.Equal(t, "#!/bin/sh\necho hi\n", string(got))
}

func TestBuildDirTarDeterministic(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("a"), 0o644))

	first, err := BuildDirTar(src, true)
	require.NoError(t, err)
	second, err := BuildDirTar(src, true)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestIsTarballRejectsShortInput(t *testing.T) {
	require.False(t, IsTarball([]byte("short")))
}
