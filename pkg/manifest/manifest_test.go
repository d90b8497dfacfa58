package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/provide-io/pspf2025/internal/pspfmt"
	"github.com/stretchr/testify/require"
)

func TestParseOperations(t *testing.T) {
	cases := []struct {
		in   string
		want []uint8
	}{
		{"", nil},
		{"none", nil},
		{"gzip", []uint8{pspfmt.OpGzip}},
		{"tar.gz", []uint8{pspfmt.OpTar, pspfmt.OpGzip}},
		{"bzip2", []uint8{pspfmt.OpBzip2}},
		{"tar.xz", []uint8{pspfmt.OpTar, pspfmt.OpXZ}},
		{"tar.zstd", []uint8{pspfmt.OpTar, pspfmt.OpZstd}},
	}
	for _, tc := range cases {
		got, err := ParseOperations(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseOperationsUnknown(t *testing.T) {
	_, err := ParseOperations("lz4")
	require.Error(t, err)
}

func TestLoadRequiresNameAndCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	require.NoError(t, os.WriteFile(path, []byte(`{"package":{"name":""},"execution":{"command":"run"}}`), 0o644))
	_, err := Load(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"package":{"name":"demo"},"execution":{"command":""}}`), 0o644))
	_, err = Load(path)
	require.Error(t, err)
}

func TestLoadDecodesFullManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	body := `{
		"package": {"name": "demo", "version": "1.0.0"},
		"execution": {"command": "{workenv}/bin/demo", "primary_slot": 0},
		"slots": [{"id": "payload", "source": "payload.bin", "operations": "gzip", "lifecycle": "runtime"}],
		"cache_validation": {"check_file": "{workenv}/.initialized", "expected_content": "{version}"},
		"setup_commands": [{"type": "write_file", "path": "{workenv}/.initialized", "content": "{version}"}],
		"runtime": {"env": {"pass": ["HOME"], "unset": ["TEMP"]}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "demo", m.Package.Name)
	require.Len(t, m.Slots, 1)
	require.Equal(t, "payload.bin", m.Slots[0].Source)
	require.NotNil(t, m.CacheValidation)
	require.Len(t, m.SetupCommands, 1)
	require.NotNil(t, m.Runtime)
	require.Equal(t, []string{"HOME"}, m.Runtime.Pass)
}
