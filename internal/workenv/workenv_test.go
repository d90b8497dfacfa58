package workenv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestDirUsesNameUnderscoreVersion(t *testing.T) {
	t.Setenv("FLAVOR_CACHE_DIR", "/tmp/cacheroot")
	require.Equal(t, filepath.Join("/tmp/cacheroot", "workenv", "demo_1.0.0"), Dir("demo", "1.0.0"))
}

func TestCacheValidationMissingDeclarationAlwaysInvalid(t *testing.T) {
	dir := t.TempDir()
	require.False(t, IsCacheValid(dir, "1.0.0", nil))
	require.False(t, IsCacheValid(dir, "1.0.0", &CacheValidation{}))
}

func TestCacheValidationMissingMarkerInvalidates(t *testing.T) {
	dir := t.TempDir()
	cv := &CacheValidation{CheckFile: ".initialized", ExpectedContent: "1.0.0"}
	require.False(t, IsCacheValid(dir, "1.0.0", cv))
}

func TestCacheValidationWrongContentInvalidates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".initialized"), []byte("0.9.0"), 0o644))
	cv := &CacheValidation{CheckFile: ".initialized", ExpectedContent: "{version}"}
	require.False(t, IsCacheValid(dir, "1.0.0", cv))
}

func TestCacheValidationCorrectContentReuses(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".initialized"), []byte("1.0.0"), 0o644))
	cv := &CacheValidation{CheckFile: ".initialized", ExpectedContent: "{version}"}
	require.True(t, IsCacheValid(dir, "1.0.0", cv))
}

func TestTryAcquireAndReleaseLock(t *testing.T) {
	dir := t.TempDir()
	ok, err := TryAcquireLock(dir)
	require.NoError(t, err)
	require.True(t, ok)

	ok2, err := TryAcquireLock(dir)
	require.NoError(t, err)
	require.False(t, ok2)

	require.NoError(t, ReleaseLock(dir))

	ok3, err := TryAcquireLock(dir)
	require.NoError(t, err)
	require.True(t, ok3)
}

func TestExtractSlotsRawPayload(t *testing.T) {
	dir := t.TempDir()

	slots := []SlotSource{
		{Index: 0, ID: "payload", Ops: nil, Encoded: []byte("hello world")},
	}
	require.NoError(t, ExtractSlots(dir, slots, hclog.NewNullLogger()))

	data, err := os.ReadFile(filepath.Join(dir, "payload"))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestCleanupLifecycleSlots(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "init_slot"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "temp_slot"), 0o755))

	slots := []SlotSource{
		{Index: 0, ID: "init_slot", Lifecycle: "init"},
		{Index: 1, ID: "temp_slot", Lifecycle: "temp"},
		{Index: 2, ID: "runtime_slot", Lifecycle: "runtime"},
	}

	temps, err := CleanupLifecycleSlots(dir, slots)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "temp_slot")}, temps)

	_, err = os.Stat(filepath.Join(dir, "init_slot"))
	require.True(t, os.IsNotExist(err))
}

func TestRunSetupCommandsWriteFile(t *testing.T) {
	dir := t.TempDir()
	cmds := []SetupCommand{
		{Type: "write_file", Path: "{workenv}/marker.txt", Content: "{package_name}-{version}"},
	}
	noSlotRef := func(int) (string, bool) { return "", false }

	err := RunSetupCommands(dir, "demo", "1.0.0", cmds, os.Environ(), noSlotRef, nil, hclog.NewNullLogger())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "marker.txt"))
	require.NoError(t, err)
	require.Equal(t, "demo-1.0.0", string(data))
}

func TestRunSetupCommandsExecute(t *testing.T) {
	dir := t.TempDir()
	cmds := []SetupCommand{
		{Type: "execute", Command: "touch ran.txt"},
	}
	noSlotRef := func(int) (string, bool) { return "", false }

	err := RunSetupCommands(dir, "demo", "1.0.0", cmds, os.Environ(), noSlotRef, nil, hclog.NewNullLogger())
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "ran.txt"))
	require.NoError(t, err)
}

func TestRunSetupCommandsEnumerateContinuesOnFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))

	cmds := []SetupCommand{
		{Type: "enumerate_and_execute", Pattern: "{workenv}/*.txt", Command: "false"},
	}
	noSlotRef := func(int) (string, bool) { return "", false }

	var failures []string
	err := RunSetupCommands(dir, "demo", "1.0.0", cmds, os.Environ(), noSlotRef, func(match string, _ error) {
		failures = append(failures, match)
	}, hclog.NewNullLogger())
	require.NoError(t, err)
	require.Len(t, failures, 2)
}

func TestSlotRefSubstitution(t *testing.T) {
	dir := t.TempDir()
	cmds := []SetupCommand{
		{Type: "write_file", Path: "marker.txt", Content: "ref={slot:0}"},
	}
	slotRef := func(idx int) (string, bool) {
		if idx == 0 {
			return "payload", true
		}
		return "", false
	}
	err := RunSetupCommands(dir, "demo", "1.0.0", cmds, os.Environ(), slotRef, nil, hclog.NewNullLogger())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "marker.txt"))
	require.NoError(t, err)
	require.Equal(t, "ref="+filepath.Join(dir, "payload"), string(data))
}

func TestPlaceholderOrderPackageNameBeforeVersion(t *testing.T) {
	dir := t.TempDir()
	cmds := []SetupCommand{
		{Type: "write_file", Path: "marker.txt", Content: "{package_name}{version}"},
	}
	noSlotRef := func(int) (string, bool) { return "", false }

	// {package_name} is substituted before {version}, so a package named
	// after the version token has that token expanded as well. The
	// opposite order would leave "{version}1.0.0" behind.
	err := RunSetupCommands(dir, "{version}", "1.0.0", cmds, os.Environ(), noSlotRef, nil, hclog.NewNullLogger())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "marker.txt"))
	require.NoError(t, err)
	require.Equal(t, "1.0.01.0.0", string(data))
}

func TestExtractSlotsFixesWorkenvShebangs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))

	slots := []SlotSource{
		{Index: 0, ID: filepath.Join("bin", "run.sh"), Ops: nil, Encoded: []byte("#!{workenv}/bin/python3\necho hi\n")},
	}
	require.NoError(t, ExtractSlots(dir, slots, hclog.NewNullLogger()))

	data, err := os.ReadFile(filepath.Join(dir, "bin", "run.sh"))
	require.NoError(t, err)
	require.Equal(t, "#!"+dir+"/bin/python3\necho hi\n", string(data))
}

func TestResolveExecutableReducesUnixPathToBasename(t *testing.T) {
	resolved := resolveExecutable("/usr/bin/does-not-exist-anywhere", hclog.NewNullLogger())
	require.Equal(t, "does-not-exist-anywhere", resolved)
}
