package envlayer

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func envToMap(env []string) map[string]string {
	return toMap(env)
}

func TestApplyLayeredComposition(t *testing.T) {
	base := []string{"PATH=/usr/bin", "HOME=/h", "OLD=v1", "TEMP=t", "KEEP=k"}
	spec := Spec{
		Pass:  []string{"HOME", "KEEP*"},
		Unset: []string{"TEMP", "OLD"},
		Map:   map[string]string{"OLD": "NEW"},
		Set:   map[string]string{"X": "1"},
	}

	result := envToMap(Apply(base, spec, nil))

	require.Equal(t, "/usr/bin", result["PATH"])
	require.Equal(t, "/h", result["HOME"])
	require.Equal(t, "k", result["KEEP"])
	require.Equal(t, "1", result["X"])

	_, hasTemp := result["TEMP"]
	_, hasOld := result["OLD"]
	_, hasNew := result["NEW"]
	require.False(t, hasTemp)
	require.False(t, hasOld)
	require.False(t, hasNew, "NEW must be absent: OLD was unset before the map ran")
}

func TestApplyIdempotent(t *testing.T) {
	base := []string{"PATH=/usr/bin", "HOME=/h", "OLD=v1", "TEMP=t", "KEEP=k"}
	spec := Spec{
		Pass:  []string{"HOME", "KEEP*"},
		Unset: []string{"TEMP", "OLD"},
		Map:   map[string]string{"OLD": "NEW"},
		Set:   map[string]string{"X": "1"},
	}

	once := Apply(base, spec, nil)
	sort.Strings(once)
	twice := Apply(once, spec, nil)
	sort.Strings(twice)

	require.Equal(t, once, twice)
}

func TestApplyWildcardUnsetKeepsPreserved(t *testing.T) {
	base := []string{"A=1", "B=2", "KEEP=3"}
	spec := Spec{Pass: []string{"KEEP"}, Unset: []string{"*"}}

	result := envToMap(Apply(base, spec, nil))
	require.Equal(t, map[string]string{"KEEP": "3"}, result)
}

func TestWithWorkenvPathPrepends(t *testing.T) {
	env := []string{"PATH=/usr/bin"}
	result := envToMap(WithWorkenvPath(env, "/cache/flavor/workenv/demo_1.0.0"))
	require.Contains(t, result["PATH"], "/cache/flavor/workenv/demo_1.0.0/bin")
	require.Contains(t, result["PATH"], "/usr/bin")
}

func TestComposeAppliesPlatformLayerLast(t *testing.T) {
	base := []string{"PATH=/usr/bin"}
	spec := Spec{Set: map[string]string{"FLAVOR_OS": "bogus"}}
	overrides := map[string]string{"FLAVOR_ARCH": "also-bogus"}

	result := envToMap(Compose(base, spec, "/workenv", overrides, nil))
	require.NotEqual(t, "bogus", result["FLAVOR_OS"])
	require.NotEqual(t, "also-bogus", result["FLAVOR_ARCH"])
	require.NotEmpty(t, result["FLAVOR_PLATFORM"])
}

func TestNormalizeArchTable(t *testing.T) {
	require.Equal(t, "amd64", NormalizeArch("x86_64"))
	require.Equal(t, "amd64", NormalizeArch("AMD64"))
	require.Equal(t, "arm64", NormalizeArch("aarch64"))
	require.Equal(t, "arm64", NormalizeArch("arm64"))
	require.Equal(t, "x86", NormalizeArch("i686"))
	require.Equal(t, "i386", NormalizeArch("i386"))
}

func TestNormalizeOSTable(t *testing.T) {
	require.Equal(t, "darwin", NormalizeOS("Darwin"))
	require.Equal(t, "linux", NormalizeOS("Linux"))
	require.Equal(t, "windows", NormalizeOS("Windows"))
}
