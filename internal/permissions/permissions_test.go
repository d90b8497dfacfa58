package permissions

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOctalStringRoundTrip(t *testing.T) {
	mode, err := ParseOctalString("0755")
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), mode)
	require.Equal(t, "0755", FormatOctal(mode))
}

func TestParseOctalStringWithoutLeadingZero(t *testing.T) {
	mode, err := ParseOctalString("600")
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), mode)
}

func TestParseOctalStringInvalid(t *testing.T) {
	_, err := ParseOctalString("not-octal")
	require.Error(t, err)
}

func TestIsExecutable(t *testing.T) {
	require.True(t, IsExecutable(0o700))
	require.False(t, IsExecutable(0o600))
}
