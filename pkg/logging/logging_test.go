package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesPrefixedLines(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("test", "info", &buf)
	logger.Info("hello")
	require.Contains(t, buf.String(), "📦 ")
	require.Contains(t, buf.String(), "hello")
}

func TestGetLogLevelDefaultsToWarn(t *testing.T) {
	t.Setenv("FLAVOR_LOG_LEVEL", "")
	require.Equal(t, "warn", GetLogLevel())
}

func TestGetLogLevelHonorsEnv(t *testing.T) {
	t.Setenv("FLAVOR_LOG_LEVEL", "debug")
	require.Equal(t, "debug", GetLogLevel())
}

func TestPrefixWriterBuffersPartialLines(t *testing.T) {
	var buf bytes.Buffer
	pw := NewPrefixWriter(">> ", &buf)

	n, err := pw.Write([]byte("partial"))
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.Empty(t, buf.String())

	_, err = pw.Write([]byte(" line\n"))
	require.NoError(t, err)
	require.Equal(t, ">> partial line\n", buf.String())
}
