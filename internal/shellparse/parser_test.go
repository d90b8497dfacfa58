package shellparse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitBasic(t *testing.T) {
	tokens, err := Split("echo hello world")
	require.NoError(t, err)
	require.Equal(t, []string{"echo", "hello", "world"}, tokens)
}

func TestSplitSingleQuotesSuppressEscaping(t *testing.T) {
	tokens, err := Split(`echo 'a b\c'`)
	require.NoError(t, err)
	require.Equal(t, []string{"echo", `a b\c`}, tokens)
}

func TestSplitDoubleQuotesAllowEscaping(t *testing.T) {
	tokens, err := Split(`echo "a \"b\" c"`)
	require.NoError(t, err)
	require.Equal(t, []string{"echo", `a "b" c`}, tokens)
}

func TestSplitBackslashEscapesOutsideQuotes(t *testing.T) {
	tokens, err := Split(`echo a\ b`)
	require.NoError(t, err)
	require.Equal(t, []string{"echo", "a b"}, tokens)
}

func TestSplitUnclosedQuoteErrors(t *testing.T) {
	_, err := Split(`echo 'unterminated`)
	require.ErrorIs(t, err, ErrUnclosedQuote)
}

func TestSplitTrailingBackslashErrors(t *testing.T) {
	_, err := Split(`echo foo\`)
	require.ErrorIs(t, err, ErrTrailingEscape)
}

func TestJoinQuotesSpecialTokens(t *testing.T) {
	joined := Join([]string{"echo", "a b", "plain"})
	tokens, err := Split(joined)
	require.NoError(t, err)
	require.Equal(t, []string{"echo", "a b", "plain"}, tokens)
}
