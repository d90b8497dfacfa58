package codec

import (
	"testing"

	"github.com/provide-io/pspf2025/internal/pspfmt"
	"github.com/stretchr/testify/require"
)

func TestChainRoundTripPerCodec(t *testing.T) {
	input := []byte("the quick brown fox jumps over the lazy dog, repeated for compressibility, repeated for compressibility")

	cases := []struct {
		name string
		ops  []uint8
	}{
		{"gzip", []uint8{pspfmt.OpGzip}},
		{"bzip2", []uint8{pspfmt.OpBzip2}},
		{"xz", []uint8{pspfmt.OpXZ}},
		{"zstd", []uint8{pspfmt.OpZstd}},
		{"gzip-then-bzip2", []uint8{pspfmt.OpGzip, pspfmt.OpBzip2}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := ApplyChain(tc.ops, input, Options{Level: 6})
			require.NoError(t, err)

			decoded, err := ReverseChain(tc.ops, encoded)
			require.NoError(t, err)
			require.Equal(t, input, decoded)
		})
	}
}

func TestChainSkipsTar(t *testing.T) {
	input := []byte("raw tar stream bytes")
	ops := []uint8{pspfmt.OpTar, pspfmt.OpGzip}

	encoded, err := ApplyChain(ops, input, Options{Level: 6})
	require.NoError(t, err)

	decoded, err := ReverseChain(ops, encoded)
	require.NoError(t, err)
	require.Equal(t, input, decoded)
}

func TestChainNoneIsRawPayload(t *testing.T) {
	input := []byte("untouched")
	decoded, err := ReverseChain(nil, input)
	require.NoError(t, err)
	require.Equal(t, input, decoded)
}

func TestChainUnknownOpIsHardError(t *testing.T) {
	_, err := ApplyChain([]uint8{0x7E}, []byte("x"), Options{})
	require.Error(t, err)
}
