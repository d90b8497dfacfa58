//go:build !nozstd

package codec

import (
	"bytes"

	"github.com/klauspost/compress/zstd"
	"github.com/provide-io/pspf2025/internal/pspfmt"
)

func init() {
	Register(&zstdCodec{})
}

// zstdCodec implements Zstandard compression. Built under the nozstd tag
// exercises the "codec unavailable at runtime" path instead (spec §4.4,
// §9 "Codec availability").
type zstdCodec struct{}

func (zstdCodec) ID() uint8 { return pspfmt.OpZstd }

func levelToZstd(level int) zstd.EncoderLevel {
	switch {
	case level <= 0:
		return zstd.SpeedDefault
	case level <= 2:
		return zstd.SpeedFastest
	case level <= 5:
		return zstd.SpeedDefault
	case level <= 8:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

func (zstdCodec) Apply(input []byte, opts Options) ([]byte, error) {
	w, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(levelToZstd(opts.Level)))
	if err != nil {
		return nil, err
	}
	defer w.Close()
	return w.EncodeAll(input, nil), nil
}

func (zstdCodec) Reverse(input []byte) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readAll(r)
}
