//go:build nozstd

package codec

import (
	"fmt"

	"github.com/provide-io/pspf2025/internal/pspfmt"
)

func init() {
	Register(&zstdCodec{})
}

// zstdCodec simulates a build where the ZSTD codec is absent. Apply
// silently passes data through (absence at build time is a build-
// environment concern, spec §4.4); Reverse fails loudly naming the
// missing codec.
type zstdCodec struct{}

func (zstdCodec) ID() uint8 { return pspfmt.OpZstd }

func (zstdCodec) Apply(input []byte, _ Options) ([]byte, error) {
	return input, nil
}

func (zstdCodec) Reverse(_ []byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: %s", ErrCodecUnavailable, pspfmt.OpName(pspfmt.OpZstd))
}
