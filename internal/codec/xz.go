package codec

import (
	"bytes"

	"github.com/provide-io/pspf2025/internal/pspfmt"
	"github.com/ulikunitz/xz"
)

func init() {
	Register(&xzCodec{})
}

// xzCodec implements LZMA2 via XZ framing, honoring the caller's
// compression level by scaling the dictionary capacity (spec §4.4).
type xzCodec struct{}

func (xzCodec) ID() uint8 { return pspfmt.OpXZ }

// levelToDictCap maps the 1-9 compression level onto an XZ dictionary
// size; higher levels trade memory for ratio, mirroring xz CLI presets.
func levelToDictCap(level int) int {
	if level < 1 || level > 9 {
		level = 6
	}
	const mib = 1 << 20
	sizes := [10]int{0, 1 * mib, 2 * mib, 4 * mib, 4 * mib, 8 * mib, 8 * mib, 16 * mib, 32 * mib, 64 * mib}
	return sizes[level]
}

func (xzCodec) Apply(input []byte, opts Options) ([]byte, error) {
	cfg := xz.WriterConfig{DictCap: levelToDictCap(opts.Level)}
	if err := cfg.Verify(); err != nil {
		cfg = xz.WriterConfig{}
	}

	var buf bytes.Buffer
	w, err := cfg.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(input); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (xzCodec) Reverse(input []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}
	return readAll(r)
}
