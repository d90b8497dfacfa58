package codec

import (
	"bytes"

	"github.com/dsnet/compress/bzip2"
	"github.com/provide-io/pspf2025/internal/pspfmt"
)

func init() {
	Register(&bzip2Codec{})
}

// bzip2Codec forces level 9 unconditionally regardless of the caller's
// requested level, per spec §4.4.
type bzip2Codec struct{}

func (bzip2Codec) ID() uint8 { return pspfmt.OpBzip2 }

func (bzip2Codec) Apply(input []byte, _ Options) ([]byte, error) {
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: 9})
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

func (bzip2Codec) Reverse(input []byte) ([]byte, error) {
	r, err := bzip2.NewReader(bytes.NewReader(input), &bzip2.ReaderConfig{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readAll(r)
}
