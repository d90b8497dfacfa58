package codec

import (
	"bytes"
	"compress/gzip"

	"github.com/provide-io/pspf2025/internal/pspfmt"
)

func init() {
	Register(&gzipCodec{})
}

// gzipCodec implements DEFLATE with gzip framing. A deterministic apply
// suppresses the embedded name and mtime (spec §4.4).
type gzipCodec struct{}

func (gzipCodec) ID() uint8 { return pspfmt.OpGzip }

func (gzipCodec) Apply(input []byte, opts Options) ([]byte, error) {
	level := opts.Level
	if level < 1 || level > 9 {
		level = gzip.DefaultCompression
	}

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if !opts.Deterministic {
		// Non-deterministic builds may still leave name/mtime blank; we
		// never embed them either way since the source data has no path.
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

func (gzipCodec) Reverse(input []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readAll(r)
}
