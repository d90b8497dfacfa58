// Package codec implements the PSPF/2025 operation pipeline: applying and
// reversing the packed chain of bundle/compression operations attached to
// a slot (spec §4.4, §3.5).
package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/provide-io/pspf2025/internal/pspfmt"
)

// ErrCodecUnavailable is returned by Reverse when the chain names a codec
// that was not compiled into this binary (spec §4.4, §9 "Codec
// availability").
var ErrCodecUnavailable = errors.New("codec: required codec not available at runtime")

// Options controls how a codec applies a forward transform.
type Options struct {
	// Level is the compression level, 1-9. BZIP2 ignores this and always
	// compresses at level 9.
	Level int

	// Deterministic suppresses embedded filenames/mtimes where the codec
	// supports it.
	Deterministic bool
}

// Codec is a single reversible transform keyed by an op code.
type Codec interface {
	ID() uint8
	Apply(input []byte, opts Options) ([]byte, error)
	Reverse(input []byte) ([]byte, error)
}

var registry = map[uint8]Codec{}

// Register installs a codec implementation under its op code. Called from
// each codec file's init().
func Register(c Codec) {
	registry[c.ID()] = c
}

// Get retrieves a registered codec by op code.
func Get(id uint8) (Codec, bool) {
	c, ok := registry[id]
	return c, ok
}

// ApplyChain runs each op in the chain forward, low-to-high, skipping
// OP_TAR (bundle formation is handled by the caller, not the codec
// pipeline).
func ApplyChain(ops []uint8, data []byte, opts Options) ([]byte, error) {
	result := data
	for _, op := range ops {
		if op == pspfmt.OpNone || op == pspfmt.OpTar {
			continue
		}
		c, ok := Get(op)
		if !ok {
			return nil, fmt.Errorf("codec: unknown operation 0x%02x (%s)", op, pspfmt.OpName(op))
		}
		out, err := c.Apply(result, opts)
		if err != nil {
			return nil, fmt.Errorf("codec: apply %s: %w", pspfmt.OpName(op), err)
		}
		result = out
	}
	return result, nil
}

// ReverseChain runs each op in the chain in reverse order, skipping
// OP_TAR (extraction is handled separately by the caller).
func ReverseChain(ops []uint8, data []byte) ([]byte, error) {
	result := data
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if op == pspfmt.OpNone || op == pspfmt.OpTar {
			continue
		}
		c, ok := Get(op)
		if !ok {
			return nil, fmt.Errorf("codec: unknown operation 0x%02x (%s)", op, pspfmt.OpName(op))
		}
		out, err := c.Reverse(result)
		if err != nil {
			return nil, fmt.Errorf("codec: reverse %s: %w", pspfmt.OpName(op), err)
		}
		result = out
	}
	return result, nil
}

// readAll is a small helper shared by the streaming codecs below.
func readAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}
