// Package pspfmt implements the PSPF/2025 on-disk binary layout: the
// trailer index block, the slot descriptor, and the packed operation
// chain. Every function here is a pure byte-layout transform; no I/O.
package pspfmt

// FormatVersion is the PSPF/2025 format revision stamped into every index.
const FormatVersion uint32 = 0x20250001

const (
	// IndexSize is the packed size of the index block, before the
	// trailing public key, signature, and end sentinel.
	IndexSize = 256

	// PublicKeySize is the Ed25519 public key length.
	PublicKeySize = 32

	// SignatureFieldSize is the fixed-width signature slot; the real
	// Ed25519 signature is 64 bytes, zero-padded to this width.
	SignatureFieldSize = 512

	// SentinelSize is the byte length of each trailer sentinel.
	SentinelSize = 4

	// TrailerSize is the total fixed trailer length: index + public key +
	// signature + end sentinel, 256 + 32 + 512 + 4 = 804 bytes.
	TrailerSize = IndexSize + PublicKeySize + SignatureFieldSize + SentinelSize

	// SlotDescriptorSize is the packed size of one slot descriptor.
	SlotDescriptorSize = 64

	// SlotAlignment is the byte boundary every slot offset must satisfy.
	SlotAlignment = 8
)

// StartSentinel and EndSentinel are the protocol-constant bookend
// sequences. They must never change across implementations (spec §6.1).
var (
	StartSentinel = []byte{0xF0, 0x9F, 0x93, 0xA6} // "📦"
	EndSentinel   = []byte{0xF0, 0x9F, 0xAA, 0x84}  // "🪄"
)
