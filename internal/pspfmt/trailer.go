package pspfmt

import "fmt"

// Trailer is the fixed TrailerSize structure at the end of every package
// file: the index block, the Ed25519 public key, the zero-padded
// signature, and the end sentinel (spec §3.1, §3.2).
type Trailer struct {
	Index     Index
	PublicKey [PublicKeySize]byte
	Signature [SignatureFieldSize]byte // first 64 bytes are the real Ed25519 signature
}

// Pack serializes the full trailer.
func (t *Trailer) Pack() []byte {
	buf := make([]byte, TrailerSize)
	copy(buf[:IndexSize], t.Index.Pack())
	copy(buf[IndexSize:IndexSize+PublicKeySize], t.PublicKey[:])
	copy(buf[IndexSize+PublicKeySize:IndexSize+PublicKeySize+SignatureFieldSize], t.Signature[:])
	copy(buf[TrailerSize-SentinelSize:], EndSentinel)
	return buf
}

// UnpackTrailer parses a TrailerSize-byte trailer, verifying both
// sentinels. verifyChecksum is forwarded to the embedded index's Unpack.
func UnpackTrailer(data []byte, verifyChecksum bool) (*Trailer, bool, error) {
	if len(data) != TrailerSize {
		return nil, false, fmt.Errorf("pspfmt: trailer must be %d bytes, got %d", TrailerSize, len(data))
	}
	if !bytesEqual(data[TrailerSize-SentinelSize:], EndSentinel) {
		return nil, false, fmt.Errorf("pspfmt: invalid end sentinel")
	}

	idx, checksumOK, err := Unpack(data[:IndexSize], verifyChecksum)
	if err != nil {
		return nil, false, err
	}

	t := &Trailer{Index: *idx}
	copy(t.PublicKey[:], data[IndexSize:IndexSize+PublicKeySize])
	copy(t.Signature[:], data[IndexSize+PublicKeySize:IndexSize+PublicKeySize+SignatureFieldSize])
	return t, checksumOK, nil
}
