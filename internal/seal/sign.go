package seal

import (
	"crypto/ed25519"
	"errors"
)

// SignatureSize is the raw Ed25519 signature length; the trailer field
// is 512 bytes and zero-pads the remainder (spec §3.2).
const SignatureSize = ed25519.SignatureSize

// ErrInvalidPrivateKey is returned when SignMetadata receives a key of
// the wrong size.
var ErrInvalidPrivateKey = errors.New("invalid Ed25519 private key")

// SignMetadata signs the compressed metadata region bytes, per §4.3:
// the signature covers the gzip-compressed bytes as they are stored on
// disk, not the decompressed JSON.
func SignMetadata(priv ed25519.PrivateKey, compressedMetadata []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrInvalidPrivateKey
	}
	return ed25519.Sign(priv, compressedMetadata), nil
}

// VerifyMetadata verifies a signature produced by SignMetadata against
// the same compressed metadata bytes.
func VerifyMetadata(pub ed25519.PublicKey, compressedMetadata, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	if len(sig) < SignatureSize {
		return false
	}
	return ed25519.Verify(pub, compressedMetadata, sig[:SignatureSize])
}
