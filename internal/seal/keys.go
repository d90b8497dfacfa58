// Package seal implements the PSPF/2025 integrity seal: Ed25519 key
// resolution and metadata signing/verification.
package seal

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// KeyConfig describes the priority-ordered ways a keypair may be
// resolved, mirroring §4.3: explicit bytes, then a seed, then on-disk
// PEM files, then an ephemeral random pair.
type KeyConfig struct {
	PrivateKeyBytes []byte // explicit 64-byte Ed25519 private key
	PublicKeyBytes  []byte // explicit 32-byte Ed25519 public key
	Seed            string // arbitrary-length seed, expanded via SHA-256
	PrivateKeyPath  string // PEM-encoded PKCS8 private key
	PublicKeyPath   string // PEM-encoded PKIX public key
}

var (
	// ErrNotEd25519 is returned when an on-disk PEM key uses an
	// unsupported algorithm (RSA, EC, DSA).
	ErrNotEd25519 = errors.New("key is not Ed25519; regenerate the keypair with an Ed25519-only tool")
	// ErrInvalidKeySize is returned when explicit key bytes are the
	// wrong length for Ed25519.
	ErrInvalidKeySize = errors.New("invalid Ed25519 key size")
)

const (
	// PrivateKeyFileMode matches §3.6: owner-only on the private half.
	PrivateKeyFileMode = 0o600
	// PublicKeyFileMode is world-readable, matching §4.3.
	PublicKeyFileMode = 0o644
)

// ResolveKeys picks a keypair according to KeyConfig's priority order:
// explicit bytes, then seed expansion, then on-disk PEM, then an
// ephemeral random pair as the final fallback.
func ResolveKeys(cfg KeyConfig) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	if len(cfg.PrivateKeyBytes) > 0 || len(cfg.PublicKeyBytes) > 0 {
		return fromExplicitBytes(cfg.PrivateKeyBytes, cfg.PublicKeyBytes)
	}
	if cfg.Seed != "" {
		return fromSeed(cfg.Seed)
	}
	if cfg.PrivateKeyPath != "" || cfg.PublicKeyPath != "" {
		return fromPEMFiles(cfg.PrivateKeyPath, cfg.PublicKeyPath)
	}
	return ephemeral()
}

func fromExplicitBytes(priv, pub []byte) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, nil, fmt.Errorf("%w: private key must be %d bytes, got %d", ErrInvalidKeySize, ed25519.PrivateKeySize, len(priv))
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKeySize, ed25519.PublicKeySize, len(pub))
	}
	return ed25519.PrivateKey(priv), ed25519.PublicKey(pub), nil
}

// fromSeed expands an arbitrary-length seed string into a deterministic
// Ed25519 keypair via SHA-256, so the same seed always yields the same
// keys (spec §8 property 5, reproducible builds).
func fromSeed(seed string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	sum := sha256.Sum256([]byte(seed))
	priv := ed25519.NewKeyFromSeed(sum[:])
	return priv, priv.Public().(ed25519.PublicKey), nil
}

func fromPEMFiles(privPath, pubPath string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	var priv ed25519.PrivateKey
	var pub ed25519.PublicKey

	if privPath != "" {
		raw, err := os.ReadFile(privPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading private key: %w", err)
		}
		k, err := parsePrivatePEM(raw)
		if err != nil {
			return nil, nil, err
		}
		priv = k
	}
	if pubPath != "" {
		raw, err := os.ReadFile(pubPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading public key: %w", err)
		}
		k, err := parsePublicPEM(raw)
		if err != nil {
			return nil, nil, err
		}
		pub = k
	}

	if priv != nil && pub == nil {
		pub = priv.Public().(ed25519.PublicKey)
	}
	return priv, pub, nil
}

func parsePrivatePEM(raw []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block found in private key file")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing PKCS8 private key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, ErrNotEd25519
	}
	return priv, nil
}

func parsePublicPEM(raw []byte) (ed25519.PublicKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block found in public key file")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing PKIX public key: %w", err)
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, ErrNotEd25519
	}
	return pub, nil
}

func ephemeral() (ed25519.PrivateKey, ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating ephemeral keypair: %w", err)
	}
	return priv, pub, nil
}

// WriteKeyFiles persists a keypair to PEM files at the modes required by
// §3.6 and §6.2.
func WriteKeyFiles(priv ed25519.PrivateKey, pub ed25519.PublicKey, privPath, pubPath string) error {
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("marshaling private key: %w", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	if err := os.WriteFile(privPath, privPEM, PrivateKeyFileMode); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return fmt.Errorf("marshaling public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(pubPath, pubPEM, PublicKeyFileMode); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}
