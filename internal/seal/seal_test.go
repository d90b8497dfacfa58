package seal

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveKeysExplicitBytes(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	gotPriv, gotPub, err := ResolveKeys(KeyConfig{PrivateKeyBytes: priv, PublicKeyBytes: pub})
	require.NoError(t, err)
	require.Len(t, gotPriv, ed25519.PrivateKeySize)
	require.Len(t, gotPub, ed25519.PublicKeySize)
}

func TestResolveKeysSeedIsDeterministic(t *testing.T) {
	priv1, pub1, err := ResolveKeys(KeyConfig{Seed: "test-seed-123"})
	require.NoError(t, err)
	priv2, pub2, err := ResolveKeys(KeyConfig{Seed: "test-seed-123"})
	require.NoError(t, err)

	require.Equal(t, priv1, priv2)
	require.Equal(t, pub1, pub2)
}

func TestResolveKeysDifferentSeedsDiffer(t *testing.T) {
	priv1, _, err := ResolveKeys(KeyConfig{Seed: "seed-a"})
	require.NoError(t, err)
	priv2, _, err := ResolveKeys(KeyConfig{Seed: "seed-b"})
	require.NoError(t, err)
	require.NotEqual(t, priv1, priv2)
}

func TestResolveKeysEphemeralByDefault(t *testing.T) {
	priv1, _, err := ResolveKeys(KeyConfig{})
	require.NoError(t, err)
	priv2, _, err := ResolveKeys(KeyConfig{})
	require.NoError(t, err)
	require.NotEqual(t, priv1, priv2)
}

func TestWriteAndLoadPEMRoundTrip(t *testing.T) {
	priv, pub, err := ResolveKeys(KeyConfig{Seed: "roundtrip"})
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "pspf-private.key")
	pubPath := filepath.Join(dir, "pspf-public.key")
	require.NoError(t, WriteKeyFiles(priv, pub, privPath, pubPath))

	info, err := os.Stat(privPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(PrivateKeyFileMode), info.Mode().Perm())

	loadedPriv, loadedPub, err := ResolveKeys(KeyConfig{PrivateKeyPath: privPath, PublicKeyPath: pubPath})
	require.NoError(t, err)
	require.Equal(t, priv, loadedPriv)
	require.Equal(t, pub, loadedPub)
}

func TestSignAndVerifyMetadata(t *testing.T) {
	priv, pub, err := ResolveKeys(KeyConfig{Seed: "sign-test"})
	require.NoError(t, err)

	compressed := []byte("fake gzip-compressed metadata bytes")
	sig, err := SignMetadata(priv, compressed)
	require.NoError(t, err)
	require.True(t, VerifyMetadata(pub, compressed, sig))
}

func TestVerifyMetadataRejectsTamperedBytes(t *testing.T) {
	priv, pub, err := ResolveKeys(KeyConfig{Seed: "tamper-test"})
	require.NoError(t, err)

	compressed := []byte("original bytes")
	sig, err := SignMetadata(priv, compressed)
	require.NoError(t, err)

	tampered := []byte("original byteS")
	require.False(t, VerifyMetadata(pub, tampered, sig))
}
