package pspf

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/pspf2025/internal/codec"
	"github.com/provide-io/pspf2025/internal/permissions"
	"github.com/provide-io/pspf2025/internal/pspfmt"
	"github.com/provide-io/pspf2025/internal/seal"
	"github.com/provide-io/pspf2025/internal/storage"
	"github.com/provide-io/pspf2025/internal/tarball"
	"github.com/provide-io/pspf2025/internal/validation"
)

// ErrInvalidSlotIndex is returned by slot accessors given an out-of-range
// index.
var ErrInvalidSlotIndex = errors.New("pspf: invalid slot index")

// ErrChecksumMismatch is returned by ReadSlot when the stored checksum
// does not match the encoded bytes.
var ErrChecksumMismatch = errors.New("pspf: slot checksum mismatch")

// Reader opens a built PSPF package and exposes its trailer, metadata,
// and slot contents (spec §4.6).
type Reader struct {
	path    string
	tier    validation.Tier
	logger  hclog.Logger
	backend storage.Backend

	trailer  *pspfmt.Trailer
	checksum bool // whether the trailer's index CRC matched on read
	metadata *Metadata
	slots    []*pspfmt.SlotDescriptor
}

// Option configures a Reader at construction time.
type Option func(*Reader)

// WithLogger attaches a structured logger.
func WithLogger(l hclog.Logger) Option {
	return func(r *Reader) { r.logger = l }
}

// WithValidationTier pins an explicit validation tier, overriding
// FLAVOR_VALIDATION and the standard default.
func WithValidationTier(t validation.Tier) Option {
	return func(r *Reader) { r.tier = t }
}

// Open opens path under the given storage backend mode (spec §4.1,
// §4.6).
func Open(path string, mode storage.Mode, opts ...Option) (*Reader, error) {
	r := &Reader{path: path, logger: hclog.NewNullLogger()}
	for _, opt := range opts {
		opt(r)
	}

	backend, err := storage.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("pspf: open %s: %w", path, err)
	}
	r.backend = backend
	return r, nil
}

// Close releases the underlying storage backend.
func (r *Reader) Close() error {
	if r.backend == nil {
		return nil
	}
	err := r.backend.Close()
	r.backend = nil
	return err
}

func (r *Reader) tierOrDefault() validation.Tier {
	return validation.Resolve(r.tier)
}

// VerifyMagicTrailer reads the fixed trailer at the end of the file and
// checks both sentinel bookends (spec §6.1).
func (r *Reader) VerifyMagicTrailer() (bool, error) {
	size := r.backend.Size()
	if size < pspfmt.TrailerSize {
		return false, fmt.Errorf("pspf: file too small to hold a trailer: %d bytes", size)
	}
	raw, err := r.backend.ReadAt(size-pspfmt.TrailerSize, pspfmt.TrailerSize)
	if err != nil {
		return false, err
	}

	tier := r.tierOrDefault()
	trailer, checksumOK, err := pspfmt.UnpackTrailer(raw, tier.FatalOnMismatch())
	if err != nil {
		return false, err
	}
	if !checksumOK {
		r.logger.Warn("pspf: index checksum mismatch", "path", r.path)
	}
	r.trailer = trailer
	r.checksum = checksumOK
	return true, nil
}

// ReadIndex returns the trailer's index block, reading the trailer first
// if needed.
func (r *Reader) ReadIndex() (*pspfmt.Index, error) {
	if r.trailer == nil {
		if _, err := r.VerifyMagicTrailer(); err != nil {
			return nil, err
		}
	}
	return &r.trailer.Index, nil
}

// ReadMetadata reads, decompresses, and parses the metadata document.
func (r *Reader) ReadMetadata() (*Metadata, error) {
	if r.metadata != nil {
		return r.metadata, nil
	}

	idx, err := r.ReadIndex()
	if err != nil {
		return nil, err
	}

	compressed, err := r.backend.ReadAt(int64(idx.MetadataOffset), int64(idx.MetadataSize))
	if err != nil {
		return nil, fmt.Errorf("pspf: read metadata region: %w", err)
	}

	tier := r.tierOrDefault()
	if tier.RequiresSignature() {
		ok := seal.VerifyMetadata(r.trailer.PublicKey[:], compressed, r.trailer.Signature[:])
		if !ok && tier.FatalOnMismatch() {
			return nil, errors.New("pspf: metadata signature verification failed")
		}
		if !ok {
			r.logger.Warn("pspf: metadata signature verification failed", "path", r.path)
		}
	}

	raw, err := Gunzip(compressed)
	if err != nil {
		return nil, fmt.Errorf("pspf: decompress metadata: %w", err)
	}
	meta, err := UnmarshalMetadata(raw)
	if err != nil {
		return nil, fmt.Errorf("pspf: parse metadata: %w", err)
	}
	r.metadata = meta
	return meta, nil
}

// ReadSlotDescriptors reads and unpacks every slot descriptor from the
// slot table.
func (r *Reader) ReadSlotDescriptors() ([]*pspfmt.SlotDescriptor, error) {
	if r.slots != nil {
		return r.slots, nil
	}

	idx, err := r.ReadIndex()
	if err != nil {
		return nil, err
	}

	slots := make([]*pspfmt.SlotDescriptor, 0, idx.SlotCount)
	for i := uint32(0); i < idx.SlotCount; i++ {
		off := int64(idx.SlotTableOffset) + int64(i)*pspfmt.SlotDescriptorSize
		raw, err := r.backend.ReadAt(off, pspfmt.SlotDescriptorSize)
		if err != nil {
			return nil, fmt.Errorf("pspf: read slot descriptor %d: %w", i, err)
		}
		desc, err := pspfmt.UnpackSlotDescriptor(raw)
		if err != nil {
			return nil, err
		}
		slots = append(slots, desc)
	}
	r.slots = slots
	return slots, nil
}

// ReadSlot reads, checksum-verifies, and reverses the op chain of slot
// index i, returning its decoded bytes (spec §4.4, §4.6).
func (r *Reader) ReadSlot(i int) ([]byte, error) {
	slots, err := r.ReadSlotDescriptors()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(slots) {
		return nil, ErrInvalidSlotIndex
	}
	desc := slots[i]

	encoded, err := r.backend.ReadAt(int64(desc.Offset), int64(desc.Size))
	if err != nil {
		return nil, fmt.Errorf("pspf: read slot %d data: %w", i, err)
	}

	tier := r.tierOrDefault()
	if tier.RequiresChecksums() {
		hash := sha256.Sum256(encoded)
		actual := binary.LittleEndian.Uint64(hash[:8])
		if actual != desc.Checksum {
			if tier.FatalOnMismatch() {
				return nil, ErrChecksumMismatch
			}
			r.logger.Warn("pspf: slot checksum mismatch", "slot", i, "expected", desc.Checksum, "actual", actual)
		}
	}

	ops := pspfmt.UnpackOps(desc.Operations)
	return codec.ReverseChain(ops, encoded)
}

// EncodedSlot returns slot i's raw bytes as stored in the package,
// before its op chain is reversed. Callers that reverse the chain
// themselves (e.g. the workenv populator, which dispatches TAR-chains
// differently from raw ones) read this instead of ReadSlot.
func (r *Reader) EncodedSlot(i int) ([]byte, error) {
	slots, err := r.ReadSlotDescriptors()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(slots) {
		return nil, ErrInvalidSlotIndex
	}
	desc := slots[i]
	return r.backend.ReadAt(int64(desc.Offset), int64(desc.Size))
}

// ExtractSlot decodes slot i and writes it under destDir, dispatching to
// a tar extraction when the decoded bytes are a tar stream (spec §4.7
// step 3). It returns the path written (a file, or the directory the
// tar stream unpacked into).
func (r *Reader) ExtractSlot(i int, destDir string) (string, error) {
	meta, err := r.ReadMetadata()
	if err != nil {
		return "", err
	}
	if i < 0 || i >= len(meta.Slots) {
		return "", ErrInvalidSlotIndex
	}

	decoded, err := r.ReadSlot(i)
	if err != nil {
		return "", fmt.Errorf("pspf: extract slot %d: %w", i, err)
	}

	slotMeta := meta.Slots[i]
	name := slotMeta.ID
	if name == "" {
		name = fmt.Sprintf("slot_%d", i)
	}

	if tarball.IsTarball(decoded) {
		if err := os.MkdirAll(destDir, permissions.DefaultDirPerms); err != nil {
			return "", err
		}
		if err := tarball.ExtractMode(decoded, destDir, permissions.DefaultDirPerms); err != nil {
			return "", fmt.Errorf("pspf: extract tar slot %d: %w", i, err)
		}
		return destDir, nil
	}

	target := filepath.Join(destDir, name)
	if err := os.MkdirAll(filepath.Dir(target), permissions.DefaultDirPerms); err != nil {
		return "", err
	}
	perm := os.FileMode(permissions.DefaultFilePerms)
	if slotMeta.Purpose == "binary" || slotMeta.Purpose == "tool" {
		perm = permissions.DefaultExecutablePerms
	}
	if slotMeta.Permissions != "" {
		if p, err := permissions.ParseOctalString(slotMeta.Permissions); err == nil {
			perm = p
		}
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, decoded, perm); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, target); err != nil {
		return "", err
	}
	return target, nil
}

// VerifyAllChecksums reads every slot, which transitively verifies its
// checksum under the reader's tier.
func (r *Reader) VerifyAllChecksums() error {
	idx, err := r.ReadIndex()
	if err != nil {
		return err
	}
	for i := 0; i < int(idx.SlotCount); i++ {
		if _, err := r.ReadSlot(i); err != nil {
			return fmt.Errorf("pspf: slot %d: %w", i, err)
		}
	}
	return nil
}

// VerifyIntegrity runs the full integrity check for the reader's tier,
// folding signature and checksum outcomes through validation.Outcome
// (spec §4.6, §4.11).
func (r *Reader) VerifyIntegrity() (validation.Result, error) {
	tier := r.tierOrDefault()

	if _, err := r.VerifyMagicTrailer(); err != nil {
		return validation.Result{}, err
	}

	signatureOK := true
	if tier.RequiresSignature() {
		idx, err := r.ReadIndex()
		if err != nil {
			return validation.Result{}, err
		}
		compressed, err := r.backend.ReadAt(int64(idx.MetadataOffset), int64(idx.MetadataSize))
		if err != nil {
			return validation.Result{}, err
		}
		signatureOK = seal.VerifyMetadata(r.trailer.PublicKey[:], compressed, r.trailer.Signature[:])
	}

	checksumsOK := true
	if tier.RequiresChecksums() {
		checksumsOK = r.VerifyAllChecksums() == nil
	}

	result := tier.Outcome(signatureOK, checksumsOK)
	if !result.Valid {
		return result, fmt.Errorf("pspf: integrity verification failed under %s tier", tier)
	}
	return result, nil
}
