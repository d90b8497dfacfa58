package pspf

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/pspf2025/internal/codec"
	"github.com/provide-io/pspf2025/internal/pesurgery"
	"github.com/provide-io/pspf2025/internal/pspfmt"
	"github.com/provide-io/pspf2025/internal/seal"
)

// SlotInput is one slot's source material handed to the Writer: raw
// bytes and the op chain to apply before packing (spec §4.10 step 4).
type SlotInput struct {
	Meta SlotMeta
	Data []byte
	Ops  []uint8
}

// Writer is a fluent builder that assembles a PSPF package file (spec
// §4.10).
type Writer struct {
	metadata      Metadata
	slots         []SlotInput
	launcher      []byte
	keyCfg        seal.KeyConfig
	level         int
	deterministic bool
	logger        hclog.Logger
}

// NewWriter starts a build with the given base metadata (format/package/
// build/execution fields pre-filled by the caller).
func NewWriter(meta Metadata) *Writer {
	return &Writer{
		metadata: meta,
		level:    6,
		logger:   hclog.NewNullLogger(),
	}
}

// WithLogger attaches a structured logger.
func (w *Writer) WithLogger(l hclog.Logger) *Writer {
	w.logger = l
	return w
}

// WithLauncher sets the launcher binary bytes (spec §4.10 step 2; the
// Writer does not select a launcher for the host platform itself).
func (w *Writer) WithLauncher(data []byte) *Writer {
	w.launcher = data
	return w
}

// WithKeys sets the key resolution config (spec §4.3, §4.10 step 1).
func (w *Writer) WithKeys(cfg seal.KeyConfig) *Writer {
	w.keyCfg = cfg
	return w
}

// WithCompressionLevel sets the level forwarded to codecs that honor it
// (1-9; BZIP2 always uses 9 regardless).
func (w *Writer) WithCompressionLevel(level int) *Writer {
	w.level = level
	return w
}

// WithDeterministic toggles deterministic tar/codec output (stable
// mtimes, no embedded filenames).
func (w *Writer) WithDeterministic(d bool) *Writer {
	w.deterministic = d
	return w
}

// AddSlot appends a slot to the build.
func (w *Writer) AddSlot(s SlotInput) *Writer {
	w.slots = append(w.slots, s)
	return w
}

// Build runs the 10-step assembly algorithm of spec §4.10 and writes the
// finished package atomically to outputPath.
func (w *Writer) Build(outputPath string) error {
	priv, pub, err := seal.ResolveKeys(w.keyCfg)
	if err != nil {
		return fmt.Errorf("pspf: resolve keys: %w", err)
	}

	launcher := w.launcher
	if len(launcher) > 0 {
		launcher, err = pesurgery.ProcessLauncher(launcher, w.logger)
		if err != nil {
			return fmt.Errorf("pspf: process launcher: %w", err)
		}
	}

	descriptors := make([]*pspfmt.SlotDescriptor, len(w.slots))
	encoded := make([][]byte, len(w.slots))
	opts := codec.Options{Level: w.level, Deterministic: w.deterministic}

	for i, slot := range w.slots {
		out, err := codec.ApplyChain(slot.Ops, slot.Data, opts)
		if err != nil {
			return fmt.Errorf("pspf: apply operations for slot %d: %w", i, err)
		}
		encoded[i] = out

		hash := sha256.Sum256(out)
		descriptors[i] = &pspfmt.SlotDescriptor{
			ID:         uint32(i),
			Size:       uint64(len(out)),
			Checksum:   binary.LittleEndian.Uint64(hash[:8]),
			Operations: pspfmt.PackOps(slot.Ops),
		}

		meta := slot.Meta
		meta.Slot = i
		if meta.Checksum == "" {
			meta.Checksum = fmt.Sprintf("%016x", descriptors[i].Checksum)
		}
		w.metadata.Slots = append(w.metadata.Slots, meta)
	}

	metaJSON, err := w.metadata.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("pspf: marshal metadata: %w", err)
	}
	compressedMeta, err := GzipDeterministic(metaJSON)
	if err != nil {
		return fmt.Errorf("pspf: compress metadata: %w", err)
	}

	launcherSize := int64(len(launcher))
	metadataOffset := launcherSize
	metadataSize := int64(len(compressedMeta))

	slotOffsets := make([]int64, len(encoded))
	cursor := alignUp(metadataOffset+metadataSize, pspfmt.SlotAlignment)
	for i, data := range encoded {
		slotOffsets[i] = cursor
		descriptors[i].Offset = uint64(cursor)
		cursor = alignUp(cursor+int64(len(data)), pspfmt.SlotAlignment)
	}
	slotTableOffset := cursor
	slotTableSize := int64(len(descriptors)) * pspfmt.SlotDescriptorSize
	packageSize := slotTableOffset + slotTableSize + pspfmt.TrailerSize

	idx := pspfmt.Index{
		FormatVersion:   pspfmt.FormatVersion,
		PackageSize:     uint64(packageSize),
		LauncherSize:    uint64(launcherSize),
		MetadataOffset:  uint64(metadataOffset),
		MetadataSize:    uint64(metadataSize),
		SlotTableOffset: uint64(slotTableOffset),
		SlotTableSize:   uint64(slotTableSize),
		SlotCount:       uint32(len(descriptors)),
	}

	trailer := pspfmt.Trailer{Index: idx}
	copy(trailer.PublicKey[:], pub)

	sig, err := seal.SignMetadata(priv, compressedMeta)
	if err != nil {
		return fmt.Errorf("pspf: sign metadata: %w", err)
	}
	copy(trailer.Signature[:], sig)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("pspf: create output directory: %w", err)
	}
	tmpPath := outputPath + ".tmp"
	out, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("pspf: create temp output: %w", err)
	}
	defer func() {
		out.Close()
		os.Remove(tmpPath)
	}()

	if err := writeAt(out, 0, launcher); err != nil {
		return err
	}
	if err := writeAt(out, metadataOffset, compressedMeta); err != nil {
		return err
	}
	for i, data := range encoded {
		if err := writeAt(out, slotOffsets[i], data); err != nil {
			return err
		}
	}
	for i, desc := range descriptors {
		off := slotTableOffset + int64(i)*pspfmt.SlotDescriptorSize
		if err := writeAt(out, off, desc.Pack()); err != nil {
			return err
		}
	}
	if err := writeAt(out, slotTableOffset+slotTableSize, trailer.Pack()); err != nil {
		return err
	}

	if err := out.Truncate(packageSize); err != nil {
		return fmt.Errorf("pspf: truncate output: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("pspf: close temp output: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return fmt.Errorf("pspf: rename temp output into place: %w", err)
	}
	return nil
}

func alignUp(offset int64, alignment int64) int64 {
	rem := offset % alignment
	if rem == 0 {
		return offset
	}
	return offset + (alignment - rem)
}

func writeAt(f *os.File, offset int64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	_, err := f.WriteAt(data, offset)
	return err
}
