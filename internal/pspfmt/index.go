package pspfmt

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Index is the 256-byte locator block embedded in the trailer (spec §3.2).
type Index struct {
	FormatVersion    uint32
	IndexChecksum    uint32 // CRC-32 of the remainder of the block, field zeroed during compute
	PackageSize      uint64
	LauncherSize     uint64
	MetadataOffset   uint64
	MetadataSize     uint64
	SlotTableOffset  uint64
	SlotTableSize    uint64
	SlotCount        uint32
}

const (
	offStartSentinel   = 0
	offFormatVersion   = offStartSentinel + SentinelSize
	offIndexChecksum   = offFormatVersion + 4
	offPackageSize     = offIndexChecksum + 4
	offLauncherSize    = offPackageSize + 8
	offMetadataOffset  = offLauncherSize + 8
	offMetadataSize    = offMetadataOffset + 8
	offSlotTableOffset = offMetadataSize + 8
	offSlotTableSize   = offSlotTableOffset + 8
	offSlotCount       = offSlotTableSize + 8
	// remainder up to IndexSize is reserved, zero-filled.
)

// Pack serializes the index to its 256-byte wire form. The checksum field
// is computed over the packed bytes with itself held at zero (spec §4.2).
func (idx *Index) Pack() []byte {
	buf := make([]byte, IndexSize)
	copy(buf[offStartSentinel:], StartSentinel)
	binary.LittleEndian.PutUint32(buf[offFormatVersion:], idx.FormatVersion)
	// offIndexChecksum left zero for the checksum pass below.
	binary.LittleEndian.PutUint64(buf[offPackageSize:], idx.PackageSize)
	binary.LittleEndian.PutUint64(buf[offLauncherSize:], idx.LauncherSize)
	binary.LittleEndian.PutUint64(buf[offMetadataOffset:], idx.MetadataOffset)
	binary.LittleEndian.PutUint64(buf[offMetadataSize:], idx.MetadataSize)
	binary.LittleEndian.PutUint64(buf[offSlotTableOffset:], idx.SlotTableOffset)
	binary.LittleEndian.PutUint64(buf[offSlotTableSize:], idx.SlotTableSize)
	binary.LittleEndian.PutUint32(buf[offSlotCount:], idx.SlotCount)

	checksum := crc32.ChecksumIEEE(buf)
	binary.LittleEndian.PutUint32(buf[offIndexChecksum:], checksum)
	return buf
}

// Unpack parses a 256-byte index block, verifying sentinel and checksum.
// verifyChecksum controls whether a CRC mismatch is a hard error (strict
// tier) or merely reported via the second return value.
func Unpack(data []byte, verifyChecksum bool) (*Index, bool, error) {
	if len(data) != IndexSize {
		return nil, false, fmt.Errorf("pspfmt: index must be %d bytes, got %d", IndexSize, len(data))
	}
	if !bytesEqual(data[offStartSentinel:offStartSentinel+SentinelSize], StartSentinel) {
		return nil, false, fmt.Errorf("pspfmt: invalid start sentinel")
	}

	storedChecksum := binary.LittleEndian.Uint32(data[offIndexChecksum:])
	check := make([]byte, IndexSize)
	copy(check, data)
	binary.LittleEndian.PutUint32(check[offIndexChecksum:], 0)
	actualChecksum := crc32.ChecksumIEEE(check)
	checksumOK := actualChecksum == storedChecksum

	if verifyChecksum && !checksumOK {
		return nil, false, fmt.Errorf("pspfmt: index checksum mismatch: got 0x%08x, want 0x%08x", actualChecksum, storedChecksum)
	}

	idx := &Index{
		FormatVersion:   binary.LittleEndian.Uint32(data[offFormatVersion:]),
		IndexChecksum:   storedChecksum,
		PackageSize:     binary.LittleEndian.Uint64(data[offPackageSize:]),
		LauncherSize:    binary.LittleEndian.Uint64(data[offLauncherSize:]),
		MetadataOffset:  binary.LittleEndian.Uint64(data[offMetadataOffset:]),
		MetadataSize:    binary.LittleEndian.Uint64(data[offMetadataSize:]),
		SlotTableOffset: binary.LittleEndian.Uint64(data[offSlotTableOffset:]),
		SlotTableSize:   binary.LittleEndian.Uint64(data[offSlotTableSize:]),
		SlotCount:       binary.LittleEndian.Uint32(data[offSlotCount:]),
	}
	return idx, checksumOK, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
