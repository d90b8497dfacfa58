// Package pesurgery implements the Windows PE in-place DOS-stub
// expansion described in spec §4.5: appending PSPF trailer data after a
// PE launcher only works if the loader's header offset (e_lfanew) sits
// at the 0xF0 boundary MSVC/Rust toolchains use. Launchers whose
// e_lfanew is 0x80 (Go linker) or at least 0xE8 (MSVC/Rust) but below
// 0xF0 get their DOS stub padded and every absolute-file-offset field in
// the header rewritten to match. Anything already at or past 0xF0, and
// offsets strictly between 0x80 and 0xE8, are left untouched (the
// PE-overlay approach).
package pesurgery

import (
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// TargetOffset is the DOS-stub-expanded e_lfanew value (240 bytes),
// matching the header layout MSVC/Rust toolchains emit.
const TargetOffset = 0xF0

// goStubOffset is the e_lfanew value Go's linker emits; ProcessLauncher
// expands launchers at this offset to TargetOffset.
const goStubOffset = 0x80

// rustStubThreshold is the minimum e_lfanew MSVC/Rust toolchains are
// observed to emit; launchers at or above it are stub-expandable.
const rustStubThreshold = 0xE8

// IsPE reports whether data begins with the DOS "MZ" signature.
func IsPE(data []byte) bool {
	return len(data) >= 2 && data[0] == 'M' && data[1] == 'Z'
}

func peHeaderOffset(data []byte) (int, error) {
	if len(data) < 0x40 {
		return 0, fmt.Errorf("pesurgery: data too short for DOS header")
	}
	off := int(binary.LittleEndian.Uint32(data[0x3C:0x40]))
	if len(data) < off+4 {
		return 0, fmt.Errorf("pesurgery: data too short for PE header at 0x%x", off)
	}
	sig := data[off : off+4]
	if sig[0] != 'P' || sig[1] != 'E' || sig[2] != 0 || sig[3] != 0 {
		return 0, fmt.Errorf("pesurgery: invalid PE signature at offset 0x%x", off)
	}
	return off, nil
}

// GetLauncherType classifies a PE launcher by its DOS-stub size:
// "go" (0x80), "rust" (>=0xE8), or "unknown" (non-PE data or any other
// offset). ProcessLauncher expands "go" and "rust" launchers that sit
// below TargetOffset and leaves "unknown" offsets as overlay.
func GetLauncherType(data []byte, logger hclog.Logger) string {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if !IsPE(data) {
		return "unknown"
	}
	off, err := peHeaderOffset(data)
	if err != nil {
		return "unknown"
	}
	switch {
	case off == goStubOffset:
		return "go"
	case off >= rustStubThreshold:
		return "rust"
	default:
		logger.Trace("pe offset in unspecified range, defaulting to overlay", "pe_offset", fmt.Sprintf("0x%x", off))
		return "unknown"
	}
}

// ProcessLauncher applies the DOS-stub expansion in-place where the
// e_lfanew value is at a known stub-expandable offset (0x80, matching
// Go's minimal stub, or >=0xE8, matching Rust/MSVC). Offsets strictly
// between those (0x81-0xE7) are unspecified territory and are left as
// overlay — the safe default. Non-PE data and anything already at or
// past TargetOffset are returned unchanged.
func ProcessLauncher(data []byte, logger hclog.Logger) ([]byte, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if !IsPE(data) {
		return data, nil
	}

	off, err := peHeaderOffset(data)
	if err != nil {
		return nil, err
	}
	if off >= TargetOffset {
		return data, nil
	}
	if off != goStubOffset && off < rustStubThreshold {
		logger.Trace("pe offset in unspecified range, leaving as overlay", "pe_offset", fmt.Sprintf("0x%x", off))
		return data, nil
	}
	return expandDOSStub(data, logger)
}

func expandDOSStub(data []byte, logger hclog.Logger) ([]byte, error) {
	currentOffset, err := peHeaderOffset(data)
	if err != nil {
		return nil, fmt.Errorf("pesurgery: invalid PE header offset: %w", err)
	}
	if currentOffset >= TargetOffset {
		return data, nil
	}

	pad := TargetOffset - currentOffset
	logger.Debug("expanding DOS stub", "current", fmt.Sprintf("0x%x", currentOffset), "target", fmt.Sprintf("0x%x", TargetOffset), "pad", pad)

	out := make([]byte, 0, len(data)+pad)
	out = append(out, data[:currentOffset]...)
	out = append(out, make([]byte, pad)...)
	out = append(out, data[currentOffset:]...)

	binary.LittleEndian.PutUint32(out[0x3C:0x40], uint32(TargetOffset))

	if err := updateSectionOffsets(out, pad); err != nil {
		return nil, err
	}
	if err := updateSizeOfHeaders(out, pad); err != nil {
		return nil, err
	}
	if err := updateDataDirectories(out, pad); err != nil {
		return nil, err
	}
	if err := updateDebugDirectory(out, pad); err != nil {
		return nil, err
	}

	newOffset, err := peHeaderOffset(out)
	if err != nil {
		return nil, fmt.Errorf("pesurgery: reading PE offset after expansion: %w", err)
	}
	if newOffset != TargetOffset {
		return nil, fmt.Errorf("pesurgery: expansion failed, expected e_lfanew 0x%x, got 0x%x", TargetOffset, newOffset)
	}
	return out, nil
}

func optionalHeaderOffsets(data []byte) (coffOffset int, isPE32Plus bool) {
	peOffset := int(binary.LittleEndian.Uint32(data[0x3C:0x40]))
	coffOffset = peOffset + 4
	magic := binary.LittleEndian.Uint16(data[coffOffset+20 : coffOffset+22])
	return coffOffset, magic == 0x20B
}

func updateSectionOffsets(data []byte, pad int) error {
	peOffset := int(binary.LittleEndian.Uint32(data[0x3C:0x40]))
	coffOffset := peOffset + 4
	numSections := int(binary.LittleEndian.Uint16(data[coffOffset+2 : coffOffset+4]))
	optHdrSize := int(binary.LittleEndian.Uint16(data[coffOffset+16 : coffOffset+18]))
	sectionTableOffset := coffOffset + 20 + optHdrSize

	for i := 0; i < numSections; i++ {
		sectionOffset := sectionTableOffset + i*40
		ptrOffset := sectionOffset + 20
		cur := binary.LittleEndian.Uint32(data[ptrOffset : ptrOffset+4])
		if cur > 0 {
			binary.LittleEndian.PutUint32(data[ptrOffset:ptrOffset+4], cur+uint32(pad))
		}
	}
	return nil
}

func updateSizeOfHeaders(data []byte, pad int) error {
	coffOffset, _ := optionalHeaderOffsets(data)
	off := coffOffset + 20 + 60
	if off+4 > len(data) {
		return fmt.Errorf("pesurgery: SizeOfHeaders offset 0x%x beyond file bounds", off)
	}
	cur := binary.LittleEndian.Uint32(data[off : off+4])
	binary.LittleEndian.PutUint32(data[off:off+4], cur+uint32(pad))
	return nil
}

// updateDataDirectories patches the Certificate Table (entry #4), which
// uses an absolute file offset rather than an RVA, and zeroes the PE
// checksum (unused for executables, stale after rewriting).
func updateDataDirectories(data []byte, pad int) error {
	coffOffset, isPE32Plus := optionalHeaderOffsets(data)

	var dataDirOffset int
	if isPE32Plus {
		dataDirOffset = coffOffset + 20 + 112
	} else {
		dataDirOffset = coffOffset + 20 + 96
	}

	certEntryOffset := dataDirOffset + 4*8
	if certEntryOffset+8 <= len(data) {
		certOffset := binary.LittleEndian.Uint32(data[certEntryOffset : certEntryOffset+4])
		if certOffset >= 0x80 {
			binary.LittleEndian.PutUint32(data[certEntryOffset:certEntryOffset+4], certOffset+uint32(pad))
		}
	}

	checksumOffset := coffOffset + 20 + 64
	if checksumOffset+4 <= len(data) {
		binary.LittleEndian.PutUint32(data[checksumOffset:checksumOffset+4], 0)
	}
	return nil
}

// RVAToFileOffset walks the section table to map a Relative Virtual
// Address to a file offset. Returns found=false if no section contains
// the RVA.
func RVAToFileOffset(data []byte, rva uint32) (offset uint32, found bool) {
	peOffset := int(binary.LittleEndian.Uint32(data[0x3C:0x40]))
	coffOffset := peOffset + 4
	numSections := int(binary.LittleEndian.Uint16(data[coffOffset+2 : coffOffset+4]))
	optHdrSize := int(binary.LittleEndian.Uint16(data[coffOffset+16 : coffOffset+18]))
	sectionTableOffset := coffOffset + 20 + optHdrSize

	for i := 0; i < numSections; i++ {
		sectionOffset := sectionTableOffset + i*40
		virtualAddr := binary.LittleEndian.Uint32(data[sectionOffset+12 : sectionOffset+16])
		virtualSize := binary.LittleEndian.Uint32(data[sectionOffset+8 : sectionOffset+12])
		pointerToRawData := binary.LittleEndian.Uint32(data[sectionOffset+20 : sectionOffset+24])

		if rva >= virtualAddr && rva < virtualAddr+virtualSize {
			return pointerToRawData + (rva - virtualAddr), true
		}
	}
	return 0, false
}

// updateDebugDirectory patches PointerToRawData (file offset) in every
// IMAGE_DEBUG_DIRECTORY entry; AddressOfRawData is an RVA and needs no
// update.
func updateDebugDirectory(data []byte, pad int) error {
	coffOffset, isPE32Plus := optionalHeaderOffsets(data)

	var dataDirOffset int
	if isPE32Plus {
		dataDirOffset = coffOffset + 20 + 112
	} else {
		dataDirOffset = coffOffset + 20 + 96
	}

	debugEntryOffset := dataDirOffset + 6*8
	if debugEntryOffset+8 > len(data) {
		return nil
	}

	debugRVA := binary.LittleEndian.Uint32(data[debugEntryOffset : debugEntryOffset+4])
	debugSize := binary.LittleEndian.Uint32(data[debugEntryOffset+4 : debugEntryOffset+8])
	if debugRVA == 0 || debugSize == 0 {
		return nil
	}

	debugFileOffset, found := RVAToFileOffset(data, debugRVA)
	if !found {
		return nil
	}

	numEntries := int(debugSize) / 28
	for i := 0; i < numEntries; i++ {
		entryOffset := int(debugFileOffset) + i*28
		ptrOffset := entryOffset + 24
		if ptrOffset+4 > len(data) {
			continue
		}
		cur := binary.LittleEndian.Uint32(data[ptrOffset : ptrOffset+4])
		if cur > 0 && cur >= 0x80 {
			binary.LittleEndian.PutUint32(data[ptrOffset:ptrOffset+4], cur+uint32(pad))
		}
	}
	return nil
}
