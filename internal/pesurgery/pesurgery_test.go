package pesurgery

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildSyntheticPE32 constructs a minimal-but-structurally-valid PE32
// image with peOffset as its e_lfanew, numSections sections each with a
// non-zero PointerToRawData, and a Certificate Table entry at
// certFileOffset (absolute file offset, data directory index 4).
func buildSyntheticPE32(peOffset int, numSections int, certFileOffset uint32) []byte {
	const optHdrSize = 224 // PE32 optional header with 16 data directories
	coffOffset := peOffset + 4
	sectionTableOffset := coffOffset + 20 + optHdrSize
	totalSize := sectionTableOffset + numSections*40 + 0x100

	data := make([]byte, totalSize)
	data[0], data[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(data[0x3C:0x40], uint32(peOffset))

	// PE signature.
	data[peOffset] = 'P'
	data[peOffset+1] = 'E'
	data[peOffset+2] = 0
	data[peOffset+3] = 0

	// COFF header: NumberOfSections at +2, SizeOfOptionalHeader at +16.
	binary.LittleEndian.PutUint16(data[coffOffset+2:coffOffset+4], uint16(numSections))
	binary.LittleEndian.PutUint16(data[coffOffset+16:coffOffset+18], uint16(optHdrSize))

	// Optional header: Magic (PE32 = 0x10B) at +0 (i.e. coffOffset+20).
	optOffset := coffOffset + 20
	binary.LittleEndian.PutUint16(data[optOffset:optOffset+2], 0x10B)

	// Data directories start at optOffset+96 for PE32; Certificate Table is entry 4.
	dataDirOffset := optOffset + 96
	certEntryOffset := dataDirOffset + 4*8
	binary.LittleEndian.PutUint32(data[certEntryOffset:certEntryOffset+4], certFileOffset)
	binary.LittleEndian.PutUint32(data[certEntryOffset+4:certEntryOffset+8], 0x1000)

	for i := 0; i < numSections; i++ {
		sectionOffset := sectionTableOffset + i*40
		ptr := uint32(sectionTableOffset + numSections*40 + i*0x40)
		binary.LittleEndian.PutUint32(data[sectionOffset+20:sectionOffset+24], ptr)
	}

	return data
}

func TestGetLauncherTypeClassifiesByStubOffset(t *testing.T) {
	goPE := buildSyntheticPE32(0x80, 1, 0)
	rustPE := buildSyntheticPE32(0xE8, 1, 0)
	notPE := []byte("not a pe file at all")

	require.Equal(t, "go", GetLauncherType(goPE, nil))
	require.Equal(t, "rust", GetLauncherType(rustPE, nil))
	require.Equal(t, "unknown", GetLauncherType(notPE, nil))
}

func TestProcessLauncherNoOpForNonPE(t *testing.T) {
	data := []byte("plain ELF or text, not PE")
	out, err := ProcessLauncher(data, nil)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestProcessLauncherNoOpWhenAlreadyAtTarget(t *testing.T) {
	pe := buildSyntheticPE32(TargetOffset, 2, 0)
	out, err := ProcessLauncher(pe, nil)
	require.NoError(t, err)
	require.Equal(t, pe, out)
}

func TestProcessLauncherLeavesUnspecifiedRangeAsOverlay(t *testing.T) {
	pe := buildSyntheticPE32(0xA0, 1, 0)
	out, err := ProcessLauncher(pe, nil)
	require.NoError(t, err)
	require.Equal(t, pe, out)
}

func TestProcessLauncherExpandsAndRewritesOffsets(t *testing.T) {
	const peOffset = 0x80
	const numSections = 3
	const certOffset = 0x200

	pe := buildSyntheticPE32(peOffset, numSections, certOffset)
	out, err := ProcessLauncher(pe, nil)
	require.NoError(t, err)

	newOff, err := peHeaderOffset(out)
	require.NoError(t, err)
	require.Equal(t, TargetOffset, newOff)

	pad := TargetOffset - peOffset
	require.Equal(t, len(pe)+pad, len(out))

	coffOffset := newOff + 4
	optOffset := coffOffset + 20
	dataDirOffset := optOffset + 96
	certEntryOffset := dataDirOffset + 4*8
	newCert := binary.LittleEndian.Uint32(out[certEntryOffset : certEntryOffset+4])
	require.Equal(t, uint32(certOffset+pad), newCert)

	checksumOffset := optOffset + 64
	require.Equal(t, uint32(0), binary.LittleEndian.Uint32(out[checksumOffset:checksumOffset+4]))
}

func TestRVAToFileOffsetWalksSections(t *testing.T) {
	pe := buildSyntheticPE32(0x80, 1, 0)
	coffOffset := 0x80 + 4
	optHdrSize := 224
	sectionTableOffset := coffOffset + 20 + optHdrSize

	binary.LittleEndian.PutUint32(pe[sectionTableOffset+12:sectionTableOffset+16], 0x1000) // VirtualAddress
	binary.LittleEndian.PutUint32(pe[sectionTableOffset+8:sectionTableOffset+12], 0x500)   // VirtualSize
	binary.LittleEndian.PutUint32(pe[sectionTableOffset+20:sectionTableOffset+24], 0x400)  // PointerToRawData

	offset, found := RVAToFileOffset(pe, 0x1050)
	require.True(t, found)
	require.Equal(t, uint32(0x450), offset)

	_, found = RVAToFileOffset(pe, 0x9999)
	require.False(t, found)
}
