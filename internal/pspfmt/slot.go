package pspfmt

import (
	"encoding/binary"
	"fmt"
)

// SlotDescriptor is the 64-byte fixed layout locating one slot's bytes
// and its transform chain (spec §3.3).
type SlotDescriptor struct {
	ID         uint32
	Offset     uint64
	Size       uint64
	Checksum   uint64 // first 8 bytes of SHA-256 of the encoded bytes, little-endian
	Operations uint64 // packed op chain, see PackOps/UnpackOps
}

const (
	slotOffID         = 0
	slotOffReserved1  = slotOffID + 4
	slotOffOffset     = slotOffReserved1 + 4
	slotOffSize       = slotOffOffset + 8
	slotOffChecksum   = slotOffSize + 8
	slotOffOperations = slotOffChecksum + 8
	// remaining 24 bytes reserved, zero-filled.
)

// Pack serializes the descriptor to its 64-byte wire form.
func (d *SlotDescriptor) Pack() []byte {
	buf := make([]byte, SlotDescriptorSize)
	binary.LittleEndian.PutUint32(buf[slotOffID:], d.ID)
	binary.LittleEndian.PutUint64(buf[slotOffOffset:], d.Offset)
	binary.LittleEndian.PutUint64(buf[slotOffSize:], d.Size)
	binary.LittleEndian.PutUint64(buf[slotOffChecksum:], d.Checksum)
	binary.LittleEndian.PutUint64(buf[slotOffOperations:], d.Operations)
	return buf
}

// UnpackSlotDescriptor parses a 64-byte slot descriptor.
func UnpackSlotDescriptor(data []byte) (*SlotDescriptor, error) {
	if len(data) != SlotDescriptorSize {
		return nil, fmt.Errorf("pspfmt: slot descriptor must be %d bytes, got %d", SlotDescriptorSize, len(data))
	}
	return &SlotDescriptor{
		ID:         binary.LittleEndian.Uint32(data[slotOffID:]),
		Offset:     binary.LittleEndian.Uint64(data[slotOffOffset:]),
		Size:       binary.LittleEndian.Uint64(data[slotOffSize:]),
		Checksum:   binary.LittleEndian.Uint64(data[slotOffChecksum:]),
		Operations: binary.LittleEndian.Uint64(data[slotOffOperations:]),
	}, nil
}

// PackOps packs up to 8 operation codes into a single little-endian
// 64-bit word, low byte first. Trailing NONE (0x00) entries beyond the
// last real op are simply absent from the input slice.
func PackOps(ops []uint8) uint64 {
	var packed uint64
	for i, op := range ops {
		if i >= 8 {
			break
		}
		packed |= uint64(op) << (uint(i) * 8)
	}
	return packed
}

// UnpackOps unpacks a 64-bit word into the list of operations, stopping
// at the first NONE (0x00) byte.
func UnpackOps(packed uint64) []uint8 {
	ops := make([]uint8, 0, 8)
	for i := 0; i < 8; i++ {
		op := uint8((packed >> (uint(i) * 8)) & 0xFF)
		if op == 0x00 {
			break
		}
		ops = append(ops, op)
	}
	return ops
}
