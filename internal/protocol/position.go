package protocol

import (
	"fmt"
	"io"
)

// BlockPos is a world block coordinate, packed on the wire as
// x (26 bits) | z (26 bits) | y (12 bits).
type BlockPos struct {
	X, Y, Z int32
}

func (p BlockPos) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z)
}

// SectionPos addresses a 16x16x16 section, packed as
// x (22 bits) | z (22 bits) | y (20 bits).
type SectionPos struct {
	X, Y, Z int32
}

func (p BlockPos) Pack() int64 {
	return int64(uint64(p.X&0x3FFFFFF)<<38 | uint64(p.Z&0x3FFFFFF)<<12 | uint64(p.Y&0xFFF))
}

func UnpackBlockPos(raw int64) BlockPos {
	v := uint64(raw)
	return BlockPos{
		X: signExtendInt32(int64((v>>38)&0x3FFFFFF), 26),
		Z: signExtendInt32(int64((v>>12)&0x3FFFFFF), 26),
		Y: signExtendInt32(int64(v&0xFFF), 12),
	}
}

func (p SectionPos) Pack() int64 {
	return int64(uint64(p.X&0x3FFFFF)<<42 | uint64(p.Z&0x3FFFFF)<<20 | uint64(p.Y&0xFFFFF))
}

func UnpackSectionPos(raw int64) SectionPos {
	v := uint64(raw)
	return SectionPos{
		X: signExtendInt32(int64((v>>42)&0x3FFFFF), 22),
		Z: signExtendInt32(int64((v>>20)&0x3FFFFF), 22),
		Y: signExtendInt32(int64(v&0xFFFFF), 20),
	}
}

func ReadPosition(r io.Reader) (BlockPos, error) {
	raw, err := ReadInt64(r)
	if err != nil {
		return BlockPos{}, err
	}
	return UnpackBlockPos(raw), nil
}

func WritePosition(w io.Writer, p BlockPos) error {
	return WriteInt64(w, p.Pack())
}

func ReadSectionPos(r io.Reader) (SectionPos, error) {
	raw, err := ReadInt64(r)
	if err != nil {
		return SectionPos{}, err
	}
	return UnpackSectionPos(raw), nil
}

func WriteSectionPos(w io.Writer, p SectionPos) error {
	return WriteInt64(w, p.Pack())
}

func signExtendInt32(value int64, bits uint) int32 {
	shift := 64 - bits
	return int32((value << shift) >> shift)
}
