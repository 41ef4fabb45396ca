package protocol

import (
	"fmt"
	"io"
)

type BlockUpdate struct {
	Pos     BlockPos
	StateID int32
}

func (*BlockUpdate) Kind() PacketKind { return KindBlockUpdate }

func (p *BlockUpdate) Fields(ProtocolVersion) Fields {
	return Fields{
		PositionField("location", &p.Pos),
		nonNegative(VarIntField("block_state", &p.StateID), &p.StateID),
	}
}

// SectionBlocksUpdate changes several blocks of one section at once.
type SectionBlocksUpdate struct {
	Section SectionPos
	Records []BlockRecord
}

// BlockRecord is one entry of a SectionBlocksUpdate with section-local
// coordinates in 0..15.
type BlockRecord struct {
	X, Y, Z uint8
	StateID int32
}

// Pack encodes the record as state<<12 | x<<8 | z<<4 | y.
func (b BlockRecord) Pack() int64 {
	return int64(b.StateID)<<12 | int64(b.X&0xF)<<8 | int64(b.Z&0xF)<<4 | int64(b.Y&0xF)
}

func UnpackBlockRecord(raw int64) (BlockRecord, error) {
	if raw < 0 {
		return BlockRecord{}, fmt.Errorf("%w: negative block record %d", ErrInvalidPacket, raw)
	}
	state := raw >> 12
	if state > 1<<31-1 {
		return BlockRecord{}, fmt.Errorf("%w: block state %d out of range", ErrInvalidPacket, state)
	}
	return BlockRecord{
		X:       uint8((raw >> 8) & 0xF),
		Z:       uint8((raw >> 4) & 0xF),
		Y:       uint8(raw & 0xF),
		StateID: int32(state),
	}, nil
}

// World returns the absolute block position of r inside section s.
func (s SectionPos) World(r BlockRecord) BlockPos {
	return BlockPos{
		X: s.X*16 + int32(r.X),
		Y: s.Y*16 + int32(r.Y),
		Z: s.Z*16 + int32(r.Z),
	}
}

func (*SectionBlocksUpdate) Kind() PacketKind { return KindSectionBlocksUpdate }

func (p *SectionBlocksUpdate) Fields(ProtocolVersion) Fields {
	return Fields{
		SectionPosField("section", &p.Section),
		SequenceField("records", &p.Records, 4096,
			func(r io.Reader) (BlockRecord, error) {
				raw, err := ReadVarLong(r)
				if err != nil {
					return BlockRecord{}, err
				}
				return UnpackBlockRecord(raw)
			},
			func(w io.Writer, b BlockRecord) error { return WriteVarLong(w, b.Pack()) }),
	}
}
