package protocol

import "github.com/Tnze/go-mc/nbt"

// BlockEntityData replaces the NBT of one block entity. A TagEnd payload
// removes the data without removing the entity.
type BlockEntityData struct {
	Pos  BlockPos
	Type int32
	Data nbt.RawMessage
}

func (*BlockEntityData) Kind() PacketKind { return KindBlockEntityData }

func (p *BlockEntityData) Fields(ProtocolVersion) Fields {
	return Fields{
		PositionField("location", &p.Pos),
		VarIntField("type", &p.Type),
		NBTField("data", &p.Data),
	}
}
