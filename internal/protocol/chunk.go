package protocol

import (
	"fmt"
	"io"

	"github.com/Tnze/go-mc/nbt"
)

const (
	// MaxChunkDataSize bounds the section buffer of a chunk packet.
	MaxChunkDataSize = 2 << 20
	lightArraySize   = 2048
)

type HeightmapType int32

const (
	HeightmapWorldSurfaceWG HeightmapType = iota
	HeightmapWorldSurface
	HeightmapOceanFloorWG
	HeightmapOceanFloor
	HeightmapMotionBlocking
	HeightmapMotionBlockingNoLeaves
)

var heightmapNames = [...]string{
	"WORLD_SURFACE_WG",
	"WORLD_SURFACE",
	"OCEAN_FLOOR_WG",
	"OCEAN_FLOOR",
	"MOTION_BLOCKING",
	"MOTION_BLOCKING_NO_LEAVES",
}

func (t HeightmapType) String() string {
	if t >= 0 && int(t) < len(heightmapNames) {
		return heightmapNames[t]
	}
	return fmt.Sprintf("heightmap(%d)", int32(t))
}

// Heightmap holds the packed long array of one heightmap type. Unpacking is
// done by the chunk package, which knows the world height.
type Heightmap struct {
	Type HeightmapType
	Data []int64
}

// ChunkBlockEntity is a block entity record inside a chunk packet. XZ packs
// the section-local x in the high nibble and z in the low nibble.
type ChunkBlockEntity struct {
	XZ   uint8
	Y    int16
	Type int32
	Data nbt.RawMessage
}

func (b *ChunkBlockEntity) LocalX() int { return int(b.XZ >> 4) }
func (b *ChunkBlockEntity) LocalZ() int { return int(b.XZ & 0xF) }

func (b *ChunkBlockEntity) Fields(ProtocolVersion) Fields {
	return Fields{
		Uint8Field("packed_xz", &b.XZ),
		Int16Field("y", &b.Y),
		VarIntField("type", &b.Type),
		NBTField("data", &b.Data),
	}
}

// LightData is carried along with chunk data. Masks are bitsets over the
// sections of the column plus one below and one above.
type LightData struct {
	SkyLightMask        []int64
	BlockLightMask      []int64
	EmptySkyLightMask   []int64
	EmptyBlockLightMask []int64
	SkyLight            [][]byte
	BlockLight          [][]byte
}

func (l *LightData) Fields(ProtocolVersion) Fields {
	readArray := func(r io.Reader) ([]byte, error) {
		b, err := ReadByteArray(r, lightArraySize)
		if err == nil && len(b) != lightArraySize {
			err = fmt.Errorf("%w: light array of %d bytes", ErrInvalidPacket, len(b))
		}
		return b, err
	}
	return Fields{
		LongArrayField("sky_light_mask", &l.SkyLightMask, 64),
		LongArrayField("block_light_mask", &l.BlockLightMask, 64),
		LongArrayField("empty_sky_light_mask", &l.EmptySkyLightMask, 64),
		LongArrayField("empty_block_light_mask", &l.EmptyBlockLightMask, 64),
		SequenceField("sky_light", &l.SkyLight, 4096, readArray, WriteByteArray),
		SequenceField("block_light", &l.BlockLight, 4096, readArray, WriteByteArray),
	}
}

type LevelChunkWithLight struct {
	ChunkX        int32
	ChunkZ        int32
	Heightmaps    []Heightmap
	Data          []byte
	BlockEntities []ChunkBlockEntity
	Light         LightData
}

func (*LevelChunkWithLight) Kind() PacketKind { return KindLevelChunkWithLight }

func (p *LevelChunkWithLight) Fields(v ProtocolVersion) Fields {
	return Fields{
		Int32Field("chunk_x", &p.ChunkX),
		Int32Field("chunk_z", &p.ChunkZ),
		heightmapsField(&p.Heightmaps, v),
		ByteArrayField("data", &p.Data, MaxChunkDataSize),
		StructSequenceField("block_entities", &p.BlockEntities, 1<<16, v),
		CustomField("light",
			func(r io.Reader) error { return p.Light.Fields(v).Decode(r) },
			func(w io.Writer) error { return p.Light.Fields(v).Encode(w) }),
	}
}

func heightmapsField(p *[]Heightmap, v ProtocolVersion) Field {
	if v.NBTHeightmaps() {
		return CustomField("heightmaps",
			func(r io.Reader) error {
				var c nbtHeightmaps
				if err := ReadNBTInto(r, &c); err != nil {
					return err
				}
				*p = c.list()
				return nil
			},
			func(w io.Writer) error { return WriteNBTFrom(w, newNBTHeightmaps(*p)) })
	}
	return SequenceField("heightmaps", p, len(heightmapNames),
		func(r io.Reader) (Heightmap, error) {
			t, err := ReadEnum(r, EnumRange(0, int32(len(heightmapNames)-1)))
			if err != nil {
				return Heightmap{}, err
			}
			data, err := ReadLongArray(r, 64)
			if err != nil {
				return Heightmap{}, err
			}
			return Heightmap{Type: HeightmapType(t), Data: data}, nil
		},
		func(w io.Writer, h Heightmap) error {
			if err := WriteVarint(w, int32(h.Type)); err != nil {
				return err
			}
			return WriteLongArray(w, h.Data)
		})
}

// nbtHeightmaps is the compound layout used before 1.21.2. Struct fields
// keep the encoded key order stable.
type nbtHeightmaps struct {
	WorldSurfaceWG         []int64 `nbt:"WORLD_SURFACE_WG,omitempty"`
	WorldSurface           []int64 `nbt:"WORLD_SURFACE,omitempty"`
	OceanFloorWG           []int64 `nbt:"OCEAN_FLOOR_WG,omitempty"`
	OceanFloor             []int64 `nbt:"OCEAN_FLOOR,omitempty"`
	MotionBlocking         []int64 `nbt:"MOTION_BLOCKING,omitempty"`
	MotionBlockingNoLeaves []int64 `nbt:"MOTION_BLOCKING_NO_LEAVES,omitempty"`
}

func (c *nbtHeightmaps) slots() []*[]int64 {
	return []*[]int64{
		&c.WorldSurfaceWG, &c.WorldSurface, &c.OceanFloorWG,
		&c.OceanFloor, &c.MotionBlocking, &c.MotionBlockingNoLeaves,
	}
}

func (c *nbtHeightmaps) list() []Heightmap {
	var out []Heightmap
	for i, s := range c.slots() {
		if *s != nil {
			out = append(out, Heightmap{Type: HeightmapType(i), Data: *s})
		}
	}
	return out
}

func newNBTHeightmaps(hs []Heightmap) *nbtHeightmaps {
	c := &nbtHeightmaps{}
	slots := c.slots()
	for _, h := range hs {
		if h.Type >= 0 && int(h.Type) < len(slots) {
			*slots[h.Type] = h.Data
		}
	}
	return c
}

// ForgetLevelChunk unloads a chunk column.
// NOTE: protocol field order is chunkZ first, then chunkX.
type ForgetLevelChunk struct {
	ChunkX int32
	ChunkZ int32
}

func (*ForgetLevelChunk) Kind() PacketKind { return KindForgetLevelChunk }

func (p *ForgetLevelChunk) Fields(ProtocolVersion) Fields {
	return Fields{
		Int32Field("chunk_z", &p.ChunkZ),
		Int32Field("chunk_x", &p.ChunkX),
	}
}

type SetChunkCacheCenter struct {
	ChunkX int32
	ChunkZ int32
}

func (*SetChunkCacheCenter) Kind() PacketKind { return KindSetChunkCacheCenter }

func (p *SetChunkCacheCenter) Fields(ProtocolVersion) Fields {
	return Fields{
		VarIntField("chunk_x", &p.ChunkX),
		VarIntField("chunk_z", &p.ChunkZ),
	}
}
