package chunk

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"

	"github.com/Versifine/locus/internal/protocol"
)

// Registry provides the global id spaces the containers index into.
type Registry interface {
	BlockStateCount() int
	BiomeCount() int
	IsAir(state int32) bool
}

// Assembler turns chunk packets into Chunks and applies partial updates.
// It holds no mutable state; callers own the chunks they pass in.
type Assembler struct {
	reg     Registry
	version protocol.ProtocolVersion
	minY    int
	height  int
	blocks  Config
	biomes  Config
}

func NewAssembler(reg Registry, v protocol.ProtocolVersion, minY, height int) (*Assembler, error) {
	if height <= 0 || height%SectionHeight != 0 {
		return nil, fmt.Errorf("world height %d is not a positive multiple of %d", height, SectionHeight)
	}
	if reg.BlockStateCount() <= 0 || reg.BiomeCount() <= 0 {
		return nil, fmt.Errorf("registry must have block states and biomes")
	}
	return &Assembler{
		reg:     reg,
		version: v,
		minY:    minY,
		height:  height,
		blocks:  BlockConfig(reg.BlockStateCount(), v),
		biomes:  BiomeConfig(reg.BiomeCount(), v),
	}, nil
}

func (a *Assembler) SectionCount() int   { return a.height / SectionHeight }
func (a *Assembler) MinY() int           { return a.minY }
func (a *Assembler) Height() int         { return a.height }
func (a *Assembler) BlockConfig() Config { return a.blocks }
func (a *Assembler) BiomeConfig() Config { return a.biomes }

// Assemble decodes every section of p bottom to top, unpacks the heightmaps
// and indexes block entities by position.
func (a *Assembler) Assemble(p *protocol.LevelChunkWithLight) (*Chunk, error) {
	r := bytes.NewReader(p.Data)
	sections := make([]*Section, a.SectionCount())
	for i := range sections {
		s, err := DecodeSection(r, a.blocks, a.biomes)
		if err != nil {
			return nil, fmt.Errorf("chunk (%d, %d) section %d: %w", p.ChunkX, p.ChunkZ, i, err)
		}
		sections[i] = s
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: chunk (%d, %d) has %d trailing bytes", ErrInvalidSection, p.ChunkX, p.ChunkZ, r.Len())
	}

	c := New(p.ChunkX, p.ChunkZ, a.minY, sections)
	for _, h := range p.Heightmaps {
		hm, err := DecodeHeightmap(h, a.height)
		if err != nil {
			return nil, fmt.Errorf("chunk (%d, %d): %w", p.ChunkX, p.ChunkZ, err)
		}
		c.Heightmaps[h.Type] = hm
	}
	for _, be := range p.BlockEntities {
		y := int(be.Y)
		if _, ok := c.SectionIndex(y); !ok {
			return nil, fmt.Errorf("%w: block entity at y=%d", ErrOutOfWorld, y)
		}
		c.BlockEntities[LocalPos{X: be.LocalX(), Y: y, Z: be.LocalZ()}] = BlockEntity{Type: be.Type, Data: be.Data}
	}
	return c, nil
}

// Encode is the inverse of Assemble. Light data is left empty.
func (a *Assembler) Encode(c *Chunk) (*protocol.LevelChunkWithLight, error) {
	var buf bytes.Buffer
	for i, s := range c.Sections {
		if err := s.Encode(&buf); err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
	}
	p := &protocol.LevelChunkWithLight{
		ChunkX: c.X,
		ChunkZ: c.Z,
		Data:   buf.Bytes(),
	}
	for t := protocol.HeightmapWorldSurfaceWG; t <= protocol.HeightmapMotionBlockingNoLeaves; t++ {
		if hm, ok := c.Heightmaps[t]; ok {
			p.Heightmaps = append(p.Heightmaps, hm.Encode())
		}
	}
	for pos, be := range c.BlockEntities {
		p.BlockEntities = append(p.BlockEntities, protocol.ChunkBlockEntity{
			XZ:   uint8(pos.X<<4 | pos.Z),
			Y:    int16(pos.Y),
			Type: be.Type,
			Data: be.Data,
		})
	}
	slices.SortFunc(p.BlockEntities, func(x, y protocol.ChunkBlockEntity) int {
		return cmp.Or(cmp.Compare(x.Y, y.Y), cmp.Compare(x.XZ, y.XZ))
	})
	return p, nil
}

// EmptyChunk returns a column of air sections.
func (a *Assembler) EmptyChunk(x, z int32, air, biome int32) *Chunk {
	sections := make([]*Section, a.SectionCount())
	for i := range sections {
		sections[i] = NewSection(a.blocks, a.biomes, air, biome)
	}
	return New(x, z, a.minY, sections)
}

// SetBlock changes one block of c by world position and returns the previous
// state. The position must lie in c's column.
func (a *Assembler) SetBlock(c *Chunk, pos protocol.BlockPos, state int32) (int32, error) {
	if state < 0 || int(state) >= a.reg.BlockStateCount() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownState, state)
	}
	if pos.X>>4 != c.X || pos.Z>>4 != c.Z {
		return 0, fmt.Errorf("%w: %s is not in chunk (%d, %d)", ErrOutOfWorld, pos, c.X, c.Z)
	}
	i, ok := c.SectionIndex(int(pos.Y))
	if !ok {
		return 0, fmt.Errorf("%w: y=%d", ErrOutOfWorld, pos.Y)
	}
	s := c.MutableSection(i)
	localY := (int(pos.Y) - c.MinY) % SectionHeight
	return s.SetBlock(int(pos.X&15), localY, int(pos.Z&15), state, a.reg.IsAir), nil
}

// ApplyBlockUpdate applies a single block change.
func (a *Assembler) ApplyBlockUpdate(c *Chunk, p *protocol.BlockUpdate) (int32, error) {
	prev, err := a.SetBlock(c, p.Pos, p.StateID)
	if err != nil {
		return 0, err
	}
	if a.reg.IsAir(p.StateID) {
		delete(c.BlockEntities, LocalPos{X: int(p.Pos.X & 15), Y: int(p.Pos.Y), Z: int(p.Pos.Z & 15)})
	}
	return prev, nil
}

// ApplySectionUpdate applies every record of a multi-block change. Records
// are validated before any block is written.
func (a *Assembler) ApplySectionUpdate(c *Chunk, p *protocol.SectionBlocksUpdate) error {
	if p.Section.X != c.X || p.Section.Z != c.Z {
		return fmt.Errorf("%w: section (%d, %d, %d) is not in chunk (%d, %d)",
			ErrOutOfWorld, p.Section.X, p.Section.Y, p.Section.Z, c.X, c.Z)
	}
	i, ok := c.SectionIndex(int(p.Section.Y) * SectionHeight)
	if !ok {
		return fmt.Errorf("%w: section y=%d", ErrOutOfWorld, p.Section.Y)
	}
	for _, rec := range p.Records {
		if rec.StateID < 0 || int(rec.StateID) >= a.reg.BlockStateCount() {
			return fmt.Errorf("%w: %d", ErrUnknownState, rec.StateID)
		}
	}
	s := c.MutableSection(i)
	for _, rec := range p.Records {
		s.SetBlock(int(rec.X), int(rec.Y), int(rec.Z), rec.StateID, a.reg.IsAir)
		if a.reg.IsAir(rec.StateID) {
			pos := p.Section.World(rec)
			delete(c.BlockEntities, LocalPos{X: int(rec.X), Y: int(pos.Y), Z: int(rec.Z)})
		}
	}
	return nil
}

// ApplyBlockEntity stores or replaces the block entity at p.Pos.
func (a *Assembler) ApplyBlockEntity(c *Chunk, p *protocol.BlockEntityData) error {
	if p.Pos.X>>4 != c.X || p.Pos.Z>>4 != c.Z {
		return fmt.Errorf("%w: %s is not in chunk (%d, %d)", ErrOutOfWorld, p.Pos, c.X, c.Z)
	}
	if _, ok := c.SectionIndex(int(p.Pos.Y)); !ok {
		return fmt.Errorf("%w: y=%d", ErrOutOfWorld, p.Pos.Y)
	}
	c.BlockEntities[LocalPos{X: int(p.Pos.X & 15), Y: int(p.Pos.Y), Z: int(p.Pos.Z & 15)}] = BlockEntity{Type: p.Type, Data: p.Data}
	return nil
}
