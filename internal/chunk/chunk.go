package chunk

import (
	"fmt"
	"maps"

	"github.com/Tnze/go-mc/nbt"
	"github.com/Versifine/locus/internal/protocol"
)

// LocalPos is a block position inside a chunk column. X and Z are in 0..15,
// Y is the absolute world height.
type LocalPos struct {
	X, Y, Z int
}

type BlockEntity struct {
	Type int32
	Data nbt.RawMessage
}

// Chunk is a column of sections ordered bottom to top.
//
// A Chunk returned by Clone shares its sections with the original until
// MutableSection is called, so a snapshot can be copied cheaply and only
// the touched sections are duplicated. Clone never writes to its receiver;
// once cloned, the original is a read-only snapshot.
type Chunk struct {
	X, Z          int32
	MinY          int
	Sections      []*Section
	Heightmaps    map[protocol.HeightmapType]*Heightmap
	BlockEntities map[LocalPos]BlockEntity

	owned []bool
}

func New(x, z int32, minY int, sections []*Section) *Chunk {
	owned := make([]bool, len(sections))
	for i := range owned {
		owned[i] = true
	}
	return &Chunk{
		X:             x,
		Z:             z,
		MinY:          minY,
		Sections:      sections,
		Heightmaps:    make(map[protocol.HeightmapType]*Heightmap),
		BlockEntities: make(map[LocalPos]BlockEntity),
		owned:         owned,
	}
}

func (c *Chunk) Height() int {
	return len(c.Sections) * SectionHeight
}

// SectionIndex returns the index of the section containing world height y.
func (c *Chunk) SectionIndex(y int) (int, bool) {
	if y < c.MinY {
		return 0, false
	}
	i := (y - c.MinY) / SectionHeight
	return i, i < len(c.Sections)
}

func (c *Chunk) Block(x, y, z int) (int32, error) {
	i, ok := c.SectionIndex(y)
	if !ok || x < 0 || x > 15 || z < 0 || z > 15 {
		return 0, fmt.Errorf("%w: (%d, %d, %d)", ErrOutOfWorld, x, y, z)
	}
	return c.Sections[i].Block(x, (y-c.MinY)%SectionHeight, z), nil
}

// MutableSection returns section i, copying it first if it is shared with
// another snapshot.
func (c *Chunk) MutableSection(i int) *Section {
	if len(c.owned) != len(c.Sections) {
		c.owned = make([]bool, len(c.Sections))
		for j := range c.owned {
			c.owned[j] = true
		}
	}
	if !c.owned[i] {
		c.Sections[i] = c.Sections[i].Clone()
		c.owned[i] = true
	}
	return c.Sections[i]
}

// Clone returns a private copy of c. Sections stay shared until the copy
// writes them through MutableSection. c itself must not be modified
// afterwards.
func (c *Chunk) Clone() *Chunk {
	out := *c
	out.Sections = append([]*Section(nil), c.Sections...)
	out.Heightmaps = maps.Clone(c.Heightmaps)
	out.BlockEntities = maps.Clone(c.BlockEntities)
	out.owned = make([]bool, len(c.Sections))
	return &out
}

// NonAirBlocks sums the block counters of all sections.
func (c *Chunk) NonAirBlocks() int {
	n := 0
	for _, s := range c.Sections {
		n += int(s.BlockCount)
	}
	return n
}
