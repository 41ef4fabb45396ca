package chunk

import (
	"fmt"
	"io"

	"github.com/Versifine/locus/internal/protocol"
)

const SectionHeight = 16

// Section is a 16x16x16 slice of a chunk column.
type Section struct {
	// BlockCount is the number of non-air blocks, kept up to date by
	// SetBlock.
	BlockCount int16
	Blocks     *PalettedContainer
	Biomes     *PalettedContainer
}

func NewSection(blocks, biomes Config, air, biome int32) *Section {
	return &Section{
		Blocks: NewContainer(blocks, air),
		Biomes: NewContainer(biomes, biome),
	}
}

// DecodeSection reads the non-air count, then the block container, then
// the biome container.
func DecodeSection(r io.Reader, blocks, biomes Config) (*Section, error) {
	count, err := protocol.ReadInt16(r)
	if err != nil {
		return nil, fmt.Errorf("read block count: %w", err)
	}
	if count < 0 || int(count) > blocks.Entries() {
		return nil, fmt.Errorf("%w: block count %d", ErrInvalidSection, count)
	}
	blockStates, err := Decode(r, blocks)
	if err != nil {
		return nil, fmt.Errorf("block states: %w", err)
	}
	biomeData, err := Decode(r, biomes)
	if err != nil {
		return nil, fmt.Errorf("biomes: %w", err)
	}
	return &Section{BlockCount: count, Blocks: blockStates, Biomes: biomeData}, nil
}

func (s *Section) Encode(w io.Writer) error {
	if err := protocol.WriteInt16(w, s.BlockCount); err != nil {
		return err
	}
	if err := s.Blocks.Encode(w); err != nil {
		return err
	}
	return s.Biomes.Encode(w)
}

func (s *Section) Block(x, y, z int) int32 {
	return s.Blocks.Get(x, y, z)
}

// SetBlock stores state and adjusts BlockCount by the change in air. It
// returns the previous state.
func (s *Section) SetBlock(x, y, z int, state int32, isAir func(int32) bool) int32 {
	prev := s.Blocks.Set(x, y, z, state)
	wasAir, nowAir := isAir(prev), isAir(state)
	switch {
	case wasAir && !nowAir:
		s.BlockCount++
	case !wasAir && nowAir:
		s.BlockCount--
	}
	return prev
}

// Recount recomputes BlockCount from the block container.
func (s *Section) Recount(isAir func(int32) bool) {
	s.BlockCount = int16(s.Blocks.Count(func(v int32) bool { return !isAir(v) }))
}

func (s *Section) IsEmpty() bool {
	return s.BlockCount == 0
}

func (s *Section) Clone() *Section {
	return &Section{
		BlockCount: s.BlockCount,
		Blocks:     s.Blocks.Clone(),
		Biomes:     s.Biomes.Clone(),
	}
}
