package world

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Versifine/locus/internal/chunk"
	"github.com/Versifine/locus/internal/protocol"
)

var (
	ErrChunkNotLoaded = errors.New("chunk not loaded")
	// ErrNoDimension is returned for chunk data received before the
	// dimension layout is known.
	ErrNoDimension = errors.New("dimension layout not set")
)

type ChunkPos struct {
	X int32
	Z int32
}

func ChunkPosOf(x, z int) ChunkPos {
	return ChunkPos{X: int32(floorDiv16(x)), Z: int32(floorDiv16(z))}
}

// Store keeps the loaded chunk columns of one dimension. Every column is
// published as an immutable snapshot: readers load a pointer and never
// lock, writers clone the column, modify the clone and swap it in.
type Store struct {
	reg *Registry
	asm atomic.Pointer[chunk.Assembler]

	// wmu serializes writers so clone-modify-swap never loses an update.
	wmu sync.Mutex

	mu      sync.RWMutex
	columns map[ChunkPos]*atomic.Pointer[chunk.Chunk]
}

func NewStore(reg *Registry, asm *chunk.Assembler) *Store {
	s := &Store{
		reg:     reg,
		columns: make(map[ChunkPos]*atomic.Pointer[chunk.Chunk]),
	}
	s.asm.Store(asm)
	return s
}

func (s *Store) Registry() *Registry { return s.reg }

func (s *Store) Assembler() *chunk.Assembler { return s.asm.Load() }

// Reset drops every column and switches to the layout of asm, as happens
// on respawn into another dimension.
func (s *Store) Reset(asm *chunk.Assembler) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.asm.Store(asm)
	s.clear()
}

// LoadChunk assembles a chunk packet and publishes the result, replacing
// any column already stored at that position.
func (s *Store) LoadChunk(p *protocol.LevelChunkWithLight) (*chunk.Chunk, error) {
	asm := s.Assembler()
	if asm == nil {
		return nil, ErrNoDimension
	}
	c, err := asm.Assemble(p)
	if err != nil {
		return nil, err
	}
	s.Put(c)
	return c, nil
}

// Put publishes c. The store takes ownership of it.
func (s *Store) Put(c *chunk.Chunk) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	pos := ChunkPos{X: c.X, Z: c.Z}

	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.columns[pos]
	if !ok {
		slot = new(atomic.Pointer[chunk.Chunk])
		s.columns[pos] = slot
	}
	slot.Store(c)
}

func (s *Store) Unload(chunkX, chunkZ int32) bool {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := ChunkPos{X: chunkX, Z: chunkZ}
	_, ok := s.columns[pos]
	delete(s.columns, pos)
	return ok
}

func (s *Store) Clear() {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.clear()
}

func (s *Store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns = make(map[ChunkPos]*atomic.Pointer[chunk.Chunk])
}

// Chunk returns the current snapshot of a column. The snapshot must not be
// modified.
func (s *Store) Chunk(chunkX, chunkZ int32) (*chunk.Chunk, bool) {
	s.mu.RLock()
	slot, ok := s.columns[ChunkPos{X: chunkX, Z: chunkZ}]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return slot.Load(), true
}

func (s *Store) IsLoaded(chunkX, chunkZ int32) bool {
	_, ok := s.Chunk(chunkX, chunkZ)
	return ok
}

func (s *Store) LoadedChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.columns)
}

// update runs fn on a private copy of the column at pos and publishes it if
// fn succeeds.
func (s *Store) update(pos ChunkPos, fn func(*chunk.Assembler, *chunk.Chunk) error) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.RLock()
	slot, ok := s.columns[pos]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: (%d, %d)", ErrChunkNotLoaded, pos.X, pos.Z)
	}
	asm := s.Assembler()
	if asm == nil {
		return ErrNoDimension
	}
	next := slot.Load().Clone()
	if err := fn(asm, next); err != nil {
		return err
	}
	slot.Store(next)
	return nil
}

func (s *Store) GetBlockState(x, y, z int) (int32, bool) {
	c, ok := s.Chunk(ChunkPosOf(x, z).X, ChunkPosOf(x, z).Z)
	if !ok {
		return 0, false
	}
	state, err := c.Block(floorMod16(x), y, floorMod16(z))
	if err != nil {
		return 0, false
	}
	return state, true
}

// SetBlockState changes one block and returns the previous state.
func (s *Store) SetBlockState(x, y, z int, state int32) (int32, error) {
	var prev int32
	err := s.update(ChunkPosOf(x, z), func(a *chunk.Assembler, c *chunk.Chunk) error {
		var err error
		prev, err = a.SetBlock(c, protocol.BlockPos{X: int32(x), Y: int32(y), Z: int32(z)}, state)
		return err
	})
	return prev, err
}

func (s *Store) ApplyBlockUpdate(p *protocol.BlockUpdate) error {
	return s.update(ChunkPosOf(int(p.Pos.X), int(p.Pos.Z)), func(a *chunk.Assembler, c *chunk.Chunk) error {
		_, err := a.ApplyBlockUpdate(c, p)
		return err
	})
}

func (s *Store) ApplySectionUpdate(p *protocol.SectionBlocksUpdate) error {
	return s.update(ChunkPos{X: p.Section.X, Z: p.Section.Z}, func(a *chunk.Assembler, c *chunk.Chunk) error {
		return a.ApplySectionUpdate(c, p)
	})
}

func (s *Store) UpdateBlockEntity(p *protocol.BlockEntityData) error {
	return s.update(ChunkPosOf(int(p.Pos.X), int(p.Pos.Z)), func(a *chunk.Assembler, c *chunk.Chunk) error {
		return a.ApplyBlockEntity(c, p)
	})
}

func (s *Store) BlockEntity(x, y, z int) (chunk.BlockEntity, bool) {
	pos := ChunkPosOf(x, z)
	c, ok := s.Chunk(pos.X, pos.Z)
	if !ok {
		return chunk.BlockEntity{}, false
	}
	be, ok := c.BlockEntities[chunk.LocalPos{X: floorMod16(x), Y: y, Z: floorMod16(z)}]
	return be, ok
}

func (s *Store) IsSolid(x, y, z int) bool {
	state, ok := s.GetBlockState(x, y, z)
	return ok && s.reg.IsSolid(state)
}

// BlockName returns the name of the block at a world position.
func (s *Store) BlockName(x, y, z int) (string, bool) {
	state, ok := s.GetBlockState(x, y, z)
	if !ok {
		return "", false
	}
	return s.reg.Name(state)
}

func floorDiv16(v int) int {
	q := v / 16
	if v < 0 && v%16 != 0 {
		q--
	}
	return q
}

func floorMod16(v int) int {
	m := v % 16
	if m < 0 {
		m += 16
	}
	return m
}
