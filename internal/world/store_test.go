package world

import (
	"errors"
	"sync"
	"testing"

	"github.com/Versifine/locus/internal/chunk"
	"github.com/Versifine/locus/internal/protocol"
)

const (
	stateAir   = 0
	stateStone = 1
	stateGrass = 4
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	reg, err := LoadRegistry(writeBlocksJSON(t, testBlocksJSON))
	if err != nil {
		t.Fatalf("LoadRegistry failed: %v", err)
	}
	asm, err := chunk.NewAssembler(reg, protocol.V1_21_11, -64, 384)
	if err != nil {
		t.Fatalf("NewAssembler failed: %v", err)
	}
	return NewStore(reg, asm)
}

// loadColumn builds a column with stone at the given world positions and
// loads it through the chunk packet path.
func loadColumn(t *testing.T, s *Store, chunkX, chunkZ int32, stones ...protocol.BlockPos) {
	t.Helper()
	asm := s.Assembler()
	c := asm.EmptyChunk(chunkX, chunkZ, stateAir, 0)
	for _, pos := range stones {
		if _, err := asm.SetBlock(c, pos, stateStone); err != nil {
			t.Fatalf("SetBlock(%s) failed: %v", pos, err)
		}
	}
	pkt, err := asm.Encode(c)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := s.LoadChunk(pkt); err != nil {
		t.Fatalf("LoadChunk failed: %v", err)
	}
}

func TestChunkPosOf(t *testing.T) {
	tests := []struct {
		x, z int
		want ChunkPos
	}{
		{0, 0, ChunkPos{0, 0}},
		{15, 16, ChunkPos{0, 1}},
		{-1, -16, ChunkPos{-1, -1}},
		{-17, 33, ChunkPos{-2, 2}},
	}
	for _, tt := range tests {
		if got := ChunkPosOf(tt.x, tt.z); got != tt.want {
			t.Errorf("ChunkPosOf(%d, %d) = %+v, want %+v", tt.x, tt.z, got, tt.want)
		}
	}
}

func TestStoreBlockQueries(t *testing.T) {
	s := newTestStore(t)
	loadColumn(t, s, -1, 0, protocol.BlockPos{X: -1, Y: 64, Z: 5}, protocol.BlockPos{X: -16, Y: -64, Z: 0})

	if !s.IsLoaded(-1, 0) || s.LoadedChunkCount() != 1 {
		t.Fatalf("IsLoaded = %v, count = %d", s.IsLoaded(-1, 0), s.LoadedChunkCount())
	}

	tests := []struct {
		name      string
		x, y, z   int
		wantState int32
		wantOK    bool
		wantSolid bool
	}{
		{"stone", -1, 64, 5, stateStone, true, true},
		{"bottom stone", -16, -64, 0, stateStone, true, true},
		{"air", -2, 64, 5, stateAir, true, false},
		{"below world", -1, -65, 5, 0, false, false},
		{"unloaded chunk", 3, 64, 5, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, ok := s.GetBlockState(tt.x, tt.y, tt.z)
			if state != tt.wantState || ok != tt.wantOK {
				t.Fatalf("GetBlockState = %d, %v, want %d, %v", state, ok, tt.wantState, tt.wantOK)
			}
			if got := s.IsSolid(tt.x, tt.y, tt.z); got != tt.wantSolid {
				t.Fatalf("IsSolid = %v, want %v", got, tt.wantSolid)
			}
		})
	}

	if name, ok := s.BlockName(-1, 64, 5); !ok || name != "Stone" {
		t.Fatalf("BlockName = %q, %v, want Stone", name, ok)
	}
	if _, ok := s.BlockName(100, 64, 100); ok {
		t.Fatal("BlockName on unloaded chunk should fail")
	}
}

func TestStoreSnapshotsAreImmutable(t *testing.T) {
	s := newTestStore(t)
	loadColumn(t, s, 0, 0)

	before, _ := s.Chunk(0, 0)
	prev, err := s.SetBlockState(1, 70, 1, stateGrass)
	if err != nil {
		t.Fatalf("SetBlockState failed: %v", err)
	}
	if prev != stateAir {
		t.Fatalf("prev = %d, want %d", prev, stateAir)
	}

	if got, _ := before.Block(1, 70, 1); got != stateAir {
		t.Fatalf("old snapshot changed to %d", got)
	}
	after, _ := s.Chunk(0, 0)
	if after == before {
		t.Fatal("store should publish a new snapshot")
	}
	if got, _ := after.Block(1, 70, 1); got != stateGrass {
		t.Fatalf("new snapshot has %d, want %d", got, stateGrass)
	}
}

func TestStoreUpdates(t *testing.T) {
	s := newTestStore(t)
	loadColumn(t, s, 2, -3)

	if err := s.ApplyBlockUpdate(&protocol.BlockUpdate{Pos: protocol.BlockPos{X: 33, Y: 0, Z: -47}, StateID: stateStone}); err != nil {
		t.Fatalf("ApplyBlockUpdate failed: %v", err)
	}
	if state, _ := s.GetBlockState(33, 0, -47); state != stateStone {
		t.Fatalf("after block update state = %d", state)
	}

	err := s.ApplySectionUpdate(&protocol.SectionBlocksUpdate{
		Section: protocol.SectionPos{X: 2, Y: -1, Z: -3},
		Records: []protocol.BlockRecord{
			{X: 0, Y: 0, Z: 0, StateID: stateGrass},
			{X: 15, Y: 15, Z: 15, StateID: stateStone},
		},
	})
	if err != nil {
		t.Fatalf("ApplySectionUpdate failed: %v", err)
	}
	if state, _ := s.GetBlockState(32, -16, -48); state != stateGrass {
		t.Fatalf("section record (0,0,0) = %d", state)
	}
	if state, _ := s.GetBlockState(47, -1, -33); state != stateStone {
		t.Fatalf("section record (15,15,15) = %d", state)
	}

	be := &protocol.BlockEntityData{Pos: protocol.BlockPos{X: 33, Y: 0, Z: -47}, Type: 7}
	if err := s.UpdateBlockEntity(be); err != nil {
		t.Fatalf("UpdateBlockEntity failed: %v", err)
	}
	if got, ok := s.BlockEntity(33, 0, -47); !ok || got.Type != 7 {
		t.Fatalf("BlockEntity = %+v, %v", got, ok)
	}

	// a failed update publishes nothing
	before, _ := s.Chunk(2, -3)
	err = s.ApplySectionUpdate(&protocol.SectionBlocksUpdate{
		Section: protocol.SectionPos{X: 2, Y: 0, Z: -3},
		Records: []protocol.BlockRecord{{X: 1, StateID: stateStone}, {X: 2, StateID: 99}},
	})
	if !errors.Is(err, chunk.ErrUnknownState) {
		t.Fatalf("error = %v, want ErrUnknownState", err)
	}
	if after, _ := s.Chunk(2, -3); after != before {
		t.Fatal("failed update should keep the old snapshot")
	}
}

func TestStoreUnloadedColumn(t *testing.T) {
	s := newTestStore(t)
	tests := []struct {
		name string
		fn   func() error
	}{
		{"set block", func() error { _, err := s.SetBlockState(0, 0, 0, stateStone); return err }},
		{"block update", func() error { return s.ApplyBlockUpdate(&protocol.BlockUpdate{StateID: stateStone}) }},
		{"section update", func() error { return s.ApplySectionUpdate(&protocol.SectionBlocksUpdate{}) }},
		{"block entity", func() error { return s.UpdateBlockEntity(&protocol.BlockEntityData{}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrChunkNotLoaded) {
				t.Fatalf("error = %v, want ErrChunkNotLoaded", err)
			}
		})
	}
}

func TestStoreUnloadAndReset(t *testing.T) {
	s := newTestStore(t)
	loadColumn(t, s, 0, 0)
	loadColumn(t, s, 1, 0)

	if !s.Unload(0, 0) {
		t.Fatal("Unload(0, 0) = false, want true")
	}
	if s.Unload(0, 0) {
		t.Fatal("second Unload(0, 0) = true, want false")
	}
	if s.IsLoaded(0, 0) || !s.IsLoaded(1, 0) {
		t.Fatal("only column (1, 0) should remain")
	}

	nether, err := chunk.NewAssembler(s.Registry(), protocol.V1_21_11, 0, 256)
	if err != nil {
		t.Fatal(err)
	}
	s.Reset(nether)
	if s.LoadedChunkCount() != 0 {
		t.Fatalf("LoadedChunkCount() = %d after Reset", s.LoadedChunkCount())
	}
	if s.Assembler().Height() != 256 {
		t.Fatalf("assembler height = %d, want 256", s.Assembler().Height())
	}
	loadColumn(t, s, 0, 0, protocol.BlockPos{X: 0, Y: 255, Z: 0})
	if _, ok := s.GetBlockState(0, -1, 0); ok {
		t.Fatal("y=-1 should be outside the nether column")
	}

	s.Clear()
	if s.LoadedChunkCount() != 0 {
		t.Fatal("Clear should drop every column")
	}
}

func TestStoreConcurrentReadWrite(t *testing.T) {
	s := newTestStore(t)
	loadColumn(t, s, 0, 0)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if _, err := s.SetBlockState(w, i, 0, stateStone); err != nil {
					t.Errorf("SetBlockState failed: %v", err)
					return
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.GetBlockState(i%16, i%50, 0)
				s.IsSolid(0, 0, 0)
			}
		}()
	}
	wg.Wait()

	c, _ := s.Chunk(0, 0)
	if c.NonAirBlocks() != 200 {
		t.Fatalf("NonAirBlocks() = %d, want 200", c.NonAirBlocks())
	}
}

func TestStoreWithoutDimension(t *testing.T) {
	s := NewStore(FallbackRegistry(), nil)
	if _, err := s.LoadChunk(&protocol.LevelChunkWithLight{}); !errors.Is(err, ErrNoDimension) {
		t.Errorf("LoadChunk 错误 = %v, 期望 ErrNoDimension", err)
	}
	if s.LoadedChunkCount() != 0 {
		t.Errorf("LoadedChunkCount = %d, 期望 0", s.LoadedChunkCount())
	}
}

func TestStoreCloneSnapshotDuringUpdate(t *testing.T) {
	s := newTestStore(t)
	loadColumn(t, s, 0, 0)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			state := int32(stateStone)
			if i%2 == 1 {
				state = stateGrass
			}
			if _, err := s.SetBlockState(1, 1, 1, state); err != nil {
				t.Errorf("SetBlockState failed: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c, ok := s.Chunk(0, 0)
			if !ok {
				t.Error("区块应已加载")
				return
			}
			cp := c.Clone()
			if _, err := cp.Block(1, 1, 1); err != nil {
				t.Errorf("Block failed: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	// 读者克隆出的副本不能影响发布的快照
	before, _ := s.Chunk(0, 0)
	want, _ := before.Block(1, 1, 1)
	cp := before.Clone()
	if _, err := s.Assembler().SetBlock(cp, protocol.BlockPos{X: 1, Y: 1, Z: 1}, stateAir); err != nil {
		t.Fatalf("SetBlock failed: %v", err)
	}
	if got, _ := before.Block(1, 1, 1); got != want {
		t.Errorf("快照方块 = %d, 期望 %d", got, want)
	}
	if got, _ := s.GetBlockState(1, 1, 1); got != want {
		t.Errorf("存储方块 = %d, 期望 %d", got, want)
	}
}
