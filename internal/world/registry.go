package world

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
)

// FallbackStateCount is used when no blocks.json is available. It yields
// the same 15-bit global palette width as the vanilla block registry.
const FallbackStateCount = 1 << 15

// DefaultBiomeCount matches the vanilla biome registry until the server
// sends its own.
const DefaultBiomeCount = 64

var airBlocks = []string{"air", "cave_air", "void_air"}

// BlockDef is one block of the registry and the range of state ids it owns.
type BlockDef struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	MinStateID  int32  `json:"minStateId"`
	MaxStateID  int32  `json:"maxStateId"`
	BoundingBox string `json:"boundingBox"`
}

// Registry maps block state ids to blocks. It is built once from an ordered
// list and never modified, so it can be shared freely.
type Registry struct {
	blocks     []BlockDef
	byState    []int32 // state id -> index into blocks, -1 if unassigned
	stateCount int
	biomeCount int
	air        []bool
}

// LoadBlocksJSON reads a blocks.json registration list.
func LoadBlocksJSON(path string) ([]BlockDef, error) {
	if path == "" {
		return nil, fmt.Errorf("blocks.json path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blocks.json: %w", err)
	}
	var blocks []BlockDef
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("parse blocks.json: %w", err)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("blocks.json has no block definitions")
	}
	return blocks, nil
}

// NewRegistry builds a registry from block definitions. Ranges are sorted
// by their first state id and must not overlap.
func NewRegistry(blocks []BlockDef, biomeCount int) (*Registry, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("registry needs at least one block")
	}
	if biomeCount <= 0 {
		return nil, fmt.Errorf("biome count %d must be positive", biomeCount)
	}
	sorted := slices.Clone(blocks)
	slices.SortStableFunc(sorted, func(a, b BlockDef) int { return cmp.Compare(a.MinStateID, b.MinStateID) })

	maxStateID := int32(-1)
	for i, b := range sorted {
		if b.MinStateID < 0 || b.MaxStateID < b.MinStateID {
			return nil, fmt.Errorf("invalid state id range for %q: min=%d max=%d", b.Name, b.MinStateID, b.MaxStateID)
		}
		if i > 0 && b.MinStateID <= sorted[i-1].MaxStateID {
			return nil, fmt.Errorf("state ids of %q overlap %q", b.Name, sorted[i-1].Name)
		}
		maxStateID = max(maxStateID, b.MaxStateID)
	}

	reg := &Registry{
		blocks:     sorted,
		byState:    make([]int32, maxStateID+1),
		stateCount: int(maxStateID) + 1,
		biomeCount: biomeCount,
		air:        make([]bool, maxStateID+1),
	}
	for i := range reg.byState {
		reg.byState[i] = -1
	}
	for i, b := range sorted {
		isAir := slices.Contains(airBlocks, b.Name)
		for id := b.MinStateID; id <= b.MaxStateID; id++ {
			reg.byState[id] = int32(i)
			reg.air[id] = isAir
		}
	}
	return reg, nil
}

// LoadRegistry loads blocks.json from path, or from the default location
// next to the repository when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		path = defaultBlocksJSONPath()
	}
	blocks, err := LoadBlocksJSON(path)
	if err != nil {
		return nil, err
	}
	return NewRegistry(blocks, DefaultBiomeCount)
}

// FallbackRegistry knows nothing but air at state 0. It is enough to decode
// chunks, though names and solidity are unavailable.
func FallbackRegistry() *Registry {
	reg := &Registry{
		blocks:     []BlockDef{{Name: "air", DisplayName: "Air"}},
		stateCount: FallbackStateCount,
		biomeCount: DefaultBiomeCount,
		byState:    []int32{0},
		air:        []bool{true},
	}
	return reg
}

// WithBiomes returns a copy of reg with a different biome registry size.
func (reg *Registry) WithBiomes(n int) *Registry {
	out := *reg
	out.biomeCount = max(1, n)
	return &out
}

func (reg *Registry) BlockStateCount() int { return reg.stateCount }
func (reg *Registry) BiomeCount() int      { return reg.biomeCount }

func (reg *Registry) IsAir(state int32) bool {
	return state >= 0 && int(state) < len(reg.air) && reg.air[state]
}

// Block returns the definition owning state.
func (reg *Registry) Block(state int32) (BlockDef, bool) {
	if state < 0 || int(state) >= len(reg.byState) || reg.byState[state] < 0 {
		return BlockDef{}, false
	}
	return reg.blocks[reg.byState[state]], true
}

// Name returns the display name of state, falling back to the block name.
func (reg *Registry) Name(state int32) (string, bool) {
	b, ok := reg.Block(state)
	if !ok {
		return "", false
	}
	if b.DisplayName != "" {
		return b.DisplayName, true
	}
	return b.Name, b.Name != ""
}

func (reg *Registry) IsSolid(state int32) bool {
	b, ok := reg.Block(state)
	return ok && b.BoundingBox == "block"
}

// Blocks returns the registration list in state id order.
func (reg *Registry) Blocks() []BlockDef {
	return slices.Clone(reg.blocks)
}

func defaultBlocksJSONPath() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return filepath.Join("1.21.11", "blocks.json")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", "1.21.11", "blocks.json"))
}
