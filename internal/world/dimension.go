package world

import (
	"fmt"

	"github.com/Versifine/locus/internal/protocol"
)

const (
	DimensionOverworld = "minecraft:overworld"
	DimensionNether    = "minecraft:the_nether"
	DimensionEnd       = "minecraft:the_end"

	DimensionTypeRegistry = "minecraft:dimension_type"
	BiomeRegistry         = "minecraft:worldgen/biome"
)

type DimensionBounds struct {
	MinY   int
	Height int
}

func VanillaDimensionBounds(name string) (DimensionBounds, bool) {
	switch name {
	case DimensionOverworld:
		return DimensionBounds{MinY: -64, Height: 384}, true
	case DimensionNether, DimensionEnd:
		return DimensionBounds{MinY: 0, Height: 256}, true
	default:
		return DimensionBounds{}, false
	}
}

type dimensionType struct {
	MinY   int32 `nbt:"min_y"`
	Height int32 `nbt:"height"`
}

// DimensionTable holds the dimension types sent during configuration, in
// registry order. Play packets refer to them by index.
type DimensionTable struct {
	names  []string
	bounds []DimensionBounds
}

// ParseDimensionTypes reads a dimension_type registry. Entries without
// data are taken from a known pack, so vanilla bounds are assumed for them.
func ParseDimensionTypes(p *protocol.RegistryData) (*DimensionTable, error) {
	if p.RegistryID != DimensionTypeRegistry {
		return nil, fmt.Errorf("registry %q is not %s", p.RegistryID, DimensionTypeRegistry)
	}
	t := &DimensionTable{}
	for _, e := range p.Entries {
		var b DimensionBounds
		if e.Data == nil {
			vanilla, ok := VanillaDimensionBounds(e.ID)
			if !ok {
				return nil, fmt.Errorf("dimension type %s has no data", e.ID)
			}
			b = vanilla
		} else {
			var dt dimensionType
			if err := protocol.DecodeNBT(*e.Data, &dt); err != nil {
				return nil, fmt.Errorf("dimension type %s: %w", e.ID, err)
			}
			if dt.Height <= 0 || dt.Height%16 != 0 {
				return nil, fmt.Errorf("dimension type %s: invalid height %d", e.ID, dt.Height)
			}
			b = DimensionBounds{MinY: int(dt.MinY), Height: int(dt.Height)}
		}
		t.names = append(t.names, e.ID)
		t.bounds = append(t.bounds, b)
	}
	return t, nil
}

func (t *DimensionTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Resolve returns the bounds for a spawn. The type index wins; the world
// name is only used when the table does not cover the index.
func (t *DimensionTable) Resolve(typeID int32, worldName string) (DimensionBounds, bool) {
	if t != nil && typeID >= 0 && int(typeID) < len(t.bounds) {
		return t.bounds[typeID], true
	}
	return VanillaDimensionBounds(worldName)
}
