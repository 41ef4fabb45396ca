package chunk

import (
	"fmt"
	"math/bits"

	"github.com/Versifine/locus/internal/protocol"
)

const heightmapEntries = 16 * 16

// Heightmap stores one height per (x, z) column, relative to the bottom of
// the world, packed at ceil(log2(worldHeight+1)) bits.
type Heightmap struct {
	Type    protocol.HeightmapType
	storage *BitStorage
}

func HeightmapBits(worldHeight int) int {
	return bits.Len(uint(worldHeight))
}

func DecodeHeightmap(h protocol.Heightmap, worldHeight int) (*Heightmap, error) {
	raw := make([]uint64, len(h.Data))
	for i, v := range h.Data {
		raw[i] = uint64(v)
	}
	storage, err := NewBitStorage(HeightmapBits(worldHeight), heightmapEntries, raw)
	if err != nil {
		return nil, fmt.Errorf("heightmap %s: %w", h.Type, err)
	}
	return &Heightmap{Type: h.Type, storage: storage}, nil
}

// NewHeightmap builds a heightmap from 256 heights indexed z*16+x.
func NewHeightmap(t protocol.HeightmapType, worldHeight int, heights []int) (*Heightmap, error) {
	if len(heights) != heightmapEntries {
		return nil, fmt.Errorf("heightmap needs %d heights, got %d", heightmapEntries, len(heights))
	}
	storage := mustBitStorage(HeightmapBits(worldHeight), heightmapEntries)
	for i, h := range heights {
		if h < 0 || h > worldHeight {
			return nil, fmt.Errorf("height %d outside [0, %d]", h, worldHeight)
		}
		storage.Set(i, h)
	}
	return &Heightmap{Type: t, storage: storage}, nil
}

// Get returns the height of column (x, z), 0 <= x, z < 16.
func (h *Heightmap) Get(x, z int) int {
	return h.storage.Get(z*16 + x)
}

func (h *Heightmap) Encode() protocol.Heightmap {
	raw := h.storage.Raw()
	data := make([]int64, len(raw))
	for i, v := range raw {
		data[i] = int64(v)
	}
	return protocol.Heightmap{Type: h.Type, Data: data}
}
