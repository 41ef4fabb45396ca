package chunk

import (
	"fmt"
	"io"

	"github.com/Versifine/locus/internal/protocol"
)

type PaletteKind int

const (
	PaletteSingle PaletteKind = iota
	PaletteIndirect
	PaletteGlobal
)

func (k PaletteKind) String() string {
	switch k {
	case PaletteSingle:
		return "single"
	case PaletteIndirect:
		return "indirect"
	case PaletteGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Config fixes the shape and wire thresholds of a container.
type Config struct {
	// Side is the edge length of the cube: 16 for blocks, 4 for biomes.
	Side int
	// Indirect palettes are written with at least MinIndirectBits and hold
	// at most 2^MaxIndirectBits entries.
	MinIndirectBits int
	MaxIndirectBits int
	// RegistrySize is the number of global ids. Global storage uses
	// ceil(log2(RegistrySize)) bits.
	RegistrySize int
	// LengthPrefixed containers carry a VarInt long count before the data.
	LengthPrefixed bool
}

func BlockConfig(registrySize int, v protocol.ProtocolVersion) Config {
	return Config{
		Side:            16,
		MinIndirectBits: 4,
		MaxIndirectBits: 8,
		RegistrySize:    registrySize,
		LengthPrefixed:  v.ContainerLengthPrefixed(),
	}
}

func BiomeConfig(registrySize int, v protocol.ProtocolVersion) Config {
	return Config{
		Side:            4,
		MinIndirectBits: 1,
		MaxIndirectBits: 3,
		RegistrySize:    registrySize,
		LengthPrefixed:  v.ContainerLengthPrefixed(),
	}
}

func (c Config) Entries() int { return c.Side * c.Side * c.Side }

func (c Config) GlobalBits() int {
	return max(1, bitsFor(c.RegistrySize))
}

func (c Config) Index(x, y, z int) int {
	if x < 0 || x >= c.Side || y < 0 || y >= c.Side || z < 0 || z >= c.Side {
		panic(fmt.Sprintf("chunk: coordinate (%d, %d, %d) outside container of side %d", x, y, z, c.Side))
	}
	return (y*c.Side+z)*c.Side + x
}

// PalettedContainer stores Side^3 global ids. Storage width in memory is the
// smallest that fits the palette, so it may be narrower than what is written
// on the wire.
type PalettedContainer struct {
	cfg     Config
	kind    PaletteKind
	palette []int32
	data    *BitStorage
}

// NewContainer returns a container filled with value.
func NewContainer(cfg Config, value int32) *PalettedContainer {
	return &PalettedContainer{
		cfg:     cfg,
		kind:    PaletteSingle,
		palette: []int32{value},
		data:    mustBitStorage(0, cfg.Entries()),
	}
}

// Build creates a container holding values in index order, choosing the
// narrowest palette that fits.
func Build(cfg Config, values []int32) (*PalettedContainer, error) {
	if len(values) != cfg.Entries() {
		return nil, fmt.Errorf("build container: got %d values, want %d", len(values), cfg.Entries())
	}
	seen := make(map[int32]int)
	var palette []int32
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = len(palette)
			palette = append(palette, v)
		}
	}

	c := &PalettedContainer{cfg: cfg}
	switch {
	case len(palette) == 1:
		c.kind = PaletteSingle
		c.palette = palette
		c.data = mustBitStorage(0, cfg.Entries())
		return c, nil
	case len(palette) <= 1<<cfg.MaxIndirectBits:
		c.kind = PaletteIndirect
		c.palette = palette
		c.data = mustBitStorage(bitsFor(len(palette)), cfg.Entries())
		for i, v := range values {
			c.data.Set(i, seen[v])
		}
	default:
		c.kind = PaletteGlobal
		c.data = mustBitStorage(cfg.GlobalBits(), cfg.Entries())
		for i, v := range values {
			if err := c.checkGlobal(v); err != nil {
				return nil, err
			}
			c.data.Set(i, int(v))
		}
	}
	return c, nil
}

func (c *PalettedContainer) Kind() PaletteKind { return c.kind }
func (c *PalettedContainer) Config() Config    { return c.cfg }

// BitsPerEntry is the in-memory storage width.
func (c *PalettedContainer) BitsPerEntry() int { return c.data.Bits() }

// Palette returns the local-to-global table; nil for global containers.
func (c *PalettedContainer) Palette() []int32 {
	return append([]int32(nil), c.palette...)
}

func (c *PalettedContainer) Get(x, y, z int) int32 {
	return c.At(c.cfg.Index(x, y, z))
}

func (c *PalettedContainer) At(i int) int32 {
	raw := c.data.Get(i)
	switch c.kind {
	case PaletteSingle:
		return c.palette[0]
	case PaletteIndirect:
		return c.palette[raw]
	default:
		return int32(raw)
	}
}

// Set stores value at (x, y, z) and returns the previous value.
func (c *PalettedContainer) Set(x, y, z int, value int32) int32 {
	return c.SetAt(c.cfg.Index(x, y, z), value)
}

func (c *PalettedContainer) SetAt(i int, value int32) int32 {
	switch c.kind {
	case PaletteSingle:
		prev := c.palette[0]
		if prev == value {
			return prev
		}
		c.kind = PaletteIndirect
		c.palette = []int32{prev, value}
		c.data = mustBitStorage(1, c.cfg.Entries())
		c.data.Set(i, 1)
		return prev

	case PaletteIndirect:
		prev := c.palette[c.data.Get(i)]
		if idx := c.indexOf(value); idx >= 0 {
			c.data.Set(i, idx)
			return prev
		}
		n := len(c.palette) + 1
		if n > 1<<c.cfg.MaxIndirectBits {
			c.toGlobal()
			c.data.Set(i, int(value))
			return prev
		}
		if w := bitsFor(n); w > c.data.Bits() {
			c.data = c.data.Resize(w)
		}
		c.palette = append(c.palette, value)
		c.data.Set(i, n-1)
		return prev

	default:
		return int32(c.data.Swap(i, int(value)))
	}
}

func (c *PalettedContainer) indexOf(value int32) int {
	for i, v := range c.palette {
		if v == value {
			return i
		}
	}
	return -1
}

func (c *PalettedContainer) toGlobal() {
	global := mustBitStorage(c.cfg.GlobalBits(), c.cfg.Entries())
	for i := 0; i < c.cfg.Entries(); i++ {
		global.Set(i, int(c.palette[c.data.Get(i)]))
	}
	c.kind = PaletteGlobal
	c.palette = nil
	c.data = global
}

func (c *PalettedContainer) checkGlobal(v int32) error {
	if v < 0 || int(v) >= c.cfg.RegistrySize {
		return containerErrorf("global id %d outside registry of %d", v, c.cfg.RegistrySize)
	}
	return nil
}

// Values expands the container into index order.
func (c *PalettedContainer) Values() []int32 {
	out := make([]int32, c.cfg.Entries())
	for i := range out {
		out[i] = c.At(i)
	}
	return out
}

// Count returns how many entries satisfy pred.
func (c *PalettedContainer) Count(pred func(int32) bool) int {
	if c.kind == PaletteSingle {
		if pred(c.palette[0]) {
			return c.cfg.Entries()
		}
		return 0
	}
	n := 0
	for i := 0; i < c.cfg.Entries(); i++ {
		if pred(c.At(i)) {
			n++
		}
	}
	return n
}

func (c *PalettedContainer) Clone() *PalettedContainer {
	return &PalettedContainer{
		cfg:     c.cfg,
		kind:    c.kind,
		palette: append([]int32(nil), c.palette...),
		data:    c.data.Clone(),
	}
}

// wireBits is the bits-per-entry byte written for the container.
func (c *PalettedContainer) wireBits() int {
	switch c.kind {
	case PaletteSingle:
		return 0
	case PaletteIndirect:
		return max(c.data.Bits(), c.cfg.MinIndirectBits)
	default:
		return c.cfg.GlobalBits()
	}
}

// Encode writes the container in network format.
func (c *PalettedContainer) Encode(w io.Writer) error {
	nbits := c.wireBits()
	if err := protocol.WriteUint8(w, uint8(nbits)); err != nil {
		return err
	}

	storage := c.data
	switch c.kind {
	case PaletteSingle:
		if err := protocol.WriteVarint(w, c.palette[0]); err != nil {
			return err
		}
	case PaletteIndirect:
		if err := protocol.WriteSequence(w, c.palette, protocol.WriteVarint); err != nil {
			return err
		}
		if nbits != storage.Bits() {
			storage = storage.Resize(nbits)
		}
	}

	raw := storage.Raw()
	if c.cfg.LengthPrefixed {
		if err := protocol.WriteVarint(w, int32(len(raw))); err != nil {
			return err
		}
	}
	longs := make([]int64, len(raw))
	for i, v := range raw {
		longs[i] = int64(v)
	}
	return protocol.WriteLongs(w, longs)
}

// Decode reads a container in network format.
func Decode(r io.Reader, cfg Config) (*PalettedContainer, error) {
	b, err := protocol.ReadUint8(r)
	if err != nil {
		return nil, err
	}
	nbits := int(b)
	entries := cfg.Entries()

	c := &PalettedContainer{cfg: cfg}
	storageBits := 0
	switch {
	case nbits == 0:
		c.kind = PaletteSingle
		v, err := protocol.ReadVarint(r)
		if err != nil {
			return nil, err
		}
		if err := c.checkGlobal(v); err != nil {
			return nil, err
		}
		c.palette = []int32{v}

	case nbits <= cfg.MaxIndirectBits:
		c.kind = PaletteIndirect
		storageBits = max(nbits, cfg.MinIndirectBits)
		palette, err := protocol.ReadSequence(r, 1<<cfg.MaxIndirectBits, protocol.ReadVarint)
		if err != nil {
			return nil, fmt.Errorf("read palette: %w", err)
		}
		if len(palette) == 0 {
			return nil, containerErrorf("empty indirect palette")
		}
		if len(palette) > 1<<storageBits {
			return nil, containerErrorf("palette of %d entries does not fit %d bits", len(palette), storageBits)
		}
		for _, v := range palette {
			if err := c.checkGlobal(v); err != nil {
				return nil, err
			}
		}
		c.palette = palette

	case nbits <= 32:
		c.kind = PaletteGlobal
		storageBits = cfg.GlobalBits()

	default:
		return nil, containerErrorf("bits per entry %d out of range", nbits)
	}

	want := StorageSize(storageBits, entries)
	if cfg.LengthPrefixed {
		n, err := protocol.ReadVarint(r)
		if err != nil {
			return nil, err
		}
		if int(n) != want {
			return nil, containerErrorf("data array has %d longs, want %d for %d bits", n, want, storageBits)
		}
	}
	longs, err := protocol.ReadLongs(r, want)
	if err != nil {
		return nil, err
	}
	var raw []uint64
	if want > 0 {
		raw = make([]uint64, want)
		for i, v := range longs {
			raw[i] = uint64(v)
		}
	}
	c.data, err = NewBitStorage(storageBits, entries, raw)
	if err != nil {
		return nil, err
	}

	switch c.kind {
	case PaletteIndirect:
		for i := 0; i < entries; i++ {
			if idx := c.data.Get(i); idx >= len(c.palette) {
				return nil, containerErrorf("palette index %d at entry %d exceeds palette of %d", idx, i, len(c.palette))
			}
		}
		c.compact()
	case PaletteGlobal:
		for i := 0; i < entries; i++ {
			if err := c.checkGlobal(int32(c.data.Get(i))); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// compact narrows indirect storage to the width its palette needs.
func (c *PalettedContainer) compact() {
	if w := max(1, bitsFor(len(c.palette))); w < c.data.Bits() {
		c.data = c.data.Resize(w)
	}
}
