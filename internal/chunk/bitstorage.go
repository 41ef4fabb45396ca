package chunk

import (
	"fmt"
	"math/bits"
)

// BitStorage is a fixed-length array of n-bit unsigned values packed into
// 64-bit words, least significant bits first. Values never straddle a word
// boundary: each word holds floor(64/bits) values and the remaining high
// bits are padding. Padding is always zero in memory and on the wire.
type BitStorage struct {
	data []uint64
	mask uint64

	bits, length  int
	valuesPerLong int
}

// StorageSize returns the number of words needed for length values.
func StorageSize(bits, length int) int {
	if bits == 0 {
		return 0
	}
	valuesPerLong := 64 / bits
	return (length + valuesPerLong - 1) / valuesPerLong
}

// NewBitStorage creates a storage. data is optional; when given it must
// have exactly StorageSize(bits, length) words and is copied.
func NewBitStorage(nbits, length int, data []uint64) (*BitStorage, error) {
	if nbits < 0 || nbits > 32 {
		return nil, containerErrorf("bits per entry %d out of range", nbits)
	}
	b := &BitStorage{bits: nbits, length: length}
	if nbits == 0 {
		return b, nil
	}
	b.mask = 1<<nbits - 1
	b.valuesPerLong = 64 / nbits
	size := StorageSize(nbits, length)
	b.data = make([]uint64, size)
	if data != nil {
		if len(data) != size {
			return nil, containerErrorf("data array has %d longs, want %d for %d entries at %d bits", len(data), size, length, nbits)
		}
		copy(b.data, data)
		b.clearPadding()
	}
	return b, nil
}

func mustBitStorage(nbits, length int) *BitStorage {
	b, err := NewBitStorage(nbits, length, nil)
	if err != nil {
		panic(err)
	}
	return b
}

// clearPadding zeroes the unused high bits of every word and the unused
// slots of the final word.
func (b *BitStorage) clearPadding() {
	used := b.valuesPerLong * b.bits
	if used < 64 {
		wordMask := uint64(1)<<used - 1
		for i := range b.data {
			b.data[i] &= wordMask
		}
	}
	if tail := b.length % b.valuesPerLong; tail != 0 && len(b.data) > 0 {
		b.data[len(b.data)-1] &= uint64(1)<<(tail*b.bits) - 1
	}
}

func (b *BitStorage) calcIndex(n int) (c, o int) {
	c = n / b.valuesPerLong
	o = (n - c*b.valuesPerLong) * b.bits
	return
}

func (b *BitStorage) checkIndex(i int) {
	if i < 0 || i >= b.length {
		panic(fmt.Sprintf("chunk: storage index %d out of range [0, %d)", i, b.length))
	}
}

// Get returns the value at i.
func (b *BitStorage) Get(i int) int {
	b.checkIndex(i)
	if b.bits == 0 {
		return 0
	}
	c, offset := b.calcIndex(i)
	return int(b.data[c] >> offset & b.mask)
}

// Swap stores v at i and returns the previous value.
func (b *BitStorage) Swap(i, v int) (old int) {
	b.checkIndex(i)
	if b.bits == 0 {
		if v != 0 {
			panic(fmt.Sprintf("chunk: value %d does not fit in 0 bits", v))
		}
		return 0
	}
	if v < 0 || uint64(v) > b.mask {
		panic(fmt.Sprintf("chunk: value %d does not fit in %d bits", v, b.bits))
	}
	c, offset := b.calcIndex(i)
	l := b.data[c]
	old = int(l >> offset & b.mask)
	b.data[c] = l&^(b.mask<<offset) | uint64(v)<<offset
	return old
}

func (b *BitStorage) Set(i, v int) {
	b.Swap(i, v)
}

func (b *BitStorage) Len() int  { return b.length }
func (b *BitStorage) Bits() int { return b.bits }

// Raw returns the backing words. Callers must not modify them.
func (b *BitStorage) Raw() []uint64 {
	return b.data
}

// Resize returns a copy of b stored at a new width.
func (b *BitStorage) Resize(nbits int) *BitStorage {
	out := mustBitStorage(nbits, b.length)
	for i := 0; i < b.length; i++ {
		out.Set(i, b.Get(i))
	}
	return out
}

func (b *BitStorage) Clone() *BitStorage {
	out := *b
	out.data = append([]uint64(nil), b.data...)
	return &out
}

// bitsFor returns the width needed to index n distinct values.
func bitsFor(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}
