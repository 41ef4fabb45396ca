package chunk

import (
	"bytes"
	"testing"

	"github.com/Versifine/locus/internal/protocol"
)

func TestHeightmapBits(t *testing.T) {
	tests := []struct{ height, want int }{
		{256, 9},
		{384, 9},
		{512, 10},
		{4064, 12},
	}
	for _, tt := range tests {
		if got := HeightmapBits(tt.height); got != tt.want {
			t.Errorf("HeightmapBits(%d) = %d, 期望 %d", tt.height, got, tt.want)
		}
	}
}

func TestHeightmapRoundTrip(t *testing.T) {
	heights := make([]int, 256)
	for i := range heights {
		heights[i] = i + 100
	}
	hm, err := NewHeightmap(protocol.HeightmapWorldSurface, 384, heights)
	if err != nil {
		t.Fatal(err)
	}
	encoded := hm.Encode()
	if len(encoded.Data) != 37 {
		t.Fatalf("long 数量 = %d, 期望 37", len(encoded.Data))
	}
	back, err := DecodeHeightmap(encoded, 384)
	if err != nil {
		t.Fatal(err)
	}
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			if got := back.Get(x, z); got != z*16+x+100 {
				t.Fatalf("Get(%d, %d) = %d, 期望 %d", x, z, got, z*16+x+100)
			}
		}
	}

	heights[0] = 385
	if _, err := NewHeightmap(protocol.HeightmapWorldSurface, 384, heights); err == nil {
		t.Error("超出世界高度应失败")
	}
}

func TestSectionRoundTrip(t *testing.T) {
	for _, v := range protocol.SupportedVersions() {
		blocks, biomes := BlockConfig(testStates, v), BiomeConfig(testBiomes, v)
		s := NewSection(blocks, biomes, 0, 7)
		isAir := func(s int32) bool { return s == 0 }
		s.SetBlock(0, 0, 0, stone, isAir)
		s.SetBlock(15, 15, 15, chest, isAir)
		s.Biomes.Set(1, 2, 3, 9)

		var buf bytes.Buffer
		if err := s.Encode(&buf); err != nil {
			t.Fatal(err)
		}
		if got := int16(buf.Bytes()[0])<<8 | int16(buf.Bytes()[1]); got != 2 {
			t.Errorf("%s: 块计数 = %d, 期望 2", v, got)
		}
		r := bytes.NewReader(buf.Bytes())
		back, err := DecodeSection(r, blocks, biomes)
		if err != nil {
			t.Fatalf("%s: DecodeSection 返回错误: %v", v, err)
		}
		if r.Len() != 0 {
			t.Errorf("%s: 剩余 %d 字节", v, r.Len())
		}
		if back.Block(15, 15, 15) != chest || back.Biomes.Get(1, 2, 3) != 9 || back.Biomes.Get(0, 0, 0) != 7 {
			t.Errorf("%s: 解码内容不一致", v)
		}
		back.Recount(isAir)
		if back.BlockCount != 2 {
			t.Errorf("%s: Recount = %d", v, back.BlockCount)
		}
	}
}

func TestSectionIsEmpty(t *testing.T) {
	s := NewSection(BlockConfig(testStates, protocol.V1_21_11), BiomeConfig(testBiomes, protocol.V1_21_11), 0, 0)
	if !s.IsEmpty() {
		t.Error("新 section 应为空")
	}
	s.SetBlock(1, 1, 1, stone, func(s int32) bool { return s == 0 })
	if s.IsEmpty() {
		t.Error("写入方块后不应为空")
	}
}
