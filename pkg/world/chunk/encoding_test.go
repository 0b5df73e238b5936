package chunk

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

// stateTable is a tiny two-way table keyed on the block name only.
type stateTable struct {
	names []string
}

func (s stateTable) StateOf(id uint32) (BlockState, bool) {
	if int(id) >= len(s.names) {
		return BlockState{}, false
	}
	return BlockState{Name: s.names[id], Properties: map[string]any{"id": int32(id)}}, true
}

func (s stateTable) IDOf(state BlockState) (uint32, bool) {
	for i, n := range s.names {
		if n == state.Name {
			return uint32(i), true
		}
	}
	return 0, false
}

var testStates = stateTable{names: []string{"minecraft:air", "minecraft:stone", "minecraft:dirt", "minecraft:grass", "minecraft:sand", "minecraft:gravel", "minecraft:log", "minecraft:leaves", "minecraft:glass", "minecraft:water"}}

func sampleStorage() *BlockStorage {
	s := NewBlockStorage(testAir)
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			s.Set(x, 0, z, stone)
			s.Set(x, 1, z, uint32((x+z)%9)+1)
		}
	}
	s.Set(4, 40, 4, dirt)
	s.SetLayer(4, 40, 4, 1, water)
	return s
}

func assertSameBlocks(t *testing.T, got, want *BlockStorage) {
	t.Helper()
	for x := 0; x < 16; x++ {
		for y := 0; y < Height; y++ {
			for z := 0; z < 16; z++ {
				for layer := 0; layer < 2; layer++ {
					if g, w := got.GetLayer(x, y, z, layer), want.GetLayer(x, y, z, layer); g != w {
						t.Fatalf("layer %d (%d,%d,%d) = %d, want %d", layer, x, y, z, g, w)
					}
				}
			}
		}
	}
}

func TestColumnRoundTrip(t *testing.T) {
	encodings := map[string]Encoding{
		"network": NetworkEncoding(testStates),
		"disk":    DiskEncoding(testStates),
	}
	for name, enc := range encodings {
		t.Run(name, func(t *testing.T) {
			src := sampleStorage()
			count := src.NonEmpty()
			if count != 3 {
				t.Fatalf("NonEmpty() = %d, want 3", count)
			}

			var buf bytes.Buffer
			if err := enc.WriteSections(&buf, src, count); err != nil {
				t.Fatalf("WriteSections: %v", err)
			}
			r := bytes.NewReader(buf.Bytes())
			got, err := enc.ReadSections(r, testAir, count)
			if err != nil {
				t.Fatalf("ReadSections: %v", err)
			}
			if r.Len() != 0 {
				t.Errorf("%d bytes left unread", r.Len())
			}
			assertSameBlocks(t, got, src)
		})
	}
}

func TestLayerHeaderByte(t *testing.T) {
	l := NewLayer(Width1, testAir, true)
	l.Set(0, stone)
	l.Set(1, dirt) // promotes to width 2

	var buf bytes.Buffer
	if err := NetworkEncoding(nil).WriteLayer(&buf, l); err != nil {
		t.Fatalf("WriteLayer: %v", err)
	}
	if got := buf.Bytes()[0]; got != 2<<1|1 {
		t.Errorf("runtime header = %#x, want %#x", got, 2<<1|1)
	}
	// header + 256 words + palette size (1 byte) + 3 entries (1 byte each)
	if want := 1 + 256*4 + 1 + 3; buf.Len() != want {
		t.Errorf("encoded length = %d, want %d", buf.Len(), want)
	}

	buf.Reset()
	if err := DiskEncoding(testStates).WriteLayer(&buf, l); err != nil {
		t.Fatalf("WriteLayer: %v", err)
	}
	if got := buf.Bytes()[0]; got != 2<<1 {
		t.Errorf("persistent header = %#x, want %#x", got, 2<<1)
	}
}

func TestPersistentLayerNeedsStates(t *testing.T) {
	var buf bytes.Buffer
	if err := DiskEncoding(nil).WriteLayer(&buf, NewLayer(Width1, testAir, true)); err == nil {
		t.Fatal("expected error without a state table")
	}
}

func TestPersistentUnknownStateReadsAsAir(t *testing.T) {
	l := NewLayer(Width1, testAir, false)
	l.Set(7, 3)

	var buf bytes.Buffer
	if err := DiskEncoding(testStates).WriteLayer(&buf, l); err != nil {
		t.Fatalf("WriteLayer: %v", err)
	}

	narrow := stateTable{names: []string{"minecraft:air", "minecraft:stone"}}
	got, err := DiskEncoding(narrow).ReadLayer(bytes.NewReader(buf.Bytes()), testAir)
	if err != nil {
		t.Fatalf("ReadLayer: %v", err)
	}
	if id := got.Get(7); id != testAir {
		t.Errorf("Get(7) = %d, want air", id)
	}
}

func TestLegacySectionRoundTrip(t *testing.T) {
	src := &LegacySection{}
	src.Set(1, 2, 3, 35<<4|14)
	src.Set(15, 15, 15, 1<<4)

	var buf bytes.Buffer
	if err := NetworkEncoding(nil).WriteSection(&buf, src); err != nil {
		t.Fatalf("WriteSection: %v", err)
	}
	if buf.Len() != 1+Volume+Volume/2 {
		t.Fatalf("legacy length = %d, want %d", buf.Len(), 1+Volume+Volume/2)
	}

	for _, header := range []byte{0, 2, 3, 4, 5, 6} {
		t.Run(fmt.Sprintf("header_%d", header), func(t *testing.T) {
			data := bytes.Clone(buf.Bytes())
			data[0] = header
			s, err := NetworkEncoding(nil).ReadSection(bytes.NewReader(data), testAir)
			if err != nil {
				t.Fatalf("ReadSection: %v", err)
			}
			if _, ok := s.(*LegacySection); !ok {
				t.Fatalf("ReadSection returned %T, want *LegacySection", s)
			}
			if got := s.Get(1, 2, 3); got != 35<<4|14 {
				t.Errorf("Get(1,2,3) = %d, want %d", got, 35<<4|14)
			}
			if got := s.Get(15, 15, 15); got != 1<<4 {
				t.Errorf("Get(15,15,15) = %d, want %d", got, 1<<4)
			}
		})
	}
}

func TestSingleLayerSectionHeader(t *testing.T) {
	l := NewLayer(Width1, testAir, true)
	l.Set(index(1, 1, 1), stone)
	src := NewCompactSectionFrom(testAir, []*Layer{l})

	var buf bytes.Buffer
	if err := NetworkEncoding(nil).WriteSection(&buf, src); err != nil {
		t.Fatalf("WriteSection: %v", err)
	}
	if buf.Bytes()[0] != headerSingle {
		t.Fatalf("header = %d, want %d", buf.Bytes()[0], headerSingle)
	}
	s, err := NetworkEncoding(nil).ReadSection(bytes.NewReader(buf.Bytes()), testAir)
	if err != nil {
		t.Fatalf("ReadSection: %v", err)
	}
	if got := s.Get(1, 1, 1); got != stone {
		t.Errorf("Get(1,1,1) = %d, want %d", got, stone)
	}
}

func TestUnknownSectionHeader(t *testing.T) {
	_, err := NetworkEncoding(nil).ReadSection(bytes.NewReader([]byte{7}), testAir)
	if !errors.Is(err, ErrUnknownHeader) {
		t.Fatalf("ReadSection error = %v, want ErrUnknownHeader", err)
	}
}

func TestTruncatedLayer(t *testing.T) {
	var buf bytes.Buffer
	if err := NetworkEncoding(nil).WriteLayer(&buf, NewLayer(Width4, testAir, true)); err != nil {
		t.Fatalf("WriteLayer: %v", err)
	}
	data := buf.Bytes()[:100]
	if _, err := NetworkEncoding(nil).ReadLayer(bytes.NewReader(data), testAir); err == nil {
		t.Fatal("expected error for truncated layer")
	}
}

func TestLayerRejectsOffLadderWidth(t *testing.T) {
	tests := []struct {
		width Width
		bits  byte
	}{
		{Width1, 0},
		{Width8, 7},
		{Width16, 9},
		{Width16, 15},
		{Width16, 17},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("bits_%d", tt.bits), func(t *testing.T) {
			var buf bytes.Buffer
			if err := NetworkEncoding(nil).WriteLayer(&buf, NewLayer(tt.width, testAir, true)); err != nil {
				t.Fatalf("WriteLayer: %v", err)
			}
			data := buf.Bytes()
			if _, err := NetworkEncoding(nil).ReadLayer(bytes.NewReader(data), testAir); err != nil {
				t.Fatalf("ReadLayer of unmodified layer: %v", err)
			}
			data[0] = tt.bits<<1 | 1
			if _, err := NetworkEncoding(nil).ReadLayer(bytes.NewReader(data), testAir); err == nil {
				t.Fatalf("ReadLayer accepted %d bits per entry", tt.bits)
			}
		})
	}
}
