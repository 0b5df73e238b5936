package world

import (
	"testing"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

func TestSlot(t *testing.T) {
	tests := []struct {
		x, z          int
		dx, dz, index int
	}{
		{-1, 5, 16, 0, 0},
		{5, -1, 0, 16, 1},
		{16, 5, -16, 0, 2},
		{5, 16, 0, -16, 3},
		{-1, -1, 16, 16, 4},
		{-16, 31, 16, -16, 5},
		{31, -16, -16, 16, 6},
		{16, 16, -16, -16, 7},
		{0, 0, 0, 0, centerSlot},
		{15, 15, 0, 0, centerSlot},
	}
	for _, tt := range tests {
		dx, dz, index := slot(tt.x, tt.z)
		if dx != tt.dx || dz != tt.dz || index != tt.index {
			t.Errorf("slot(%d, %d) = %d, %d, %d, want %d, %d, %d",
				tt.x, tt.z, dx, dz, index, tt.dx, tt.dz, tt.index)
		}
		off := slotOffsets[index]
		wantDX := -16 * int(off.X)
		wantDZ := -16 * int(off.Z)
		if dx != wantDX || dz != wantDZ {
			t.Errorf("slot(%d, %d) offset disagrees with slotOffsets[%d] = %v", tt.x, tt.z, index, off)
		}
	}
}

// testChunks is a lookup over a fixed set of empty chunks.
type testChunks map[chunk.Pos]*Chunk

func newTestChunks(positions ...chunk.Pos) testChunks {
	chunks := make(testChunks)
	for _, pos := range positions {
		chunks[pos] = NewChunk(pos, chunk.NewBlockStorage(testAir), [256]byte{}, nil)
	}
	return chunks
}

func (c testChunks) lookup(pos chunk.Pos) *Chunk { return c[pos] }

func TestWindowWritesIntoNeighbour(t *testing.T) {
	center := chunk.Pos{X: 4, Z: -2}
	east := center.Add(1, 0)
	chunks := newTestChunks(center, east)
	w := newWindow(center, testStone, testLogger(), chunks.lookup)

	w.SetScheduled(17, 20, 3, testDirt, neighborMask)

	if got := chunks[east].Changes().Get(1, 20, 3); got != testDirt {
		t.Errorf("east chunk block = %d, want dirt", got)
	}
	if got := w.Get(17, 20, 3); got != testDirt {
		t.Errorf("window read = %d, want dirt", got)
	}
	if changes, scheduled := chunks[center].Changes().Len(); changes != 0 || scheduled != 0 {
		t.Errorf("centre chunk touched: %d, %d", changes, scheduled)
	}
	if _, scheduled := chunks[east].Changes().Len(); scheduled != 1 {
		t.Errorf("east scheduled = %d, want 1", scheduled)
	}
}

func TestWindowMissingNeighbour(t *testing.T) {
	center := chunk.Pos{}
	chunks := newTestChunks(center)
	w := newWindow(center, testStone, testLogger(), chunks.lookup)

	if got := w.Get(-1, 10, 0); got != testStone {
		t.Errorf("unloaded read = %d, want border stone", got)
	}
	w.Set(-1, 10, 0, testDirt)
	if w.SetIfAir(20, 10, 20, testDirt, neighborMask) {
		t.Error("SetIfAir into unloaded chunk succeeded")
	}
	w.Schedule(5, 10, -3, neighborMask)
	if changes, scheduled := chunks[center].Changes().Len(); changes != 0 || scheduled != 0 {
		t.Errorf("centre chunk touched: %d, %d", changes, scheduled)
	}
}
