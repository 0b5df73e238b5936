package world

import (
	"testing"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/gamedata"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

// floorWindow returns a window over a single chunk with a stone floor at
// y = 0 and no neighbours.
func floorWindow(t *testing.T, reg *gamedata.Registry, floor bool) (*Window, *Chunk) {
	t.Helper()
	blocks := chunk.NewBlockStorage(reg.Air())
	if floor {
		stone := reg.MustID("stone")
		for x := 0; x < 16; x++ {
			for z := 0; z < 16; z++ {
				blocks.Set(x, 0, z, stone)
			}
		}
	}
	c := NewChunk(chunk.Pos{}, blocks, [256]byte{}, nil)
	chunks := testChunks{c.Pos(): c}
	return newWindow(c.Pos(), reg.MustID("stone"), testLogger(), chunks.lookup), c
}

func TestFallingDropsStraightDown(t *testing.T) {
	reg := testRegistry(t)
	sand := reg.MustID("sand")
	w, c := floorWindow(t, reg, true)
	c.Blocks().Set(5, 10, 5, sand)

	update := NewBehaviors(reg).For(sand)
	if update == nil {
		t.Fatal("sand has no behaviour")
	}
	update(w, 5, 10, 5, sand)

	if got := w.Get(5, 9, 5); got != sand {
		t.Errorf("below = %d, want sand", got)
	}
	if got := w.Get(5, 10, 5); got != reg.Air() {
		t.Errorf("origin = %d, want air", got)
	}
	// The moved block and the one above the hole are both scheduled.
	if _, scheduled := c.Changes().Len(); scheduled != 2 {
		t.Errorf("scheduled = %d, want 2", scheduled)
	}
}

func TestFallingSlidesDiagonally(t *testing.T) {
	reg := testRegistry(t)
	sand := reg.MustID("sand")
	stone := reg.MustID("stone")
	w, c := floorWindow(t, reg, false)
	c.Blocks().Set(5, 0, 5, stone)
	c.Blocks().Set(5, 1, 5, sand)

	NewBehaviors(reg).For(sand)(w, 5, 1, 5, sand)

	if got := w.Get(5, 1, 5); got != reg.Air() {
		t.Fatalf("origin = %d, want air", got)
	}
	landed := 0
	for _, m := range fallMoves[:4] {
		if w.Get(5+m[0], 1+m[1], 5+m[2]) == sand {
			landed++
		}
	}
	if landed != 1 {
		t.Errorf("sand landed on %d edge diagonals, want 1", landed)
	}
}

func TestFallingStaysOnFloor(t *testing.T) {
	reg := testRegistry(t)
	sand := reg.MustID("sand")
	w, c := floorWindow(t, reg, true)
	c.Blocks().Set(5, 1, 5, sand)

	NewBehaviors(reg).For(sand)(w, 5, 1, 5, sand)

	if changes, scheduled := c.Changes().Len(); changes != 0 || scheduled != 0 {
		t.Errorf("Len = %d, %d, want nothing", changes, scheduled)
	}
}

func TestSolidBlocksHaveNoBehaviour(t *testing.T) {
	reg := testRegistry(t)
	b := NewBehaviors(reg)
	for _, name := range []string{"stone", "dirt", "glass", "air"} {
		if b.For(reg.MustID(name)) != nil {
			t.Errorf("%s has a behaviour", name)
		}
	}
}

func TestLiquidFallsIntoAir(t *testing.T) {
	reg := testRegistry(t)
	water := reg.MustID("water")
	w, c := floorWindow(t, reg, true)
	c.Blocks().Set(5, 5, 5, water)

	NewBehaviors(reg).For(water)(w, 5, 5, 5, water)

	if got := w.Get(5, 4, 5); got != water {
		t.Errorf("below = %d, want water source", got)
	}
	if got := w.Get(5, 5, 5); got != reg.Air() {
		t.Errorf("origin = %d, want air", got)
	}
}

func TestLiquidSpreadsKeepingMass(t *testing.T) {
	reg := testRegistry(t)
	water := reg.MustID("water")
	w, c := floorWindow(t, reg, true)
	c.Blocks().Set(5, 1, 5, water)

	mass := make(map[uint32]int)
	for depth := 0; depth <= gamedata.MaxLiquidDepth; depth++ {
		st, ok := reg.Lookup(gamedata.Water, map[string]any{gamedata.LiquidDepthKey: int32(depth)})
		if !ok {
			t.Fatalf("no water at depth %d", depth)
		}
		mass[st.ID] = maxLiquidMass - depth
	}

	NewBehaviors(reg).For(water)(w, 5, 1, 5, water)

	total, wet := 0, 0
	for x := 4; x <= 6; x++ {
		for z := 4; z <= 6; z++ {
			if m, ok := mass[w.Get(x, 1, z)]; ok {
				total += m
				wet++
			}
		}
	}
	if total != maxLiquidMass {
		t.Errorf("total mass = %d, want %d", total, maxLiquidMass)
	}
	if wet < 2 {
		t.Errorf("water did not spread: %d wet cells", wet)
	}
	if got := w.Get(5, 0, 5); got != reg.MustID("stone") {
		t.Errorf("floor changed to %d", got)
	}
}
