package world

import (
	"log/slog"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

// Slot order of a Window. The centre chunk is last.
var slotOffsets = [9]chunk.Pos{
	{X: -1, Z: 0},
	{X: 0, Z: -1},
	{X: 1, Z: 0},
	{X: 0, Z: 1},
	{X: -1, Z: -1},
	{X: -1, Z: 1},
	{X: 1, Z: -1},
	{X: 1, Z: 1},
	{X: 0, Z: 0},
}

const centerSlot = 8

// Window addresses a chunk and its eight neighbours with coordinates
// local to the centre chunk, so x and z may range over [-16, 32).
type Window struct {
	center chunk.Pos
	slots  [9]*ChangeSet
	border uint32
	log    *slog.Logger
}

func newWindow(center chunk.Pos, border uint32, log *slog.Logger, lookup func(chunk.Pos) *Chunk) *Window {
	w := &Window{center: center, border: border, log: log}
	for i, off := range slotOffsets {
		if c := lookup(center.Add(off.X, off.Z)); c != nil {
			w.slots[i] = c.changes
		}
	}
	return w
}

// slot maps a local coordinate to its chunk slot and the offset that
// brings it back into that chunk's range.
func slot(x, z int) (dx, dz, index int) {
	switch {
	case x < 0:
		switch {
		case z < 0:
			return 16, 16, 4
		case z >= 16:
			return 16, -16, 5
		default:
			return 16, 0, 0
		}
	case x >= 16:
		switch {
		case z < 0:
			return -16, 16, 6
		case z >= 16:
			return -16, -16, 7
		default:
			return -16, 0, 2
		}
	default:
		switch {
		case z < 0:
			return 0, 16, 1
		case z >= 16:
			return 0, -16, 3
		default:
			return 0, 0, centerSlot
		}
	}
}

func (w *Window) resolve(x, z int) (*ChangeSet, int, int) {
	dx, dz, i := slot(x, z)
	return w.slots[i], x + dx, z + dz
}

// Get reads a block. Unloaded neighbours read as the border block.
func (w *Window) Get(x, y, z int) uint32 {
	cs, lx, lz := w.resolve(x, z)
	if cs == nil {
		return w.border
	}
	return cs.Get(lx, y, lz)
}

// Set proposes a block with no update scheduled.
func (w *Window) Set(x, y, z int, v uint32) {
	w.SetScheduled(x, y, z, v, 0)
}

// SetScheduled proposes a block and schedules it with mask. Writes into an
// unloaded neighbour, including one unloaded since the window was taken,
// are dropped and reported as false.
func (w *Window) SetScheduled(x, y, z int, v uint32, mask uint32) bool {
	cs, lx, lz := w.resolve(x, z)
	if cs == nil || !cs.SetScheduled(lx, y, lz, v, mask) {
		w.dropped(x, y, z)
		return false
	}
	return true
}

// SetIfAir writes v only over air and reports whether it did.
func (w *Window) SetIfAir(x, y, z int, v uint32, mask uint32) bool {
	cs, lx, lz := w.resolve(x, z)
	if cs == nil || cs.Closed() {
		w.dropped(x, y, z)
		return false
	}
	return cs.SetIfAir(lx, y, lz, v, mask)
}

// Schedule queues an update without changing the block.
func (w *Window) Schedule(x, y, z int, mask uint32) {
	cs, lx, lz := w.resolve(x, z)
	if cs == nil {
		return
	}
	cs.Schedule(lx, y, lz, mask)
}

func (w *Window) dropped(x, y, z int) {
	w.log.Debug("dropped write into unloaded chunk",
		"chunk", w.center,
		"x", x, "y", y, "z", z,
	)
}
