package world

import (
	"math/rand/v2"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/gamedata"
)

// UpdateFunc reacts to a scheduled update of block id at (x, y, z) in the
// centre chunk of w.
type UpdateFunc func(w *Window, x, y, z int, id uint32)

// Update masks. An entry fires on the first cycle where cycle&mask == 0.
const (
	fallMask       uint32 = 0b1
	neighborMask   uint32 = 0b1
	waterViscosity uint32 = 0b10
	lavaViscosity  uint32 = 0b100
)

const maxLiquidMass = gamedata.MaxLiquidDepth + 1

// Behaviors maps block ids to their update callbacks.
type Behaviors struct {
	air  uint32
	byID map[uint32]UpdateFunc
}

// NewBehaviors wires falling blocks and liquids present in the registry.
func NewBehaviors(blocks *gamedata.Registry) *Behaviors {
	b := &Behaviors{air: blocks.Air(), byID: make(map[uint32]UpdateFunc)}

	for _, name := range []string{gamedata.Sand, gamedata.Gravel} {
		if st, ok := blocks.Lookup(name, nil); ok {
			b.byID[st.ID] = b.falling
		}
	}
	for name, viscosity := range map[string]uint32{
		gamedata.Water: waterViscosity,
		gamedata.Lava:  lavaViscosity,
	} {
		l, ok := newLiquid(blocks, name, viscosity)
		if !ok {
			continue
		}
		update := b.flowing(l)
		for _, id := range l.byDepth {
			b.byID[id] = update
		}
	}
	return b
}

// For returns the callback for id, or nil.
func (b *Behaviors) For(id uint32) UpdateFunc {
	return b.byID[id]
}

var (
	// Edge diagonals first, then corners.
	fallMoves = [8][3]int{
		{-1, -1, 0}, {0, -1, -1}, {1, -1, 0}, {0, -1, 1},
		{-1, -1, -1}, {-1, -1, 1}, {1, -1, -1}, {1, -1, 1},
	}
	flowMoves = [8][2]int{
		{-1, 0}, {0, -1}, {1, 0}, {0, 1},
		{-1, -1}, {-1, 1}, {1, -1}, {1, 1},
	}
)

// falling drops the block straight down, or else slides it one block
// diagonally down into air. The block above the vacated cell is woken up.
func (b *Behaviors) falling(w *Window, x, y, z int, id uint32) {
	moved := w.SetIfAir(x, y-1, z, id, fallMask)
	if !moved {
		order := rand.Perm(4)
	search:
		for group := 0; group < 8; group += 4 {
			for _, j := range order {
				m := fallMoves[group+j]
				if w.SetIfAir(x+m[0], y+m[1], z+m[2], id, fallMask) {
					moved = true
					break search
				}
			}
		}
	}
	if moved {
		w.Set(x, y, z, b.air)
		w.Schedule(x, y+1, z, neighborMask)
	}
}

// liquid indexes one liquid's states by depth. Mass is 8 for a source
// and 1 for the thinnest layer.
type liquid struct {
	byDepth   [maxLiquidMass]uint32
	mass      map[uint32]int
	viscosity uint32
}

func newLiquid(blocks *gamedata.Registry, name string, viscosity uint32) (*liquid, bool) {
	l := &liquid{mass: make(map[uint32]int, maxLiquidMass), viscosity: viscosity}
	for depth := int32(0); depth <= gamedata.MaxLiquidDepth; depth++ {
		st, ok := blocks.Lookup(name, map[string]any{gamedata.LiquidDepthKey: depth})
		if !ok {
			return nil, false
		}
		l.byDepth[depth] = st.ID
		l.mass[st.ID] = maxLiquidMass - int(depth)
	}
	return l, true
}

func (l *liquid) state(mass int) uint32 {
	return l.byDepth[maxLiquidMass-mass]
}

// flowing moves liquid mass down first, then spreads what is left over
// the eight horizontal neighbours that hold less. A cell that ran dry
// turns to air. Every cell that received liquid is rescheduled.
func (b *Behaviors) flowing(l *liquid) UpdateFunc {
	return func(w *Window, x, y, z int, id uint32) {
		mass, ok := l.mass[id]
		if !ok {
			return
		}

		below := w.Get(x, y-1, z)
		belowMass, fluid := l.mass[below]
		if below == b.air {
			belowMass, fluid = 0, true
		}
		if fluid && y > 0 {
			filled := min(belowMass+mass, maxLiquidMass)
			mass -= filled - belowMass
			w.SetScheduled(x, y-1, z, l.state(filled), l.viscosity)
		}

		targets := make(map[int]int, len(flowMoves))
		for i, m := range flowMoves {
			n := w.Get(x+m[0], y, z+m[1])
			if n == b.air {
				targets[i] = 0
			} else if nm, ok := l.mass[n]; ok && nm < mass {
				targets[i] = nm
			}
		}
		for len(targets) > 0 && mass > 0 {
			i := randomKey(targets)
			next := targets[i] + 1
			if mass <= next {
				delete(targets, i)
				continue
			}
			mass--
			targets[i] = next
			m := flowMoves[i]
			w.SetScheduled(x+m[0], y, z+m[1], l.state(next), l.viscosity)
		}

		if mass == 0 {
			w.Set(x, y, z, b.air)
			return
		}
		w.Set(x, y, z, l.state(mass))
	}
}

func randomKey(m map[int]int) int {
	n := rand.IntN(len(m))
	for k := range m {
		if n == 0 {
			return k
		}
		n--
	}
	panic("unreachable")
}
