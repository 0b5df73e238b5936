package chunk

import (
	"errors"
	"slices"
)

// ErrPaletteOverflow is the panic value raised when a layer would need more than
// 16 bits per palette index.
var ErrPaletteOverflow = errors.New("palette exceeds 16-bit index width")

// Layer maps a sparse set of block ids onto dense palette indices stored in a
// BitArray. Palette position 0 is the fill value.
type Layer struct {
	palette []uint32
	bits    *BitArray
	runtime bool
}

// NewLayer creates a layer filled with air at the given starting width.
func NewLayer(w Width, air uint32, runtime bool) *Layer {
	palette := make([]uint32, 1, 16)
	palette[0] = air
	return &Layer{palette: palette, bits: NewBitArray(w), runtime: runtime}
}

// NewLayerFrom builds a layer from decoded parts. Every stored index must
// address the palette.
func NewLayerFrom(palette []uint32, bits *BitArray, runtime bool) *Layer {
	return &Layer{palette: palette, bits: bits, runtime: runtime}
}

// Get returns the block id at index. Indices past the palette read as the fill
// value.
func (l *Layer) Get(index int) uint32 {
	p := l.bits.Get(index)
	if int(p) >= len(l.palette) {
		return l.palette[0]
	}
	return l.palette[p]
}

// Set stores id at index, appending it to the palette and promoting the bit
// width when the palette outgrows it.
func (l *Layer) Set(index int, id uint32) {
	p := slices.Index(l.palette, id)
	if p == -1 {
		p = len(l.palette)
		if uint32(p) > l.bits.Width().Max() {
			l.promote()
		}
		l.palette = append(l.palette, id)
	}
	l.bits.Set(index, uint32(p))
}

func (l *Layer) promote() {
	next, ok := l.bits.Width().Next()
	if !ok {
		panic(ErrPaletteOverflow)
	}
	bits := NewBitArray(next)
	for i := 0; i < Volume; i++ {
		bits.Set(i, l.bits.Get(i))
	}
	l.bits = bits
}

// Width returns the current index width.
func (l *Layer) Width() Width { return l.bits.Width() }

// Bits returns the backing array.
func (l *Layer) Bits() *BitArray { return l.bits }

// Palette returns a copy of the palette.
func (l *Layer) Palette() []uint32 { return slices.Clone(l.palette) }

// Runtime reports whether the palette is encoded as runtime ids on the wire.
func (l *Layer) Runtime() bool { return l.runtime }

// Empty reports whether every cell holds palette index 0.
func (l *Layer) Empty() bool { return l.bits.Empty() }
