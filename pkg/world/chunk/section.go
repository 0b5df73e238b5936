package chunk

// Section is one 16×16×16 slab of a column.
type Section interface {
	Get(x, y, z int) uint32
	GetLayer(x, y, z, layer int) uint32
	Set(x, y, z int, id uint32)
	SetLayer(x, y, z, layer int, id uint32)
	// Empty reports whether the section holds nothing but its fill value.
	Empty() bool
}

// index packs section-local coordinates as x<<8 | z<<4 | y.
func index(x, y, z int) int {
	return x<<8 | z<<4 | y
}

// CompactSection stores blocks in one or more paletted layers. Layer 0 holds
// the block, layer 1 overlays it (water in a waterlogged block).
type CompactSection struct {
	air    uint32
	layers []*Layer
}

// NewCompactSection creates a two-layer section at the given width.
func NewCompactSection(w Width, air uint32, runtime bool) *CompactSection {
	return &CompactSection{
		air:    air,
		layers: []*Layer{NewLayer(w, air, runtime), NewLayer(w, air, runtime)},
	}
}

// NewCompactSectionFrom wraps decoded layers.
func NewCompactSectionFrom(air uint32, layers []*Layer) *CompactSection {
	return &CompactSection{air: air, layers: layers}
}

// Layers returns the section's layers in order.
func (s *CompactSection) Layers() []*Layer { return s.layers }

func (s *CompactSection) Get(x, y, z int) uint32 { return s.GetLayer(x, y, z, 0) }

func (s *CompactSection) GetLayer(x, y, z, layer int) uint32 {
	if layer < 0 || layer >= len(s.layers) {
		return s.air
	}
	return s.layers[layer].Get(index(x, y, z))
}

func (s *CompactSection) Set(x, y, z int, id uint32) { s.SetLayer(x, y, z, 0, id) }

// SetLayer writes id into layer, adding layers as needed.
func (s *CompactSection) SetLayer(x, y, z, layer int, id uint32) {
	if layer < 0 {
		return
	}
	for len(s.layers) <= layer {
		runtime := true
		if len(s.layers) > 0 {
			runtime = s.layers[0].Runtime()
		}
		s.layers = append(s.layers, NewLayer(Width1, s.air, runtime))
	}
	s.layers[layer].Set(index(x, y, z), id)
}

func (s *CompactSection) Empty() bool {
	for _, l := range s.layers {
		if !l.Empty() {
			return false
		}
	}
	return true
}

// LegacySection is the pre-palette flat encoding: one id byte and one metadata
// nibble per block. Values are id<<4 | meta.
type LegacySection struct {
	ids  [Volume]byte
	meta [Volume / 2]byte
}

// NewLegacySection wraps raw id and metadata arrays.
func NewLegacySection(ids [Volume]byte, meta [Volume / 2]byte) *LegacySection {
	return &LegacySection{ids: ids, meta: meta}
}

func (s *LegacySection) Get(x, y, z int) uint32 {
	i := index(x, y, z)
	return uint32(s.ids[i])<<4 | uint32(s.nibble(i))
}

func (s *LegacySection) GetLayer(x, y, z, layer int) uint32 {
	if layer != 0 {
		return 0
	}
	return s.Get(x, y, z)
}

func (s *LegacySection) Set(x, y, z int, id uint32) {
	i := index(x, y, z)
	s.ids[i] = byte(id >> 4)
	shift := uint(i&1) * 4
	s.meta[i>>1] = s.meta[i>>1]&^(0xF<<shift) | byte(id&0xF)<<shift
}

func (s *LegacySection) SetLayer(x, y, z, layer int, id uint32) {
	if layer == 0 {
		s.Set(x, y, z, id)
	}
}

func (s *LegacySection) Empty() bool {
	for _, b := range s.ids {
		if b != 0 {
			return false
		}
	}
	return true
}

func (s *LegacySection) nibble(i int) byte {
	return s.meta[i>>1] >> (uint(i&1) * 4) & 0xF
}
