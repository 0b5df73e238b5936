package chunk

const (
	// SectionCount is the number of sections in a column.
	SectionCount = 16
	// Height is the column height in blocks.
	Height = SectionCount * 16
)

// BlockStorage is the full column of sections for one chunk. Coordinates are
// chunk-local; anything outside the column reads as air and ignores writes.
type BlockStorage struct {
	air      uint32
	sections [SectionCount]Section
}

// NewBlockStorage creates a column of empty two-layer sections.
func NewBlockStorage(air uint32) *BlockStorage {
	s := &BlockStorage{air: air}
	for i := range s.sections {
		s.sections[i] = NewCompactSection(Width1, air, true)
	}
	return s
}

// NewBlockStorageFrom builds a column from decoded sections. Missing trailing
// sections are filled with empty ones.
func NewBlockStorageFrom(air uint32, sections []Section) *BlockStorage {
	s := &BlockStorage{air: air}
	for i := range s.sections {
		if i < len(sections) && sections[i] != nil {
			s.sections[i] = sections[i]
			continue
		}
		s.sections[i] = NewCompactSection(Width1, air, true)
	}
	return s
}

// Air returns the fill id of the column.
func (s *BlockStorage) Air() uint32 { return s.air }

// Section returns the section at index i, which must be in [0, SectionCount).
func (s *BlockStorage) Section(i int) Section { return s.sections[i] }

// Sections returns all sections bottom to top.
func (s *BlockStorage) Sections() []Section { return s.sections[:] }

// NonEmpty returns the number of sections up to and including the highest
// non-empty one.
func (s *BlockStorage) NonEmpty() int {
	n := SectionCount
	for n > 0 && s.sections[n-1].Empty() {
		n--
	}
	return n
}

// InBounds reports whether chunk-local (x, y, z) lies inside the column.
func InBounds(x, y, z int) bool {
	return x >= 0 && x < 16 && z >= 0 && z < 16 && y >= 0 && y < Height
}

// Get returns the layer 0 block at (x, y, z).
func (s *BlockStorage) Get(x, y, z int) uint32 { return s.GetLayer(x, y, z, 0) }

// GetLayer returns the block on the given layer at (x, y, z).
func (s *BlockStorage) GetLayer(x, y, z, layer int) uint32 {
	if !InBounds(x, y, z) {
		return s.air
	}
	return s.sections[y>>4].GetLayer(x, y&15, z, layer)
}

// Set writes the layer 0 block at (x, y, z).
func (s *BlockStorage) Set(x, y, z int, id uint32) { s.SetLayer(x, y, z, 0, id) }

// SetLayer writes the block on the given layer at (x, y, z).
func (s *BlockStorage) SetLayer(x, y, z, layer int, id uint32) {
	if !InBounds(x, y, z) {
		return
	}
	s.sections[y>>4].SetLayer(x, y&15, z, layer, id)
}
