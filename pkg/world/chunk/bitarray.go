package chunk

import "fmt"

// Volume is the number of blocks in one 16×16×16 section.
const Volume = 16 * 16 * 16

// Width is the number of bits used per palette index.
type Width uint8

// Widths in promotion order.
const (
	Width1  Width = 1
	Width2  Width = 2
	Width3  Width = 3
	Width4  Width = 4
	Width5  Width = 5
	Width6  Width = 6
	Width8  Width = 8
	Width16 Width = 16
)

var ladder = [...]Width{Width1, Width2, Width3, Width4, Width5, Width6, Width8, Width16}

// ParseWidth returns the ladder width of exactly bits bits.
func ParseWidth(bits int) (Width, error) {
	for _, w := range ladder {
		if int(w) == bits {
			return w, nil
		}
	}
	return 0, fmt.Errorf("%d bits per entry is not a palette width", bits)
}

// Next returns the following width on the ladder. ok is false for Width16.
func (w Width) Next() (next Width, ok bool) {
	for i, l := range ladder {
		if l == w && i+1 < len(ladder) {
			return ladder[i+1], true
		}
	}
	return 0, false
}

// Max is the largest value an entry of this width can hold.
func (w Width) Max() uint32 {
	return 1<<w - 1
}

// EntriesPerWord is the number of entries packed into one uint32.
func (w Width) EntriesPerWord() int {
	return 32 / int(w)
}

// Padded reports whether entries leave unused high bits in each word.
func (w Width) Padded() bool {
	return 32%int(w) != 0
}

// WordCount is the number of uint32 words backing a full section.
func (w Width) WordCount() int {
	epw := w.EntriesPerWord()
	return (Volume + epw - 1) / epw
}

// BitArray is a fixed-width packed array of Volume unsigned entries. Entries never
// straddle a word: power-of-two widths tile words exactly, the others leave
// padding in the high bits.
type BitArray struct {
	width  Width
	padded bool
	epw    uint32
	mask   uint32
	words  []uint32
}

// NewBitArray allocates a zeroed BitArray of the given width.
func NewBitArray(w Width) *BitArray {
	return newBitArray(w, make([]uint32, w.WordCount()))
}

// NewBitArrayFrom wraps words decoded from a buffer.
func NewBitArrayFrom(w Width, words []uint32) (*BitArray, error) {
	if len(words) != w.WordCount() {
		return nil, fmt.Errorf("width %d needs %d words, got %d", w, w.WordCount(), len(words))
	}
	return newBitArray(w, words), nil
}

func newBitArray(w Width, words []uint32) *BitArray {
	return &BitArray{
		width:  w,
		padded: w.Padded(),
		epw:    uint32(w.EntriesPerWord()),
		mask:   w.Max(),
		words:  words,
	}
}

// Width returns the entry width.
func (a *BitArray) Width() Width { return a.width }

// Words returns the backing words. The slice is shared.
func (a *BitArray) Words() []uint32 { return a.words }

func (a *BitArray) locate(index int) (word, offset uint32) {
	i := uint32(index)
	if a.padded {
		return i / a.epw, (i % a.epw) * uint32(a.width)
	}
	bit := i * uint32(a.width)
	return bit >> 5, bit & 31
}

// Get returns the entry at index.
func (a *BitArray) Get(index int) uint32 {
	word, offset := a.locate(index)
	return (a.words[word] >> offset) & a.mask
}

// Set stores value at index. Bits of value above the width are discarded.
func (a *BitArray) Set(index int, value uint32) {
	word, offset := a.locate(index)
	a.words[word] = a.words[word]&^(a.mask<<offset) | (value&a.mask)<<offset
}

// Empty reports whether every word is zero.
func (a *BitArray) Empty() bool {
	for _, w := range a.words {
		if w != 0 {
			return false
		}
	}
	return true
}
