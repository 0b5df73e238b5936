package chunk

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/sandertv/gophertunnel/minecraft/nbt"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/protocol"
)

// ErrUnknownHeader is returned when a section starts with an unsupported
// version byte.
var ErrUnknownHeader = errors.New("unknown section header")

// Section header bytes.
const (
	headerLegacy     = 0
	headerSingle     = 1
	headerMultiLayer = 8
)

// BlockState is the tool-readable form of a palette entry.
type BlockState struct {
	Name       string         `nbt:"name"`
	Properties map[string]any `nbt:"states"`
}

// BlockStates converts between runtime ids and block states. It backs
// palettes written in non-runtime form.
type BlockStates interface {
	StateOf(id uint32) (BlockState, bool)
	IDOf(state BlockState) (uint32, bool)
}

// Encoding selects how palettes are written.
type Encoding struct {
	// NBT is the tag encoding for non-runtime palette entries.
	NBT nbt.Encoding
	// Persistent forces every palette into block state form.
	Persistent bool
	States     BlockStates
}

// NetworkEncoding writes runtime palettes with varint NBT for the rest.
func NetworkEncoding(states BlockStates) Encoding {
	return Encoding{NBT: nbt.NetworkLittleEndian, States: states}
}

// DiskEncoding writes block state palettes with little-endian NBT.
func DiskEncoding(states BlockStates) Encoding {
	return Encoding{NBT: nbt.LittleEndian, Persistent: true, States: states}
}

// WriteLayer appends the encoding of l to buf.
func (e Encoding) WriteLayer(buf *bytes.Buffer, l *Layer) error {
	runtime := l.Runtime() && !e.Persistent
	header := byte(l.Width()) << 1
	if runtime {
		header |= 1
	}
	buf.WriteByte(header)
	for _, w := range l.Bits().Words() {
		if err := protocol.WriteU32LE(buf, w); err != nil {
			return err
		}
	}

	palette := l.Palette()
	if _, err := protocol.WriteVarInt32(buf, int32(len(palette))); err != nil {
		return err
	}
	if runtime {
		for _, id := range palette {
			if _, err := protocol.WriteVarInt32(buf, int32(id)); err != nil {
				return err
			}
		}
		return nil
	}

	if e.States == nil {
		return fmt.Errorf("write layer: block state palette without a state table")
	}
	enc := nbt.NewEncoderWithEncoding(buf, e.NBT)
	for _, id := range palette {
		state, ok := e.States.StateOf(id)
		if !ok {
			return fmt.Errorf("write layer: unknown block id %d", id)
		}
		if state.Properties == nil {
			state.Properties = map[string]any{}
		}
		if err := enc.Encode(state); err != nil {
			return fmt.Errorf("encode block state %s: %w", state.Name, err)
		}
	}
	return nil
}

// ReadLayer decodes one layer. Unknown block states in a non-runtime palette
// decode as air.
func (e Encoding) ReadLayer(r *bytes.Reader, air uint32) (*Layer, error) {
	header, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read layer header: %w", err)
	}
	runtime := header&1 == 1
	w, err := ParseWidth(int(header >> 1))
	if err != nil {
		return nil, fmt.Errorf("read layer header: %w", err)
	}

	words := make([]uint32, w.WordCount())
	for i := range words {
		if words[i], err = protocol.ReadU32LE(r); err != nil {
			return nil, fmt.Errorf("read layer words: %w", err)
		}
	}
	bits, err := NewBitArrayFrom(w, words)
	if err != nil {
		return nil, err
	}

	size, _, err := protocol.ReadVarInt32(r)
	if err != nil {
		return nil, fmt.Errorf("read palette size: %w", err)
	}
	if size < 1 || uint32(size-1) > w.Max() {
		return nil, fmt.Errorf("palette size %d does not fit width %d", size, w)
	}
	palette := make([]uint32, size)

	if runtime {
		for i := range palette {
			id, _, err := protocol.ReadVarInt32(r)
			if err != nil {
				return nil, fmt.Errorf("read palette entry: %w", err)
			}
			palette[i] = uint32(id)
		}
		return NewLayerFrom(palette, bits, true), nil
	}

	dec := nbt.NewDecoderWithEncoding(r, e.NBT)
	for i := range palette {
		var state BlockState
		if err := dec.Decode(&state); err != nil {
			return nil, fmt.Errorf("decode block state: %w", err)
		}
		palette[i] = air
		if e.States != nil {
			if id, ok := e.States.IDOf(state); ok {
				palette[i] = id
			}
		}
	}
	return NewLayerFrom(palette, bits, true), nil
}

// WriteSection appends the encoding of s to buf.
func (e Encoding) WriteSection(buf *bytes.Buffer, s Section) error {
	switch s := s.(type) {
	case *LegacySection:
		buf.WriteByte(headerLegacy)
		buf.Write(s.ids[:])
		buf.Write(s.meta[:])
		return nil
	case *CompactSection:
		if len(s.layers) == 1 {
			buf.WriteByte(headerSingle)
		} else {
			buf.WriteByte(headerMultiLayer)
			buf.WriteByte(byte(len(s.layers)))
		}
		for _, l := range s.layers {
			if err := e.WriteLayer(buf, l); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("write section: unsupported type %T", s)
	}
}

// ReadSection decodes one section.
func (e Encoding) ReadSection(r *bytes.Reader, air uint32) (Section, error) {
	header, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read section header: %w", err)
	}

	switch header {
	case headerLegacy, 2, 3, 4, 5, 6:
		s := &LegacySection{}
		if _, err := io.ReadFull(r, s.ids[:]); err != nil {
			return nil, fmt.Errorf("read legacy ids: %w", err)
		}
		if _, err := io.ReadFull(r, s.meta[:]); err != nil {
			return nil, fmt.Errorf("read legacy metadata: %w", err)
		}
		return s, nil
	case headerSingle:
		l, err := e.ReadLayer(r, air)
		if err != nil {
			return nil, err
		}
		return NewCompactSectionFrom(air, []*Layer{l}), nil
	case headerMultiLayer:
		count, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read layer count: %w", err)
		}
		layers := make([]*Layer, count)
		for i := range layers {
			if layers[i], err = e.ReadLayer(r, air); err != nil {
				return nil, fmt.Errorf("read layer %d: %w", i, err)
			}
		}
		return NewCompactSectionFrom(air, layers), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownHeader, header)
	}
}

// WriteSections appends the first count sections of s.
func (e Encoding) WriteSections(buf *bytes.Buffer, s *BlockStorage, count int) error {
	for i := 0; i < count; i++ {
		if err := e.WriteSection(buf, s.sections[i]); err != nil {
			return fmt.Errorf("section %d: %w", i, err)
		}
	}
	return nil
}

// ReadSections decodes count sections into a new column.
func (e Encoding) ReadSections(r *bytes.Reader, air uint32, count int) (*BlockStorage, error) {
	if count > SectionCount {
		return nil, fmt.Errorf("section count out of range: %d", count)
	}
	sections := make([]Section, count)
	for i := range sections {
		s, err := e.ReadSection(r, air)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		sections[i] = s
	}
	return NewBlockStorageFrom(air, sections), nil
}
