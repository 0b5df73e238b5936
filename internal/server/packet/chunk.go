package packet

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/sandertv/gophertunnel/minecraft/nbt"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/protocol"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

// BiomeSize is the length of the per-column biome array.
const BiomeSize = 256

// Chunk sends one column (clientbound 0x3A). With Blobs set the client is
// expected to have the section and biome data cached and the region only
// carries the border blocks and block entities.
type Chunk struct {
	Pos           chunk.Pos
	Blocks        *chunk.BlockStorage
	Biomes        [BiomeSize]byte
	BlockEntities []map[string]any
	Blobs         []uint64

	// States resolves non-runtime palettes. Air fills decoded columns.
	States chunk.BlockStates
	Air    uint32

	// SectionCount is set by decoding.
	SectionCount int
}

func (*Chunk) PacketID() uint32 { return IDChunk }

func (p *Chunk) MarshalWire(buf *bytes.Buffer) error {
	enc := chunk.NetworkEncoding(p.States)
	count := p.Blocks.NonEmpty()

	protocol.WriteVarInt32(buf, p.Pos.X)
	protocol.WriteVarInt32(buf, p.Pos.Z)
	protocol.WriteVarUInt32(buf, uint32(count))
	cached := p.Blobs != nil
	protocol.WriteBool(buf, cached)
	if cached {
		if err := protocol.WriteField(buf, "u64s", p.Blobs); err != nil {
			return err
		}
	}

	var region bytes.Buffer
	if !cached {
		if err := enc.WriteSections(&region, p.Blocks, count); err != nil {
			return fmt.Errorf("encode chunk %v: %w", p.Pos, err)
		}
		region.Write(p.Biomes[:])
	}
	// No border blocks.
	region.WriteByte(0)
	ne := nbt.NewEncoderWithEncoding(&region, nbt.NetworkLittleEndian)
	for _, be := range p.BlockEntities {
		if err := ne.Encode(be); err != nil {
			return fmt.Errorf("encode block entity: %w", err)
		}
	}
	_, err := protocol.WriteByteArray(buf, region.Bytes())
	return err
}

func (p *Chunk) UnmarshalWire(r *bytes.Reader) error {
	x, _, err := protocol.ReadVarInt32(r)
	if err != nil {
		return fmt.Errorf("read chunk x: %w", err)
	}
	z, _, err := protocol.ReadVarInt32(r)
	if err != nil {
		return fmt.Errorf("read chunk z: %w", err)
	}
	count, _, err := protocol.ReadVarUInt32(r)
	if err != nil {
		return fmt.Errorf("read section count: %w", err)
	}
	if count > chunk.SectionCount {
		return fmt.Errorf("section count out of range: %d", count)
	}
	cached, err := protocol.ReadBool(r)
	if err != nil {
		return fmt.Errorf("read cache flag: %w", err)
	}
	p.Pos = chunk.Pos{X: x, Z: z}
	p.SectionCount = int(count)
	p.Blobs = nil
	if cached {
		v, err := protocol.ReadField(r, "u64s")
		if err != nil {
			return fmt.Errorf("read blob ids: %w", err)
		}
		p.Blobs = v.([]uint64)
	}

	data, err := protocol.ReadByteArray(r)
	if err != nil {
		return fmt.Errorf("read chunk region: %w", err)
	}
	region := bytes.NewReader(data)
	if cached {
		p.Blocks = chunk.NewBlockStorage(p.Air)
	} else {
		enc := chunk.NetworkEncoding(p.States)
		if p.Blocks, err = enc.ReadSections(region, p.Air, int(count)); err != nil {
			return fmt.Errorf("decode chunk %v: %w", p.Pos, err)
		}
		if _, err := io.ReadFull(region, p.Biomes[:]); err != nil {
			return fmt.Errorf("read biomes: %w", err)
		}
	}

	borders, err := region.ReadByte()
	if err != nil {
		return fmt.Errorf("read border count: %w", err)
	}
	if _, err := region.Seek(int64(borders), io.SeekCurrent); err != nil {
		return err
	}
	p.BlockEntities = nil
	dec := nbt.NewDecoderWithEncoding(region, nbt.NetworkLittleEndian)
	for region.Len() > 0 {
		var be map[string]any
		if err := dec.Decode(&be); err != nil {
			return fmt.Errorf("decode block entity: %w", err)
		}
		p.BlockEntities = append(p.BlockEntities, be)
	}
	return nil
}

// Blobs splits a column into cacheable payloads: one per non-empty
// section followed by the biome array. Ids are xxhash64 of the payload.
func Blobs(blocks *chunk.BlockStorage, biomes [BiomeSize]byte, states chunk.BlockStates) ([]uint64, map[uint64][]byte, error) {
	enc := chunk.NetworkEncoding(states)
	count := blocks.NonEmpty()
	ids := make([]uint64, 0, count+1)
	payloads := make(map[uint64][]byte, count+1)

	add := func(data []byte) {
		id := xxhash.Sum64(data)
		ids = append(ids, id)
		payloads[id] = data
	}
	for i := 0; i < count; i++ {
		var buf bytes.Buffer
		if err := enc.WriteSection(&buf, blocks.Section(i)); err != nil {
			return nil, nil, fmt.Errorf("section %d: %w", i, err)
		}
		add(buf.Bytes())
	}
	add(slices.Clone(biomes[:]))
	return ids, payloads, nil
}
