// Package provider persists chunk columns for the world package. Every
// provider stores the same record format and differs only in where the
// records go.
package provider

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
	"github.com/sandertv/gophertunnel/minecraft/nbt"

	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/packet"
	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/world"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/protocol"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

// Compression specifies the compression algorithm for chunk records.
type Compression byte

const (
	CompressionNone Compression = iota
	CompressionSnappy
	CompressionLZ4
)

// ParseCompression maps a config name to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "snappy":
		return CompressionSnappy, nil
	case "lz4":
		return CompressionLZ4, nil
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionLZ4:
		return "lz4"
	}
	return fmt.Sprintf("compression(%d)", byte(c))
}

// ErrCorrupt is returned for records failing the header or checksum test.
var ErrCorrupt = errors.New("corrupt chunk record")

const (
	recordVersion = 1
	headerSize    = 1 + 1 + 8
	maxRecordSize = 64 << 20
)

// Codec converts chunks to records:
//
//	version u8 | compression u8 | xxhash64 of body, LE | body
//
// The uncompressed body holds the section count, the sections with block
// state palettes, the biome array and the block entities as
// little-endian NBT.
type Codec struct {
	States      chunk.BlockStates
	Air         uint32
	Compression Compression
}

// Encode serialises c. The chunk must not be ticking.
func (cd Codec) Encode(c *world.Chunk) ([]byte, error) {
	var body bytes.Buffer
	blocks := c.Blocks()
	count := blocks.NonEmpty()
	protocol.WriteVarUInt32(&body, uint32(count))
	if err := chunk.DiskEncoding(cd.States).WriteSections(&body, blocks, count); err != nil {
		return nil, fmt.Errorf("encode chunk %v: %w", c.Pos(), err)
	}
	biomes := c.Biomes()
	body.Write(biomes[:])

	entities := c.BlockEntities()
	protocol.WriteVarUInt32(&body, uint32(len(entities)))
	enc := nbt.NewEncoderWithEncoding(&body, nbt.LittleEndian)
	for _, be := range entities {
		if err := enc.Encode(be); err != nil {
			return nil, fmt.Errorf("encode block entity: %w", err)
		}
	}

	compression, data := compress(body.Bytes(), cd.Compression)
	out := make([]byte, headerSize, headerSize+len(data))
	out[0] = recordVersion
	out[1] = byte(compression)
	binary.LittleEndian.PutUint64(out[2:], xxhash.Sum64(data))
	return append(out, data...), nil
}

// Decode parses a record written by Encode. The record's own compression
// byte decides how it is read, so the configured compression may change
// between runs.
func (cd Codec) Decode(pos chunk.Pos, record []byte) (*world.Chunk, error) {
	if len(record) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(record))
	}
	if record[0] != recordVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCorrupt, record[0])
	}
	data := record[headerSize:]
	if sum := binary.LittleEndian.Uint64(record[2:]); sum != xxhash.Sum64(data) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	body, err := decompress(data, Compression(record[1]))
	if err != nil {
		return nil, err
	}

	r := bytes.NewReader(body)
	count, _, err := protocol.ReadVarUInt32(r)
	if err != nil {
		return nil, fmt.Errorf("read section count: %w", err)
	}
	blocks, err := chunk.DiskEncoding(cd.States).ReadSections(r, cd.Air, int(count))
	if err != nil {
		return nil, fmt.Errorf("decode chunk %v: %w", pos, err)
	}
	var biomes [packet.BiomeSize]byte
	if _, err := io.ReadFull(r, biomes[:]); err != nil {
		return nil, fmt.Errorf("read biomes: %w", err)
	}

	n, _, err := protocol.ReadVarUInt32(r)
	if err != nil {
		return nil, fmt.Errorf("read block entity count: %w", err)
	}
	var entities []map[string]any
	dec := nbt.NewDecoderWithEncoding(r, nbt.LittleEndian)
	for i := uint32(0); i < n; i++ {
		var be map[string]any
		if err := dec.Decode(&be); err != nil {
			return nil, fmt.Errorf("decode block entity %d: %w", i, err)
		}
		entities = append(entities, be)
	}
	return world.NewChunk(pos, blocks, biomes, entities), nil
}

// compress returns the compression actually applied; incompressible LZ4
// input is stored as is.
func compress(data []byte, c Compression) (Compression, []byte) {
	switch c {
	case CompressionSnappy:
		return c, snappy.Encode(nil, data)
	case CompressionLZ4:
		dst := make([]byte, 4+lz4.CompressBlockBound(len(data)))
		binary.LittleEndian.PutUint32(dst, uint32(len(data)))
		n, err := lz4.CompressBlock(data, dst[4:], nil)
		if err != nil || n == 0 {
			return CompressionNone, data
		}
		return c, dst[:4+n]
	}
	return CompressionNone, data
}

func decompress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil
	case CompressionSnappy:
		out, err := snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("snappy decode: %w", err)
		}
		return out, nil
	case CompressionLZ4:
		if len(data) < 4 {
			return nil, fmt.Errorf("%w: short lz4 block", ErrCorrupt)
		}
		size := binary.LittleEndian.Uint32(data)
		if size > maxRecordSize {
			return nil, fmt.Errorf("%w: lz4 size %d", ErrCorrupt, size)
		}
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(data[4:], out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decode: %w", err)
		}
		if n != int(size) {
			return nil, fmt.Errorf("%w: lz4 size %d, want %d", ErrCorrupt, n, size)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: compression %d", ErrCorrupt, c)
}
