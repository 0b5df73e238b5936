package packet

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/protocol"
)

// CacheBlobs delivers blob payloads the client reported missing
// (clientbound 0x88).
type CacheBlobs struct {
	Blobs map[uint64][]byte
}

func (*CacheBlobs) PacketID() uint32 { return IDCacheBlobs }

func (p *CacheBlobs) MarshalWire(buf *bytes.Buffer) error {
	protocol.WriteVarUInt32(buf, uint32(len(p.Blobs)))
	for _, id := range slices.Sorted(maps.Keys(p.Blobs)) {
		if err := protocol.WriteU64LE(buf, id); err != nil {
			return err
		}
		if _, err := protocol.WriteByteArray(buf, p.Blobs[id]); err != nil {
			return err
		}
	}
	return nil
}

func (p *CacheBlobs) UnmarshalWire(r *bytes.Reader) error {
	count, _, err := protocol.ReadVarUInt32(r)
	if err != nil {
		return fmt.Errorf("read blob count: %w", err)
	}
	if int(count) > r.Len() {
		return fmt.Errorf("blob count %d exceeds payload", count)
	}
	p.Blobs = make(map[uint64][]byte, count)
	for range count {
		id, err := protocol.ReadU64LE(r)
		if err != nil {
			return fmt.Errorf("read blob id: %w", err)
		}
		if p.Blobs[id], err = protocol.ReadByteArray(r); err != nil {
			return fmt.Errorf("read blob %x: %w", id, err)
		}
	}
	return nil
}

// CacheBlobStatus reports which blobs the client is missing and which it
// already holds (serverbound 0x87).
type CacheBlobStatus struct {
	Misses []uint64
	Hits   []uint64
}

func (*CacheBlobStatus) PacketID() uint32 { return IDCacheBlobStatus }

func (p *CacheBlobStatus) MarshalWire(buf *bytes.Buffer) error {
	protocol.WriteVarUInt32(buf, uint32(len(p.Misses)))
	protocol.WriteVarUInt32(buf, uint32(len(p.Hits)))
	for _, id := range p.Misses {
		if err := protocol.WriteU64LE(buf, id); err != nil {
			return err
		}
	}
	for _, id := range p.Hits {
		if err := protocol.WriteU64LE(buf, id); err != nil {
			return err
		}
	}
	return nil
}

func (p *CacheBlobStatus) UnmarshalWire(r *bytes.Reader) error {
	misses, _, err := protocol.ReadVarUInt32(r)
	if err != nil {
		return fmt.Errorf("read miss count: %w", err)
	}
	hits, _, err := protocol.ReadVarUInt32(r)
	if err != nil {
		return fmt.Errorf("read hit count: %w", err)
	}
	if (int(misses)+int(hits))*8 > r.Len() {
		return fmt.Errorf("blob status counts %d+%d exceed payload", misses, hits)
	}
	p.Misses = make([]uint64, misses)
	p.Hits = make([]uint64, hits)
	for _, ids := range [][]uint64{p.Misses, p.Hits} {
		for i := range ids {
			if ids[i], err = protocol.ReadU64LE(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// ChunkRadius confirms the view radius in chunks (clientbound 0x46).
type ChunkRadius struct {
	Radius int32 `wire:"varint"`
}

func (ChunkRadius) PacketID() uint32 { return IDChunkRadius }

// ChunkPublisher tells the client the centre and radius, in blocks, of
// the area it should keep chunks for (clientbound 0x79).
type ChunkPublisher struct {
	X      int32  `wire:"varint"`
	Y      uint32 `wire:"varuint"`
	Z      int32  `wire:"varint"`
	Radius uint32 `wire:"varuint"`
}

func (ChunkPublisher) PacketID() uint32 { return IDChunkPublisher }
