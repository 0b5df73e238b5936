package provider

import (
	"fmt"
	"sync"

	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/world"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

// Memory keeps encoded records in a map. Nothing survives a restart.
type Memory struct {
	mu     sync.Mutex
	codec  Codec
	chunks map[uint64][]byte
	data   *world.WorldData
}

func NewMemory(codec Codec) *Memory {
	return &Memory{codec: codec, chunks: make(map[uint64][]byte)}
}

func (m *Memory) LoadChunk(pos chunk.Pos) (*world.Chunk, error) {
	m.mu.Lock()
	record, ok := m.chunks[pos.Key()]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return m.codec.Decode(pos, record)
}

func (m *Memory) SaveChunks(chunks []*world.Chunk) error {
	records := make(map[uint64][]byte, len(chunks))
	for _, c := range chunks {
		record, err := m.codec.Encode(c)
		if err != nil {
			return fmt.Errorf("save chunk %v: %w", c.Pos(), err)
		}
		records[c.Pos().Key()] = record
	}
	m.mu.Lock()
	for k, r := range records {
		m.chunks[k] = r
	}
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored chunks.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks)
}

func (m *Memory) LoadWorld() (*world.WorldData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	d := *m.data
	return &d, nil
}

func (m *Memory) SaveWorld(data *world.WorldData) error {
	d := *data
	m.mu.Lock()
	m.data = &d
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
