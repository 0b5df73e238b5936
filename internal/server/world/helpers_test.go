package world

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/gamedata"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/protocol"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/gen"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T) *gamedata.Registry {
	t.Helper()
	reg, err := gamedata.Builtin()
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	return reg
}

func flatGenerator(t *testing.T, reg *gamedata.Registry) gen.Generator {
	t.Helper()
	g, err := gen.NewFlatGenerator(gen.DefaultFlatLayers, reg)
	if err != nil {
		t.Fatalf("NewFlatGenerator: %v", err)
	}
	return g
}

// packetCollector is a Viewer recording everything written to it.
type packetCollector struct {
	id uuid.UUID

	mu      sync.Mutex
	packets []protocol.Packet
}

func newCollector() *packetCollector {
	return &packetCollector{id: uuid.New()}
}

func (c *packetCollector) ID() uuid.UUID { return c.id }

func (c *packetCollector) WritePacket(p protocol.Packet) error {
	c.mu.Lock()
	c.packets = append(c.packets, p)
	c.mu.Unlock()
	return nil
}

func (c *packetCollector) Packets() []protocol.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Packet(nil), c.packets...)
}

// fakeProvider records saves and serves preloaded chunks.
type fakeProvider struct {
	mu       sync.Mutex
	stored   map[chunk.Pos]*Chunk
	failing  map[chunk.Pos]error
	saves    [][]chunk.Pos
	data     *WorldData
	loads    int
	worldErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		stored:  make(map[chunk.Pos]*Chunk),
		failing: make(map[chunk.Pos]error),
	}
}

func (p *fakeProvider) LoadChunk(pos chunk.Pos) (*Chunk, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads++
	if err := p.failing[pos]; err != nil {
		return nil, err
	}
	return p.stored[pos], nil
}

func (p *fakeProvider) SaveChunks(chunks []*Chunk) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	batch := make([]chunk.Pos, 0, len(chunks))
	for _, c := range chunks {
		batch = append(batch, c.Pos())
	}
	p.saves = append(p.saves, batch)
	return nil
}

func (p *fakeProvider) Saves() [][]chunk.Pos {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]chunk.Pos(nil), p.saves...)
}

func (p *fakeProvider) LoadWorld() (*WorldData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data, p.worldErr
}

func (p *fakeProvider) SaveWorld(data *WorldData) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = data
	return nil
}

func (p *fakeProvider) World() *WorldData {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data
}

func (p *fakeProvider) Close() error { return nil }

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// syncChunk waits until every message sent to c so far has run.
func syncChunk(t *testing.T, c *Chunk) {
	t.Helper()
	done := make(chan struct{})
	if !c.Do(func(*Chunk) { close(done) }) {
		t.Fatal("chunk actor stopped")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("chunk actor did not drain")
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
