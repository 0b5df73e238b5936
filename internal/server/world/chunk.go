package world

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/packet"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/protocol"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

// Viewer is anyone a chunk is kept loaded for.
type Viewer interface {
	ID() uuid.UUID
	WritePacket(p protocol.Packet) error
}

// Ticket is the set of viewers holding a chunk resident.
type Ticket struct {
	mu      sync.RWMutex
	viewers map[uuid.UUID]Viewer
}

func newTicket() *Ticket {
	return &Ticket{viewers: make(map[uuid.UUID]Viewer)}
}

func (t *Ticket) Add(v Viewer) {
	t.mu.Lock()
	t.viewers[v.ID()] = v
	t.mu.Unlock()
}

// Remove drops the viewer and returns how many remain.
func (t *Ticket) Remove(id uuid.UUID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.viewers, id)
	return len(t.viewers)
}

func (t *Ticket) Has(id uuid.UUID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.viewers[id]
	return ok
}

func (t *Ticket) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.viewers)
}

// Broadcast writes the packets to every viewer.
func (t *Ticket) Broadcast(pks ...protocol.Packet) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, v := range t.viewers {
		for _, p := range pks {
			_ = v.WritePacket(p)
		}
	}
}

// Chunk is one resident column. Its storage is only touched from its own
// actor; everyone else goes through the change set.
type Chunk struct {
	pos           chunk.Pos
	blocks        *chunk.BlockStorage
	biomes        [packet.BiomeSize]byte
	blockEntities []map[string]any

	changes *ChangeSet
	ticket  *Ticket
	actor   *Actor
}

// NewChunk wraps loaded or generated data.
func NewChunk(pos chunk.Pos, blocks *chunk.BlockStorage, biomes [packet.BiomeSize]byte, blockEntities []map[string]any) *Chunk {
	return &Chunk{
		pos:           pos,
		blocks:        blocks,
		biomes:        biomes,
		blockEntities: blockEntities,
		changes:       NewChangeSet(blocks),
		ticket:        newTicket(),
		actor:         NewActor(),
	}
}

func (c *Chunk) Pos() chunk.Pos { return c.pos }

// Blocks returns the committed storage. Callers outside the chunk's actor
// must only use it once the chunk is evicted.
func (c *Chunk) Blocks() *chunk.BlockStorage { return c.blocks }

func (c *Chunk) Biomes() [packet.BiomeSize]byte { return c.biomes }

func (c *Chunk) BlockEntities() []map[string]any { return c.blockEntities }

func (c *Chunk) Changes() *ChangeSet { return c.changes }

func (c *Chunk) Ticket() *Ticket { return c.ticket }

// Do runs fn on the chunk's actor with access to its storage.
func (c *Chunk) Do(fn func(c *Chunk)) bool {
	return c.actor.Send(func() { fn(c) })
}

// Packet encodes the column for the network. It must run on the actor.
func (c *Chunk) Packet(states chunk.BlockStates) *packet.Chunk {
	return &packet.Chunk{
		Pos:           c.pos,
		Blocks:        c.blocks,
		Biomes:        c.biomes,
		BlockEntities: c.blockEntities,
		States:        states,
		Air:           c.blocks.Air(),
	}
}

// tick commits pending changes, sends one block update per committed
// coordinate and then fires the scheduled updates due this cycle.
func (c *Chunk) tick(cycle uint64, w *Window, behaviors *Behaviors, log *slog.Logger) {
	var updates []protocol.Packet
	bx, bz := int(c.pos.X)*16, int(c.pos.Z)*16
	c.changes.Commit(func(x, y, z int, v uint32) {
		updates = append(updates, packet.NewBlockUpdate(bx+x, y, bz+z, v))
	})
	if len(updates) > 0 {
		c.ticket.Broadcast(updates...)
		log.Debug("committed block changes", "chunk", c.pos, "count", len(updates))
	}

	for _, key := range c.changes.Due(cycle) {
		x, y, z := chunk.LocalPos(key)
		id := c.blocks.Get(x, y, z)
		if update := behaviors.For(id); update != nil {
			update(w, x, y, z, id)
		}
	}
}

// flush commits pending changes without notifying anyone. Used once the
// actor has stopped.
func (c *Chunk) flush() {
	c.changes.Commit(nil)
}
