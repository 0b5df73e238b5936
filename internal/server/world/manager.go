package world

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/gamedata"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/gen"
)

// Manager keeps the set of resident chunks. A chunk stays resident while
// its ticket holds at least one viewer; once released by the last viewer it
// is saved through the provider and dropped.
//
// All bookkeeping runs on the manager's own actor.
type Manager struct {
	log       *slog.Logger
	provider  Provider
	generator gen.Generator
	behaviors *Behaviors
	border    uint32

	actor  *Actor
	ctx    context.Context
	chunks map[uint64]*Chunk

	evictMu sync.RWMutex
	onEvict []func(pos chunk.Pos)
}

func NewManager(log *slog.Logger, provider Provider, generator gen.Generator, blocks *gamedata.Registry) *Manager {
	return &Manager{
		log:       log.With("component", "chunks"),
		provider:  provider,
		generator: generator,
		behaviors: NewBehaviors(blocks),
		border:    blocks.MustID(gamedata.Stone),
		actor:     NewActor(),
		ctx:       context.Background(),
		chunks:    make(map[uint64]*Chunk),
	}
}

// OnEvict registers fn to be called with every evicted position.
func (m *Manager) OnEvict(fn func(pos chunk.Pos)) {
	m.evictMu.Lock()
	m.onEvict = append(m.onEvict, fn)
	m.evictMu.Unlock()
}

// Run processes manager messages until Close or ctx is cancelled. Chunk
// actors live for as long as ctx.
func (m *Manager) Run(ctx context.Context) {
	m.ctx = ctx
	m.actor.Run(ctx)
}

func trackable(v Viewer) bool {
	return v != nil && v.ID() != uuid.Nil
}

// Acquire makes the positions resident, adds v to their tickets and then
// calls then with the chunks in the order requested. Missing chunks are
// loaded from the provider or generated.
func (m *Manager) Acquire(positions []chunk.Pos, v Viewer, then func([]*Chunk)) bool {
	return m.actor.Send(func() {
		resolved := m.acquire(positions, v)
		if then != nil {
			then(resolved)
		}
	})
}

// AcquireWait is Acquire for callers that need the chunks before going on.
func (m *Manager) AcquireWait(ctx context.Context, positions []chunk.Pos, v Viewer) ([]*Chunk, error) {
	var resolved []*Chunk
	if err := m.actor.Call(ctx, func() {
		resolved = m.acquire(positions, v)
	}); err != nil {
		return nil, err
	}
	return resolved, nil
}

func (m *Manager) acquire(positions []chunk.Pos, v Viewer) []*Chunk {
	resolved := make([]*Chunk, 0, len(positions))
	loaded := 0
	for _, pos := range positions {
		c, ok := m.chunks[pos.Key()]
		if !ok {
			c = m.load(pos)
			m.chunks[pos.Key()] = c
			loaded++
		}
		if trackable(v) {
			c.ticket.Add(v)
		}
		resolved = append(resolved, c)
	}
	if loaded > 0 {
		m.log.Debug("chunks loaded", "count", loaded, "resident", len(m.chunks))
	}
	return resolved
}

// load reads pos from the provider. A failed read is treated as a missing
// chunk and regenerated; the bad record is replaced on the next save.
func (m *Manager) load(pos chunk.Pos) *Chunk {
	c, err := m.provider.LoadChunk(pos)
	if err != nil {
		m.log.Warn("load chunk failed, regenerating", "chunk", pos, "error", err)
		c = nil
	}
	if c == nil {
		c = NewChunk(pos, m.generator.Generate(pos), gen.Biomes(m.generator, pos), nil)
	}
	go c.actor.Run(m.ctx)
	return c
}

// Release removes v from the tickets of positions. Chunks left without
// viewers are saved in one batch and dropped.
func (m *Manager) Release(positions []chunk.Pos, v Viewer) bool {
	return m.actor.Send(func() {
		m.release(positions, v)
	})
}

// ReleaseWait is Release that returns once eviction has finished.
func (m *Manager) ReleaseWait(ctx context.Context, positions []chunk.Pos, v Viewer) error {
	return m.actor.Call(ctx, func() {
		m.release(positions, v)
	})
}

func (m *Manager) release(positions []chunk.Pos, v Viewer) {
	var evicted []*Chunk
	for _, pos := range positions {
		c, ok := m.chunks[pos.Key()]
		if !ok {
			continue
		}
		if trackable(v) {
			if !c.ticket.Has(v.ID()) {
				continue
			}
			c.ticket.Remove(v.ID())
		}
		if c.ticket.Len() == 0 {
			delete(m.chunks, pos.Key())
			evicted = append(evicted, c)
		}
	}
	if len(evicted) == 0 {
		return
	}
	if err := m.persist(evicted); err != nil {
		m.log.Error("save evicted chunks", "count", len(evicted), "error", err)
	}

	m.evictMu.RLock()
	listeners := m.onEvict
	m.evictMu.RUnlock()
	for _, c := range evicted {
		for _, fn := range listeners {
			fn(c.pos)
		}
	}
	m.log.Debug("chunks evicted", "count", len(evicted), "resident", len(m.chunks))
}

// persist stops the chunks' actors, closes their change sets, commits
// what they still had pending and hands them to the provider. Windows
// taken before the release can no longer write into them.
func (m *Manager) persist(chunks []*Chunk) error {
	for _, c := range chunks {
		c.actor.Stop()
	}
	for _, c := range chunks {
		<-c.actor.Done()
		c.changes.Close()
		c.flush()
	}
	return m.provider.SaveChunks(chunks)
}

// Tick sends every resident chunk its update for cycle.
func (m *Manager) Tick(cycle uint64) bool {
	return m.actor.Send(func() {
		for _, c := range m.chunks {
			w := newWindow(c.pos, m.border, m.log, m.lookup)
			c.actor.Send(func() {
				c.tick(cycle, w, m.behaviors, m.log)
			})
		}
	})
}

func (m *Manager) lookup(pos chunk.Pos) *Chunk {
	return m.chunks[pos.Key()]
}

// Window returns the 3x3 window around a resident chunk.
func (m *Manager) Window(ctx context.Context, pos chunk.Pos) (*Window, error) {
	var w *Window
	if err := m.actor.Call(ctx, func() {
		if m.lookup(pos) != nil {
			w = newWindow(pos, m.border, m.log, m.lookup)
		}
	}); err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("chunk %v: %w", pos, ErrNotFound)
	}
	return w, nil
}

// Resident reports whether pos is loaded.
func (m *Manager) Resident(ctx context.Context, pos chunk.Pos) (bool, error) {
	var ok bool
	err := m.actor.Call(ctx, func() {
		_, ok = m.chunks[pos.Key()]
	})
	return ok, err
}

// Count returns the number of resident chunks.
func (m *Manager) Count(ctx context.Context) (int, error) {
	var n int
	err := m.actor.Call(ctx, func() {
		n = len(m.chunks)
	})
	return n, err
}

// Close saves every resident chunk and stops the manager.
func (m *Manager) Close(ctx context.Context) error {
	var saveErr error
	err := m.actor.Call(ctx, func() {
		all := make([]*Chunk, 0, len(m.chunks))
		for _, c := range m.chunks {
			all = append(all, c)
		}
		clear(m.chunks)
		if len(all) > 0 {
			saveErr = m.persist(all)
		}
		m.log.Info("saved resident chunks", "count", len(all))
	})
	m.actor.Stop()
	if err != nil {
		return fmt.Errorf("close chunk manager: %w", err)
	}
	if saveErr != nil {
		return fmt.Errorf("save chunks: %w", saveErr)
	}
	return nil
}
