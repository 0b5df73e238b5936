// Package viewer tracks connected clients and turns their movement into
// chunk acquire and release requests.
package viewer

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/packet"
	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/world"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/protocol"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

// Manager tracks all connected viewers.
type Manager struct {
	mu           sync.RWMutex
	viewers      map[uuid.UUID]*Viewer
	chunks       *world.Manager
	states       chunk.BlockStates
	viewDistance int
	log          *slog.Logger
}

// NewManager creates a viewer manager with the given maximum view distance
// (in chunks).
func NewManager(log *slog.Logger, chunks *world.Manager, states chunk.BlockStates, viewDistance int) *Manager {
	m := &Manager{
		viewers:      make(map[uuid.UUID]*Viewer),
		chunks:       chunks,
		states:       states,
		viewDistance: viewDistance,
		log:          log.With("component", "viewers"),
	}
	chunks.OnEvict(m.evicted)
	return m
}

// evicted runs on the chunk manager once pos has been unloaded. Blobs
// still waiting for a cache report of that column are no longer needed.
func (m *Manager) evicted(pos chunk.Pos) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.viewers {
		if !v.blobCache {
			continue
		}
		if n := v.dropColumn(pos); n > 0 {
			m.log.Debug("dropped blobs of evicted chunk", "viewer", v.id, "chunk", pos, "blobs", n)
		}
	}
}

// Add registers a viewer and confirms its radius. No chunks are sent
// before the first Move.
func (m *Manager) Add(v *Viewer) {
	v.mu.Lock()
	v.radius = m.ClampRadius(v.radius)
	radius := v.radius
	v.mu.Unlock()

	m.mu.Lock()
	m.viewers[v.id] = v
	m.mu.Unlock()

	_ = v.WritePacket(&packet.ChunkRadius{Radius: int32(radius)})
	m.log.Info("viewer joined", "viewer", v.id, "name", v.name, "radius", radius)
}

// Remove unregisters a viewer and releases everything it held.
func (m *Manager) Remove(v *Viewer) {
	m.mu.Lock()
	delete(m.viewers, v.id)
	m.mu.Unlock()

	v.mu.Lock()
	release := make([]chunk.Pos, 0, len(v.loaded))
	for _, pos := range v.loaded {
		release = append(release, pos)
	}
	clear(v.loaded)
	v.placed = false
	v.mu.Unlock()

	if len(release) > 0 {
		m.chunks.Release(release, v)
	}
	m.log.Info("viewer left", "viewer", v.id, "released", len(release))
}

func (m *Manager) Get(id uuid.UUID) (*Viewer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.viewers[id]
	return v, ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.viewers)
}

// Broadcast sends a packet to all connected viewers.
func (m *Manager) Broadcast(p protocol.Packet) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.viewers {
		_ = v.WritePacket(p)
	}
}

// ViewDistance is the largest radius a viewer can have.
func (m *Manager) ViewDistance() int { return m.viewDistance }

// ClampRadius limits a requested radius to [1, view distance].
func (m *Manager) ClampRadius(radius int) int {
	return min(max(radius, 1), m.viewDistance)
}

// Move places the viewer at block (x, y, z). Crossing into another chunk
// releases what fell out of range and acquires what came into it, nearest
// first.
func (m *Manager) Move(v *Viewer, x, y, z int) {
	center := chunk.PosOf(x, z)

	v.mu.Lock()
	moved := !v.placed || v.center != center
	v.center, v.placed = center, true
	radius := v.radius
	var acquire, release []chunk.Pos
	if moved {
		acquire, release = m.diff(v)
	}
	// Sent under the viewer lock so concurrent moves reach the chunk
	// manager in the order they were applied.
	if len(release) > 0 {
		m.chunks.Release(release, v)
	}
	if len(acquire) > 0 {
		m.chunks.Acquire(acquire, v, func(chunks []*world.Chunk) {
			for _, c := range chunks {
				c.Do(func(c *world.Chunk) { m.sendChunk(v, c) })
			}
		})
	}
	v.mu.Unlock()

	if moved {
		_ = v.WritePacket(&packet.ChunkPublisher{
			X:      int32(x),
			Y:      uint32(max(y, 0)),
			Z:      int32(z),
			Radius: uint32(radius * 16),
		})
	}
}

// SetRadius changes the viewer's radius and reloads around its centre.
func (m *Manager) SetRadius(v *Viewer, radius int) {
	radius = m.ClampRadius(radius)

	v.mu.Lock()
	v.radius = radius
	var acquire, release []chunk.Pos
	if v.placed {
		acquire, release = m.diff(v)
	}
	if len(release) > 0 {
		m.chunks.Release(release, v)
	}
	if len(acquire) > 0 {
		m.chunks.Acquire(acquire, v, func(chunks []*world.Chunk) {
			for _, c := range chunks {
				c.Do(func(c *world.Chunk) { m.sendChunk(v, c) })
			}
		})
	}
	v.mu.Unlock()

	_ = v.WritePacket(&packet.ChunkRadius{Radius: int32(radius)})
}

// diff updates v.loaded to the square around v.center and returns the
// changes. v.mu must be held.
func (m *Manager) diff(v *Viewer) (acquire, release []chunk.Pos) {
	for key, pos := range v.loaded {
		if !InViewDistance(pos, v.center, v.radius) {
			release = append(release, pos)
			delete(v.loaded, key)
		}
	}
	for dx := -v.radius; dx <= v.radius; dx++ {
		for dz := -v.radius; dz <= v.radius; dz++ {
			pos := v.center.Add(int32(dx), int32(dz))
			if _, ok := v.loaded[pos.Key()]; ok {
				continue
			}
			v.loaded[pos.Key()] = pos
			acquire = append(acquire, pos)
		}
	}
	slices.SortFunc(acquire, func(a, b chunk.Pos) int {
		return cmp.Compare(distance(a, v.center), distance(b, v.center))
	})
	return acquire, release
}

func distance(a, b chunk.Pos) int {
	dx, dz := int(a.X-b.X), int(a.Z-b.Z)
	return dx*dx + dz*dz
}

// sendChunk runs on the chunk's actor.
func (m *Manager) sendChunk(v *Viewer, c *world.Chunk) {
	pk := c.Packet(m.states)
	if v.blobCache {
		ids, payloads, err := packet.Blobs(c.Blocks(), c.Biomes(), m.states)
		if err != nil {
			m.log.Error("build chunk blobs", "chunk", c.Pos(), "error", err)
			return
		}
		v.storeBlobs(c.Pos(), payloads)
		pk.Blobs = ids
	}
	if err := v.WritePacket(pk); err != nil {
		m.log.Debug("send chunk", "viewer", v.id, "chunk", c.Pos(), "error", err)
	}
}

// HandleBlobStatus answers a client's cache report with the payloads it
// is missing.
func (m *Manager) HandleBlobStatus(v *Viewer, status *packet.CacheBlobStatus) {
	v.dropBlobs(status.Hits)
	if len(status.Misses) == 0 {
		return
	}
	blobs := v.takeBlobs(status.Misses)
	if len(blobs) < len(status.Misses) {
		m.log.Debug("client asked for unknown blobs", "viewer", v.id, "missing", len(status.Misses)-len(blobs))
	}
	_ = v.WritePacket(&packet.CacheBlobs{Blobs: blobs})
}
