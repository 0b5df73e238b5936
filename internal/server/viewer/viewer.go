package viewer

import (
	"sync"

	"github.com/google/uuid"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/protocol"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

// Viewer is a connected client and the chunks it keeps resident.
type Viewer struct {
	mu     sync.RWMutex
	id     uuid.UUID
	name   string
	center chunk.Pos
	placed bool
	radius int
	loaded map[uint64]chunk.Pos

	blobCache bool
	blobs     map[uint64][]byte
	blobRefs  map[uint64]int
	columns   map[uint64][]uint64 // blob ids sent per column

	write func(protocol.Packet) error
}

// New creates a viewer. write must encode the packet before returning;
// chunk packets reference live storage.
func New(id uuid.UUID, name string, radius int, blobCache bool, write func(protocol.Packet) error) *Viewer {
	return &Viewer{
		id:        id,
		name:      name,
		radius:    radius,
		loaded:    make(map[uint64]chunk.Pos),
		blobCache: blobCache,
		blobs:     make(map[uint64][]byte),
		blobRefs:  make(map[uint64]int),
		columns:   make(map[uint64][]uint64),
		write:     write,
	}
}

func (v *Viewer) ID() uuid.UUID { return v.id }

func (v *Viewer) Name() string { return v.name }

func (v *Viewer) WritePacket(p protocol.Packet) error { return v.write(p) }

// Center returns the chunk the viewer is in and whether it has moved yet.
func (v *Viewer) Center() (chunk.Pos, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.center, v.placed
}

func (v *Viewer) Radius() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.radius
}

// Loaded returns how many chunks the viewer holds.
func (v *Viewer) Loaded() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.loaded)
}

// storeBlobs keeps the payloads sent for pos until the client reports
// them or the column is evicted. A resend replaces the column's blobs.
func (v *Viewer) storeBlobs(pos chunk.Pos, payloads map[uint64][]byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	key := pos.Key()
	v.releaseColumn(key)
	ids := make([]uint64, 0, len(payloads))
	for id, data := range payloads {
		v.blobs[id] = data
		v.blobRefs[id]++
		ids = append(ids, id)
	}
	v.columns[key] = ids
}

// dropColumn forgets the blobs sent for pos that no other column shares
// and returns how many payloads were freed.
func (v *Viewer) dropColumn(pos chunk.Pos) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.releaseColumn(pos.Key())
}

func (v *Viewer) releaseColumn(key uint64) (freed int) {
	for _, id := range v.columns[key] {
		if v.blobRefs[id]--; v.blobRefs[id] > 0 {
			continue
		}
		delete(v.blobRefs, id)
		if _, ok := v.blobs[id]; ok {
			delete(v.blobs, id)
			freed++
		}
	}
	delete(v.columns, key)
	return freed
}

// takeBlobs removes the named blobs and returns those still known.
func (v *Viewer) takeBlobs(ids []uint64) map[uint64][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[uint64][]byte, len(ids))
	for _, id := range ids {
		if data, ok := v.blobs[id]; ok {
			out[id] = data
			delete(v.blobs, id)
		}
	}
	return out
}

func (v *Viewer) dropBlobs(ids []uint64) {
	v.mu.Lock()
	for _, id := range ids {
		delete(v.blobs, id)
	}
	v.mu.Unlock()
}

// InViewDistance returns true if two chunk positions are within view distance.
func InViewDistance(a, b chunk.Pos, viewDist int) bool {
	dx := int(a.X) - int(b.X)
	if dx < 0 {
		dx = -dx
	}
	dz := int(a.Z) - int(b.Z)
	if dz < 0 {
		dz = -dz
	}
	return dx <= viewDist && dz <= viewDist
}
