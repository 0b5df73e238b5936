package world

import (
	"sync"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

// ChangeSet buffers block writes for one chunk until its next commit and
// keeps the bit-mask schedule of coordinates waiting for an update.
//
// Any goroutine may propose changes. Commit is only called by the owning
// chunk and is the sole writer of its BlockStorage. Once the chunk is
// unloaded the set is closed and drops every further write.
type ChangeSet struct {
	mu      sync.Mutex
	storage *chunk.BlockStorage
	changes map[uint16]uint32
	pending map[uint16]uint32
	closed  bool
}

func NewChangeSet(storage *chunk.BlockStorage) *ChangeSet {
	return &ChangeSet{
		storage: storage,
		changes: make(map[uint16]uint32),
		pending: make(map[uint16]uint32),
	}
}

// Get reads through pending changes to committed storage.
func (c *ChangeSet) Get(x, y, z int) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(x, y, z)
}

func (c *ChangeSet) get(x, y, z int) uint32 {
	if !chunk.InBounds(x, y, z) {
		return c.storage.Air()
	}
	if v, ok := c.changes[chunk.LocalKey(x, y, z)]; ok {
		return v
	}
	return c.storage.Get(x, y, z)
}

// Set proposes v for the next commit without scheduling an update.
func (c *ChangeSet) Set(x, y, z int, v uint32) {
	c.SetScheduled(x, y, z, v, 0)
}

// SetScheduled proposes v and, for a non-zero mask, schedules the
// coordinate to update on the first cycle where cycle&mask == 0. Writing
// the committed value cancels any pending change and schedules nothing.
// It reports false if the set is closed.
func (c *ChangeSet) SetScheduled(x, y, z int, v uint32, mask uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if chunk.InBounds(x, y, z) {
		c.set(x, y, z, v, mask)
	}
	return true
}

func (c *ChangeSet) set(x, y, z int, v uint32, mask uint32) {
	key := chunk.LocalKey(x, y, z)
	if c.storage.Get(x, y, z) == v {
		delete(c.changes, key)
		return
	}
	c.changes[key] = v
	if mask != 0 {
		c.pending[key] = mask
	}
}

// SetIfAir writes v only over air, as seen through pending changes.
func (c *ChangeSet) SetIfAir(x, y, z int, v uint32, mask uint32) bool {
	if !chunk.InBounds(x, y, z) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.get(x, y, z) != c.storage.Air() {
		return false
	}
	c.set(x, y, z, v, mask)
	return true
}

// Schedule queues an update for the coordinate without changing it.
func (c *ChangeSet) Schedule(x, y, z int, mask uint32) {
	if mask == 0 || !chunk.InBounds(x, y, z) {
		return
	}
	c.mu.Lock()
	if !c.closed {
		c.pending[chunk.LocalKey(x, y, z)] = mask
	}
	c.mu.Unlock()
}

// Close makes the set reject further writes. Changes already proposed
// stay pending for the final Commit.
func (c *ChangeSet) Close() {
	c.mu.Lock()
	c.closed = true
	clear(c.pending)
	c.mu.Unlock()
}

// Closed reports whether the set rejects writes.
func (c *ChangeSet) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Commit writes every pending change to storage and reports each one.
func (c *ChangeSet) Commit(fn func(x, y, z int, v uint32)) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.changes)
	for key, v := range c.changes {
		x, y, z := chunk.LocalPos(key)
		c.storage.Set(x, y, z, v)
		if fn != nil {
			fn(x, y, z, v)
		}
	}
	clear(c.changes)
	return n
}

// Due removes and returns the scheduled coordinates that fire this cycle.
func (c *ChangeSet) Due(cycle uint64) []uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var due []uint16
	for key, mask := range c.pending {
		if uint32(cycle)&mask == 0 {
			due = append(due, key)
			delete(c.pending, key)
		}
	}
	return due
}

// Len returns the number of uncommitted changes and scheduled updates.
func (c *ChangeSet) Len() (changes, scheduled int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.changes), len(c.pending)
}
