package world

import (
	"errors"
	"time"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

// ErrNotFound is returned for blocks in chunks that are not resident.
var ErrNotFound = errors.New("chunk not resident")

// WorldData is the per-world state persisted next to the chunks.
type WorldData struct {
	Name    string    `json:"name"`
	Seed    int64     `json:"seed"`
	Cycle   uint64    `json:"cycle"`
	SpawnX  int32     `json:"spawn_x"`
	SpawnY  int32     `json:"spawn_y"`
	SpawnZ  int32     `json:"spawn_z"`
	SavedAt time.Time `json:"saved_at"`
}

// Provider persists chunks and world data. LoadChunk returns a nil chunk
// and nil error when nothing is stored for pos.
type Provider interface {
	LoadChunk(pos chunk.Pos) (*Chunk, error)
	SaveChunks(chunks []*Chunk) error
	LoadWorld() (*WorldData, error)
	SaveWorld(data *WorldData) error
	Close() error
}
