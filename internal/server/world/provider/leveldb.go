package provider

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/opt"

	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/world"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

// WorldStore keeps the world metadata for providers that do not store it
// themselves.
type WorldStore interface {
	LoadWorld() (*world.WorldData, error)
	SaveWorld(data *world.WorldData) error
}

// LevelDB stores one key per chunk. World metadata goes to a WorldStore.
type LevelDB struct {
	db    *leveldb.DB
	codec Codec
	meta  WorldStore
}

// OpenLevelDB opens or creates the database in dir. Records are already
// compressed by the codec, so the table compression is off.
func OpenLevelDB(dir string, codec Codec, meta WorldStore) (*LevelDB, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{
		Compression: opt.NoCompression,
		BlockSize:   64 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", dir, err)
	}
	return &LevelDB{db: db, codec: codec, meta: meta}, nil
}

// chunkKey is X then Z, both little-endian int32.
func chunkKey(pos chunk.Pos) []byte {
	key := make([]byte, 8)
	binary.LittleEndian.PutUint32(key, uint32(pos.X))
	binary.LittleEndian.PutUint32(key[4:], uint32(pos.Z))
	return key
}

func (l *LevelDB) LoadChunk(pos chunk.Pos) (*world.Chunk, error) {
	record, err := l.db.Get(chunkKey(pos), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("read chunk %v: %w", pos, err)
	}
	return l.codec.Decode(pos, record)
}

func (l *LevelDB) SaveChunks(chunks []*world.Chunk) error {
	batch := new(leveldb.Batch)
	for _, c := range chunks {
		record, err := l.codec.Encode(c)
		if err != nil {
			return fmt.Errorf("save chunk %v: %w", c.Pos(), err)
		}
		batch.Put(chunkKey(c.Pos()), record)
	}
	if err := l.db.Write(batch, nil); err != nil {
		return fmt.Errorf("write chunk batch: %w", err)
	}
	return nil
}

func (l *LevelDB) LoadWorld() (*world.WorldData, error) { return l.meta.LoadWorld() }

func (l *LevelDB) SaveWorld(data *world.WorldData) error { return l.meta.SaveWorld(data) }

func (l *LevelDB) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("close leveldb: %w", err)
	}
	return nil
}
