package provider

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/klauspost/compress/zlib"

	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/world"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

const (
	sectorSize      = 4096
	headerSectors   = 2 // location table + timestamp table
	compressionZlib = 2
	regionChunks    = 32 * 32
	maxSectors      = 255
)

// Region stores 32x32 chunks per file in 4 KiB sectors. Each slot holds a
// zlib-compressed record; a save rewrites the whole file. A damaged slot
// only fails loads of that slot and is dropped by the next save.
type Region struct {
	mu    sync.Mutex
	dir   string
	codec Codec
	meta  WorldStore
	log   *slog.Logger
}

// OpenRegion uses dir for region files. Records are stored uncompressed
// inside the zlib stream.
func OpenRegion(dir string, codec Codec, meta WorldStore, log *slog.Logger) (*Region, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create region dir: %w", err)
	}
	codec.Compression = CompressionNone
	return &Region{dir: dir, codec: codec, meta: meta, log: log.With("provider", "region")}, nil
}

func (r *Region) path(rx, rz int32) string {
	return filepath.Join(r.dir, fmt.Sprintf("r.%d.%d.mcr", rx, rz))
}

func regionOf(pos chunk.Pos) (rx, rz int32, index int) {
	return pos.X >> 5, pos.Z >> 5, int(pos.X&31) + int(pos.Z&31)*32
}

func (r *Region) LoadChunk(pos chunk.Pos) (*world.Chunk, error) {
	rx, rz, index := regionOf(pos)

	r.mu.Lock()
	entries, bad, err := readRegion(r.path(rx, rz))
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := bad[index]; err != nil {
		return nil, err
	}
	compressed, ok := entries[index]
	if !ok {
		return nil, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open zlib reader: %w", err)
	}
	defer zr.Close()
	record, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress chunk %v: %w", pos, err)
	}
	return r.codec.Decode(pos, record)
}

func (r *Region) SaveChunks(chunks []*world.Chunk) error {
	type regionKey struct{ x, z int32 }
	byRegion := make(map[regionKey]map[int][]byte)

	for _, c := range chunks {
		record, err := r.codec.Encode(c)
		if err != nil {
			return fmt.Errorf("save chunk %v: %w", c.Pos(), err)
		}
		var cbuf bytes.Buffer
		zw, err := zlib.NewWriterLevel(&cbuf, zlib.DefaultCompression)
		if err != nil {
			return fmt.Errorf("create zlib writer: %w", err)
		}
		if _, err := zw.Write(record); err != nil {
			return fmt.Errorf("compress chunk %v: %w", c.Pos(), err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("close zlib writer: %w", err)
		}

		rx, rz, index := regionOf(c.Pos())
		key := regionKey{rx, rz}
		if byRegion[key] == nil {
			byRegion[key] = make(map[int][]byte)
		}
		byRegion[key][index] = cbuf.Bytes()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, updates := range byRegion {
		path := r.path(key.x, key.z)
		entries, bad, err := readRegion(path)
		if errors.Is(err, ErrCorrupt) {
			r.log.Warn("rewriting unreadable region file", "file", filepath.Base(path), "error", err)
			entries, bad = make(map[int][]byte), nil
		} else if err != nil {
			return err
		}
		for index, slotErr := range bad {
			if _, ok := updates[index]; !ok {
				r.log.Warn("dropping damaged slot", "file", filepath.Base(path), "slot", index, "error", slotErr)
			}
		}
		for index, data := range updates {
			entries[index] = data
		}
		if err := writeRegion(path, entries); err != nil {
			return err
		}
	}
	return nil
}

// readRegion returns the compressed payload of every readable slot and
// the error of every damaged one. A missing file is an empty region.
func readRegion(path string) (entries map[int][]byte, bad map[int]error, err error) {
	entries = make(map[int][]byte)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil, nil
		}
		return nil, nil, fmt.Errorf("read region file: %w", err)
	}
	if len(data) < headerSectors*sectorSize {
		return nil, nil, fmt.Errorf("%w: region file %s truncated", ErrCorrupt, filepath.Base(path))
	}

	for index := 0; index < regionChunks; index++ {
		loc := binary.BigEndian.Uint32(data[index*4:])
		if loc == 0 {
			continue
		}
		payload, err := readSlot(data, loc)
		if err != nil {
			if bad == nil {
				bad = make(map[int]error)
			}
			bad[index] = fmt.Errorf("%w: slot %d %v", ErrCorrupt, index, err)
			continue
		}
		entries[index] = payload
	}
	return entries, bad, nil
}

func readSlot(data []byte, loc uint32) ([]byte, error) {
	off := int(loc>>8) * sectorSize
	if off < headerSectors*sectorSize || off+5 > len(data) {
		return nil, fmt.Errorf("offset %d out of range", off)
	}
	length := int(binary.BigEndian.Uint32(data[off:]))
	if length < 1 || off+4+length > len(data) {
		return nil, fmt.Errorf("length %d", length)
	}
	if data[off+4] != compressionZlib {
		return nil, fmt.Errorf("compression %d", data[off+4])
	}
	return data[off+5 : off+4+length], nil
}

// writeRegion writes all entries to a region file atomically.
func writeRegion(path string, entries map[int][]byte) error {
	locations := make([]byte, sectorSize)
	timestamps := make([]byte, sectorSize)
	now := uint32(time.Now().Unix())

	// Each chunk's data: 4 bytes length + 1 byte compression type + compressed data,
	// padded to sector boundary.
	var dataBuf bytes.Buffer
	currentSector := uint32(headerSectors)

	indices := make([]int, 0, len(entries))
	for index := range entries {
		indices = append(indices, index)
	}
	slices.Sort(indices)

	for _, index := range indices {
		compressed := entries[index]
		payloadLen := uint32(len(compressed)) + 1 // +1 for compression byte
		totalLen := 4 + payloadLen
		sectorCount := (totalLen + sectorSize - 1) / sectorSize
		if sectorCount > maxSectors {
			return fmt.Errorf("slot %d needs %d sectors", index, sectorCount)
		}

		off := index * 4
		binary.BigEndian.PutUint32(locations[off:off+4], (currentSector<<8)|sectorCount)
		binary.BigEndian.PutUint32(timestamps[off:off+4], now)

		var header [5]byte
		binary.BigEndian.PutUint32(header[0:4], payloadLen)
		header[4] = compressionZlib
		dataBuf.Write(header[:])
		dataBuf.Write(compressed)

		if pad := int(sectorCount)*sectorSize - int(totalLen); pad > 0 {
			dataBuf.Write(make([]byte, pad))
		}
		currentSector += sectorCount
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp region file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmp)
	}()

	for _, part := range [][]byte{locations, timestamps, dataBuf.Bytes()} {
		if _, err := f.Write(part); err != nil {
			return fmt.Errorf("write region file: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close region file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename region file: %w", err)
	}
	return nil
}

func (r *Region) LoadWorld() (*world.WorldData, error) { return r.meta.LoadWorld() }

func (r *Region) SaveWorld(data *world.WorldData) error { return r.meta.SaveWorld(data) }

func (r *Region) Close() error { return nil }
