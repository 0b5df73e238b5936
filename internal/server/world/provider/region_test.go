package provider

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/world"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

func openTestRegion(t *testing.T) *Region {
	t.Helper()
	r, err := OpenRegion(t.TempDir(), testCodec(t, CompressionNone), &memStore{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("OpenRegion: %v", err)
	}
	return r
}

// damageSlot overwrites the compression byte of one slot.
func damageSlot(t *testing.T, path string, index int) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	loc := binary.BigEndian.Uint32(data[index*4:])
	if loc == 0 {
		t.Fatalf("slot %d is empty", index)
	}
	data[int(loc>>8)*sectorSize+4] = 7
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRegionDamagedSlot(t *testing.T) {
	r := openTestRegion(t)
	a, b, c := chunk.Pos{X: 0}, chunk.Pos{X: 1}, chunk.Pos{X: 2}
	if err := r.SaveChunks([]*world.Chunk{testChunk(t, a), testChunk(t, b), testChunk(t, c)}); err != nil {
		t.Fatal(err)
	}
	_, _, index := regionOf(b)
	damageSlot(t, r.path(0, 0), index)

	if _, err := r.LoadChunk(b); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("LoadChunk(damaged) = %v, want ErrCorrupt", err)
	}
	got, err := r.LoadChunk(a)
	if err != nil {
		t.Fatalf("LoadChunk(intact): %v", err)
	}
	assertSameChunk(t, got, testChunk(t, a))

	reg := testRegistry(t)
	updated := testChunk(t, c)
	updated.Blocks().Set(4, 4, 4, reg.MustID("bedrock"))
	if err := r.SaveChunks([]*world.Chunk{updated}); err != nil {
		t.Fatalf("SaveChunks over damaged region: %v", err)
	}
	got, err = r.LoadChunk(c)
	if err != nil {
		t.Fatal(err)
	}
	assertSameChunk(t, got, updated)
	got, err = r.LoadChunk(a)
	if err != nil {
		t.Fatal(err)
	}
	assertSameChunk(t, got, testChunk(t, a))

	// The damaged slot was dropped by the save.
	if got, err := r.LoadChunk(b); err != nil || got != nil {
		t.Fatalf("LoadChunk(dropped) = %v, %v, want nil, nil", got, err)
	}
	want := testChunk(t, b)
	if err := r.SaveChunks([]*world.Chunk{want}); err != nil {
		t.Fatal(err)
	}
	got, err = r.LoadChunk(b)
	if err != nil {
		t.Fatal(err)
	}
	assertSameChunk(t, got, want)
}

func TestRegionTruncatedFile(t *testing.T) {
	r := openTestRegion(t)
	path := r.path(0, 0)
	if err := os.WriteFile(path, []byte("not a region"), 0o644); err != nil {
		t.Fatal(err)
	}
	pos := chunk.Pos{X: 5, Z: 5}
	if _, err := r.LoadChunk(pos); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("LoadChunk = %v, want ErrCorrupt", err)
	}
	want := testChunk(t, pos)
	if err := r.SaveChunks([]*world.Chunk{want}); err != nil {
		t.Fatalf("SaveChunks: %v", err)
	}
	got, err := r.LoadChunk(pos)
	if err != nil {
		t.Fatal(err)
	}
	assertSameChunk(t, got, want)
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "r.0.0.mcr.tmp")); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}
