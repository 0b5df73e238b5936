package world

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/packet"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

type managerFixture struct {
	manager  *Manager
	provider *fakeProvider
	ctx      context.Context

	mu      sync.Mutex
	evicted []chunk.Pos
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	reg := testRegistry(t)
	f := &managerFixture{provider: newFakeProvider(), ctx: testContext(t)}
	f.manager = NewManager(testLogger(), f.provider, flatGenerator(t, reg), reg)
	f.manager.OnEvict(func(pos chunk.Pos) {
		f.mu.Lock()
		f.evicted = append(f.evicted, pos)
		f.mu.Unlock()
	})
	runCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go f.manager.Run(runCtx)
	return f
}

func (f *managerFixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.manager.Count(f.ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

func (f *managerFixture) Evicted() []chunk.Pos {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chunk.Pos(nil), f.evicted...)
}

func TestManagerReferenceCounting(t *testing.T) {
	f := newManagerFixture(t)
	a, b := newCollector(), newCollector()
	pos := chunk.Pos{X: 3, Z: -4}

	ca, err := f.manager.AcquireWait(f.ctx, []chunk.Pos{pos}, a)
	if err != nil {
		t.Fatal(err)
	}
	cb, err := f.manager.AcquireWait(f.ctx, []chunk.Pos{pos}, b)
	if err != nil {
		t.Fatal(err)
	}
	if ca[0] != cb[0] {
		t.Fatal("second acquire loaded a new chunk")
	}
	if n := ca[0].Ticket().Len(); n != 2 {
		t.Errorf("ticket holds %d viewers, want 2", n)
	}

	if err := f.manager.ReleaseWait(f.ctx, []chunk.Pos{pos}, a); err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.manager.Resident(f.ctx, pos); !ok {
		t.Fatal("chunk evicted while b still holds it")
	}
	if len(f.provider.Saves()) != 0 {
		t.Fatal("chunk saved while still held")
	}

	if err := f.manager.ReleaseWait(f.ctx, []chunk.Pos{pos}, b); err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.manager.Resident(f.ctx, pos); ok {
		t.Fatal("chunk still resident after last release")
	}
	saves := f.provider.Saves()
	if len(saves) != 1 || len(saves[0]) != 1 || saves[0][0] != pos {
		t.Errorf("saves = %v, want one batch with %v", saves, pos)
	}
	if ev := f.Evicted(); len(ev) != 1 || ev[0] != pos {
		t.Errorf("evicted = %v, want [%v]", ev, pos)
	}
}

func TestManagerReleaseBatchesSaves(t *testing.T) {
	f := newManagerFixture(t)
	v := newCollector()
	positions := []chunk.Pos{{X: 0, Z: 0}, {X: 1, Z: 0}, {X: 0, Z: 1}}
	if _, err := f.manager.AcquireWait(f.ctx, positions, v); err != nil {
		t.Fatal(err)
	}
	if err := f.manager.ReleaseWait(f.ctx, positions, v); err != nil {
		t.Fatal(err)
	}
	saves := f.provider.Saves()
	if len(saves) != 1 || len(saves[0]) != 3 {
		t.Errorf("saves = %v, want one batch of 3", saves)
	}
}

func TestManagerReleaseNoOps(t *testing.T) {
	f := newManagerFixture(t)
	holder, stranger := newCollector(), newCollector()
	pos := chunk.Pos{X: 9, Z: 9}
	if _, err := f.manager.AcquireWait(f.ctx, []chunk.Pos{pos}, holder); err != nil {
		t.Fatal(err)
	}

	if err := f.manager.ReleaseWait(f.ctx, []chunk.Pos{{X: 100, Z: 100}}, holder); err != nil {
		t.Fatal(err)
	}
	if err := f.manager.ReleaseWait(f.ctx, []chunk.Pos{pos}, stranger); err != nil {
		t.Fatal(err)
	}
	if n := f.count(t); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
	if len(f.provider.Saves()) != 0 {
		t.Error("no-op release saved chunks")
	}
}

func TestManagerUntrackedViewer(t *testing.T) {
	f := newManagerFixture(t)
	chunks, err := f.manager.AcquireWait(f.ctx, []chunk.Pos{{}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n := chunks[0].Ticket().Len(); n != 0 {
		t.Errorf("ticket holds %d viewers, want 0", n)
	}
}

func TestManagerAcquireContinuation(t *testing.T) {
	f := newManagerFixture(t)
	positions := []chunk.Pos{{X: 5, Z: 5}, {X: -5, Z: 5}}
	got := make(chan []*Chunk, 1)
	if !f.manager.Acquire(positions, newCollector(), func(c []*Chunk) { got <- c }) {
		t.Fatal("Acquire refused")
	}
	chunks := <-got
	if len(chunks) != 2 || chunks[0].Pos() != positions[0] || chunks[1].Pos() != positions[1] {
		t.Errorf("continuation got %v", chunks)
	}
}

func TestManagerLoadsFromProvider(t *testing.T) {
	f := newManagerFixture(t)
	reg := testRegistry(t)
	pos := chunk.Pos{X: 1, Z: 1}
	stored := NewChunk(pos, chunk.NewBlockStorage(reg.Air()), [256]byte{}, nil)
	stored.Blocks().Set(0, 100, 0, reg.MustID("glass"))
	f.provider.stored[pos] = stored

	chunks, err := f.manager.AcquireWait(f.ctx, []chunk.Pos{pos}, newCollector())
	if err != nil {
		t.Fatal(err)
	}
	if chunks[0] != stored {
		t.Error("manager did not use the provider's chunk")
	}
}

func TestManagerRegeneratesOnLoadError(t *testing.T) {
	f := newManagerFixture(t)
	reg := testRegistry(t)
	pos := chunk.Pos{X: 2, Z: 2}
	f.provider.failing[pos] = errors.New("corrupt")

	chunks, err := f.manager.AcquireWait(f.ctx, []chunk.Pos{pos}, newCollector())
	if err != nil {
		t.Fatal(err)
	}
	if got := chunks[0].Blocks().Get(0, 0, 0); got != reg.MustID("bedrock") {
		t.Errorf("regenerated floor = %d, want bedrock", got)
	}
}

func TestManagerTickBroadcastsCommits(t *testing.T) {
	f := newManagerFixture(t)
	reg := testRegistry(t)
	v := newCollector()
	pos := chunk.Pos{X: -1, Z: 2}
	chunks, err := f.manager.AcquireWait(f.ctx, []chunk.Pos{pos}, v)
	if err != nil {
		t.Fatal(err)
	}
	glass := reg.MustID("glass")
	chunks[0].Changes().Set(1, 50, 3, glass)

	f.manager.Tick(1)
	f.count(t) // the tick has been fanned out once this returns
	syncChunk(t, chunks[0])

	pks := v.Packets()
	if len(pks) != 1 {
		t.Fatalf("got %d packets, want 1", len(pks))
	}
	up, ok := pks[0].(*packet.BlockUpdate)
	if !ok {
		t.Fatalf("packet is %T", pks[0])
	}
	if up.X != -16+1 || up.Y != 50 || up.Z != 32+3 || up.RuntimeID != glass {
		t.Errorf("update = %+v", up)
	}
	if got := chunks[0].Blocks().Get(1, 50, 3); got != glass {
		t.Errorf("committed block = %d, want glass", got)
	}
}

func TestManagerCloseSavesEverything(t *testing.T) {
	f := newManagerFixture(t)
	v := newCollector()
	positions := []chunk.Pos{{X: 0, Z: 0}, {X: 7, Z: 7}}
	if _, err := f.manager.AcquireWait(f.ctx, positions, v); err != nil {
		t.Fatal(err)
	}
	if err := f.manager.Close(f.ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	saves := f.provider.Saves()
	if len(saves) != 1 || len(saves[0]) != 2 {
		t.Errorf("saves = %v, want one batch of 2", saves)
	}
	if _, err := f.manager.Count(f.ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Count after Close = %v, want ErrClosed", err)
	}
}

func TestManagerWindowNotResident(t *testing.T) {
	f := newManagerFixture(t)
	if _, err := f.manager.Window(f.ctx, chunk.Pos{X: 50}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Window = %v, want ErrNotFound", err)
	}
}

func TestManagerWindowAfterNeighbourEvicted(t *testing.T) {
	f := newManagerFixture(t)
	reg := testRegistry(t)
	glass := reg.MustID("glass")
	va, vb := newCollector(), newCollector()
	a, b := chunk.Pos{X: 0, Z: 0}, chunk.Pos{X: 1, Z: 0}
	if _, err := f.manager.AcquireWait(f.ctx, []chunk.Pos{a}, va); err != nil {
		t.Fatal(err)
	}
	chunks, err := f.manager.AcquireWait(f.ctx, []chunk.Pos{b}, vb)
	if err != nil {
		t.Fatal(err)
	}
	old := chunks[0]

	w, err := f.manager.Window(f.ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if !w.SetScheduled(16, 100, 0, glass, 0b1) {
		t.Fatal("write into resident neighbour was dropped")
	}
	if err := f.manager.ReleaseWait(f.ctx, []chunk.Pos{b}, vb); err != nil {
		t.Fatal(err)
	}
	if got := old.Blocks().Get(0, 100, 0); got != glass {
		t.Errorf("write before eviction was not flushed: %d", got)
	}

	if w.SetScheduled(16, 101, 0, glass, 0b1) {
		t.Error("write into evicted neighbour was accepted")
	}
	if w.SetIfAir(16, 102, 0, glass, 0b1) {
		t.Error("SetIfAir into evicted neighbour was accepted")
	}
	w.Schedule(16, 103, 0, 0b1)
	if changes, scheduled := old.Changes().Len(); changes != 0 || scheduled != 0 {
		t.Errorf("evicted change set holds %d changes, %d scheduled", changes, scheduled)
	}

	chunks, err = f.manager.AcquireWait(f.ctx, []chunk.Pos{b}, vb)
	if err != nil {
		t.Fatal(err)
	}
	if chunks[0] == old {
		t.Fatal("reacquire returned the evicted chunk")
	}
	w, err = f.manager.Window(f.ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if !w.SetScheduled(16, 101, 0, glass, 0b1) {
		t.Error("write into reacquired neighbour was dropped")
	}
	if got := chunks[0].Changes().Get(0, 101, 0); got != glass {
		t.Errorf("reacquired chunk reads %d, want glass", got)
	}
}
