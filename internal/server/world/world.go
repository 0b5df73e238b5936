package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/gamedata"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/gen"
)

// DefaultTickInterval is 20 cycles per second.
const DefaultTickInterval = 50 * time.Millisecond

const shutdownTimeout = 30 * time.Second

// Options configures a World.
type Options struct {
	Name         string
	Seed         int64
	TickInterval time.Duration
}

// World drives the cycle counter and owns the chunk manager.
type World struct {
	log       *slog.Logger
	provider  Provider
	generator gen.Generator
	manager   *Manager
	opts      Options

	cycle   atomic.Uint64
	running atomic.Bool
}

func New(log *slog.Logger, provider Provider, generator gen.Generator, blocks *gamedata.Registry, opts Options) *World {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	return &World{
		log:       log.With("component", "world"),
		provider:  provider,
		generator: generator,
		manager:   NewManager(log, provider, generator, blocks),
		opts:      opts,
	}
}

func (w *World) Manager() *Manager { return w.manager }

// Cycle returns the number of ticks run so far, including previous runs.
func (w *World) Cycle() uint64 { return w.cycle.Load() }

// Spawn returns the block above the terrain at the origin.
func (w *World) Spawn() (x, y, z int32) {
	return 0, int32(w.generator.HeightAt(0, 0) + 1), 0
}

// Run restores the saved cycle, then ticks until ctx is cancelled. On
// return every resident chunk and the world data have been saved.
func (w *World) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.New("world already running")
	}

	data, err := w.provider.LoadWorld()
	if err != nil {
		return fmt.Errorf("load world: %w", err)
	}
	if data != nil {
		w.cycle.Store(data.Cycle)
		if data.Seed != w.opts.Seed {
			w.log.Warn("seed differs from saved world", "saved", data.Seed, "configured", w.opts.Seed)
		}
		w.log.Info("loaded world", "name", data.Name, "cycle", data.Cycle, "savedAt", data.SavedAt)
	}

	// The manager has to outlive ctx so Close can still save.
	mctx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()
	go w.manager.Run(mctx)

	ticker := time.NewTicker(w.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return w.shutdown()
		case <-ticker.C:
			w.Tick()
		}
	}
}

// Tick advances the cycle and updates every resident chunk.
func (w *World) Tick() {
	w.manager.Tick(w.cycle.Add(1))
}

func (w *World) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := w.manager.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	sx, sy, sz := w.Spawn()
	if err := w.provider.SaveWorld(&WorldData{
		Name:    w.opts.Name,
		Seed:    w.opts.Seed,
		Cycle:   w.cycle.Load(),
		SpawnX:  sx,
		SpawnY:  sy,
		SpawnZ:  sz,
		SavedAt: time.Now().UTC(),
	}); err != nil {
		errs = append(errs, fmt.Errorf("save world: %w", err))
	}
	w.log.Info("world saved", "cycle", w.cycle.Load())
	return errors.Join(errs...)
}

// SetBlock proposes id at world coordinates and wakes the block and its six
// neighbours on the next odd cycle. The chunk must be resident.
func (w *World) SetBlock(ctx context.Context, x, y, z int, id uint32) error {
	win, lx, lz, err := w.window(ctx, x, z)
	if err != nil {
		return err
	}
	if !win.SetScheduled(lx, y, lz, id, neighborMask) {
		return fmt.Errorf("chunk %v: %w", chunk.PosOf(x, z), ErrNotFound)
	}
	for _, d := range [6][3]int{{0, 1, 0}, {0, -1, 0}, {-1, 0, 0}, {1, 0, 0}, {0, 0, -1}, {0, 0, 1}} {
		win.Schedule(lx+d[0], y+d[1], lz+d[2], neighborMask)
	}
	return nil
}

// GetBlock reads through pending changes.
func (w *World) GetBlock(ctx context.Context, x, y, z int) (uint32, error) {
	win, lx, lz, err := w.window(ctx, x, z)
	if err != nil {
		return 0, err
	}
	return win.Get(lx, y, lz), nil
}

func (w *World) window(ctx context.Context, x, z int) (*Window, int, int, error) {
	pos := chunk.PosOf(x, z)
	win, err := w.manager.Window(ctx, pos)
	if err != nil {
		return nil, 0, 0, err
	}
	return win, x - int(pos.X)*16, z - int(pos.Z)*16, nil
}
