package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/config"
	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/conn"
	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/storage"
	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/viewer"
	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/world"
	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/world/provider"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/gamedata"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/gen"
)

// Server hosts one world and serves viewers over websockets.
type Server struct {
	cfg      *config.Config
	log      *slog.Logger
	blocks   *gamedata.Registry
	storage  *storage.Storage
	provider world.Provider
	world    *world.World
	viewers  *viewer.Manager
	handler  *conn.Handler
}

// New builds the server from cfg. Nothing runs until Start.
func New(cfg *config.Config, log *slog.Logger) (*Server, error) {
	blocks, err := loadBlocks(cfg.BlockData)
	if err != nil {
		return nil, err
	}
	generator, err := gen.New(cfg.Generator, cfg.Seed, cfg.FlatLayers, blocks)
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}
	compression, err := provider.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(filepath.Join(cfg.DataDir, cfg.WorldName), log)
	if err != nil {
		return nil, err
	}
	if err := checkWorldConfig(store, cfg); err != nil {
		return nil, err
	}

	p, err := provider.Open(provider.Options{
		Kind:  cfg.Provider,
		Dir:   store.WorldDir(),
		Codec: provider.Codec{States: blocks, Air: blocks.Air(), Compression: compression},
		Meta:  store,
		Log:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s provider: %w", cfg.Provider, err)
	}

	w := world.New(log, p, generator, blocks, world.Options{
		Name:         cfg.WorldName,
		Seed:         cfg.Seed,
		TickInterval: time.Second / time.Duration(cfg.TickRate),
	})
	viewers := viewer.NewManager(log, w.Manager(), blocks, cfg.ViewDistance)

	return &Server{
		cfg:      cfg,
		log:      log,
		blocks:   blocks,
		storage:  store,
		provider: p,
		world:    w,
		viewers:  viewers,
		handler:  conn.NewHandler(log, w, viewers, blocks, conn.Options{Radius: cfg.ViewDistance, BlobCache: cfg.BlobCache}),
	}, nil
}

func loadBlocks(path string) (*gamedata.Registry, error) {
	if path == "" {
		return gamedata.Load(gamedata.BuiltinVersion)
	}
	blocks, err := gamedata.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load block data: %w", err)
	}
	return blocks, nil
}

// checkWorldConfig refuses to open a world with settings that change how
// its chunks were written, then records the current settings.
func checkWorldConfig(store *storage.Storage, cfg *config.Config) error {
	saved := &config.Config{}
	if err := store.LoadConfig(saved); err != nil {
		return err
	}
	if saved.Provider != "" && saved.Provider != cfg.Provider {
		return fmt.Errorf("world %s was created with provider %s, not %s", cfg.WorldName, saved.Provider, cfg.Provider)
	}
	if saved.Generator != "" && (saved.Generator != cfg.Generator || saved.Seed != cfg.Seed) {
		return fmt.Errorf("world %s was created with generator %s seed %d", cfg.WorldName, saved.Generator, saved.Seed)
	}
	return store.SaveConfig(cfg)
}

func (s *Server) World() *world.World { return s.world }

func (s *Server) Viewers() *viewer.Manager { return s.viewers }

// Handler returns the HTTP handler serving websocket sessions.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.handler)
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})
	return mux
}

// Start runs the world and the HTTP listener until ctx is cancelled, then
// saves the world and closes the provider.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.log.Info("server started",
		"addr", listener.Addr().String(),
		"world", s.cfg.WorldName,
		"provider", s.cfg.Provider,
		"generator", s.cfg.Generator,
		"seed", s.cfg.Seed,
		"blocks", s.blocks.Len(),
	)

	worldCtx, stopWorld := context.WithCancel(ctx)
	defer stopWorld()
	worldDone := make(chan error, 1)
	go func() { worldDone <- s.world.Run(worldCtx) }()

	httpSrv := &http.Server{
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	httpDone := make(chan error, 1)
	go func() { httpDone <- httpSrv.Serve(listener) }()

	var runErr error
	select {
	case <-ctx.Done():
		s.log.Info("server shutting down")
	case err := <-worldDone:
		runErr = fmt.Errorf("world stopped: %w", err)
		worldDone = nil
	case err := <-httpDone:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("serve http: %w", err)
		}
		httpDone = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("http shutdown", "error", err)
	}

	stopWorld()
	if worldDone != nil {
		if err := <-worldDone; err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	if err := s.provider.Close(); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("close provider: %w", err))
	}
	return runErr
}
