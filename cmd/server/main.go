package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/valaphee/tesseract-kotlin-sub001/internal/server"
	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/config"
)

func main() {
	cfg := config.DefaultConfig()
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")

	flag.StringVar(&cfg.Listen, "listen", cfg.Listen, "HTTP listen address")
	flag.StringVar(&cfg.DataDir, "data", cfg.DataDir, "data directory")
	flag.StringVar(&cfg.WorldName, "world", cfg.WorldName, "world name")
	flag.StringVar(&cfg.Provider, "provider", cfg.Provider, "chunk provider: memory, leveldb, sqlite or region")
	flag.StringVar(&cfg.Compression, "compression", cfg.Compression, "chunk record compression: none, snappy or lz4")
	flag.StringVar(&cfg.Generator, "generator", cfg.Generator, "world generator: default or flat")
	flag.StringVar(&cfg.FlatLayers, "flat-layers", cfg.FlatLayers, "flat generator layers, bottom up")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "world seed")
	flag.IntVar(&cfg.ViewDistance, "view-distance", cfg.ViewDistance, "maximum view distance in chunks")
	flag.IntVar(&cfg.TickRate, "tick-rate", cfg.TickRate, "world cycles per second")
	flag.StringVar(&cfg.BlockData, "block-data", cfg.BlockData, "block state file, empty for the builtin set")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	flag.BoolVar(&cfg.BlobCache, "blob-cache", cfg.BlobCache, "let clients use cached chunks")
	flag.Parse()

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fromFile, ok, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if ok {
		config.Merge(cfg, fromFile, explicit)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.Level()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	if ok {
		log.Info("loaded config from file", "path", *configPath)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Error("create server", "error", err)
		os.Exit(1)
	}
	if err := srv.Start(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
