package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/config"
	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/world"
)

const (
	configFile = "config.yaml"
	worldFile  = "level.json.zst"
)

// Storage handles file-based persistence for config and world metadata.
// Chunk data lives next to it in the provider's own files.
type Storage struct {
	dir string
	log *slog.Logger
}

// New creates a new Storage rooted at dir, creating subdirectories as needed.
func New(dir string, log *slog.Logger) (*Storage, error) {
	dirs := []string{
		dir,
		filepath.Join(dir, "world"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	return &Storage{dir: dir, log: log.With("component", "storage")}, nil
}

// WorldDir is where providers keep chunk data.
func (s *Storage) WorldDir() string {
	return filepath.Join(s.dir, "world")
}

// LoadConfig reads config.yaml into cfg. If the file does not exist, cfg is unchanged.
func (s *Storage) LoadConfig(cfg *config.Config) error {
	path := filepath.Join(s.dir, configFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	s.log.Info("loaded config from file", "path", path)
	return nil
}

// SaveConfig writes cfg to config.yaml atomically.
func (s *Storage) SaveConfig(cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return atomicWrite(filepath.Join(s.dir, configFile), data)
}

// LoadWorld reads the world snapshot, or returns nil if none was saved.
func (s *Storage) LoadWorld() (*world.WorldData, error) {
	path := filepath.Join(s.WorldDir(), worldFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open world data: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open zstd reader: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompress world data: %w", err)
	}
	var wd world.WorldData
	if err := json.Unmarshal(data, &wd); err != nil {
		return nil, fmt.Errorf("parse world data: %w", err)
	}
	return &wd, nil
}

// SaveWorld writes the world snapshot atomically.
func (s *Storage) SaveWorld(wd *world.WorldData) error {
	data, err := json.MarshalIndent(wd, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal world data: %w", err)
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	_, werr := enc.Write(data)
	if err := errors.Join(werr, enc.Close()); err != nil {
		return fmt.Errorf("compress world data: %w", err)
	}

	if err := atomicWrite(filepath.Join(s.WorldDir(), worldFile), buf.Bytes()); err != nil {
		return err
	}
	s.log.Debug("saved world data", "cycle", wd.Cycle)
	return nil
}

// atomicWrite writes data using a temp file + rename.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
