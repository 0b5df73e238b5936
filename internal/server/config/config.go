package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider kinds.
const (
	ProviderMemory  = "memory"
	ProviderLevelDB = "leveldb"
	ProviderSQLite  = "sqlite"
	ProviderRegion  = "region"
)

// Config holds the server configuration.
type Config struct {
	Listen       string `yaml:"listen" json:"listen"`
	DataDir      string `yaml:"data_dir" json:"data_dir"`
	WorldName    string `yaml:"world_name" json:"world_name"`
	Provider     string `yaml:"provider" json:"provider"`       // memory, leveldb, sqlite or region
	Compression  string `yaml:"compression" json:"compression"` // none, snappy or lz4
	Generator    string `yaml:"generator" json:"generator"`     // default or flat
	FlatLayers   string `yaml:"flat_layers" json:"flat_layers"`
	Seed         int64  `yaml:"seed" json:"seed"`
	ViewDistance int    `yaml:"view_distance" json:"view_distance"`
	TickRate     int    `yaml:"tick_rate" json:"tick_rate"` // cycles per second
	BlockData    string `yaml:"block_data" json:"block_data"`   // registry file, empty for the builtin table
	LogLevel     string `yaml:"log_level" json:"log_level"`
	BlobCache    bool   `yaml:"blob_cache" json:"blob_cache"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:       ":19132",
		DataDir:      "data",
		WorldName:    "world",
		Provider:     ProviderLevelDB,
		Compression:  "snappy",
		Generator:    "default",
		FlatLayers:   "bedrock,2*stone,dirt,grass",
		ViewDistance: 8,
		TickRate:     20,
		LogLevel:     "info",
	}
}

// Load reads a YAML config file on top of the defaults. A missing file
// returns the defaults and ok == false.
func Load(path string) (cfg *Config, ok bool, err error) {
	cfg = DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, false, nil
		}
		return nil, false, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, false, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, true, nil
}

// Merge applies file-loaded config values into cfg, but only for fields
// that were NOT explicitly set via CLI flags. explicitFlags contains the
// flag names that were explicitly provided on the command line.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	if !explicitFlags["listen"] {
		cfg.Listen = fromFile.Listen
	}
	if !explicitFlags["data"] {
		cfg.DataDir = fromFile.DataDir
	}
	if !explicitFlags["world"] {
		cfg.WorldName = fromFile.WorldName
	}
	if !explicitFlags["provider"] {
		cfg.Provider = fromFile.Provider
	}
	if !explicitFlags["compression"] {
		cfg.Compression = fromFile.Compression
	}
	if !explicitFlags["generator"] {
		cfg.Generator = fromFile.Generator
	}
	if !explicitFlags["flat-layers"] {
		cfg.FlatLayers = fromFile.FlatLayers
	}
	if !explicitFlags["seed"] {
		cfg.Seed = fromFile.Seed
	}
	if !explicitFlags["view-distance"] {
		cfg.ViewDistance = fromFile.ViewDistance
	}
	if !explicitFlags["tick-rate"] {
		cfg.TickRate = fromFile.TickRate
	}
	if !explicitFlags["block-data"] {
		cfg.BlockData = fromFile.BlockData
	}
	if !explicitFlags["log-level"] {
		cfg.LogLevel = fromFile.LogLevel
	}
	if !explicitFlags["blob-cache"] {
		cfg.BlobCache = fromFile.BlobCache
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderMemory, ProviderLevelDB, ProviderSQLite, ProviderRegion:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	switch c.Compression {
	case "none", "snappy", "lz4":
	default:
		return fmt.Errorf("unknown compression %q", c.Compression)
	}
	switch c.Generator {
	case "", "default", "flat":
	default:
		return fmt.Errorf("unknown generator %q", c.Generator)
	}
	if c.Provider != ProviderMemory && c.DataDir == "" {
		return errors.New("data_dir is required for persistent providers")
	}
	if c.ViewDistance < 1 || c.ViewDistance > 32 {
		return fmt.Errorf("view_distance %d out of range [1, 32]", c.ViewDistance)
	}
	if c.TickRate < 1 || c.TickRate > 1000 {
		return fmt.Errorf("tick_rate %d out of range [1, 1000]", c.TickRate)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
