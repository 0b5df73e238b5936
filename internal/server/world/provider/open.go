package provider

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/config"
	"github.com/valaphee/tesseract-kotlin-sub001/internal/server/world"
)

// Options selects and configures a provider.
type Options struct {
	Kind  string
	Dir   string
	Codec Codec
	Meta  WorldStore
	// Log receives provider warnings. Nil uses slog.Default.
	Log *slog.Logger
}

// Open returns the provider named by opts.Kind.
func Open(opts Options) (world.Provider, error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	switch opts.Kind {
	case config.ProviderMemory:
		return NewMemory(opts.Codec), nil
	case config.ProviderLevelDB:
		return OpenLevelDB(filepath.Join(opts.Dir, "db"), opts.Codec, opts.Meta)
	case config.ProviderSQLite:
		return OpenSQLite(filepath.Join(opts.Dir, "chunks.sqlite"), opts.Codec)
	case config.ProviderRegion:
		return OpenRegion(filepath.Join(opts.Dir, "region"), opts.Codec, opts.Meta, log)
	}
	return nil, fmt.Errorf("unknown provider %q", opts.Kind)
}
