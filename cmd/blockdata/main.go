// Command blockdata downloads a block state table and checks that the
// server can load it.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	get "github.com/hashicorp/go-getter"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/gamedata"
)

func main() {
	var (
		base     = flag.String("base", "https://github.com/PrismarineJS/minecraft-data.git", "base url")
		platform = flag.String("platform", "bedrock", "platform of the data")
		ver      = flag.String("version", "1.21.50", "game version")
		file     = flag.String("file", "blockStates.json", "block state file inside the version directory")
		out      = flag.String("o", "./blockstates.json", "output file")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(log, *base, *platform, *ver, *file, *out); err != nil {
		log.Error("fetch block data", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, base, platform, ver, file, out string) error {
	if out == "" || platform == "" || ver == "" {
		return fmt.Errorf("output, platform and version are required")
	}

	tmp, err := os.MkdirTemp("", "blockdata")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)
	dir := filepath.Join(tmp, platform+"-"+ver)

	url := fmt.Sprintf("git::%s//data/%s/%s", base, platform, ver)
	log.Info("downloading", "url", url)
	if err := get.Get(dir, url); err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}

	src := filepath.Join(dir, file)
	reg, err := gamedata.LoadFile(src)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	log.Info("done", "states", reg.Len(), "path", out)
	return nil
}
