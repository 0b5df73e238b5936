package gen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/gamedata"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

// DefaultFlatLayers is the classic superflat column.
const DefaultFlatLayers = "bedrock,2*stone,dirt,grass"

// FlatGenerator repeats one column everywhere. The column is described
// bottom-up as comma-separated block states, each optionally prefixed by a
// count ("3*dirt"). Anything after a ';' sets the biome id.
type FlatGenerator struct {
	air    uint32
	column []uint32
	biome  byte
}

func NewFlatGenerator(layers string, blocks *gamedata.Registry) (*FlatGenerator, error) {
	if layers == "" {
		layers = DefaultFlatLayers
	}
	g := &FlatGenerator{air: blocks.Air(), biome: biomePlains}

	spec, biome, hasBiome := strings.Cut(layers, ";")
	if hasBiome {
		b, err := strconv.ParseUint(strings.TrimSpace(biome), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("parse flat biome %q: %w", biome, err)
		}
		g.biome = byte(b)
	}

	for _, layer := range strings.Split(spec, ",") {
		layer = strings.TrimSpace(layer)
		if layer == "" {
			continue
		}
		count := 1
		if n, state, ok := strings.Cut(layer, "*"); ok {
			c, err := strconv.Atoi(n)
			if err != nil || c < 1 {
				return nil, fmt.Errorf("parse flat layer %q: bad count", layer)
			}
			count, layer = c, state
		}
		// Unknown states become air so a layer string from a newer block
		// set still loads.
		id, err := blocks.ID(layer)
		if err != nil {
			id = blocks.Air()
		}
		for range count {
			g.column = append(g.column, id)
		}
	}
	if len(g.column) > chunk.Height {
		return nil, fmt.Errorf("flat column is %d blocks, max %d", len(g.column), chunk.Height)
	}
	return g, nil
}

func (g *FlatGenerator) Generate(chunk.Pos) *chunk.BlockStorage {
	s := chunk.NewBlockStorage(g.air)
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			for y, id := range g.column {
				if id != g.air {
					s.Set(x, y, z, id)
				}
			}
		}
	}
	return s
}

func (g *FlatGenerator) HeightAt(_, _ int) int {
	for y := len(g.column) - 1; y >= 0; y-- {
		if g.column[y] != g.air {
			return y
		}
	}
	return 0
}

func (g *FlatGenerator) Biome(_, _ int) byte {
	return g.biome
}
