package gen

import (
	"fmt"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/gamedata"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

// Generator produces terrain deterministically. It is total: every
// position yields a column.
type Generator interface {
	Generate(pos chunk.Pos) *chunk.BlockStorage
	// HeightAt returns the y of the topmost solid block in the column.
	HeightAt(blockX, blockZ int) int
	// Biome returns the biome id of the column.
	Biome(blockX, blockZ int) byte
}

// Biomes fills the 256 biome bytes of a chunk, indexed z*16+x.
func Biomes(g Generator, pos chunk.Pos) [256]byte {
	var out [256]byte
	bx, bz := int(pos.X)*16, int(pos.Z)*16
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			out[z*16+x] = g.Biome(bx+x, bz+z)
		}
	}
	return out
}

// New builds the generator named by kind. layers only applies to "flat".
func New(kind string, seed int64, layers string, blocks *gamedata.Registry) (Generator, error) {
	switch kind {
	case "", "default":
		return NewDefaultGenerator(seed, blocks), nil
	case "flat":
		return NewFlatGenerator(layers, blocks)
	default:
		return nil, fmt.Errorf("unknown generator %q", kind)
	}
}
