package gen

import (
	"math"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/gamedata"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

const (
	seaLevel  = 62
	minHeight = 6
	maxHeight = chunk.Height - 6
	// fillerDepth is how many blocks of dirt (or sand) sit under the top.
	fillerDepth = 5
)

// DefaultGenerator shapes a height map from fractal noise and covers it
// with stone, a few blocks of filler and a surface block. Low columns are
// flooded up to sea level.
type DefaultGenerator struct {
	height  *Simplex
	climate climate

	air, stone, dirt, grass, sand, bedrock, water uint32
}

func NewDefaultGenerator(seed int64, blocks *gamedata.Registry) *DefaultGenerator {
	return &DefaultGenerator{
		height:  NewSimplex(seed),
		climate: newClimate(seed),
		air:     blocks.Air(),
		stone:   blocks.MustID(gamedata.Stone),
		dirt:    blocks.MustID(gamedata.Dirt),
		grass:   blocks.MustID(gamedata.Grass),
		sand:    blocks.MustID(gamedata.Sand),
		bedrock: blocks.MustID(gamedata.Bedrock),
		water:   blocks.MustID(gamedata.Water + "[liquid_depth=0]"),
	}
}

func (g *DefaultGenerator) Generate(pos chunk.Pos) *chunk.BlockStorage {
	s := chunk.NewBlockStorage(g.air)
	bx, bz := int(pos.X)*16, int(pos.Z)*16
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			height := g.HeightAt(bx+x, bz+z)
			top, filler := g.surface(g.climate.biomeAt(bx+x, bz+z, height))

			s.Set(x, 0, z, g.bedrock)
			for y := 1; y < height-fillerDepth; y++ {
				s.Set(x, y, z, g.stone)
			}
			for y := max(1, height-fillerDepth); y < height; y++ {
				s.Set(x, y, z, filler)
			}
			if height < seaLevel {
				top = filler
			}
			s.Set(x, height, z, top)
			for y := height + 1; y <= seaLevel; y++ {
				s.Set(x, y, z, g.water)
			}
		}
	}
	return s
}

// HeightAt cubes the normalised noise so most terrain stays low with
// occasional tall peaks.
func (g *DefaultGenerator) HeightAt(blockX, blockZ int) int {
	n := (g.height.Fractal(float64(blockX)/512, float64(blockZ)/512, 6, 0.5) + 1) / 2
	h := int(math.Pow(n, 3) * 512)
	return min(max(h, minHeight), maxHeight)
}

func (g *DefaultGenerator) Biome(blockX, blockZ int) byte {
	return g.climate.biomeAt(blockX, blockZ, g.HeightAt(blockX, blockZ))
}

func (g *DefaultGenerator) surface(biome byte) (top, filler uint32) {
	switch biome {
	case biomeDesert, biomeBeach, biomeOcean:
		return g.sand, g.sand
	default:
		return g.grass, g.dirt
	}
}
