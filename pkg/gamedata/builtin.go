package gamedata

// Block names used by generators and block behaviours.
const (
	Stone       = "minecraft:stone"
	Grass       = "minecraft:grass"
	Dirt        = "minecraft:dirt"
	Cobblestone = "minecraft:cobblestone"
	Bedrock     = "minecraft:bedrock"
	Sand        = "minecraft:sand"
	Gravel      = "minecraft:gravel"
	Water       = "minecraft:water"
	Lava        = "minecraft:lava"
	Log         = "minecraft:log"
	Leaves      = "minecraft:leaves"
	Glass       = "minecraft:glass"
	Sandstone   = "minecraft:sandstone"
	Snow        = "minecraft:snow"
	Ice         = "minecraft:ice"
	Clay        = "minecraft:clay"
)

// LiquidDepthKey is the liquid level property. 0 is a source block.
const LiquidDepthKey = "liquid_depth"

// MaxLiquidDepth is the thinnest liquid level.
const MaxLiquidDepth = 7

// Builtin is the block set the server ships with when no state file is
// configured.
func Builtin() (*Registry, error) {
	states := []BlockState{{Name: AirName}}
	for _, name := range []string{
		Stone, Grass, Dirt, Cobblestone, Bedrock, Sand, Gravel,
		Log, Leaves, Glass, Sandstone, Snow, Ice, Clay,
	} {
		states = append(states, BlockState{Name: name})
	}
	for _, name := range []string{Water, Lava} {
		for depth := int32(0); depth <= MaxLiquidDepth; depth++ {
			states = append(states, BlockState{
				Name:       name,
				Properties: map[string]any{LiquidDepthKey: depth},
			})
		}
	}
	return NewRegistry(states)
}
