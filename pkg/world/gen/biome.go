package gen

// Biome ids as sent in the chunk biome array.
const (
	biomeOcean      byte = 0
	biomePlains     byte = 1
	biomeDesert     byte = 2
	biomeMountains  byte = 3 // extreme hills
	biomeForest     byte = 4
	biomeTaiga      byte = 5
	biomeTundra     byte = 12
	biomeBeach      byte = 16
	biomeJungle     byte = 21
	biomeDarkForest byte = 29
	biomeSnowyTaiga byte = 30
	biomeSavanna    byte = 35
)

// climate picks biomes from temperature and rainfall fields.
type climate struct {
	temperature *Simplex
	rainfall    *Simplex
}

func newClimate(seed int64) climate {
	return climate{
		temperature: NewSimplex(seed + 100),
		rainfall:    NewSimplex(seed + 200),
	}
}

// biomeAt classifies a column. Columns under water are ocean, columns just
// above the waterline are beach.
func (c climate) biomeAt(bx, bz, height int) byte {
	switch {
	case height < seaLevel-4:
		return biomeOcean
	case height <= seaLevel+1:
		return biomeBeach
	}
	tx, tz := float64(bx)/512, float64(bz)/512
	temp := c.temperature.Fractal(tx, tz, 4, 0.5)*0.8 + 0.75
	rain := c.rainfall.Fractal(tx+100, tz+100, 4, 0.5)*0.5 + 0.5
	return selectBiome(temp, rain)
}

// selectBiome maps temperature and rainfall to a biome:
//
//	Temp\Rain     | Dry (<0.3)  | Medium (0.3-0.6) | Wet (>0.6)
//	Cold <0.3     | Tundra      | Snowy Taiga      | Taiga
//	Mild 0.3-0.7  | Plains      | Forest           | Dark Forest
//	Warm 0.7-1.2  | Savanna     | Plains           | Jungle
//	Hot >1.2      | Desert      | Desert           | Jungle
func selectBiome(temp, rain float64) byte {
	table := [4][3]byte{
		{biomeTundra, biomeSnowyTaiga, biomeTaiga},
		{biomePlains, biomeForest, biomeDarkForest},
		{biomeSavanna, biomePlains, biomeJungle},
		{biomeDesert, biomeDesert, biomeJungle},
	}
	row := 3
	switch {
	case temp < 0.3:
		row = 0
	case temp < 0.7:
		row = 1
	case temp < 1.2:
		row = 2
	}
	col := 2
	switch {
	case rain < 0.3:
		col = 0
	case rain < 0.6:
		col = 1
	}
	return table[row][col]
}
