package gen

import "math/rand/v2"

// Simplex is seeded 2D simplex noise in [-1, 1].
type Simplex struct {
	perm [512]uint8
}

var gradients = [8][2]float64{
	{1, 1}, {-1, 1}, {1, -1}, {-1, -1},
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
}

func NewSimplex(seed int64) *Simplex {
	var p [256]uint8
	for i := range p {
		p[i] = uint8(i)
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	rng.Shuffle(len(p), func(i, j int) { p[i], p[j] = p[j], p[i] })

	s := &Simplex{}
	for i := range s.perm {
		s.perm[i] = p[i&255]
	}
	return s
}

// At samples the noise field.
func (s *Simplex) At(x, y float64) float64 {
	const (
		f2 = 0.36602540378443864676 // (sqrt(3) - 1) / 2
		g2 = 0.21132486540518711775 // (3 - sqrt(3)) / 6
	)

	skew := (x + y) * f2
	i := floor(x + skew)
	j := floor(y + skew)
	unskew := float64(i+j) * g2
	x0 := x - (float64(i) - unskew)
	y0 := y - (float64(j) - unskew)

	i1, j1 := 0, 1
	if x0 > y0 {
		i1, j1 = 1, 0
	}

	corners := [3][2]float64{
		{x0, y0},
		{x0 - float64(i1) + g2, y0 - float64(j1) + g2},
		{x0 - 1 + 2*g2, y0 - 1 + 2*g2},
	}
	ii, jj := i&255, j&255
	hashes := [3]uint8{
		s.perm[ii+int(s.perm[jj])],
		s.perm[ii+i1+int(s.perm[jj+j1])],
		s.perm[ii+1+int(s.perm[jj+1])],
	}

	var sum float64
	for k, c := range corners {
		t := 0.5 - c[0]*c[0] - c[1]*c[1]
		if t < 0 {
			continue
		}
		t *= t
		g := gradients[hashes[k]&7]
		sum += t * t * (g[0]*c[0] + g[1]*c[1])
	}
	return 70 * sum
}

// Fractal layers octaves of the field, each at double the frequency and
// persistence times the amplitude of the previous one. The result is
// normalised back into [-1, 1].
func (s *Simplex) Fractal(x, y float64, octaves int, persistence float64) float64 {
	var total, norm float64
	freq, amp := 1.0, 1.0
	for range octaves {
		total += s.At(x*freq, y*freq) * amp
		norm += amp
		amp *= persistence
		freq *= 2
	}
	return total / norm
}

func floor(x float64) int {
	xi := int(x)
	if x < float64(xi) {
		return xi - 1
	}
	return xi
}
