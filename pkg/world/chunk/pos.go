package chunk

import "fmt"

// Pos identifies a chunk column by its X and Z chunk coordinates.
type Pos struct{ X, Z int32 }

// PosOf returns the column containing block (x, z).
func PosOf(blockX, blockZ int) Pos {
	return Pos{X: int32(blockX >> 4), Z: int32(blockZ >> 4)}
}

// Key packs p into a map key. The encoding is reversible for every int32 pair.
func (p Pos) Key() uint64 {
	return uint64(uint32(p.X))<<32 | uint64(uint32(p.Z))
}

// PosFromKey reverses Key.
func PosFromKey(k uint64) Pos {
	return Pos{X: int32(uint32(k >> 32)), Z: int32(uint32(k))}
}

// Add offsets p by dx, dz chunks.
func (p Pos) Add(dx, dz int32) Pos {
	return Pos{X: p.X + dx, Z: p.Z + dz}
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Z)
}

// LocalKey packs chunk-local block coordinates as x<<12 | z<<8 | y.
func LocalKey(x, y, z int) uint16 {
	return uint16(x<<12 | z<<8 | y)
}

// LocalPos reverses LocalKey.
func LocalPos(k uint16) (x, y, z int) {
	return int(k>>12) & 0xF, int(k) & 0xFF, int(k>>8) & 0xF
}
