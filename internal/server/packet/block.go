package packet

// Block update flags.
const (
	FlagNeighbors uint32 = 1 << iota
	FlagNetwork
	FlagNonVisual
	FlagPriority

	FlagAll = FlagNeighbors | FlagNetwork
)

// BlockUpdate replaces one block on the client (clientbound 0x15).
type BlockUpdate struct {
	X         int32  `wire:"varint"`
	Y         uint32 `wire:"varuint"`
	Z         int32  `wire:"varint"`
	RuntimeID uint32 `wire:"varuint"`
	Flags     uint32 `wire:"varuint"`
	Layer     uint32 `wire:"varuint"`
}

func (BlockUpdate) PacketID() uint32 { return IDBlockUpdate }

// NewBlockUpdate builds the update for a committed world coordinate.
func NewBlockUpdate(x, y, z int, id uint32) *BlockUpdate {
	return &BlockUpdate{
		X:         int32(x),
		Y:         uint32(y),
		Z:         int32(z),
		RuntimeID: id,
		Flags:     FlagAll,
	}
}
