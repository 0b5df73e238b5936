package conn

import "encoding/json"

// Text frames carry JSON commands and replies. Binary frames carry
// protocol packets.
const (
	TypeHello    = "hello"
	TypeWelcome  = "welcome"
	TypeMove     = "move"
	TypeRadius   = "radius"
	TypeSetBlock = "set_block"
	TypeGetBlock = "get_block"
	TypeBlock    = "block"
	TypeError    = "error"
)

// Command is a client request.
type Command struct {
	Type string `json:"type"`

	// hello
	Name      string `json:"name,omitempty"`
	BlobCache bool   `json:"blob_cache,omitempty"`

	// hello and radius
	Radius int `json:"radius,omitempty"`

	// move, set_block and get_block
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`

	// set_block, as a block state string like "water[liquid_depth=3]".
	Block string `json:"block,omitempty"`
}

// Reply is a server response on the text channel.
type Reply struct {
	Type string `json:"type"`

	ID        string `json:"id,omitempty"`
	Radius    int    `json:"radius,omitempty"`
	BlobCache bool   `json:"blob_cache,omitempty"`

	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
	Block string `json:"block,omitempty"`

	Error string `json:"error,omitempty"`
}

func decodeCommand(msg []byte) (Command, error) {
	var cmd Command
	err := json.Unmarshal(msg, &cmd)
	return cmd, err
}
