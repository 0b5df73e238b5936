package gamedata

import (
	"fmt"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

// AirName is the block every registry must contain.
const AirName = "minecraft:air"

// Registry is an immutable table of block states. Runtime ids are the
// positions of the states in the table it was built from.
type Registry struct {
	states []BlockState
	index  map[string]uint32
	air    uint32
}

// NewRegistry assigns runtime ids in order and indexes the states.
func NewRegistry(states []BlockState) (*Registry, error) {
	r := &Registry{
		states: make([]BlockState, len(states)),
		index:  make(map[string]uint32, len(states)),
	}
	airFound := false
	for i, s := range states {
		s.Name = qualify(s.Name)
		s.ID = uint32(i)
		key := stateKey(s.Name, s.Properties)
		if _, dup := r.index[key]; dup {
			return nil, fmt.Errorf("duplicate block state %s", key)
		}
		r.index[key] = s.ID
		r.states[i] = s
		if s.Name == AirName && len(s.Properties) == 0 && !airFound {
			r.air = s.ID
			airFound = true
		}
	}
	if !airFound {
		return nil, fmt.Errorf("registry has no %s", AirName)
	}
	return r, nil
}

func (r *Registry) Air() uint32 { return r.air }

func (r *Registry) Len() int { return len(r.states) }

func (r *Registry) ByID(id uint32) (BlockState, bool) {
	if int(id) >= len(r.states) {
		return BlockState{}, false
	}
	return r.states[id], true
}

// Lookup finds the state with the given name and exact property set.
func (r *Registry) Lookup(name string, properties map[string]any) (BlockState, bool) {
	id, ok := r.index[stateKey(qualify(name), properties)]
	if !ok {
		return BlockState{}, false
	}
	return r.states[id], true
}

// ID resolves a state written as "name[key=value,...]".
func (r *Registry) ID(s string) (uint32, error) {
	name, props, err := ParseState(s)
	if err != nil {
		return 0, err
	}
	st, ok := r.Lookup(name, props)
	if !ok {
		return 0, fmt.Errorf("unknown block state %s", s)
	}
	return st.ID, nil
}

// MustID is ID for ids the server cannot run without.
func (r *Registry) MustID(s string) uint32 {
	id, err := r.ID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// All returns the states in id order.
func (r *Registry) All() []BlockState {
	out := make([]BlockState, len(r.states))
	copy(out, r.states)
	return out
}

// StateOf implements chunk.BlockStates.
func (r *Registry) StateOf(id uint32) (chunk.BlockState, bool) {
	s, ok := r.ByID(id)
	if !ok {
		return chunk.BlockState{}, false
	}
	props := s.Properties
	if props == nil {
		props = map[string]any{}
	}
	return chunk.BlockState{Name: s.Name, Properties: props}, true
}

// IDOf implements chunk.BlockStates.
func (r *Registry) IDOf(state chunk.BlockState) (uint32, bool) {
	id, ok := r.index[stateKey(qualify(state.Name), state.Properties)]
	return id, ok
}
