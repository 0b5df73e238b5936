package gamedata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	versionsMu sync.RWMutex
	versions   = map[string]func() (*Registry, error){}
)

// Register makes a registry factory available under name.
func Register(name string, factory func() (*Registry, error)) {
	versionsMu.Lock()
	defer versionsMu.Unlock()
	versions[name] = factory
}

// Load builds the registry registered under name.
func Load(name string) (*Registry, error) {
	versionsMu.RLock()
	f, ok := versions[name]
	versionsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown block set: %s", name)
	}
	return f()
}

func RegisteredVersions() []string {
	versionsMu.RLock()
	defer versionsMu.RUnlock()
	names := make([]string, 0, len(versions))
	for name := range versions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// BuiltinVersion names the registry compiled into the binary.
const BuiltinVersion = "builtin"

func init() {
	Register(BuiltinVersion, Builtin)
}

// Block state files are a JSON array of {"name", "states"} objects. A
// state value is either a plain JSON value or a {"type", "value"} pair as
// found in published block state dumps.
const stateSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["name"],
    "properties": {
      "name": {"type": "string", "minLength": 1},
      "states": {
        "type": "object",
        "additionalProperties": {
          "oneOf": [
            {"type": ["string", "integer", "boolean"]},
            {
              "type": "object",
              "required": ["type", "value"],
              "properties": {
                "type": {"enum": ["byte", "int", "string", "bool"]},
                "value": {"type": ["string", "integer", "boolean"]}
              }
            }
          ]
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("blockstates.schema.json", stateSchema)
	})
	return schema, schemaErr
}

type rawState struct {
	Name   string                     `json:"name"`
	States map[string]json.RawMessage `json:"states"`
}

type typedValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// LoadFile reads a block state file into a registry.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read block states: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return r, nil
}

// Parse validates and decodes a block state document.
func Parse(data []byte) (*Registry, error) {
	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode block states: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("validate block states: %w", err)
	}

	var raw []rawState
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode block states: %w", err)
	}
	states := make([]BlockState, 0, len(raw))
	for _, rs := range raw {
		st := BlockState{Name: rs.Name}
		if len(rs.States) > 0 {
			st.Properties = make(map[string]any, len(rs.States))
			for k, v := range rs.States {
				pv, err := propertyValue(v)
				if err != nil {
					return nil, fmt.Errorf("%s.%s: %w", rs.Name, k, err)
				}
				st.Properties[k] = pv
			}
		}
		states = append(states, st)
	}
	return NewRegistry(states)
}

// propertyValue maps JSON onto the NBT tag types properties are stored as:
// byte for booleans, int32 for integers.
func propertyValue(msg json.RawMessage) (any, error) {
	var tv typedValue
	if err := json.Unmarshal(msg, &tv); err == nil && tv.Type != "" {
		switch tv.Type {
		case "byte", "bool":
			var b bool
			if json.Unmarshal(tv.Value, &b) == nil {
				return boolByte(b), nil
			}
			var n uint8
			if err := json.Unmarshal(tv.Value, &n); err != nil {
				return nil, err
			}
			return n, nil
		case "int":
			var n int32
			if err := json.Unmarshal(tv.Value, &n); err != nil {
				return nil, err
			}
			return n, nil
		default:
			var s string
			if err := json.Unmarshal(tv.Value, &s); err != nil {
				return nil, err
			}
			return s, nil
		}
	}

	var v any
	if err := json.Unmarshal(msg, &v); err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case bool:
		return boolByte(v), nil
	case float64:
		return int32(v), nil
	case string:
		return v, nil
	}
	return nil, fmt.Errorf("unsupported property value %s", msg)
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
