package gamedata

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// BlockState is one fully specified block variant.
type BlockState struct {
	ID         uint32
	Name       string
	Properties map[string]any
}

// String renders the state as name[key=value,...] with sorted keys.
func (s BlockState) String() string {
	return stateKey(s.Name, s.Properties)
}

// stateKey is the canonical lookup key for a state. Booleans and bytes
// collapse to the same form so NBT byte properties match boolean ones.
func stateKey(name string, properties map[string]any) string {
	if len(properties) == 0 {
		return name
	}
	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(propertyString(properties[k]))
	}
	b.WriteByte(']')
	return b.String()
}

func propertyString(v any) string {
	switch v := v.(type) {
	case bool:
		if v {
			return "1"
		}
		return "0"
	case uint8:
		return strconv.Itoa(int(v))
	case int8:
		return strconv.Itoa(int(v))
	case int16:
		return strconv.Itoa(int(v))
	case int32:
		return strconv.Itoa(int(v))
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// ParseState splits "name[key=value,...]" into a name and string-valued
// properties. A name without a namespace gets "minecraft:".
func ParseState(s string) (string, map[string]any, error) {
	name, rest, hasProps := strings.Cut(s, "[")
	name = qualify(strings.TrimSpace(name))
	if name == "" {
		return "", nil, fmt.Errorf("empty block name in %q", s)
	}
	if !hasProps {
		return name, nil, nil
	}
	rest, ok := strings.CutSuffix(rest, "]")
	if !ok {
		return "", nil, fmt.Errorf("unterminated properties in %q", s)
	}
	props := make(map[string]any)
	for _, kv := range strings.Split(rest, ",") {
		if kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return "", nil, fmt.Errorf("malformed property %q in %q", kv, s)
		}
		props[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return name, props, nil
}

func qualify(name string) string {
	if name == "" || strings.Contains(name, ":") {
		return name
	}
	return "minecraft:" + name
}
