package gamedata_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/valaphee/tesseract-kotlin-sub001/pkg/gamedata"
	"github.com/valaphee/tesseract-kotlin-sub001/pkg/world/chunk"
)

func TestLoad_UnknownVersion(t *testing.T) {
	_, err := gamedata.Load("nonexistent-version")
	if err == nil {
		t.Fatal("expected error for unknown version, got nil")
	}
}

func TestRegisterAndLoad(t *testing.T) {
	called := false
	gamedata.Register("test-version", func() (*gamedata.Registry, error) {
		called = true
		return gamedata.Builtin()
	})

	r, err := gamedata.Load("test-version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r == nil {
		t.Fatal("expected non-nil registry")
	}
	if !called {
		t.Fatal("factory function was not called")
	}
}

func TestRegisteredVersions(t *testing.T) {
	versions := gamedata.RegisteredVersions()
	if !slices.Contains(versions, "builtin") {
		t.Fatalf("expected 'builtin' in registered versions, got %v", versions)
	}
}

func TestBuiltinLookups(t *testing.T) {
	r, err := gamedata.Builtin()
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	if r.Air() != 0 {
		t.Errorf("Air() = %d, want 0", r.Air())
	}

	stone := r.MustID("stone")
	st, ok := r.ByID(stone)
	if !ok || st.Name != gamedata.Stone {
		t.Fatalf("ByID(%d) = %v, %v", stone, st, ok)
	}

	source := r.MustID("water[liquid_depth=0]")
	thin := r.MustID("minecraft:water[liquid_depth=7]")
	if source == thin {
		t.Fatal("water depths share an id")
	}
	if _, err := r.ID("water[liquid_depth=8]"); err == nil {
		t.Error("expected error for depth 8")
	}
	if _, err := r.ID("minecraft:unobtainium"); err == nil {
		t.Error("expected error for unknown block")
	}
}

func TestBlockStatesRoundTrip(t *testing.T) {
	r, err := gamedata.Builtin()
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	var states chunk.BlockStates = r
	for _, s := range r.All() {
		bs, ok := states.StateOf(s.ID)
		if !ok {
			t.Fatalf("StateOf(%d) missing", s.ID)
		}
		id, ok := states.IDOf(bs)
		if !ok || id != s.ID {
			t.Fatalf("IDOf(%v) = %d, %v, want %d", bs, id, ok, s.ID)
		}
	}

	// Typed properties resolve to the same state as their string form.
	id, ok := states.IDOf(chunk.BlockState{Name: "minecraft:lava", Properties: map[string]any{"liquid_depth": int32(3)}})
	if !ok || id != r.MustID("lava[liquid_depth=3]") {
		t.Errorf("IDOf(lava depth 3) = %d, %v", id, ok)
	}
}

func TestParse(t *testing.T) {
	doc := `[
	  {"name": "air"},
	  {"name": "minecraft:stone", "states": {}},
	  {"name": "minecraft:button", "states": {
	    "button_pressed_bit": {"type": "byte", "value": 1},
	    "facing_direction": {"type": "int", "value": 3}
	  }},
	  {"name": "minecraft:log", "states": {"pillar_axis": "y", "stripped": false}}
	]`
	r, err := gamedata.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", r.Len())
	}
	if _, err := r.ID("button[button_pressed_bit=1,facing_direction=3]"); err != nil {
		t.Errorf("button lookup: %v", err)
	}
	if _, err := r.ID("log[pillar_axis=y,stripped=0]"); err != nil {
		t.Errorf("log lookup: %v", err)
	}
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"not an array":   `{"name": "air"}`,
		"missing name":   `[{"states": {}}]`,
		"bad state type": `[{"name": "air"}, {"name": "x", "states": {"k": {"type": "float", "value": 1}}}]`,
		"no air":         `[{"name": "stone"}]`,
		"duplicate":      `[{"name": "air"}, {"name": "stone"}, {"name": "minecraft:stone"}]`,
		"empty":          `[]`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := gamedata.Parse([]byte(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.json")
	if err := os.WriteFile(path, []byte(`[{"name":"air"},{"name":"stone"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := gamedata.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := r.MustID("stone"); got != 1 {
		t.Errorf("stone id = %d, want 1", got)
	}
	if _, err := gamedata.LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseState(t *testing.T) {
	name, props, err := gamedata.ParseState("water[liquid_depth=3]")
	if err != nil {
		t.Fatalf("ParseState: %v", err)
	}
	if name != gamedata.Water || props["liquid_depth"] != "3" {
		t.Errorf("ParseState = %q %v", name, props)
	}
	for _, bad := range []string{"", "water[liquid_depth=3", "water[liquid_depth]"} {
		if _, _, err := gamedata.ParseState(bad); err == nil {
			t.Errorf("ParseState(%q) should fail", bad)
		}
	}
}
