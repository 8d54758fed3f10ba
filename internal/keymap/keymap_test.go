package keymap

import (
	"testing"

	"github.com/uplg/keybd/internal/action"
)

func TestActionAtWalksActiveLayersTopDown(t *testing.T) {
	m, err := New(1, 1, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.Set(0, 0, 0, action.FromAction(action.Key(action.KCA)))
	m.Set(1, 0, 0, action.FromAction(action.Transparent))
	m.Set(2, 0, 0, action.FromAction(action.Key(action.KCC)))

	if got := m.ActionAt(0, 0); got != action.Key(action.KCA) {
		t.Fatalf("want layer 0's KC_A with only layer 0 active, got %+v", got)
	}

	m.LayerOn(1)
	if got := m.ActionAt(0, 0); got != action.Key(action.KCA) {
		t.Fatalf("layer 1 is Transparent, want fallthrough to layer 0's KC_A, got %+v", got)
	}

	m.LayerOn(2)
	if got := m.ActionAt(0, 0); got != action.Key(action.KCC) {
		t.Fatalf("want layer 2's KC_C to win once active, got %+v", got)
	}

	m.LayerOff(2)
	if got := m.ActionAt(0, 0); got != action.Key(action.KCA) {
		t.Fatalf("want fallthrough back to KC_A after layer 2 deactivates, got %+v", got)
	}
}

func TestLayerZeroNeverDeactivates(t *testing.T) {
	m, err := New(1, 1, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.LayerOff(0)
	if m.ActiveLayers()&1 == 0 {
		t.Fatalf("want layer 0 to stay active regardless of LayerOff(0)")
	}
	m.LayerToggle(0)
	if m.ActiveLayers()&1 == 0 {
		t.Fatalf("want layer 0 to stay active regardless of LayerToggle(0)")
	}
}

func TestTriLayerForcesLayerOnWhenBothActive(t *testing.T) {
	m, err := New(1, 1, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Layer 0 is always active, so A=0 means the rule only ever needs
	// layer 1 to also come on to force layer 2.
	m.SetTriLayer(&TriLayer{A: 0, B: 1, C: 2})
	if m.ActiveLayers()&(1<<2) != 0 {
		t.Fatalf("want layer 2 inactive before layer 1 is on, got bitmap %016b", m.ActiveLayers())
	}

	m.LayerOn(1)
	if m.ActiveLayers()&(1<<2) == 0 {
		t.Fatalf("want layer 2 forced on once layers 0 and 1 are both active, got bitmap %016b", m.ActiveLayers())
	}

	m.LayerOff(1)
	if m.ActiveLayers()&(1<<2) != 0 {
		t.Fatalf("want layer 2 forced back off once layer 1 deactivates, got bitmap %016b", m.ActiveLayers())
	}
}

func TestParseActionVariants(t *testing.T) {
	cases := []struct {
		spec string
		want action.Action
	}{
		{"NO", action.No},
		{"TRNS", action.Transparent},
		{"KC_A", action.Key(action.KCA)},
		{"LSFT", action.Modifier(action.ModLShift)},
		{"MO(1)", action.Momentary(1)},
		{"TO_ON(2)", action.LayerOn(2)},
		{"TO_OFF(2)", action.LayerOff(2)},
		{"TG(3)", action.LayerToggle(3)},
		{"OSM(LSFT)", action.OneShot(action.Modifier(action.ModLShift))},
	}
	for _, c := range cases {
		got, err := ParseAction(c.spec)
		if err != nil {
			t.Fatalf("ParseAction(%q): %v", c.spec, err)
		}
		if got.Kind != c.want.Kind || got.Key != c.want.Key || got.Mod != c.want.Mod || got.Layer != c.want.Layer {
			t.Fatalf("ParseAction(%q) = %+v, want %+v", c.spec, got, c.want)
		}
		if c.want.Kind == action.KindOneShot {
			if got.Inner == nil || got.Inner.Kind != c.want.Inner.Kind || got.Inner.Mod != c.want.Inner.Mod {
				t.Fatalf("ParseAction(%q) inner mismatch: %+v", c.spec, got.Inner)
			}
		}
	}
}

func TestParseActionTapHold(t *testing.T) {
	got, err := ParseAction("TH(KC_A,LSFT)")
	if err != nil {
		t.Fatalf("ParseAction: %v", err)
	}
	if got.Kind != action.KindTapHold {
		t.Fatalf("want KindTapHold, got %+v", got)
	}
	if got.Tap.Kind != action.KindKey || got.Tap.Key != action.KCA {
		t.Fatalf("want tap leaf KC_A, got %+v", got.Tap)
	}
	if got.Hold.Kind != action.KindModifier || got.Hold.Mod != action.ModLShift {
		t.Fatalf("want hold leaf LSFT, got %+v", got.Hold)
	}
}

func TestParseActionRejectsUnknown(t *testing.T) {
	if _, err := ParseAction("NOT_A_REAL_ACTION"); err == nil {
		t.Fatalf("want an error for an unrecognized action spec")
	}
}
