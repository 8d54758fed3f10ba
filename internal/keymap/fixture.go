package keymap

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/uplg/keybd/internal/action"
	"github.com/uplg/keybd/internal/errs"
)

// fixtureDoc is the on-disk YAML shape for a development keymap, modeled
// on the teacher's layout.go YAML layouts: human-authored, loaded once at
// boot, parsed into the compact runtime Map.
type fixtureDoc struct {
	Rows      int          `yaml:"rows"`
	Cols      int          `yaml:"cols"`
	TriLayer  []uint8      `yaml:"tri_layer,omitempty"`
	Layers    [][][]string `yaml:"layers"`
}

// LoadFixture reads a YAML keymap file and builds a Map from it. Each cell
// string is parsed by ParseAction; see that function's doc for syntax.
func LoadFixture(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keymap: reading fixture %s: %w", path, err)
	}

	var doc fixtureDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("keymap: parsing fixture %s: %w", path, err)
	}
	return buildFromDoc(doc)
}

func buildFromDoc(doc fixtureDoc) (*Map, error) {
	numLayers := len(doc.Layers)
	m, err := New(doc.Rows, doc.Cols, numLayers)
	if err != nil {
		return nil, err
	}

	for l, rows := range doc.Layers {
		if len(rows) != doc.Rows {
			return nil, fmt.Errorf("keymap: layer %d has %d rows, want %d: %w", l, len(rows), doc.Rows, errs.ErrConfiguration)
		}
		for r, cols := range rows {
			if len(cols) != doc.Cols {
				return nil, fmt.Errorf("keymap: layer %d row %d has %d cols, want %d: %w", l, r, len(cols), doc.Cols, errs.ErrConfiguration)
			}
			for c, spec := range cols {
				a, err := ParseAction(spec)
				if err != nil {
					return nil, fmt.Errorf("keymap: layer %d row %d col %d: %w", l, r, c, err)
				}
				if err := m.Set(l, r, c, action.FromAction(a)); err != nil {
					return nil, err
				}
			}
		}
	}

	if len(doc.TriLayer) == 3 {
		m.SetTriLayer(&TriLayer{A: doc.TriLayer[0], B: doc.TriLayer[1], C: doc.TriLayer[2]})
	} else if len(doc.TriLayer) != 0 {
		return nil, fmt.Errorf("keymap: tri_layer must have exactly 3 entries, got %d: %w", len(doc.TriLayer), errs.ErrConfiguration)
	}

	return m, nil
}

var modifierNames = map[string]action.ModifierMask{
	"LCTL": action.ModLCtrl, "LCTRL": action.ModLCtrl,
	"LSFT": action.ModLShift, "LSHIFT": action.ModLShift,
	"LALT": action.ModLAlt,
	"LGUI": action.ModLGui, "LCMD": action.ModLGui, "LWIN": action.ModLGui,
	"RCTL": action.ModRCtrl, "RCTRL": action.ModRCtrl,
	"RSFT": action.ModRShift, "RSHIFT": action.ModRShift,
	"RALT": action.ModRAlt,
	"RGUI": action.ModRGui, "RCMD": action.ModRGui, "RWIN": action.ModRGui,
}

// ParseAction parses the QMK-inspired string syntax used by fixture YAML
// and by tests:
//
//	NO, TRNS                     -- action.No / action.Transparent
//	KC_A, KC_ENTER, ...           -- action.Key
//	LSFT, RCTL, ...               -- action.Modifier
//	MO(n)                        -- action.Momentary
//	TO_ON(n), TO_OFF(n), TG(n)    -- LayerOn / LayerOff / LayerToggle
//	DF(n)                        -- default-layer set (no-op on this core)
//	TH(tap,hold)                 -- action.TapHold, tap/hold parsed recursively
//	OSM(mod)                     -- action.OneShot wrapping a Modifier
func ParseAction(spec string) (action.Action, error) {
	spec = strings.TrimSpace(spec)
	switch spec {
	case "", "NO":
		return action.No, nil
	case "TRNS":
		return action.Transparent, nil
	}

	if mod, ok := modifierNames[spec]; ok {
		return action.Modifier(mod), nil
	}
	if kc, ok := action.KeyCodeByName(spec); ok {
		return action.Key(kc), nil
	}

	if name, arg, ok := splitCall(spec); ok {
		switch name {
		case "MO":
			n, err := parseLayer(arg)
			if err != nil {
				return action.Action{}, err
			}
			return action.Momentary(n), nil
		case "TO_ON":
			n, err := parseLayer(arg)
			if err != nil {
				return action.Action{}, err
			}
			return action.LayerOn(n), nil
		case "TO_OFF":
			n, err := parseLayer(arg)
			if err != nil {
				return action.Action{}, err
			}
			return action.LayerOff(n), nil
		case "TG":
			n, err := parseLayer(arg)
			if err != nil {
				return action.Action{}, err
			}
			return action.LayerToggle(n), nil
		case "DF":
			n, err := parseLayer(arg)
			if err != nil {
				return action.Action{}, err
			}
			return action.Action{Kind: action.KindDefaultLayer, Layer: n}, nil
		case "OSM":
			inner, err := ParseAction(arg)
			if err != nil {
				return action.Action{}, err
			}
			return action.OneShot(inner), nil
		case "TH":
			tapSpec, holdSpec, ok := splitArgs(arg)
			if !ok {
				return action.Action{}, fmt.Errorf("keymap: TH(...) needs two args, got %q: %w", arg, errs.ErrConfiguration)
			}
			tap, err := ParseAction(tapSpec)
			if err != nil {
				return action.Action{}, err
			}
			hold, err := ParseAction(holdSpec)
			if err != nil {
				return action.Action{}, err
			}
			return action.TapHold(tap, hold), nil
		}
	}

	return action.Action{}, fmt.Errorf("keymap: unrecognized action %q: %w", spec, errs.ErrConfiguration)
}

// splitCall splits "NAME(arg)" into ("NAME", "arg", true).
func splitCall(spec string) (name, arg string, ok bool) {
	open := strings.IndexByte(spec, '(')
	if open < 0 || !strings.HasSuffix(spec, ")") {
		return "", "", false
	}
	return spec[:open], spec[open+1 : len(spec)-1], true
}

// splitArgs splits a top-level comma-separated two-argument list, respecting
// nested parentheses (so "TH(KC_A,LSFT)" inside an outer call still splits
// correctly).
func splitArgs(s string) (first, second string, ok bool) {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
			}
		}
	}
	return "", "", false
}

func parseLayer(arg string) (uint8, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 0 || n >= MaxLayers {
		return 0, fmt.Errorf("keymap: invalid layer %q: %w", arg, errs.ErrConfiguration)
	}
	return uint8(n), nil
}
