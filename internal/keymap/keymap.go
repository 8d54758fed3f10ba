// Package keymap implements the layered keymap lookup: a
// [layer][row][col] array of KeyAction plus an active-layer bitmap, the
// tri-layer rule, and a cooperative-mutex cell for sharing the map with a
// configuration adapter.
package keymap

import (
	"fmt"

	"github.com/uplg/keybd/internal/action"
	"github.com/uplg/keybd/internal/errs"
)

// Compile-time capacity bounds. A real board's Rows/Cols/NumLayers are
// fixed at New() time and never exceed these; they stand in for the
// microcontroller target's compile-time constants.
const (
	MaxLayers = 8
	MaxRows   = 8
	MaxCols   = 16
)

// TriLayer names the three layers in the "A+B => C" rule: when layers A
// and B are both active, layer C is forced on; otherwise it is forced off.
type TriLayer struct {
	A, B, C uint8
}

// Map is the [layer][row][col] keymap plus the active-layer bitmap.
// Layer 0 is always active and must resolve every position to a concrete
// (non-Transparent) action; callers that violate this will simply see
// action.No returned from positions layer 0 leaves Transparent.
type Map struct {
	Rows      int
	Cols      int
	NumLayers int

	layers [MaxLayers][MaxRows][MaxCols]action.KeyAction
	active uint16 // bit i set iff layer i is active

	triLayer *TriLayer
}

// New creates an empty Map of the given dimensions, with layer 0 active
// and every position defaulting to action.No (not Transparent, so layer 0
// trivially satisfies the "always resolves" invariant until populated).
func New(rows, cols, numLayers int) (*Map, error) {
	if rows <= 0 || rows > MaxRows {
		return nil, fmt.Errorf("keymap: rows %d out of range (1..%d): %w", rows, MaxRows, errs.ErrConfiguration)
	}
	if cols <= 0 || cols > MaxCols {
		return nil, fmt.Errorf("keymap: cols %d out of range (1..%d): %w", cols, MaxCols, errs.ErrConfiguration)
	}
	if numLayers <= 0 || numLayers > MaxLayers {
		return nil, fmt.Errorf("keymap: layers %d out of range (1..%d): %w", numLayers, MaxLayers, errs.ErrConfiguration)
	}
	m := &Map{Rows: rows, Cols: cols, NumLayers: numLayers, active: 1}
	for l := 0; l < numLayers; l++ {
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				m.layers[l][r][c] = action.FromAction(action.No)
			}
		}
	}
	return m, nil
}

// Set binds a KeyAction at (layer, row, col).
func (m *Map) Set(layer, row, col int, ka action.KeyAction) error {
	if err := m.checkBounds(layer, row, col); err != nil {
		return err
	}
	m.layers[layer][row][col] = ka
	return nil
}

func (m *Map) checkBounds(layer, row, col int) error {
	if layer < 0 || layer >= m.NumLayers {
		return fmt.Errorf("keymap: layer %d out of range: %w", layer, errs.ErrConfiguration)
	}
	if row < 0 || row >= m.Rows {
		return fmt.Errorf("keymap: row %d out of range: %w", row, errs.ErrConfiguration)
	}
	if col < 0 || col >= m.Cols {
		return fmt.Errorf("keymap: col %d out of range: %w", col, errs.ErrConfiguration)
	}
	return nil
}

// ActionAt implements the lookup rule in spec.md section 4.2: walk the active
// layers from highest down to 0, the first non-Transparent binding wins.
func (m *Map) ActionAt(row, col int) action.Action {
	if row < 0 || row >= m.Rows || col < 0 || col >= m.Cols {
		return action.No
	}
	for l := m.NumLayers - 1; l >= 0; l-- {
		if m.active&(1<<uint(l)) == 0 {
			continue
		}
		ka := m.layers[l][row][col]
		if ka.IsTransparent() {
			continue
		}
		return ka.Flatten()
	}
	return action.No
}

// ActionAtLayer returns the flattened Action bound at a specific layer,
// bypassing the active-layer walk. Used by the storage codec, which
// persists every layer's bindings regardless of which are active.
func (m *Map) ActionAtLayer(layer, row, col int) action.Action {
	if layer < 0 || layer >= m.NumLayers || row < 0 || row >= m.Rows || col < 0 || col >= m.Cols {
		return action.No
	}
	return m.layers[layer][row][col].Flatten()
}

// ActiveLayers returns the current active-layer bitmap, bit i set iff
// layer i is active.
func (m *Map) ActiveLayers() uint16 {
	return m.active
}

// TopActiveLayer returns the highest-numbered active layer, used by combo
// layer restriction.
func (m *Map) TopActiveLayer() uint8 {
	for l := m.NumLayers - 1; l >= 0; l-- {
		if m.active&(1<<uint(l)) != 0 {
			return uint8(l)
		}
	}
	return 0
}

// LayerOn activates layer, leaving others untouched.
func (m *Map) LayerOn(layer uint8) {
	if int(layer) >= m.NumLayers {
		return
	}
	m.active |= 1 << layer
	m.applyTriLayer()
}

// LayerOff deactivates layer. Layer 0 is never deactivated: it is the
// base layer and must always resolve every position.
func (m *Map) LayerOff(layer uint8) {
	if layer == 0 || int(layer) >= m.NumLayers {
		return
	}
	m.active &^= 1 << layer
	m.applyTriLayer()
}

// LayerToggle flips layer's active bit.
func (m *Map) LayerToggle(layer uint8) {
	if layer == 0 || int(layer) >= m.NumLayers {
		return
	}
	m.active ^= 1 << layer
	m.applyTriLayer()
}

// SetTriLayer installs (or clears, with nil) the tri-layer rule and
// immediately re-evaluates it against the current active-layer bitmap.
func (m *Map) SetTriLayer(t *TriLayer) {
	m.triLayer = t
	m.applyTriLayer()
}

// applyTriLayer enforces "after any layer state change, if layers a and b
// are both on, force c on; else force c off."
func (m *Map) applyTriLayer() {
	if m.triLayer == nil {
		return
	}
	aOn := m.active&(1<<m.triLayer.A) != 0
	bOn := m.active&(1<<m.triLayer.B) != 0
	if aOn && bOn {
		m.active |= 1 << m.triLayer.C
	} else {
		m.active &^= (1 << m.triLayer.C)
	}
}
