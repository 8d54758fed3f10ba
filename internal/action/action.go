// Package action defines the leaf data model shared by the keymap and the
// keyboard processor: Action (what a key position does), KeyAction (how an
// Action binds at a position), and the modifier/layer bit types both
// operate on.
package action

// ModifierMask is the same 8-bit layout as the HID report's modifier byte:
// bit 0 LCtrl, 1 LShift, 2 LAlt, 3 LGui, 4 RCtrl, 5 RShift, 6 RAlt, 7 RGui.
type ModifierMask uint8

const (
	ModLCtrl  ModifierMask = 1 << 0
	ModLShift ModifierMask = 1 << 1
	ModLAlt   ModifierMask = 1 << 2
	ModLGui   ModifierMask = 1 << 3
	ModRCtrl  ModifierMask = 1 << 4
	ModRShift ModifierMask = 1 << 5
	ModRAlt   ModifierMask = 1 << 6
	ModRGui   ModifierMask = 1 << 7
)

// Has reports whether every bit in sub is set in m.
func (m ModifierMask) Has(sub ModifierMask) bool {
	return m&sub == sub
}

// IsModifierKeyCode reports whether kc corresponds to one of the eight
// HID modifier usage IDs (0xE0-0xE7), so the report assembler can route it
// to the modifier byte instead of the keycode array.
func IsModifierKeyCode(kc KeyCode) bool {
	return kc >= 0xE0 && kc <= 0xE7
}

// Kind discriminates the Action variants named in the data model.
type Kind uint8

const (
	KindNo Kind = iota
	KindTransparent
	KindKey
	KindModifier
	KindLayerOn
	KindLayerOff
	KindLayerToggle
	KindMomentary
	KindTapHold
	KindOneShot
	// KindDefaultLayer sets the persistent base layer. Carried from
	// original_source/rmk's Action::DF for wire-format completeness; the
	// core treats it as a no-op since persistent-layer storage is out of
	// scope (see SPEC_FULL.md section 3).
	KindDefaultLayer
)

// Action is a leaf behavior bound to one key position. Only TapHold and
// OneShot ever populate Tap/Hold/Inner, and never more than one level deep
// in practice (a TapHold's own tap/hold actions are themselves leaves).
type Action struct {
	Kind  Kind
	Key   KeyCode
	Mod   ModifierMask
	Layer uint8

	Tap  *Action // KindTapHold
	Hold *Action // KindTapHold
	Inner *Action // KindOneShot
}

// No is the canonical "does nothing" action, returned when no layer
// provides a concrete binding for a position.
var No = Action{Kind: KindNo}

// Transparent is the canonical "fall through to the next layer" action.
var Transparent = Action{Kind: KindTransparent}

// Key builds a KindKey action.
func Key(kc KeyCode) Action { return Action{Kind: KindKey, Key: kc} }

// Modifier builds a KindModifier action.
func Modifier(m ModifierMask) Action { return Action{Kind: KindModifier, Mod: m} }

// LayerOn builds a KindLayerOn action.
func LayerOn(layer uint8) Action { return Action{Kind: KindLayerOn, Layer: layer} }

// LayerOff builds a KindLayerOff action.
func LayerOff(layer uint8) Action { return Action{Kind: KindLayerOff, Layer: layer} }

// LayerToggle builds a KindLayerToggle action.
func LayerToggle(layer uint8) Action { return Action{Kind: KindLayerToggle, Layer: layer} }

// Momentary builds a KindMomentary action.
func Momentary(layer uint8) Action { return Action{Kind: KindMomentary, Layer: layer} }

// TapHold builds a KindTapHold action from two leaf actions.
func TapHold(tap, hold Action) Action {
	t, h := tap, hold
	return Action{Kind: KindTapHold, Tap: &t, Hold: &h}
}

// OneShot builds a KindOneShot action wrapping a leaf action (typically a
// Modifier, but the data model does not restrict it).
func OneShot(inner Action) Action {
	in := inner
	return Action{Kind: KindOneShot, Inner: &in}
}

// IsModifierAction reports whether the action, once resolved, contributes
// to the report's modifier byte rather than its keycode array.
func (a Action) IsModifierAction() bool {
	return a.Kind == KindModifier || (a.Kind == KindKey && IsModifierKeyCode(a.Key))
}

// KeyAction is how an Action binds at one key position. The keymap stores
// KeyAction values; the processor flattens each to a plain Action per
// event. Single-tap is the primary binding; HoldAlt/DoubleTap let a
// position expose a distinct behavior on long-press or rapid double-tap
// without the tap-hold press/release machinery of a KindTapHold leaf
// (which already covers the binary tap-vs-hold decision on its own).
type KeyAction struct {
	Tap Action

	// HoldAlt and DoubleTap are optional secondary bindings; Kind ==
	// KindNo means "not set, fall back to Tap".
	HoldAlt   Action
	DoubleTap Action
}

// FromAction wraps a bare Action as a single-tap-only KeyAction.
func FromAction(a Action) KeyAction { return KeyAction{Tap: a} }

// IsTransparent reports whether this position falls through to the next
// active layer, per the KeyMap lookup rule.
func (ka KeyAction) IsTransparent() bool {
	return ka.Tap.Kind == KindTransparent
}

// Flatten resolves a KeyAction to the single Action the processor should
// act on for a fresh key press. HoldAlt/DoubleTap are available for an
// adapter that implements tap-dance timing on top of this core; the
// processor's own tap-hold engine acts on KindTapHold actions directly.
func (ka KeyAction) Flatten() Action {
	return ka.Tap
}
