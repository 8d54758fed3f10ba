// Package report assembles the 6-key-rollover HID keyboard report: the
// modifier byte plus up to six simultaneously pressed keycodes, in press
// order, with duplicate-consecutive-report suppression.
package report

import "github.com/uplg/keybd/internal/action"

// RolloverErrorKeyCode is the USB HID "ErrorRollOver" usage ID (0x01),
// sent in every keycode slot when more than six non-modifier keys are
// held and the overflow policy is configured to report an error rather
// than silently keep the oldest six.
const RolloverErrorKeyCode = 0x01

// Report is the 8-byte HID keyboard report: modifiers + 6 keycodes, plus
// the host-to-device LED state mirrored back for adapters that want it.
type Report struct {
	Modifiers uint8
	Keycodes  [6]uint8
	LEDs      uint8
}

// Assembler owns the rollover buffer of currently pressed non-modifier
// keycodes, in press order, and builds a fresh Report on every state
// change. Modifiers are supplied by the caller at Build time: the
// processor is the single source of truth for which modifiers are
// active (explicit, tap-hold holds, pending one-shot).
type Assembler struct {
	pressed         []action.KeyCode
	overflowAllOnes bool
	leds            uint8

	last    Report
	hasLast bool
}

// NewAssembler creates an Assembler. overflowAllOnes selects the
// rollover-error reporting policy for more than six held keys; the
// default (false) keeps the six oldest keys instead.
func NewAssembler(overflowAllOnes bool) *Assembler {
	return &Assembler{overflowAllOnes: overflowAllOnes}
}

// Press adds kc to the rollover buffer if it is not already pressed.
func (a *Assembler) Press(kc action.KeyCode) {
	for _, k := range a.pressed {
		if k == kc {
			return
		}
	}
	a.pressed = append(a.pressed, kc)
}

// Release removes kc from the rollover buffer.
func (a *Assembler) Release(kc action.KeyCode) {
	for i, k := range a.pressed {
		if k == kc {
			a.pressed = append(a.pressed[:i], a.pressed[i+1:]...)
			return
		}
	}
}

// SetLEDs records the host-controlled LED state for inclusion in the
// next built Report.
func (a *Assembler) SetLEDs(leds uint8) {
	a.leds = leds
}

// Pressed returns the keycodes currently held, in press order.
func (a *Assembler) Pressed() []action.KeyCode {
	return a.pressed
}

// Build assembles a Report from the current rollover buffer and the
// given modifier byte, and reports whether it differs from the last
// built Report (duplicate consecutive reports are suppressed upstream
// by the processor checking this flag before sending).
func (a *Assembler) Build(modifiers uint8) (Report, bool) {
	var r Report
	r.Modifiers = modifiers
	r.LEDs = a.leds

	n := len(a.pressed)
	switch {
	case n > 6 && a.overflowAllOnes:
		for i := range r.Keycodes {
			r.Keycodes[i] = RolloverErrorKeyCode
		}
	case n > 6:
		for i := 0; i < 6; i++ {
			r.Keycodes[i] = uint8(a.pressed[i])
		}
	default:
		for i := 0; i < n; i++ {
			r.Keycodes[i] = uint8(a.pressed[i])
		}
	}

	changed := !a.hasLast || r != a.last
	a.last = r
	a.hasLast = true
	return r, changed
}
