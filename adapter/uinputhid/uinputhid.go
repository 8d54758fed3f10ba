// Package uinputhid drives a virtual USB keyboard via
// github.com/bendahl/uinput, translating assembled report.Report values
// into uinput key-down/key-up calls. Adapted from the teacher's
// internal/keyboard/output.go.
package uinputhid

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bendahl/uinput"

	"github.com/uplg/keybd/internal/action"
	"github.com/uplg/keybd/internal/chanutil"
	"github.com/uplg/keybd/internal/report"
)

// usageToUinput maps a subset of USB HID usage IDs to bendahl/uinput's
// Linux keycode constants, covering the keymap fixture's KC_* vocabulary.
var usageToUinput = map[action.KeyCode]int{
	action.KCA: uinput.KeyA, action.KCB: uinput.KeyB, action.KCC: uinput.KeyC,
	action.KCD: uinput.KeyD, action.KCE: uinput.KeyE, action.KCF: uinput.KeyF,
	action.KCG: uinput.KeyG, action.KCH: uinput.KeyH, action.KCI: uinput.KeyI,
	action.KCJ: uinput.KeyJ, action.KCK: uinput.KeyK, action.KCL: uinput.KeyL,
	action.KCM: uinput.KeyM, action.KCN: uinput.KeyN, action.KCO: uinput.KeyO,
	action.KCP: uinput.KeyP, action.KCQ: uinput.KeyQ, action.KCR: uinput.KeyR,
	action.KCS: uinput.KeyS, action.KCT: uinput.KeyT, action.KCU: uinput.KeyU,
	action.KCV: uinput.KeyV, action.KCW: uinput.KeyW, action.KCX: uinput.KeyX,
	action.KCY: uinput.KeyY, action.KCZ: uinput.KeyZ,

	action.KC1: uinput.Key1, action.KC2: uinput.Key2, action.KC3: uinput.Key3,
	action.KC4: uinput.Key4, action.KC5: uinput.Key5, action.KC6: uinput.Key6,
	action.KC7: uinput.Key7, action.KC8: uinput.Key8, action.KC9: uinput.Key9,
	action.KC0: uinput.Key0,

	action.KCEnter: uinput.KeyEnter, action.KCEsc: uinput.KeyEsc,
	action.KCBackspace: uinput.KeyBackspace, action.KCTab: uinput.KeyTab,
	action.KCSpace: uinput.KeySpace, action.KCMinus: uinput.KeyMinus,
	action.KCEqual: uinput.KeyEqual, action.KCLBracket: uinput.KeyLeftbrace,
	action.KCRBracket: uinput.KeyRightbrace, action.KCCapsLock: uinput.KeyCapslock,

	action.KCF1: uinput.KeyF1, action.KCF2: uinput.KeyF2, action.KCF3: uinput.KeyF3,
	action.KCF4: uinput.KeyF4, action.KCF5: uinput.KeyF5, action.KCF6: uinput.KeyF6,
	action.KCF7: uinput.KeyF7, action.KCF8: uinput.KeyF8, action.KCF9: uinput.KeyF9,
	action.KCF10: uinput.KeyF10, action.KCF11: uinput.KeyF11, action.KCF12: uinput.KeyF12,

	action.KCRight: uinput.KeyRight, action.KCLeft: uinput.KeyLeft,
	action.KCDown: uinput.KeyDown, action.KCUp: uinput.KeyUp,
}

var modifierToUinput = []struct {
	bit action.ModifierMask
	key int
}{
	{action.ModLCtrl, uinput.KeyLeftctrl},
	{action.ModLShift, uinput.KeyLeftshift},
	{action.ModLAlt, uinput.KeyLeftalt},
	{action.ModLGui, uinput.KeyLeftmeta},
	{action.ModRCtrl, uinput.KeyRightctrl},
	{action.ModRShift, uinput.KeyRightshift},
	{action.ModRAlt, uinput.KeyRightalt},
	{action.ModRGui, uinput.KeyRightmeta},
}

// Writer drives a virtual keyboard, holding just enough state (which
// usage codes and modifier bits are currently down on the OS side) to
// translate one report.Report into the minimal set of key-down/key-up
// calls that reconciles it with the previous report.
type Writer struct {
	keyboard uinput.Keyboard
	down     map[int]bool
	logger   *slog.Logger
}

// NewWriter creates a virtual keyboard named name (visible to userspace
// as the device's product string, mirroring the teacher's
// "asahi-map-virtual" convention).
func NewWriter(name string, logger *slog.Logger) (*Writer, error) {
	kb, err := uinput.CreateKeyboard("/dev/uinput", []byte(name))
	if err != nil {
		return nil, fmt.Errorf("uinputhid: creating virtual keyboard: %w", err)
	}
	return &Writer{keyboard: kb, down: make(map[int]bool), logger: logger}, nil
}

// Close releases the virtual keyboard device.
func (w *Writer) Close() error {
	return w.keyboard.Close()
}

// Apply reconciles the OS-visible key state with r: releases whatever is
// down but not in r, then presses whatever is in r but not already down.
// Releasing first avoids transiently exceeding the host's own rollover
// limit when one key is swapped for another in the same report.
func (w *Writer) Apply(r report.Report) error {
	want := make(map[int]bool, 7)
	for _, bit := range modifierToUinput {
		if action.ModifierMask(r.Modifiers)&bit.bit != 0 {
			want[bit.key] = true
		}
	}
	for _, kc := range r.Keycodes {
		if kc == 0 {
			continue
		}
		if uk, ok := usageToUinput[action.KeyCode(kc)]; ok {
			want[uk] = true
		}
	}

	for uk := range w.down {
		if !want[uk] {
			if err := w.keyboard.KeyUp(uk); err != nil {
				return fmt.Errorf("uinputhid: key up %d: %w", uk, err)
			}
			delete(w.down, uk)
		}
	}
	for uk := range want {
		if !w.down[uk] {
			if err := w.keyboard.KeyDown(uk); err != nil {
				return fmt.Errorf("uinputhid: key down %d: %w", uk, err)
			}
			w.down[uk] = true
		}
	}
	return nil
}

// Run drains reports from in and applies each until ctx is cancelled.
func (w *Writer) Run(ctx context.Context, in *chanutil.Bounded[report.Report]) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-in.C():
			if err := w.Apply(r); err != nil {
				w.logger.Error("uinputhid: applying report", "error", err)
			}
		}
	}
}
