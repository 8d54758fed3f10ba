package engine

import (
	"testing"
	"time"

	"github.com/uplg/keybd/internal/action"
	"github.com/uplg/keybd/internal/config"
	"github.com/uplg/keybd/internal/keymap"
	"github.com/uplg/keybd/internal/scan"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return epoch.Add(d) }

func newMap(t *testing.T, rows, cols int, set func(*keymap.Map)) *keymap.Cell {
	t.Helper()
	m, err := keymap.New(rows, cols, 2)
	if err != nil {
		t.Fatalf("keymap.New: %v", err)
	}
	set(m)
	return keymap.NewCell(m)
}

func press(row, col int, ts time.Time) scan.KeyEvent {
	return scan.KeyEvent{Row: row, Col: col, Pressed: true, Timestamp: ts}
}

func release(row, col int, ts time.Time) scan.KeyEvent {
	return scan.KeyEvent{Row: row, Col: col, Pressed: false, Timestamp: ts}
}

func TestTapResolvesOnQuickRelease(t *testing.T) {
	cfg := config.DefaultBehaviorConfig()
	cell := newMap(t, 2, 4, func(m *keymap.Map) {
		m.Set(0, 0, 0, action.FromAction(action.TapHold(action.Key(action.KCA), action.Modifier(action.ModLCtrl))))
	})
	p := NewProcessor(cell, 2, 4, cfg, nil, nil)

	if reports := p.HandleEvent(press(0, 0, at(0))); reports != nil {
		t.Fatalf("press should buffer, got reports: %+v", reports)
	}
	reports := p.HandleEvent(release(0, 0, at(50*time.Millisecond)))
	if len(reports) != 2 {
		t.Fatalf("want 2 reports (press+release), got %d: %+v", len(reports), reports)
	}
	if reports[0].Keycodes[0] != uint8(action.KCA) {
		t.Fatalf("want KC_A in first report, got %+v", reports[0])
	}
	if reports[1].Keycodes[0] != 0 || reports[1].Modifiers != 0 {
		t.Fatalf("want empty release report, got %+v", reports[1])
	}
	if len(p.pressingKeys) != 0 {
		t.Fatalf("resolved tap-hold should leave no pressingKeys entry, got %d", len(p.pressingKeys))
	}
}

func TestHoldResolvesAfterTimeout(t *testing.T) {
	cfg := config.DefaultBehaviorConfig()
	cell := newMap(t, 2, 4, func(m *keymap.Map) {
		m.Set(0, 0, 0, action.FromAction(action.TapHold(action.Key(action.KCA), action.Modifier(action.ModLCtrl))))
	})
	p := NewProcessor(cell, 2, 4, cfg, nil, nil)

	p.HandleEvent(press(0, 0, at(0)))
	reports := p.Tick(at(cfg.TapHold.HoldTimeout + time.Millisecond))
	if len(reports) != 1 {
		t.Fatalf("want 1 report on hold resolution, got %d: %+v", len(reports), reports)
	}
	if reports[0].Modifiers != uint8(action.ModLCtrl) {
		t.Fatalf("want LCtrl modifier, got %08b", reports[0].Modifiers)
	}

	reports = p.HandleEvent(release(0, 0, at(cfg.TapHold.HoldTimeout+2*time.Millisecond)))
	if len(reports) != 1 || reports[0].Modifiers != 0 {
		t.Fatalf("want modifier cleared on release, got %+v", reports)
	}

	// The resolved entry should linger in pressingKeys for PostWaitTime,
	// then be reaped.
	if len(p.pressingKeys) != 1 {
		t.Fatalf("want 1 post-release entry pending grace period, got %d", len(p.pressingKeys))
	}
	p.Tick(at(cfg.TapHold.HoldTimeout + 2*time.Millisecond + cfg.TapHold.PostWaitTime + time.Millisecond))
	if len(p.pressingKeys) != 0 {
		t.Fatalf("post-release entry should be reaped after PostWaitTime, got %d", len(p.pressingKeys))
	}
}

func TestPermissiveHold(t *testing.T) {
	cfg := config.DefaultBehaviorConfig()
	cfg.TapHold.PermissiveHold = true
	cell := newMap(t, 2, 4, func(m *keymap.Map) {
		m.Set(0, 0, 0, action.FromAction(action.TapHold(action.Key(action.KCA), action.Modifier(action.ModLCtrl))))
		m.Set(0, 0, 1, action.FromAction(action.Key(action.KCB)))
	})
	p := NewProcessor(cell, 2, 4, cfg, nil, nil)

	p.HandleEvent(press(0, 0, at(0)))
	if reports := p.HandleEvent(press(0, 1, at(10*time.Millisecond))); reports != nil {
		t.Fatalf("buffered tapping press should not report, got %+v", reports)
	}
	if reports := p.HandleEvent(release(0, 1, at(20*time.Millisecond))); reports != nil {
		t.Fatalf("tapping release while owner pending should not report yet, got %+v", reports)
	}

	reports := p.HandleEvent(release(0, 0, at(30*time.Millisecond)))
	// hold-press, KC_B press (with LCtrl held), KC_B release (LCtrl still
	// held), hold release.
	if len(reports) != 4 {
		t.Fatalf("want 4 reports from permissive hold resolution, got %d: %+v", len(reports), reports)
	}
	if reports[0].Modifiers != uint8(action.ModLCtrl) || reports[0].Keycodes[0] != 0 {
		t.Fatalf("want bare LCtrl press first, got %+v", reports[0])
	}
	if reports[1].Modifiers != uint8(action.ModLCtrl) || reports[1].Keycodes[0] != uint8(action.KCB) {
		t.Fatalf("want LCtrl+KC_B, got %+v", reports[1])
	}
	if reports[2].Modifiers != uint8(action.ModLCtrl) || reports[2].Keycodes[0] != 0 {
		t.Fatalf("want LCtrl alone after KC_B release, got %+v", reports[2])
	}
	if reports[3].Modifiers != 0 {
		t.Fatalf("want modifiers cleared at the end, got %+v", reports[3])
	}
}

func TestChordalHoldCrossHandFiresImmediately(t *testing.T) {
	cfg := config.DefaultBehaviorConfig()
	cfg.TapHold.ChordalHold = true
	// cols(4) > rows(2): split left/right by column, cols 0-1 left, 2-3 right.
	cell := newMap(t, 2, 4, func(m *keymap.Map) {
		m.Set(0, 0, 0, action.FromAction(action.TapHold(action.Key(action.KCA), action.Modifier(action.ModLCtrl))))
		m.Set(0, 0, 2, action.FromAction(action.Key(action.KCC)))
	})
	p := NewProcessor(cell, 2, 4, cfg, nil, nil)

	p.HandleEvent(press(0, 0, at(0)))
	reports := p.HandleEvent(press(0, 2, at(5*time.Millisecond)))
	if len(reports) != 2 {
		t.Fatalf("want hold-press then KC_C-with-modifier, got %d: %+v", len(reports), reports)
	}
	if reports[0].Modifiers != uint8(action.ModLCtrl) || reports[0].Keycodes[0] != 0 {
		t.Fatalf("want bare LCtrl from chordal hold, got %+v", reports[0])
	}
	if reports[1].Keycodes[0] != uint8(action.KCC) || reports[1].Modifiers != uint8(action.ModLCtrl) {
		t.Fatalf("want LCtrl+KC_C, got %+v", reports[1])
	}
}

func TestChordalHoldSameHandBuffers(t *testing.T) {
	cfg := config.DefaultBehaviorConfig()
	cfg.TapHold.ChordalHold = true
	cell := newMap(t, 2, 4, func(m *keymap.Map) {
		m.Set(0, 0, 0, action.FromAction(action.TapHold(action.Key(action.KCA), action.Modifier(action.ModLCtrl))))
		m.Set(0, 0, 1, action.FromAction(action.Key(action.KCB)))
	})
	p := NewProcessor(cell, 2, 4, cfg, nil, nil)

	p.HandleEvent(press(0, 0, at(0)))
	if reports := p.HandleEvent(press(0, 1, at(5*time.Millisecond))); reports != nil {
		t.Fatalf("same-hand press should buffer instead of firing chordal hold, got %+v", reports)
	}

	reports := p.HandleEvent(release(0, 0, at(10*time.Millisecond)))
	if len(reports) != 3 {
		t.Fatalf("want tap-press, tap-release, replayed KC_B press, got %d: %+v", len(reports), reports)
	}
	if reports[0].Keycodes[0] != uint8(action.KCA) {
		t.Fatalf("want KC_A tap, got %+v", reports[0])
	}
	if reports[2].Keycodes[0] != uint8(action.KCB) {
		t.Fatalf("want KC_B replayed still down, got %+v", reports[2])
	}

	// The still-held KC_B must release cleanly: this is the path the
	// replayTapping state-tagging fix guards against leaving stuck.
	reports = p.HandleEvent(release(0, 1, at(20*time.Millisecond)))
	if len(reports) != 1 || reports[0].Keycodes[0] != 0 {
		t.Fatalf("want KC_B to release, got %+v", reports)
	}
}

func TestCombo(t *testing.T) {
	cfg := config.DefaultBehaviorConfig()
	cell := newMap(t, 1, 2, func(m *keymap.Map) {
		m.Set(0, 0, 0, action.FromAction(action.Key(action.KCA)))
		m.Set(0, 0, 1, action.FromAction(action.Key(action.KCB)))
	})
	combo := action.Combo{
		Actions: [action.MaxComboMembers]action.Action{action.Key(action.KCA), action.Key(action.KCB)},
		Count:   2,
		Output:  action.Key(action.KCC),
	}
	p := NewProcessor(cell, 1, 2, cfg, []action.Combo{combo}, nil)

	if reports := p.HandleEvent(press(0, 0, at(0))); reports != nil {
		t.Fatalf("first combo member should just buffer, got %+v", reports)
	}
	reports := p.HandleEvent(press(0, 1, at(10*time.Millisecond)))
	if len(reports) != 1 || reports[0].Keycodes[0] != uint8(action.KCC) {
		t.Fatalf("want combo output KC_C, got %+v", reports)
	}

	reports = p.HandleEvent(release(0, 0, at(20*time.Millisecond)))
	if reports != nil {
		t.Fatalf("releasing one member shouldn't release output yet, got %+v", reports)
	}
	reports = p.HandleEvent(release(0, 1, at(30*time.Millisecond)))
	if len(reports) != 1 || reports[0].Keycodes[0] != 0 {
		t.Fatalf("releasing last member should release combo output, got %+v", reports)
	}
}

func TestComboAbandonedOnTimeoutReplaysBufferedPress(t *testing.T) {
	cfg := config.DefaultBehaviorConfig()
	cell := newMap(t, 1, 2, func(m *keymap.Map) {
		m.Set(0, 0, 0, action.FromAction(action.Key(action.KCA)))
		m.Set(0, 0, 1, action.FromAction(action.Key(action.KCB)))
	})
	combo := action.Combo{
		Actions: [action.MaxComboMembers]action.Action{action.Key(action.KCA), action.Key(action.KCB)},
		Count:   2,
		Output:  action.Key(action.KCC),
	}
	p := NewProcessor(cell, 1, 2, cfg, []action.Combo{combo}, nil)

	p.HandleEvent(press(0, 0, at(0)))
	reports := p.Tick(at(cfg.Combo.Timeout + time.Millisecond))
	if len(reports) != 1 || reports[0].Keycodes[0] != uint8(action.KCA) {
		t.Fatalf("want abandoned combo to replay KC_A press, got %+v", reports)
	}
}

func TestHRMSuppressesAutoResolveAfterFastRoll(t *testing.T) {
	cfg := config.DefaultBehaviorConfig()
	cfg.TapHold.EnableHRM = true
	cell := newMap(t, 1, 2, func(m *keymap.Map) {
		m.Set(0, 0, 0, action.FromAction(action.Key(action.KCA)))
		m.Set(0, 0, 1, action.FromAction(action.TapHold(action.Key(action.KCB), action.Modifier(action.ModLCtrl))))
	})
	p := NewProcessor(cell, 1, 2, cfg, nil, nil)

	p.HandleEvent(press(0, 0, at(0)))
	p.HandleEvent(release(0, 0, at(10*time.Millisecond)))

	// The tap-hold key is pressed immediately after that release, inside
	// PriorIdleTime: HRM should suppress auto-resolve-to-hold at Tick.
	p.HandleEvent(press(0, 1, at(20*time.Millisecond)))
	if reports := p.Tick(at(cfg.TapHold.HoldTimeout + 50*time.Millisecond)); reports != nil {
		t.Fatalf("HRM should suppress tick auto-resolve, got %+v", reports)
	}

	reports := p.HandleEvent(release(0, 1, at(cfg.TapHold.HoldTimeout+60*time.Millisecond)))
	if len(reports) != 2 || reports[0].Keycodes[0] != uint8(action.KCB) {
		t.Fatalf("want a plain tap once released despite exceeding hold timeout, got %+v", reports)
	}
}

func TestForkUnderHeldModifier(t *testing.T) {
	cfg := config.DefaultBehaviorConfig()
	cfg.Forks = []action.Fork{{
		Trigger:     action.Key(action.KCA),
		Default:     action.Key(action.KCB),
		Alternative: action.Key(action.KCC),
		Condition:   action.ModLShift,
	}}
	cell := newMap(t, 1, 2, func(m *keymap.Map) {
		m.Set(0, 0, 0, action.FromAction(action.Modifier(action.ModLShift)))
		m.Set(0, 0, 1, action.FromAction(action.Key(action.KCA)))
	})
	p := NewProcessor(cell, 1, 2, cfg, nil, nil)

	reports := p.HandleEvent(press(0, 1, at(0)))
	if len(reports) != 1 || reports[0].Keycodes[0] != uint8(action.KCB) {
		t.Fatalf("without LShift held, fork should take Default KC_B, got %+v", reports)
	}
	p.HandleEvent(release(0, 1, at(1*time.Millisecond)))

	p.HandleEvent(press(0, 0, at(2*time.Millisecond)))
	reports = p.HandleEvent(press(0, 1, at(3*time.Millisecond)))
	if len(reports) != 1 || reports[0].Keycodes[0] != uint8(action.KCC) {
		t.Fatalf("with LShift held, fork should take Alternative KC_C, got %+v", reports)
	}

	// Release should mirror whichever branch fired, not re-evaluate.
	p.HandleEvent(release(0, 0, at(4*time.Millisecond)))
	reports = p.HandleEvent(release(0, 1, at(5*time.Millisecond)))
	if len(reports) != 1 || reports[0].Keycodes[0] != 0 {
		t.Fatalf("want KC_C released, got %+v", reports)
	}
}

func TestRolloverPreservesPressSequence(t *testing.T) {
	cfg := config.DefaultBehaviorConfig()
	cell := newMap(t, 1, 3, func(m *keymap.Map) {
		m.Set(0, 0, 0, action.FromAction(action.Key(action.KCA)))
		m.Set(0, 0, 1, action.FromAction(action.Key(action.KCB)))
		m.Set(0, 0, 2, action.FromAction(action.Key(action.KCC)))
	})
	p := NewProcessor(cell, 1, 3, cfg, nil, nil)

	p.HandleEvent(press(0, 2, at(0)))
	p.HandleEvent(press(0, 0, at(1*time.Millisecond)))
	reports := p.HandleEvent(press(0, 1, at(2*time.Millisecond)))
	if len(reports) != 1 {
		t.Fatalf("want a single report for the final press, got %+v", reports)
	}
	want := [3]uint8{uint8(action.KCC), uint8(action.KCA), uint8(action.KCB)}
	if reports[0].Keycodes[0] != want[0] || reports[0].Keycodes[1] != want[1] || reports[0].Keycodes[2] != want[2] {
		t.Fatalf("want press order %v preserved in rollover buffer, got %+v", want, reports[0].Keycodes)
	}
}

func TestOneShotModifierAppliesToNextKeyOnly(t *testing.T) {
	cfg := config.DefaultBehaviorConfig()
	cell := newMap(t, 1, 3, func(m *keymap.Map) {
		m.Set(0, 0, 0, action.FromAction(action.OneShot(action.Modifier(action.ModLShift))))
		m.Set(0, 0, 1, action.FromAction(action.Key(action.KCA)))
		m.Set(0, 0, 2, action.FromAction(action.Key(action.KCB)))
	})
	p := NewProcessor(cell, 1, 3, cfg, nil, nil)

	p.HandleEvent(press(0, 0, at(0)))
	p.HandleEvent(release(0, 0, at(1*time.Millisecond)))

	reports := p.HandleEvent(press(0, 1, at(2*time.Millisecond)))
	if len(reports) != 1 || reports[0].Modifiers != uint8(action.ModLShift) || reports[0].Keycodes[0] != uint8(action.KCA) {
		t.Fatalf("want one-shot LShift applied to KC_A, got %+v", reports)
	}
	p.HandleEvent(release(0, 1, at(3*time.Millisecond)))

	reports = p.HandleEvent(press(0, 2, at(4*time.Millisecond)))
	if len(reports) != 1 || reports[0].Modifiers != 0 || reports[0].Keycodes[0] != uint8(action.KCB) {
		t.Fatalf("one-shot should have been consumed, want plain KC_B, got %+v", reports)
	}
}

func TestBootMagicInterceptsDuringArmedWindow(t *testing.T) {
	triggered := 0
	bm := NewBootMagic(0, 0, 3, func() { triggered++ })

	if !bm.Intercept(press(0, 0, at(0))) {
		t.Fatalf("want boot-magic position consumed while armed")
	}
	if triggered != 1 {
		t.Fatalf("want handler invoked once, got %d", triggered)
	}
	// Scans 2 and 3 keep it armed; scan 3 disarms it afterward.
	bm.Intercept(press(1, 1, at(1*time.Millisecond)))
	if consumed := bm.Intercept(press(0, 0, at(2*time.Millisecond))); !consumed {
		t.Fatalf("want still armed on the 3rd scan")
	}
	if triggered != 2 {
		t.Fatalf("want handler invoked twice within the armed window, got %d", triggered)
	}
	if consumed := bm.Intercept(press(0, 0, at(3*time.Millisecond))); consumed {
		t.Fatalf("want disarmed after maxScan matrix scans")
	}
	if triggered != 2 {
		t.Fatalf("disarmed handler must not fire again, got %d", triggered)
	}
}

func TestPressingKeysDropsOldestEntryOnOverflow(t *testing.T) {
	cfg := config.DefaultBehaviorConfig()
	cell := newMap(t, 1, 10, func(m *keymap.Map) {
		m.Set(0, 0, 0, action.FromAction(action.TapHold(action.Key(action.KCA), action.Modifier(action.ModLShift))))
		for c := 1; c <= 9; c++ {
			m.Set(0, 0, c, action.FromAction(action.Key(action.KeyCode(0x04+c))))
		}
	})
	p := NewProcessor(cell, 1, 10, cfg, nil, nil)

	// Press the tap-hold key first, then 9 more keys. Cols 1-8 buffer as
	// Tapping entries behind the undecided tap-hold; the 8th of them
	// makes 9 entries, one more than MaxPressingKeys, so the oldest (the
	// tap-hold at col 0) is dropped to make room. With no tap-hold left
	// pending, col 9 is not buffered at all.
	p.HandleEvent(press(0, 0, at(0)))
	for c := 1; c <= 9; c++ {
		p.HandleEvent(press(0, c, at(time.Duration(c)*time.Millisecond)))
	}

	if len(p.pressingKeys) != MaxPressingKeys {
		t.Fatalf("want pressingKeys capped at %d, got %d", MaxPressingKeys, len(p.pressingKeys))
	}
	if p.findHolding(scan.Coord{Row: 0, Col: 0}) != nil {
		t.Fatalf("want the oldest (tap-hold) entry evicted")
	}
	if p.findHolding(scan.Coord{Row: 0, Col: 1}) == nil {
		t.Fatalf("want the oldest tapping entry still tracked after the single eviction")
	}
	if p.findHolding(scan.Coord{Row: 0, Col: 9}) != nil {
		t.Fatalf("want the press after the eviction handled directly, not buffered")
	}

	// The evicted tap-hold's physical release no longer matches a
	// HoldingKey and never went through keyboardPress's downKeys
	// either, so it produces no report.
	if reports := p.HandleEvent(release(0, 0, at(100*time.Millisecond))); len(reports) != 0 {
		t.Fatalf("want no report releasing an evicted entry, got %+v", reports)
	}
}

func TestNewProcessorTruncatesOverLimitForksAndCombos(t *testing.T) {
	cfg := config.DefaultBehaviorConfig()
	for i := 0; i < action.MaxForks+2; i++ {
		cfg.Forks = append(cfg.Forks, action.Fork{
			Trigger: action.Key(action.KCA),
			Default: action.Key(action.KCA),
		})
	}
	var combos []action.Combo
	for i := 0; i < action.MaxCombos+2; i++ {
		var c action.Combo
		c.Actions[0] = action.Key(action.KCA)
		c.Count = 1
		c.Output = action.Key(action.KCEsc)
		combos = append(combos, c)
	}

	cell := newMap(t, 1, 1, func(m *keymap.Map) {})
	p := NewProcessor(cell, 1, 1, cfg, combos, nil)

	if len(p.forks) != action.MaxForks {
		t.Fatalf("want forks truncated to %d, got %d", action.MaxForks, len(p.forks))
	}
	if len(p.combos) != action.MaxCombos {
		t.Fatalf("want combos truncated to %d, got %d", action.MaxCombos, len(p.combos))
	}
}
