// Package engine implements the keyboard processor: the state machine that
// turns debounced scan.KeyEvent transitions into report.Report HID reports,
// by way of tap-hold resolution, combo recognition, one-shot modifiers,
// forks, and the layered keymap.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uplg/keybd/internal/action"
	"github.com/uplg/keybd/internal/chanutil"
	"github.com/uplg/keybd/internal/config"
	"github.com/uplg/keybd/internal/keymap"
	"github.com/uplg/keybd/internal/report"
	"github.com/uplg/keybd/internal/scan"
)

// downKey records exactly which resolved Action was applied to the report
// assembler for a pressed, non-tap-hold key, so its release can mirror it
// precisely even if the keymap's active layer (or a fork's condition)
// changes between press and release.
type downKey struct {
	coord scan.Coord
	act   action.Action
}

// Processor is the keyboard processor named in spec.md section 5: it owns
// the pressing-keys list, active modifiers, one-shot and combo state, and
// the HID report assembler, and turns a stream of scan.KeyEvent into a
// stream of report.Report.
type Processor struct {
	keymapCell *keymap.Cell
	cfg        config.BehaviorConfig
	rows, cols int

	pressingKeys    []*HoldingKey
	activeModifiers action.ModifierMask
	downKeys        []downKey

	oneShot *oneShotState
	combos  []comboRuntime
	forks   []action.Fork

	lastKeyReleaseTime time.Time
	hasLastRelease     bool

	assembler *report.Assembler

	logger *slog.Logger
}

// NewProcessor builds a Processor over km (rows x cols must match km's
// dimensions), with combos and cfg.Forks wired in as their own recognizers.
// combos/cfg.Forks beyond the bounded MaxCombos/MaxForks resource limits
// are truncated, logging a warning: LoadCombos/LoadBehaviorConfig already
// reject an over-limit YAML document outright, so this only fires for a
// caller that builds a Processor directly without going through config
// loading.
func NewProcessor(km *keymap.Cell, rows, cols int, cfg config.BehaviorConfig, combos []action.Combo, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	forks := cfg.Forks
	if len(forks) > action.MaxForks {
		logger.Warn("fork list exceeds MaxForks, truncating", "count", len(forks), "max", action.MaxForks)
		forks = forks[:action.MaxForks]
	}
	if len(combos) > action.MaxCombos {
		logger.Warn("combo list exceeds MaxCombos, truncating", "count", len(combos), "max", action.MaxCombos)
		combos = combos[:action.MaxCombos]
	}
	p := &Processor{
		keymapCell: km,
		cfg:        cfg,
		rows:       rows,
		cols:       cols,
		forks:      forks,
		assembler:  report.NewAssembler(cfg.RolloverAllOnes),
		logger:     logger,
	}
	for _, c := range combos {
		p.combos = append(p.combos, comboRuntime{cfg: c})
	}
	return p
}

// pushPressingKey appends hk to pressingKeys, enforcing the bounded
// MaxPressingKeys capacity named in spec.md section 5: if the list is
// already at capacity, the oldest entry is dropped to make room, per the
// same drop-oldest overflow policy used for the event and report
// channels.
func (p *Processor) pushPressingKey(hk *HoldingKey) {
	p.pressingKeys = append(p.pressingKeys, hk)
	if len(p.pressingKeys) > MaxPressingKeys {
		dropped := p.pressingKeys[0]
		p.pressingKeys = p.pressingKeys[1:]
		p.logger.Warn("pressing_keys full, dropping oldest entry",
			"row", dropped.event.Row, "col", dropped.event.Col)
	}
}

// HandleEvent runs one debounced key transition through the processor and
// returns any HID reports it produces. Safe to call repeatedly with
// synthetic timestamps for tests; Run wraps it for production use.
func (p *Processor) HandleEvent(ev scan.KeyEvent) []report.Report {
	if ev.Pressed {
		return p.handlePress(ev)
	}
	return p.handleRelease(ev)
}

func (p *Processor) handlePress(ev scan.KeyEvent) []report.Report {
	coord := scan.Coord{Row: ev.Row, Col: ev.Col}

	if initial := p.firstInitialTapHold(); initial != nil && initial.Coord() != coord {
		// A tap-hold ahead of us is still undecided: buffer this press as
		// a Tapping entry rather than resolving it immediately, unless
		// chordal hold fires it on the spot.
		if p.cfg.TapHold.ChordalHold && !sameHand(p.rows, p.cols, initial.event, ev) {
			reports := p.resolveHold(initial, ev.Timestamp)
			reports = append(reports, p.handlePress(ev)...)
			return reports
		}

		act := p.keymapCell.Lookup(ev.Row, ev.Col)
		p.pushPressingKey(&HoldingKey{
			kind:        holdingTapping,
			event:       ev,
			keyAction:   act,
			pressedTime: ev.Timestamp,
		})
		return nil
	}

	act := p.keymapCell.Lookup(ev.Row, ev.Col)

	if claimed, reports := p.comboPress(ev, act); claimed {
		return reports
	}

	return p.keyboardPress(ev, act)
}

func (p *Processor) handleRelease(ev scan.KeyEvent) []report.Report {
	coord := scan.Coord{Row: ev.Row, Col: ev.Col}

	if hk := p.findHolding(coord); hk != nil {
		return p.releaseHolding(hk, ev.Timestamp)
	}

	// Mirror handlePress's lookup: a combo member is claimed before it
	// ever reaches keyboardPress, so downKeys never carries an entry for
	// its coordinate. An ordinary (possibly fork-resolved) key release
	// still mirrors correctly via keyboardRelease's own downKeys lookup
	// below if comboRelease doesn't claim it.
	act := p.keymapCell.Lookup(ev.Row, ev.Col)
	if claimed, reports := p.comboRelease(ev, act); claimed {
		return reports
	}

	return p.keyboardRelease(ev)
}

// firstInitialTapHold returns the earliest-pressed tap-hold entry still in
// StateInitial, if any.
func (p *Processor) firstInitialTapHold() *HoldingKey {
	for _, hk := range p.pressingKeys {
		if hk.kind == holdingTapHold && hk.state == StateInitial {
			return hk
		}
	}
	return nil
}

func (p *Processor) findHolding(coord scan.Coord) *HoldingKey {
	for _, hk := range p.pressingKeys {
		if hk.Coord() == coord && !hk.released {
			return hk
		}
	}
	return nil
}

// keyboardPress applies a resolved, non-tap-hold, non-combo action: the
// fork table is consulted, the chosen branch is recorded in downKeys so
// release can mirror it, and the press is reflected into the assembler or
// into layer/one-shot/modifier state as appropriate.
func (p *Processor) keyboardPress(ev scan.KeyEvent, act action.Action) []report.Report {
	coord := scan.Coord{Row: ev.Row, Col: ev.Col}

	if act.Kind == action.KindTapHold {
		p.pushPressingKey(&HoldingKey{
			kind:          holdingTapHold,
			event:         ev,
			tapAction:     *act.Tap,
			holdAction:    *act.Hold,
			deadline:      ev.Timestamp.Add(p.cfg.TapHold.HoldTimeout),
			hrmSuppressed: p.cfg.TapHold.EnableHRM && p.hasLastRelease && ev.Timestamp.Sub(p.lastKeyReleaseTime) < p.cfg.TapHold.PriorIdleTime,
			state:         StateInitial,
		})
		return nil
	}

	if f := p.matchFork(act); f != nil {
		act = f.Resolve(p.activeModifiers)
	}

	if act.Kind == action.KindOneShot {
		if act.Inner.Kind == action.KindModifier {
			p.oneShotPress(coord, act.Inner.Mod, ev.Timestamp)
		}
		return nil
	}

	p.downKeys = append(p.downKeys, downKey{coord: coord, act: act})
	return p.applyAction(act, true)
}

func (p *Processor) keyboardRelease(ev scan.KeyEvent) []report.Report {
	coord := scan.Coord{Row: ev.Row, Col: ev.Col}

	p.lastKeyReleaseTime = ev.Timestamp
	p.hasLastRelease = true

	for i := len(p.downKeys) - 1; i >= 0; i-- {
		if p.downKeys[i].coord == coord {
			act := p.downKeys[i].act
			p.downKeys = append(p.downKeys[:i], p.downKeys[i+1:]...)
			return p.applyAction(act, false)
		}
	}
	return nil
}

// matchFork finds the Fork whose Trigger equals act, if any.
func (p *Processor) matchFork(act action.Action) *action.Fork {
	for i := range p.forks {
		if p.forks[i].Trigger == act {
			return &p.forks[i]
		}
	}
	return nil
}

// applyAction reflects a resolved leaf action's press or release into
// modifier state, layer state, one-shot state, or the report assembler,
// and builds a fresh report if the assembler's state changed.
func (p *Processor) applyAction(act action.Action, pressed bool) []report.Report {
	switch act.Kind {
	case action.KindKey:
		if pressed {
			p.assembler.Press(act.Key)
		} else {
			p.assembler.Release(act.Key)
		}
		return p.buildReports()

	case action.KindModifier:
		if pressed {
			p.activeModifiers |= act.Mod
		} else {
			p.activeModifiers &^= act.Mod
		}
		// A bare modifier press doesn't consume a pending one-shot: the
		// one-shot is waiting for the next non-modifier key.
		r, changed := p.assembler.Build(uint8(p.activeModifiers | p.peekOneShot()))
		if !changed {
			return nil
		}
		return []report.Report{r}

	case action.KindLayerOn:
		if pressed {
			p.keymapCell.MutateLocked(func(m *keymap.Map) { m.LayerOn(act.Layer) })
		}
		return nil

	case action.KindLayerOff:
		if pressed {
			p.keymapCell.MutateLocked(func(m *keymap.Map) { m.LayerOff(act.Layer) })
		}
		return nil

	case action.KindLayerToggle:
		if pressed {
			p.keymapCell.MutateLocked(func(m *keymap.Map) { m.LayerToggle(act.Layer) })
		}
		return nil

	case action.KindMomentary:
		if pressed {
			p.keymapCell.MutateLocked(func(m *keymap.Map) { m.LayerOn(act.Layer) })
		} else {
			p.keymapCell.MutateLocked(func(m *keymap.Map) { m.LayerOff(act.Layer) })
		}
		return nil

	case action.KindOneShot:
		// A combo's output can still reach here on release (pressSimpleAction
		// intercepts it on press); nothing to do, a one-shot has no release
		// behavior of its own.
		return nil

	case action.KindDefaultLayer, action.KindNo, action.KindTransparent:
		return nil
	}
	return nil
}

// pressSimpleAction and releaseSimpleAction let combo.go drive a combo's
// Output action through the same press/release path as an ordinary key,
// without involving the fork table (a combo's output is never itself a
// fork trigger in this data model) or downKeys (the combo runtime tracks
// its own press/release pairing).
func (p *Processor) pressSimpleAction(act action.Action, now time.Time) []report.Report {
	if act.Kind == action.KindTapHold {
		act = *act.Tap
	}
	if act.Kind == action.KindOneShot {
		if act.Inner.Kind == action.KindModifier {
			p.oneShotPress(scan.Coord{}, act.Inner.Mod, now)
		}
		return nil
	}
	return p.applyAction(act, true)
}

func (p *Processor) releaseSimpleAction(act action.Action, now time.Time) []report.Report {
	if act.Kind == action.KindTapHold {
		act = *act.Tap
	}
	return p.applyAction(act, false)
}

// buildReports returns a single-element report slice if the assembler's
// state produced a new report (modifier byte OR-ed with any pending
// one-shot), or nil if nothing changed.
func (p *Processor) buildReports() []report.Report {
	mods := p.activeModifiers | p.consumeOneShot()
	r, changed := p.assembler.Build(uint8(mods))
	if !changed {
		return nil
	}
	return []report.Report{r}
}

// resolveTap fires hk's tap action: a plain press-then-release through
// the normal keyboard path, and replays any buffered Tapping entries that
// arrived while hk was undecided.
func (p *Processor) resolveTap(hk *HoldingKey, now time.Time) []report.Report {
	var reports []report.Report
	reports = append(reports, p.keyboardPress(hk.event, hk.tapAction)...)
	reports = append(reports, p.keyboardRelease(hk.event)...)
	hk.state = StateTap
	reports = append(reports, p.replayTapping(hk, now)...)
	p.removeHolding(hk)
	return reports
}

// resolveHold fires hk's hold action's press, transitioning it to
// StateHold; its matching release is applied when the physical key
// releases. Buffered Tapping entries replay as presses now (their holds
// are active concurrently with the outer hold, per permissive-hold/
// chordal-hold semantics).
func (p *Processor) resolveHold(hk *HoldingKey, now time.Time) []report.Report {
	var reports []report.Report
	reports = append(reports, p.keyboardPress(hk.event, hk.holdAction)...)
	hk.state = StateHold
	reports = append(reports, p.replayTapping(hk, now)...)
	return reports
}

// replayTapping flushes Tapping entries buffered behind hk: each one is
// pressed via the normal keyboard path (and released immediately if its
// physical key already released while buffered).
func (p *Processor) replayTapping(hk *HoldingKey, now time.Time) []report.Report {
	var reports []report.Report
	var remaining []*HoldingKey
	for _, other := range p.pressingKeys {
		if other == hk || other.kind != holdingTapping {
			remaining = append(remaining, other)
			continue
		}
		reports = append(reports, p.keyboardPress(other.event, other.keyAction)...)
		if other.released {
			reports = append(reports, p.keyboardRelease(other.event)...)
			continue
		}
		// Mark it replayed so a later physical release (handled in
		// releaseHolding's holdingTapping branch) applies keyboardRelease
		// instead of treating this as still-buffered.
		other.state = StateTap
		remaining = append(remaining, other)
	}
	p.pressingKeys = remaining
	return reports
}

func (p *Processor) removeHolding(hk *HoldingKey) {
	for i, other := range p.pressingKeys {
		if other == hk {
			p.pressingKeys = append(p.pressingKeys[:i], p.pressingKeys[i+1:]...)
			return
		}
	}
}

// releaseHolding handles the physical release of a tracked HoldingKey.
func (p *Processor) releaseHolding(hk *HoldingKey, now time.Time) []report.Report {
	p.lastKeyReleaseTime = now
	p.hasLastRelease = true

	if hk.kind == holdingTapping {
		hk.released = true
		hk.releaseTime = now
		if hk.state != StateInitial {
			// Already replayed (its owning tap-hold resolved); apply the
			// release immediately.
			p.removeHolding(hk)
			return p.keyboardRelease(hk.event)
		}
		return nil
	}

	switch hk.state {
	case StateInitial:
		// Tap-hold released before the hold timeout and before chordal
		// hold fired it: a tap, unless permissive hold says a buffered
		// key's own release (this one) should instead force a hold. This
		// call path IS that release, so per permissive-hold the decision
		// is: if any other key was pressed and released while we were
		// pending, treat as hold; otherwise tap.
		if p.cfg.TapHold.PermissiveHold && p.anyTappingPressedAndReleased(hk) {
			reports := p.resolveHold(hk, now)
			reports = append(reports, p.keyboardRelease(hk.event)...)
			p.enterPostRelease(hk, now)
			return reports
		}
		return p.resolveTap(hk, now)

	case StateHold:
		reports := p.keyboardRelease(hk.event)
		p.enterPostRelease(hk, now)
		return reports

	default:
		return nil
	}
}

// enterPostRelease marks a resolved-hold entry released, keeping its slot
// in pressingKeys for post_wait_time (reusing the deadline field, the
// hold timeout having already served its purpose) so a stray duplicate
// event for the same coordinate can't be matched against a freshly
// reclaimed slot. See DESIGN.md Open Question 1.
func (p *Processor) enterPostRelease(hk *HoldingKey, now time.Time) {
	hk.state = StateRelease
	hk.released = true
	hk.releaseTime = now
	hk.deadline = now.Add(p.cfg.TapHold.PostWaitTime)
}

// reapPostRelease removes entries whose post-release grace period has
// elapsed.
func (p *Processor) reapPostRelease(now time.Time) {
	var remaining []*HoldingKey
	for _, hk := range p.pressingKeys {
		if hk.state == StateRelease && !now.Before(hk.deadline) {
			continue
		}
		remaining = append(remaining, hk)
	}
	p.pressingKeys = remaining
}

// anyTappingPressedAndReleased reports whether a Tapping entry buffered
// behind hk has already been pressed and released, the permissive-hold
// trigger condition.
func (p *Processor) anyTappingPressedAndReleased(hk *HoldingKey) bool {
	for _, other := range p.pressingKeys {
		if other == hk || other.kind != holdingTapping {
			continue
		}
		if other.released {
			return true
		}
	}
	return false
}

// Tick advances time-driven state: tap-hold timeouts, one-shot expiry, and
// combo-recognition expiry. Call it whenever nextDeadline() has passed, or
// on every event as a cheap over-approximation.
func (p *Processor) Tick(now time.Time) []report.Report {
	var reports []report.Report

	for _, hk := range p.pressingKeys {
		if hk.kind != holdingTapHold || hk.state != StateInitial {
			continue
		}
		if hk.hrmSuppressed {
			continue
		}
		if !now.Before(hk.deadline) {
			reports = append(reports, p.resolveHold(hk, now)...)
		}
	}

	p.oneShotTick(now)
	reports = append(reports, p.comboTick(now)...)
	p.reapPostRelease(now)
	return reports
}

// nextDeadline reports the earliest pending timeout across tap-hold,
// one-shot, and combo state, for Run's timer race.
func (p *Processor) nextDeadline() (time.Time, bool) {
	var best time.Time
	found := false
	consider := func(t time.Time, ok bool) {
		if !ok {
			return
		}
		if !found || t.Before(best) {
			best = t
			found = true
		}
	}

	for _, hk := range p.pressingKeys {
		if hk.kind == holdingTapHold && hk.state == StateInitial && !hk.hrmSuppressed {
			consider(hk.deadline, true)
		}
		if hk.state == StateRelease {
			consider(hk.deadline, true)
		}
	}
	consider(p.oneShotNextDeadline())
	consider(p.comboNextDeadline())
	return best, found
}

// Run drives the processor from a live event channel until ctx is
// cancelled, racing a timer against the next event per the concurrency
// model in spec.md section 5: only one goroutine ever touches processor
// state, so no lock is needed around HandleEvent/Tick themselves.
func (p *Processor) Run(ctx context.Context, events *chanutil.Bounded[scan.KeyEvent], out *chanutil.Bounded[report.Report]) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		deadline, ok := p.nextDeadline()
		if ok {
			if d := time.Until(deadline); d <= 0 {
				p.sendAll(out, p.Tick(time.Now()))
				continue
			} else {
				resetTimer(timer, d)
			}
		} else {
			resetTimer(timer, time.Hour)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-events.C():
			p.sendAll(out, p.HandleEvent(ev))

		case <-timer.C:
			p.sendAll(out, p.Tick(time.Now()))
		}
	}
}

// sendAll pushes reports onto out, logging (not silently dropping) if the
// bounded report channel is full and an older pending report is evicted.
func (p *Processor) sendAll(out *chanutil.Bounded[report.Report], reports []report.Report) {
	for _, r := range reports {
		if _, dropped := out.Send(r); dropped {
			p.logger.Warn("report channel full, dropping oldest pending report")
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// ActiveModifiers reports the currently held explicit modifier bits
// (excluding a pending, unconsumed one-shot), for adapters that want to
// display or log state without consuming the one-shot themselves.
func (p *Processor) ActiveModifiers() action.ModifierMask {
	return p.activeModifiers
}

func (p *Processor) String() string {
	return fmt.Sprintf("Processor{layers=%v mods=%08b pressing=%d}", p.keymapCell.TopActiveLayer(), p.activeModifiers, len(p.pressingKeys))
}
