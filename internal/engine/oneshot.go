package engine

import (
	"time"

	"github.com/uplg/keybd/internal/action"
	"github.com/uplg/keybd/internal/scan"
)

// oneShotQuickRepress is how soon a second press of the same one-shot
// key must follow the first to latch it, per spec.md section 4.3.3
// ("pressed twice quickly -> latch").
const oneShotQuickRepress = 200 * time.Millisecond

// oneShotState tracks a pending or latched one-shot modifier.
type oneShotState struct {
	mod           action.ModifierMask
	coord         scan.Coord
	deadline      time.Time
	latched       bool
	lastPressTime time.Time
}

// oneShotPress handles a press of a KindOneShot action at coord. now is
// the event timestamp.
func (p *Processor) oneShotPress(coord scan.Coord, mod action.ModifierMask, now time.Time) {
	if p.oneShot != nil && p.oneShot.coord == coord && !p.oneShot.latched {
		// Pressing the same one-shot key again: latch if it's a quick
		// repress, otherwise treat as a fresh activation (it may have
		// already expired or been consumed since the first press).
		if now.Sub(p.oneShot.lastPressTime) <= oneShotQuickRepress {
			p.oneShot.latched = true
			return
		}
	}
	if p.oneShot != nil && p.oneShot.latched && p.oneShot.coord == coord {
		// Second press of an already-latched one-shot key: unlatch.
		p.oneShot = nil
		return
	}

	p.oneShot = &oneShotState{
		mod:           mod,
		coord:         coord,
		deadline:      now.Add(p.cfg.OneShot.Timeout),
		lastPressTime: now,
	}
}

// oneShotTick expires a pending (non-latched) one-shot whose timeout has
// elapsed.
func (p *Processor) oneShotTick(now time.Time) {
	if p.oneShot == nil || p.oneShot.latched {
		return
	}
	if !now.Before(p.oneShot.deadline) {
		p.oneShot = nil
	}
}

// consumeOneShot returns the pending one-shot modifier (if any) to OR
// into the next non-modifier key's report, clearing it unless latched.
func (p *Processor) consumeOneShot() action.ModifierMask {
	if p.oneShot == nil {
		return 0
	}
	mod := p.oneShot.mod
	if !p.oneShot.latched {
		p.oneShot = nil
	}
	return mod
}

// peekOneShot reports the pending one-shot modifier, if any, without
// consuming it: used where a bare modifier key (not a non-modifier key)
// presses or releases, which should be reflected in the report but must
// not itself satisfy the one-shot.
func (p *Processor) peekOneShot() action.ModifierMask {
	if p.oneShot == nil {
		return 0
	}
	return p.oneShot.mod
}

// oneShotNextDeadline reports the pending one-shot's expiry, if any.
func (p *Processor) oneShotNextDeadline() (time.Time, bool) {
	if p.oneShot == nil || p.oneShot.latched {
		return time.Time{}, false
	}
	return p.oneShot.deadline, true
}
