package engine

import (
	"time"

	"github.com/uplg/keybd/internal/action"
	"github.com/uplg/keybd/internal/report"
	"github.com/uplg/keybd/internal/scan"
)

type pendingComboEvent struct {
	ev  scan.KeyEvent
	act action.Action
}

// comboRuntime is one Combo's mutable recognition state: which members
// are currently down (state, a bitmask), whether the combo has already
// fired (done, spec.md's COMBO_DONE sentinel), and the buffered presses
// of members pressed so far, replayed in order if the combo is
// abandoned.
type comboRuntime struct {
	cfg action.Combo

	state    uint8
	done     bool
	deadline time.Time
	buffered []pendingComboEvent
}

func (c *comboRuntime) allOnes() uint8 {
	return (1 << uint(c.cfg.Count)) - 1
}

func (c *comboRuntime) layerAllows(topLayer uint8) bool {
	return !c.cfg.HasLayer || c.cfg.Layer == topLayer
}

// comboPress runs ev/act through every combo's recognizer. It returns
// whether the event was claimed by any combo (in which case the caller
// must not also run it through the normal keyboard press path) and any
// reports produced (a combo completing, or an abandoned combo replaying
// its buffered members).
func (p *Processor) comboPress(ev scan.KeyEvent, act action.Action) (claimed bool, reports []report.Report) {
	topLayer := p.keymapCell.TopActiveLayer()

	for i := range p.combos {
		c := &p.combos[i]
		if !c.layerAllows(topLayer) {
			continue
		}
		idx := c.cfg.IndexOf(act)
		if idx < 0 {
			if c.state != 0 && !c.done {
				reports = append(reports, p.abandonCombo(c)...)
			}
			continue
		}

		claimed = true
		bit := uint8(1) << uint(idx)
		if c.state&bit != 0 {
			continue
		}
		if c.state == 0 {
			c.deadline = ev.Timestamp.Add(p.cfg.Combo.Timeout)
		}
		c.state |= bit
		c.buffered = append(c.buffered, pendingComboEvent{ev: ev, act: act})

		if c.state == c.allOnes() && !c.done {
			c.done = true
			c.buffered = nil
			reports = append(reports, p.pressSimpleAction(c.cfg.Output, ev.Timestamp)...)
		}
	}

	if !claimed {
		return false, nil
	}
	return true, reports
}

// comboRelease runs a release event through every combo's recognizer.
func (p *Processor) comboRelease(ev scan.KeyEvent, act action.Action) (claimed bool, reports []report.Report) {
	for i := range p.combos {
		c := &p.combos[i]
		idx := c.cfg.IndexOf(act)
		if idx < 0 {
			continue
		}
		bit := uint8(1) << uint(idx)
		if c.state&bit == 0 {
			continue
		}

		if c.done {
			c.state &^= bit
			if c.state == 0 {
				reports = append(reports, p.releaseSimpleAction(c.cfg.Output, ev.Timestamp)...)
				c.done = false
			}
			return true, reports
		}

		// A member released before the combo resolved: it can no longer
		// complete. Abandon it (replaying buffered presses in order),
		// then let this release flow through the normal keyboard path
		// since its buffered press was just replayed there.
		reports = append(reports, p.abandonCombo(c)...)
		reports = append(reports, p.keyboardRelease(ev)...)
		return true, reports
	}
	return false, nil
}

// comboTick abandons any combo whose recognition window has elapsed
// without completing.
func (p *Processor) comboTick(now time.Time) []report.Report {
	var reports []report.Report
	for i := range p.combos {
		c := &p.combos[i]
		if c.state != 0 && !c.done && !now.Before(c.deadline) {
			reports = append(reports, p.abandonCombo(c)...)
		}
	}
	return reports
}

// abandonCombo replays a combo's buffered member presses, in press
// order, through the normal keyboard press path, and resets the
// combo's recognition state.
func (p *Processor) abandonCombo(c *comboRuntime) []report.Report {
	var reports []report.Report
	for _, pe := range c.buffered {
		reports = append(reports, p.keyboardPress(pe.ev, pe.act)...)
	}
	c.state = 0
	c.buffered = nil
	return reports
}

// comboNextDeadline reports the earliest pending combo timeout, if any.
func (p *Processor) comboNextDeadline() (time.Time, bool) {
	var best time.Time
	found := false
	for i := range p.combos {
		c := &p.combos[i]
		if c.state == 0 || c.done {
			continue
		}
		if !found || c.deadline.Before(best) {
			best = c.deadline
			found = true
		}
	}
	return best, found
}
