// Package scan implements matrix scanning and debouncing: the
// MatrixScanner contract, a per-cell debouncer with chatter absorption,
// and a synthetic scanner for tests and simulation.
package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/uplg/keybd/internal/chanutil"
)

// KeyEvent is a single debounced transition: a key at (Row, Col) changed
// to Pressed at Timestamp.
type KeyEvent struct {
	Row       int
	Col       int
	Pressed   bool
	Timestamp time.Time
}

// Coord identifies a matrix position, used as a map key for tracking
// dropped presses so their matching release can be suppressed.
type Coord struct {
	Row, Col int
}

// MatrixScanner scans a key-switch matrix and emits debounced KeyEvents
// onto the given bounded channel until ctx is cancelled. Implementations
// run forever, polling at a fixed period.
type MatrixScanner interface {
	Scan(ctx context.Context, events *chanutil.Bounded[KeyEvent]) error
}

// EventChannelCapacity is the bounded event channel capacity named in
// spec.md section 5.
const EventChannelCapacity = 16

// Emitter wraps a bounded KeyEvent channel with the drop-oldest overflow
// policy and press/release pairing suppression required by spec.md
// section 4.1: every eviction is logged, and if a press is dropped
// because the channel is full, the matching release for that coordinate
// is suppressed rather than ever reaching the processor as an unpaired
// release.
type Emitter struct {
	out        *chanutil.Bounded[KeyEvent]
	suppressed map[Coord]bool
	logger     *slog.Logger
}

// NewEmitter wraps out for pairing-safe sends. A nil logger falls back to
// slog.Default(), the same convention engine.NewProcessor uses.
func NewEmitter(out *chanutil.Bounded[KeyEvent], logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{out: out, suppressed: make(map[Coord]bool), logger: logger}
}

// Send delivers ev, applying the drop-oldest overflow policy. It reports
// whether ev itself was suppressed (a release whose matching press was
// previously dropped).
func (e *Emitter) Send(ev KeyEvent) (suppressed bool) {
	coord := Coord{ev.Row, ev.Col}
	if !ev.Pressed && e.suppressed[coord] {
		delete(e.suppressed, coord)
		return true
	}

	dropped, ok := e.out.Send(ev)
	if ok {
		e.logger.Warn("event channel full, dropping oldest pending key event",
			"dropped_row", dropped.Row, "dropped_col", dropped.Col,
			"row", ev.Row, "col", ev.Col)
		if dropped.Pressed {
			// The oldest queued event was a press, evicted to make room
			// for ev; suppress its matching release so pairing holds.
			e.suppressed[Coord{dropped.Row, dropped.Col}] = true
		}
	}
	return false
}
