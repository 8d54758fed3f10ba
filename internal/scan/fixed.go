package scan

import (
	"context"
	"time"

	"github.com/uplg/keybd/internal/chanutil"
)

// Scripted is a single event in a FixedMatrixScanner's script: emit a
// debounced transition at (Row, Col) after waiting At from the scanner's
// start, or immediately following the previous event if At is zero and
// this isn't the first entry.
type Scripted struct {
	Row, Col int
	Pressed  bool
	At       time.Duration
}

// FixedMatrixScanner is a synthetic MatrixScanner that replays a fixed
// script of transitions, for simulation and integration tests that want
// to exercise the real channel/goroutine pipeline (as opposed to calling
// the processor's HandleEvent/Tick directly with synthetic timestamps).
type FixedMatrixScanner struct {
	Script []Scripted
}

// Scan emits the script's events in order, sleeping between them
// according to each entry's At (relative to scanner start). Once the
// script is exhausted it blocks until ctx is cancelled and returns
// ctx.Err().
func (f *FixedMatrixScanner) Scan(ctx context.Context, events *chanutil.Bounded[KeyEvent]) error {
	start := time.Now()
	emitter := NewEmitter(events, nil)
	for _, s := range f.Script {
		target := start.Add(s.At)
		wait := time.Until(target)
		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		emitter.Send(KeyEvent{Row: s.Row, Col: s.Col, Pressed: s.Pressed, Timestamp: time.Now()})
	}
	<-ctx.Done()
	return ctx.Err()
}
