package engine

import (
	"time"

	"github.com/uplg/keybd/internal/action"
	"github.com/uplg/keybd/internal/scan"
)

// MaxPressingKeys bounds the pressing_keys list named in spec.md
// sections 4.3/5: at most this many tap-hold/tapping entries are
// in flight at once.
const MaxPressingKeys = 8

// TapHoldState is the state machine named in spec.md section 3.
type TapHoldState uint8

const (
	StateInitial TapHoldState = iota
	StateTap
	StatePostTap
	StateHold
	StatePostHold
	// StateRelease is a post-release grace interval: after a Hold
	// resolves and its physical key releases, the HoldingKey entry is
	// kept (in this state) for post_wait_time before its slot is
	// reclaimed, so a stray duplicate event for the same coordinate
	// can't be matched against a freshly reused slot. See DESIGN.md
	// Open Question 1.
	StateRelease
)

type holdingKind uint8

const (
	holdingTapHold holdingKind = iota
	holdingTapping
)

// HoldingKey is one entry in the bounded pressing_keys list: a key whose
// decision is deferred (TapHold), or a later key buffered while a
// TapHold ahead of it is pending (Tapping).
type HoldingKey struct {
	kind holdingKind

	event scan.KeyEvent

	// TapHold fields.
	tapAction  action.Action
	holdAction action.Action
	deadline   time.Time
	hrmSuppressed bool

	// Tapping fields.
	keyAction action.Action

	pressedTime time.Time
	releaseTime time.Time
	released    bool

	state TapHoldState
}

// Coord returns the matrix position this entry tracks.
func (h *HoldingKey) Coord() scan.Coord {
	return scan.Coord{Row: h.event.Row, Col: h.event.Col}
}
