package engine

import "github.com/uplg/keybd/internal/scan"

// Hand is the side of the board a matrix position falls on, used by
// chordal hold to decide whether two pressed keys are a same-hand roll
// or a cross-hand chord.
type Hand uint8

const (
	HandLeft Hand = iota
	HandRight
)

// handOf implements ChordHoldState::create from spec.md section 4.5: a
// layout wider than it is tall (cols > rows) is treated as horizontal,
// hand determined by column; otherwise vertical, hand determined by row.
func handOf(rows, cols, row, col int) Hand {
	if cols > rows {
		if col < cols/2 {
			return HandLeft
		}
		return HandRight
	}
	if row < rows/2 {
		return HandLeft
	}
	return HandRight
}

// sameHand implements ChordHoldState::is_same: true iff a and b fall on
// the same hand of a rows x cols layout.
func sameHand(rows, cols int, a, b scan.KeyEvent) bool {
	return handOf(rows, cols, a.Row, a.Col) == handOf(rows, cols, b.Row, b.Col)
}
