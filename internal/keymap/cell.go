package keymap

import (
	"sync"

	"github.com/uplg/keybd/internal/action"
)

// Cell gives the Keyboard Processor and a configuration adapter (Vial,
// in the out-of-scope sense of spec.md section 6) shared access to one Map.
// The mutex is held only across a single lookup or mutation, never across
// a channel send or receive, per the concurrency model in spec.md section 5.
type Cell struct {
	mu sync.Mutex
	m  *Map
}

// NewCell wraps m for shared access.
func NewCell(m *Map) *Cell {
	return &Cell{m: m}
}

// Lookup resolves the action bound at (row, col) under the lock.
func (c *Cell) Lookup(row, col int) action.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m.ActionAt(row, col)
}

// TopActiveLayer reads the topmost active layer under the lock, used by
// combo layer restriction.
func (c *Cell) TopActiveLayer() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m.TopActiveLayer()
}

// MutateLocked runs fn with exclusive access to the underlying Map. fn
// must not block on I/O: the mutex must never be held across an await on
// a channel.
func (c *Cell) MutateLocked(fn func(*Map)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.m)
}
