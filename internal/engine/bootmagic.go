package engine

import (
	"sync"

	"github.com/uplg/keybd/internal/scan"
)

// BootMagicHandler is invoked when the boot-magic position is pressed
// while armed. Entering an actual bootloader is out of scope; this is an
// injected hook so an adapter can do whatever its platform requires.
type BootMagicHandler func()

// BootMagic is a boot-time escape hatch: holding a designated key
// position during the first few matrix scans after startup triggers
// Handler instead of being processed as an ordinary key. Grounded on
// original_source/rmk's input_device/boot_magic.rs armed -> matched ->
// disarmed state machine, and on the teacher's Handler.enabled gate
// pattern for the "stop forwarding once disarmed" check.
type BootMagic struct {
	mu      sync.Mutex
	row     int
	col     int
	armed   bool
	scans   int
	maxScan int

	handler BootMagicHandler
}

// NewBootMagic arms the detector for (row, col) for the first
// armedScans matrix scans, after which it disarms itself permanently.
func NewBootMagic(row, col, armedScans int, handler BootMagicHandler) *BootMagic {
	return &BootMagic{row: row, col: col, armed: true, maxScan: armedScans, handler: handler}
}

// Intercept inspects ev before it reaches the Processor, counting one
// matrix scan per call. It reports true if ev matched the boot-magic
// position while armed and should be consumed rather than forwarded.
func (b *BootMagic) Intercept(ev scan.KeyEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.armed {
		return false
	}
	b.scans++
	if b.scans >= b.maxScan {
		b.armed = false
	}

	if ev.Row != b.row || ev.Col != b.col {
		return false
	}
	if ev.Pressed && b.handler != nil {
		b.handler()
	}
	return true
}
