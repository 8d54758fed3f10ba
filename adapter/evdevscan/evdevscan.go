// Package evdevscan implements scan.MatrixScanner over a real Linux input
// device via github.com/holoplot/go-evdev, for boards whose "matrix" is in
// fact a standard USB/internal keyboard exposing one evdev key per switch.
// Adapted from the teacher's internal/keyboard/device.go device discovery
// and ReadEvents loop.
package evdevscan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	evdev "github.com/holoplot/go-evdev"

	"github.com/uplg/keybd/internal/chanutil"
	"github.com/uplg/keybd/internal/scan"
)

// Layout maps evdev key code names (e.g. "KEY_A") to the (row, col)
// position the core keymap expects for that switch.
type Layout map[string]scan.Coord

// Scanner implements scan.MatrixScanner by reading raw evdev key events
// from one grabbed device. Unlike a bare switch matrix, the kernel's own
// input driver has already debounced the physical contacts, so events are
// mapped and emitted directly without a Debouncer pass.
type Scanner struct {
	dev    *evdev.InputDevice
	path   string
	name   string
	layout Layout
	logger *slog.Logger
}

// Open discovers keyboard-capable evdev devices under /dev/input, skipping
// any whose name matches this program's own virtual output device (so it
// never grabs and loops back the device it creates), and grabs the first
// match for exclusive use.
func Open(layout Layout, ownDeviceName string, logger *slog.Logger) (*Scanner, error) {
	matches, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, fmt.Errorf("evdevscan: globbing input devices: %w", err)
	}

	for _, path := range matches {
		dev, err := evdev.Open(path)
		if err != nil {
			logger.Debug("evdevscan: cannot open device", "path", path, "error", err)
			continue
		}

		name, err := dev.Name()
		if err != nil {
			dev.Close()
			continue
		}
		if strings.Contains(strings.ToLower(name), strings.ToLower(ownDeviceName)) {
			dev.Close()
			continue
		}
		if !isKeyboard(dev) {
			dev.Close()
			continue
		}

		if err := dev.Grab(); err != nil {
			logger.Warn("evdevscan: failed to grab device", "name", name, "error", err)
			dev.Close()
			continue
		}

		logger.Info("evdevscan: grabbed device", "name", name, "path", path)
		return &Scanner{
			dev:    dev,
			path:   path,
			name:   name,
			layout: layout,
			logger: logger,
		}, nil
	}

	return nil, fmt.Errorf("evdevscan: no keyboard device found")
}

func isKeyboard(dev *evdev.InputDevice) bool {
	for _, t := range dev.CapableTypes() {
		if t != evdev.EV_KEY {
			continue
		}
		for _, code := range dev.CapableEvents(evdev.EV_KEY) {
			// Letter keys occupy a contiguous range in linux/input-event-codes.h
			// (KEY_Q=16 .. KEY_M=50); any device exposing them is a keyboard.
			if code >= 16 && code <= 50 {
				return true
			}
		}
	}
	return false
}

// Close releases the grabbed device.
func (s *Scanner) Close() error {
	s.dev.Ungrab()
	return s.dev.Close()
}

// Scan implements scan.MatrixScanner: it blocks reading raw key events
// from the device, maps each to its matrix coordinate, and emits KeyEvents
// onto out until ctx is cancelled or the device errors.
func (s *Scanner) Scan(ctx context.Context, out *chanutil.Bounded[scan.KeyEvent]) error {
	emitter := scan.NewEmitter(out, s.logger)
	done := make(chan struct{})
	var closeOnce sync.Once
	defer closeOnce.Do(func() { close(done) })

	go func() {
		select {
		case <-ctx.Done():
			s.dev.Close()
		case <-done:
		}
	}()

	for {
		ev, err := s.dev.ReadOne()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if os.IsNotExist(err) {
				return fmt.Errorf("evdevscan: device disconnected: %s: %w", s.path, err)
			}
			return fmt.Errorf("evdevscan: reading event: %w", err)
		}
		if ev.Type != evdev.EV_KEY || ev.Value == 2 {
			// Ignore non-key events and kernel auto-repeat; repeat is the
			// core's own concern (it has none: a held key simply stays in
			// the HID report until released).
			continue
		}

		coord, ok := s.layout[ev.CodeName()]
		if !ok {
			continue
		}

		emitter.Send(scan.KeyEvent{
			Row:       coord.Row,
			Col:       coord.Col,
			Pressed:   ev.Value == 1,
			Timestamp: time.Unix(ev.Time.Sec, ev.Time.Usec*1000),
		})
	}
}
