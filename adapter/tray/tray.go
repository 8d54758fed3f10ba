// Package tray provides an optional system tray icon showing the active
// keymap layer and an enable/disable toggle, via fyne.io/systray. Adapted
// from the teacher's internal/tray/tray.go.
package tray

import (
	"fmt"
	"log/slog"
	"time"

	"fyne.io/systray"
)

// Tray is the system tray icon and menu.
type Tray struct {
	logger *slog.Logger

	onToggle func(enabled bool)
	onQuit   func()

	enabled   bool
	topLayer  uint8
	numLayers int

	statusItem *systray.MenuItem
	layerItem  *systray.MenuItem
}

// Config holds tray configuration.
type Config struct {
	NumLayers int
	Enabled   bool
	OnToggle  func(enabled bool)
	OnQuit    func()
	Logger    *slog.Logger
}

// New creates a system tray icon.
func New(cfg Config) *Tray {
	return &Tray{
		enabled:   cfg.Enabled,
		numLayers: cfg.NumLayers,
		onToggle:  cfg.OnToggle,
		onQuit:    cfg.OnQuit,
		logger:    cfg.Logger,
	}
}

// Run starts the system tray. Blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetTitle("keybd")
	t.updateTooltip()

	t.statusItem = systray.AddMenuItem("✓ Enabled", "Toggle key processing")
	t.layerItem = systray.AddMenuItem(fmt.Sprintf("Layer %d", t.topLayer), "Active keymap layer")
	t.layerItem.Disable()

	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Exit keybd")

	go t.handleClicks(quitItem)
}

func (t *Tray) handleClicks(quitItem *systray.MenuItem) {
	for {
		select {
		case <-t.statusItem.ClickedCh:
			t.toggleEnabled()
		case <-quitItem.ClickedCh:
			if t.onQuit != nil {
				t.onQuit()
			}
			systray.Quit()
			return
		default:
			time.Sleep(100 * time.Millisecond)
		}
	}
}

func (t *Tray) toggleEnabled() {
	t.enabled = !t.enabled
	if t.enabled {
		t.statusItem.SetTitle("✓ Enabled")
	} else {
		t.statusItem.SetTitle("✗ Disabled")
	}
	t.updateTooltip()
	if t.onToggle != nil {
		t.onToggle(t.enabled)
	}
}

// SetActiveLayer updates the displayed top active layer, called from the
// processor's layer-change path.
func (t *Tray) SetActiveLayer(layer uint8) {
	t.topLayer = layer
	if t.layerItem != nil {
		t.layerItem.SetTitle(fmt.Sprintf("Layer %d", layer))
	}
	t.updateTooltip()
}

func (t *Tray) updateTooltip() {
	status := "Enabled"
	if !t.enabled {
		status = "Disabled"
	}
	systray.SetTooltip(fmt.Sprintf("keybd: %s (layer %d)", status, t.topLayer))
}

func (t *Tray) onExit() {
	t.logger.Info("tray exiting")
}

// Quit stops the system tray.
func (t *Tray) Quit() {
	systray.Quit()
}
