// Command keybd runs the keyboard processor against a real Linux input
// device, translating it into a virtual USB keyboard. Adapted from the
// teacher's cmd/asahi-map/main.go flag/signal/lifecycle structure.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uplg/keybd/adapter/evdevscan"
	"github.com/uplg/keybd/adapter/tray"
	"github.com/uplg/keybd/adapter/uinputhid"
	"github.com/uplg/keybd/internal/chanutil"
	"github.com/uplg/keybd/internal/config"
	"github.com/uplg/keybd/internal/engine"
	"github.com/uplg/keybd/internal/keymap"
	"github.com/uplg/keybd/internal/report"
	"github.com/uplg/keybd/internal/scan"
)

var (
	version = "dev"
	commit  = "unknown"
)

const virtualDeviceName = "keybd-virtual"

func main() {
	configPath := flag.String("config", "", "Path to config file")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "Show version information")
	noTray := flag.Bool("no-tray", false, "Run without system tray")
	bootMagicRow := flag.Int("boot-magic-row", -1, "Row of the boot-magic key (-1 disables)")
	bootMagicCol := flag.Int("boot-magic-col", -1, "Column of the boot-magic key")
	flag.Parse()

	if *showVersion {
		fmt.Printf("keybd %s (%s)\n", version, commit)
		os.Exit(0)
	}

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	appCfg, err := config.LoadApp(*configPath)
	if err != nil {
		logger.Error("failed to load app config", "error", err)
		os.Exit(1)
	}

	logger.Info("keybd starting", "version", version, "config_dir", appCfg.ConfigDir)

	km, err := keymap.LoadFixture(appCfg.Path(appCfg.Keymap))
	if err != nil {
		logger.Error("failed to load keymap", "error", err)
		os.Exit(1)
	}
	cell := keymap.NewCell(km)

	behavior, err := config.LoadBehaviorConfig(appCfg.Path(appCfg.Behavior))
	if err != nil {
		logger.Error("failed to load behavior config", "error", err)
		os.Exit(1)
	}

	combos, err := config.LoadCombos(appCfg.Path(appCfg.Combos))
	if err != nil {
		logger.Warn("no combo list loaded", "error", err)
	}

	layout, err := evdevscan.LoadLayout(appCfg.Path("layout.yaml"))
	if err != nil {
		logger.Error("failed to load evdev layout", "error", err)
		os.Exit(1)
	}

	writer, err := uinputhid.NewWriter(virtualDeviceName, logger)
	if err != nil {
		logger.Error("failed to create virtual keyboard", "error", err)
		logger.Error("make sure you have write access to /dev/uinput")
		os.Exit(1)
	}
	defer writer.Close()

	scanner, err := evdevscan.Open(layout, virtualDeviceName, logger)
	if err != nil {
		logger.Error("failed to open keyboard device", "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	proc := engine.NewProcessor(cell, km.Rows, km.Cols, behavior, combos, logger)

	var bm *engine.BootMagic
	if *bootMagicRow >= 0 && *bootMagicCol >= 0 {
		bm = engine.NewBootMagic(*bootMagicRow, *bootMagicCol, 200, func() {
			logger.Warn("boot magic triggered: would jump to bootloader here")
		})
	}

	rawEvents := chanutil.NewBounded[scan.KeyEvent](scan.EventChannelCapacity)
	filteredEvents := chanutil.NewBounded[scan.KeyEvent](scan.EventChannelCapacity)
	reports := chanutil.NewBounded[report.Report](scan.EventChannelCapacity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := scanner.Scan(ctx, rawEvents); err != nil && ctx.Err() == nil {
			logger.Error("scan loop stopped", "error", err)
			cancel()
		}
	}()

	go func() {
		emitter := scan.NewEmitter(filteredEvents, logger)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-rawEvents.C():
				if bm != nil && bm.Intercept(ev) {
					continue
				}
				emitter.Send(ev)
			}
		}
	}()

	go func() {
		if err := proc.Run(ctx, filteredEvents, reports); err != nil && ctx.Err() == nil {
			logger.Error("processor loop stopped", "error", err)
			cancel()
		}
	}()

	go func() {
		if err := writer.Run(ctx, reports); err != nil && ctx.Err() == nil {
			logger.Error("hid writer loop stopped", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if *noTray {
		logger.Info("running without system tray, press Ctrl+C to quit")
		<-sigChan
		logger.Info("shutting down...")
		cancel()
	} else {
		trayIcon := tray.New(tray.Config{
			NumLayers: km.NumLayers,
			Enabled:   true,
			OnToggle: func(enabled bool) {
				logger.Info("processing toggled", "enabled", enabled)
			},
			OnQuit: func() {
				logger.Info("shutting down...")
				cancel()
				os.Exit(0)
			},
			Logger: logger,
		})

		go func() {
			<-sigChan
			logger.Info("shutting down...")
			trayIcon.Quit()
		}()

		go reportActiveLayer(ctx, cell, trayIcon)

		trayIcon.Run()
	}

	logger.Info("keybd stopped")
}

func newLogger(levelName string) *slog.Logger {
	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// reportActiveLayer polls the keymap's top active layer and pushes
// changes to the tray icon; the keymap itself has no change-notification
// hook, only the cooperative mutex in keymap.Cell.
func reportActiveLayer(ctx context.Context, cell *keymap.Cell, trayIcon *tray.Tray) {
	var last uint8 = 255
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			top := cell.TopActiveLayer()
			if top != last {
				last = top
				trayIcon.SetActiveLayer(top)
			}
		}
	}
}
