package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// App holds the top-level application configuration: which keymap
// fixture, behavior config, and combo list to load, and where the
// running config directory is. Modeled on the teacher's
// internal/config/config.go search-path chain.
type App struct {
	Keymap         string `yaml:"keymap"`
	Behavior       string `yaml:"behavior"`
	Combos         string `yaml:"combos"`
	LogLevel       string `yaml:"log_level"`
	ScannerDevice  string `yaml:"scanner_device"`
	ConfigDir      string `yaml:"-"`
}

// DefaultApp returns the default application configuration: keymap.yaml,
// behavior.yaml and combos.yaml, resolved against the config directory.
func DefaultApp() *App {
	return &App{
		Keymap:        "keymap.yaml",
		Behavior:      "behavior.yaml",
		Combos:        "combos.yaml",
		LogLevel:      "info",
		ScannerDevice: "auto",
	}
}

// LoadApp reads the application configuration from the given path or the
// default search locations, in order of priority: an explicit path, the
// user's config directory, the executable's directory, then /etc.
func LoadApp(configPath string) (*App, error) {
	cfg := DefaultApp()

	var searchPaths []string
	if configPath != "" {
		searchPaths = append(searchPaths, configPath)
	}
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		searchPaths = append(searchPaths, filepath.Join("/home", sudoUser, ".config", "keybd", "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "keybd", "config.yaml"))
	}
	if exe, err := os.Executable(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(filepath.Dir(exe), "configs", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/keybd/config.yaml")

	var loadedPath string
	for _, path := range searchPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		loadedPath = path
		break
	}

	if loadedPath != "" {
		cfg.ConfigDir = filepath.Dir(loadedPath)
	} else if exe, err := os.Executable(); err == nil {
		cfg.ConfigDir = filepath.Join(filepath.Dir(exe), "configs")
	} else if home, err := os.UserHomeDir(); err == nil {
		cfg.ConfigDir = filepath.Join(home, ".config", "keybd")
	} else {
		cfg.ConfigDir = "/etc/keybd"
	}

	return cfg, nil
}

// Path joins a relative fixture name against the loaded config directory.
func (c *App) Path(name string) string {
	return filepath.Join(c.ConfigDir, name)
}
