// Package config loads BehaviorConfig and application configuration from
// YAML, following the search-path chain and yaml.v3 idiom the teacher
// repo's internal/config/config.go established.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/uplg/keybd/internal/action"
	"github.com/uplg/keybd/internal/errs"
	"github.com/uplg/keybd/internal/keymap"
)

// TapHoldConfig is spec.md's BehaviorConfig.tap_hold block.
type TapHoldConfig struct {
	EnableHRM      bool
	PermissiveHold bool
	ChordalHold    bool
	PriorIdleTime  time.Duration
	PostWaitTime   time.Duration
	HoldTimeout    time.Duration
}

// OneShotConfig is spec.md's BehaviorConfig.one_shot block.
type OneShotConfig struct {
	Timeout time.Duration
}

// ComboConfig is spec.md's BehaviorConfig.combo block (the global combo
// timeout; the Combo definitions themselves are supplied to the
// processor separately, as spec.md's data model treats Combo as its own
// top-level type rather than nesting the member list in BehaviorConfig).
type ComboConfig struct {
	Timeout time.Duration
}

// BehaviorConfig is the full set of enumerated tap-hold/one-shot/combo/
// tri-layer/fork options named in spec.md section 3.
type BehaviorConfig struct {
	TapHold         TapHoldConfig
	OneShot         OneShotConfig
	Combo           ComboConfig
	TriLayer        *keymap.TriLayer
	Forks           []action.Fork
	RolloverAllOnes bool
}

// DefaultBehaviorConfig matches the seed scenarios in spec.md section 8:
// a 250ms hold timeout, permissive hold off, chordal hold off, HRM off.
func DefaultBehaviorConfig() BehaviorConfig {
	return BehaviorConfig{
		TapHold: TapHoldConfig{
			HoldTimeout:   250 * time.Millisecond,
			PostWaitTime:  20 * time.Millisecond,
			PriorIdleTime: 150 * time.Millisecond,
		},
		OneShot: OneShotConfig{Timeout: time.Second},
		Combo:   ComboConfig{Timeout: 50 * time.Millisecond},
	}
}

// behaviorDoc is the on-disk YAML shape.
type behaviorDoc struct {
	TapHold struct {
		EnableHRM      bool     `yaml:"enable_hrm"`
		PermissiveHold bool     `yaml:"permissive_hold"`
		ChordalHold    bool     `yaml:"chordal_hold"`
		PriorIdleTime  Duration `yaml:"prior_idle_time"`
		PostWaitTime   Duration `yaml:"post_wait_time"`
		HoldTimeout    Duration `yaml:"hold_timeout"`
	} `yaml:"tap_hold"`
	OneShot struct {
		Timeout Duration `yaml:"timeout"`
	} `yaml:"one_shot"`
	Combo struct {
		Timeout Duration `yaml:"timeout"`
	} `yaml:"combo"`
	TriLayer        []uint8   `yaml:"tri_layer,omitempty"`
	RolloverAllOnes bool      `yaml:"rollover_all_ones"`
	Forks           []forkDoc `yaml:"forks,omitempty"`
}

type forkDoc struct {
	Trigger     string   `yaml:"trigger"`
	Default     string   `yaml:"default"`
	Alternative string   `yaml:"alternative"`
	Condition   []string `yaml:"condition"`
}

// LoadBehaviorConfig reads and parses a BehaviorConfig YAML document.
func LoadBehaviorConfig(path string) (BehaviorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BehaviorConfig{}, fmt.Errorf("config: reading behavior config %s: %w", path, err)
	}

	var doc behaviorDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return BehaviorConfig{}, fmt.Errorf("config: parsing behavior config %s: %w", path, err)
	}

	cfg := BehaviorConfig{
		TapHold: TapHoldConfig{
			EnableHRM:      doc.TapHold.EnableHRM,
			PermissiveHold: doc.TapHold.PermissiveHold,
			ChordalHold:    doc.TapHold.ChordalHold,
			PriorIdleTime:  doc.TapHold.PriorIdleTime.D(),
			PostWaitTime:   doc.TapHold.PostWaitTime.D(),
			HoldTimeout:    doc.TapHold.HoldTimeout.D(),
		},
		OneShot:         OneShotConfig{Timeout: doc.OneShot.Timeout.D()},
		Combo:           ComboConfig{Timeout: doc.Combo.Timeout.D()},
		RolloverAllOnes: doc.RolloverAllOnes,
	}

	if len(doc.TriLayer) == 3 {
		cfg.TriLayer = &keymap.TriLayer{A: doc.TriLayer[0], B: doc.TriLayer[1], C: doc.TriLayer[2]}
	} else if len(doc.TriLayer) != 0 {
		return BehaviorConfig{}, fmt.Errorf("config: tri_layer must have exactly 3 entries, got %d: %w", len(doc.TriLayer), errs.ErrConfiguration)
	}

	if len(doc.Forks) > action.MaxForks {
		return BehaviorConfig{}, fmt.Errorf("config: %d forks exceeds the maximum of %d: %w", len(doc.Forks), action.MaxForks, errs.ErrConfiguration)
	}

	for i, fd := range doc.Forks {
		f, err := parseFork(fd)
		if err != nil {
			return BehaviorConfig{}, fmt.Errorf("config: fork %d: %w", i, err)
		}
		cfg.Forks = append(cfg.Forks, f)
	}

	return cfg, nil
}

func parseFork(fd forkDoc) (action.Fork, error) {
	trigger, err := keymap.ParseAction(fd.Trigger)
	if err != nil {
		return action.Fork{}, fmt.Errorf("trigger: %w", err)
	}
	def, err := keymap.ParseAction(fd.Default)
	if err != nil {
		return action.Fork{}, fmt.Errorf("default: %w", err)
	}
	alt, err := keymap.ParseAction(fd.Alternative)
	if err != nil {
		return action.Fork{}, fmt.Errorf("alternative: %w", err)
	}

	var cond action.ModifierMask
	for _, name := range fd.Condition {
		m, err := keymap.ParseAction(name)
		if err != nil || m.Kind != action.KindModifier {
			return action.Fork{}, fmt.Errorf("condition %q is not a modifier: %w", name, errs.ErrConfiguration)
		}
		cond |= m.Mod
	}

	return action.Fork{Trigger: trigger, Default: def, Alternative: alt, Condition: cond}, nil
}
