package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/uplg/keybd/internal/action"
	"github.com/uplg/keybd/internal/errs"
	"github.com/uplg/keybd/internal/keymap"
)

type comboDoc struct {
	Actions []string `yaml:"actions"`
	Output  string   `yaml:"output"`
	Layer   *uint8   `yaml:"layer,omitempty"`
}

type combosDoc struct {
	Combos []comboDoc `yaml:"combos"`
}

// LoadCombos reads a combo-list YAML document. Each combo's action set
// has at most action.MaxComboMembers entries, per spec.md's data model.
func LoadCombos(path string) ([]action.Combo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading combos %s: %w", path, err)
	}

	var doc combosDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing combos %s: %w", path, err)
	}

	if len(doc.Combos) > action.MaxCombos {
		return nil, fmt.Errorf("config: %d combos exceeds the maximum of %d: %w", len(doc.Combos), action.MaxCombos, errs.ErrConfiguration)
	}

	combos := make([]action.Combo, 0, len(doc.Combos))
	for i, cd := range doc.Combos {
		c, err := parseCombo(cd)
		if err != nil {
			return nil, fmt.Errorf("config: combo %d: %w", i, err)
		}
		combos = append(combos, c)
	}
	return combos, nil
}

func parseCombo(cd comboDoc) (action.Combo, error) {
	if len(cd.Actions) == 0 || len(cd.Actions) > action.MaxComboMembers {
		return action.Combo{}, fmt.Errorf("combo must have 1..%d actions, got %d: %w", action.MaxComboMembers, len(cd.Actions), errs.ErrConfiguration)
	}

	var c action.Combo
	for _, spec := range cd.Actions {
		a, err := keymap.ParseAction(spec)
		if err != nil {
			return action.Combo{}, err
		}
		c.Actions[c.Count] = a
		c.Count++
	}

	out, err := keymap.ParseAction(cd.Output)
	if err != nil {
		return action.Combo{}, fmt.Errorf("output: %w", err)
	}
	c.Output = out

	if cd.Layer != nil {
		c.HasLayer = true
		c.Layer = *cd.Layer
	}

	return c, nil
}
