package evdevscan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/uplg/keybd/internal/errs"
	"github.com/uplg/keybd/internal/scan"
)

// layoutDoc is the on-disk YAML shape: a flat list of evdev code name to
// matrix position, mirroring the teacher's YAML-backed mapping tables.
type layoutDoc struct {
	Keys []struct {
		Code string `yaml:"code"`
		Row  int    `yaml:"row"`
		Col  int    `yaml:"col"`
	} `yaml:"keys"`
}

// LoadLayout reads a YAML document mapping evdev key code names to matrix
// positions, for use as a Scanner's Layout.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("evdevscan: reading layout %s: %w", path, err)
	}

	var doc layoutDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("evdevscan: parsing layout %s: %w", path, err)
	}

	layout := make(Layout, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Code == "" {
			return nil, fmt.Errorf("evdevscan: layout %s has an entry with no code: %w", path, errs.ErrConfiguration)
		}
		layout[k.Code] = scan.Coord{Row: k.Row, Col: k.Col}
	}
	return layout, nil
}
