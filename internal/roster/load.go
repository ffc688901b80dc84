package roster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type file struct {
	Groups       []Group       `yaml:"groups"`
	Participants []Participant `yaml:"participants"`
	DrawOrder    []string      `yaml:"drawOrder"`
}

// Load reads and validates a YAML roster file.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Roster, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	r, err := New(f.Participants, f.Groups, f.DrawOrder)
	if err != nil {
		return nil, fmt.Errorf("invalid roster: %w", err)
	}
	return r, nil
}
