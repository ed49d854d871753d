package pose

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed builtin.yaml
var builtinYAML []byte

// BlockSpec is a flow-block definition as it appears in a catalog file.
type BlockSpec struct {
	Name        string   `yaml:"name"`
	Category    string   `yaml:"category"`
	Poses       []ID     `yaml:"poses"`
	Timing      []string `yaml:"timing,omitempty"`
	Transitions []string `yaml:"transitions,omitempty"`
	Repetitions int      `yaml:"repetitions,omitempty"`
}

// File is the YAML catalog format used for the built-in catalog and for
// `vinyasa catalog import`.
type File struct {
	Poses      []Pose      `yaml:"poses"`
	FlowBlocks []BlockSpec `yaml:"flow_blocks,omitempty"`
}

// ParseFile decodes and validates a catalog document.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := make(map[ID]bool, len(f.Poses))
	for i := range f.Poses {
		p := &f.Poses[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("parse catalog: pose %d has no name", i)
		}
		d, err := ParseDifficulty(string(p.Difficulty))
		if err != nil {
			return nil, fmt.Errorf("parse catalog: pose %q: %w", p.Name, err)
		}
		p.Difficulty = d
		if p.ID != 0 {
			if seen[p.ID] {
				return nil, fmt.Errorf("parse catalog: duplicate pose id %d", p.ID)
			}
			seen[p.ID] = true
		}
	}
	for i, b := range f.FlowBlocks {
		if strings.TrimSpace(b.Name) == "" {
			return nil, fmt.Errorf("parse catalog: flow block %d has no name", i)
		}
		if len(b.Poses) == 0 {
			return nil, fmt.Errorf("parse catalog: flow block %q has no poses", b.Name)
		}
	}
	return &f, nil
}

// ReadFile reads and parses a catalog file from disk.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFile(data)
}

// BuiltIn returns the embedded built-in catalog. Every pose is marked BuiltIn.
func BuiltIn() (*File, error) {
	f, err := ParseFile(builtinYAML)
	if err != nil {
		return nil, err
	}
	for i := range f.Poses {
		f.Poses[i].BuiltIn = true
	}
	return f, nil
}
