package pipeline

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ToolPreset carries reusable tool settings loaded from a YAML file, such as
// the staged parameters of an anatomical registration.
type ToolPreset struct {
	Name   string   `yaml:"name"`
	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args"`
}

// LoadPresetFromFile reads a YAML tool preset from disk.
func LoadPresetFromFile(path string) (*ToolPreset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open preset %s: %w", path, err)
	}
	defer f.Close()
	p, err := decodePreset(f)
	if err != nil {
		return nil, fmt.Errorf("decode preset %s: %w", path, err)
	}
	return p, nil
}

// LoadPreset parses a preset from the provided reader.
func LoadPreset(r io.Reader) (*ToolPreset, error) {
	p, err := decodePreset(r)
	if err != nil {
		return nil, fmt.Errorf("decode preset: %w", err)
	}
	return p, nil
}

func decodePreset(r io.Reader) (*ToolPreset, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var p ToolPreset
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
