package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// ParseJSON decodes a layout descriptor of the form
// {"total_size": N, "allocations": {"key": {"name", "offset", "size"}}}.
// The result is not validated.
func ParseJSON(data []byte) (*MemoryLayout, error) {
	var m MemoryLayout
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("layout: parse json: %w", err)
	}
	return normalise(&m), nil
}

// ParseYAML decodes the same descriptor shape from YAML.
func ParseYAML(data []byte) (*MemoryLayout, error) {
	var m MemoryLayout
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("layout: parse yaml: %w", err)
	}
	return normalise(&m), nil
}

// Load reads a descriptor from disk, choosing the parser by file extension.
// Files without a recognised extension are parsed as JSON.
func Load(path string) (*MemoryLayout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// MarshalIndent encodes the layout as indented JSON.
func (m *MemoryLayout) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func normalise(m *MemoryLayout) *MemoryLayout {
	if m.Allocations == nil {
		m.Allocations = map[string]Allocation{}
	}
	return m
}
