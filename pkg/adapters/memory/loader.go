package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedFile is the structure of a document seed (YAML or JSON).
type SeedFile struct {
	Elements []Element `yaml:"elements" json:"elements"`
}

// LoadDocument reads a seed file and builds a document from it.
// An empty path yields an empty document.
func LoadDocument(path string) (*Document, error) {
	if path == "" {
		return NewDocument(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed document: %w", err)
	}

	var seed SeedFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	seen := make(map[int64]bool, len(seed.Elements))
	for i, e := range seed.Elements {
		if e.ID == 0 {
			continue
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("seed element %d: duplicate id %d", i, e.ID)
		}
		seen[e.ID] = true
	}

	return NewDocument(seed.Elements...), nil
}
