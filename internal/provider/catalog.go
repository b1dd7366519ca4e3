package provider

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Providers []Provider `yaml:"providers"`
}

// LoadCatalog reads a YAML provider catalog. Records missing an id or url
// are rejected up front so a typo in the file fails boot instead of
// surfacing as a dead pool entry later.
func LoadCatalog(path string) ([]Provider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse provider catalog: %w", err)
	}

	for i, p := range file.Providers {
		if p.ID == "" || p.URL == "" {
			return nil, fmt.Errorf("provider catalog entry %d: id and url are required", i)
		}
	}
	return file.Providers, nil
}
