package tool

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the YAML document listing tool declarations.
type Catalog struct {
	Tools []Tool `yaml:"tools"`
}

// ParseCatalog decodes a catalog. Unknown fields are rejected.
func ParseCatalog(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse tool catalog: %w", err)
	}
	return &c, nil
}

// Load registers every tool in data. Registration continues past invalid
// tools; all errors are returned together.
func (r *Registry) Load(data []byte) error {
	c, err := ParseCatalog(data)
	if err != nil {
		return err
	}
	var errs []error
	for _, t := range c.Tools {
		if _, err := r.Register(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadFile reads and registers a catalog file.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read tool catalog %s: %w", path, err)
	}
	return r.Load(data)
}
