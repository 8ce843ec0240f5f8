package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSSchemaProvider serves type schemas from a directory of .yaml, .yml,
// or .json files. The schema name is the file name without extension.
type FSSchemaProvider struct {
	dir string
}

// NewFSSchemaProvider creates a provider over a schema directory
func NewFSSchemaProvider(dir string) *FSSchemaProvider {
	return &FSSchemaProvider{dir: dir}
}

// List returns the names of every schema file in the directory
func (p *FSSchemaProvider) List() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory %s: %w", p.dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		switch ext {
		case ".yaml", ".yml", ".json":
			names = append(names, strings.TrimSuffix(entry.Name(), ext))
		}
	}
	return names, nil
}

// Fetch returns the raw text of a named schema
func (p *FSSchemaProvider) Fetch(name string) (string, error) {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(p.dir, name+ext)
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read schema %s: %w", name, err)
		}
	}
	return "", fmt.Errorf("schema %s not found in %s", name, p.dir)
}
