package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProductConfig names one installation and the root packages that define
// its product
type ProductConfig struct {
	Name         string   `yaml:"name" json:"name"`
	Path         string   `yaml:"path" json:"path"`
	RootPackages []string `yaml:"root_packages" json:"root_packages"`
}

// Batch is a list of products verified against one manifest with a shared
// ignore list
type Batch struct {
	Products []ProductConfig `yaml:"products" json:"products"`
	Ignores  []string        `yaml:"ignores" json:"ignores"`
}

// batchKeys maps accepted spellings, lower-cased and without underscores,
// to the canonical yaml keys.
var batchKeys = map[string]string{
	"products":      "products",
	"ignores":       "ignores",
	"ignore":        "ignores",
	"name":          "name",
	"path":          "path",
	"rootdirectory": "path",
	"rootpackages":  "root_packages",
}

// LoadBatch reads a batch file. JSON is accepted as well as YAML, and the
// camel-case keys rootDirectory and rootPackages are read as path and
// root_packages.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	return ParseBatch(data)
}

// ParseBatch decodes batch file content.
func ParseBatch(data []byte) (*Batch, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing batch file: %w", err)
	}
	canonicalizeKeys(&doc)

	batch := &Batch{}
	if err := doc.Decode(batch); err != nil {
		return nil, fmt.Errorf("parsing batch file: %w", err)
	}
	if batch.Ignores == nil {
		batch.Ignores = []string{}
	}
	if len(batch.Products) == 0 {
		return nil, fmt.Errorf("batch file lists no products")
	}
	if err := validateProducts(batch.Products); err != nil {
		return nil, err
	}
	return batch, nil
}

func canonicalizeKeys(n *yaml.Node) {
	if n == nil {
		return
	}
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			folded := strings.ToLower(strings.ReplaceAll(key.Value, "_", ""))
			if canonical, ok := batchKeys[folded]; ok {
				key.Value = canonical
			}
		}
	}
	for _, child := range n.Content {
		canonicalizeKeys(child)
	}
}

func validateProducts(products []ProductConfig) error {
	seen := make(map[string]bool, len(products))
	for i, p := range products {
		if p.Path == "" {
			return fmt.Errorf("product %d (%q) has no path", i+1, p.Name)
		}
		if p.Name != "" {
			if seen[p.Name] {
				return fmt.Errorf("product %q is listed more than once", p.Name)
			}
			seen[p.Name] = true
		}
	}
	return nil
}
