package diagnosis

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Presentation describes how a disease is shown to the farmer
type Presentation struct {
	Label   string `yaml:"label"`
	Icon    string `yaml:"icon"`
	Badge   string `yaml:"badge"`
	Meaning string `yaml:"meaning"`
}

// Catalog maps disease labels to their presentation
type Catalog struct {
	Diseases map[Disease]Presentation `yaml:"diseases"`
	Default  Presentation             `yaml:"default"`
}

var (
	defaultCatalog     *Catalog
	defaultCatalogErr  error
	defaultCatalogOnce sync.Once
)

// ParseCatalog decodes a YAML catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse disease catalog: %w", err)
	}
	if c.Diseases == nil {
		c.Diseases = map[Disease]Presentation{}
	}
	for d, p := range c.Diseases {
		if p.Label == "" {
			p.Label = string(d)
			c.Diseases[d] = p
		}
	}
	return &c, nil
}

// DefaultCatalog returns the embedded catalog
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = ParseCatalog(catalogYAML)
	})
	if defaultCatalogErr != nil {
		// The embedded file is part of the build; a parse failure is a programming error
		panic(defaultCatalogErr)
	}
	return defaultCatalog
}

// Lookup returns the presentation for d, falling back to the neutral default
func (c *Catalog) Lookup(d Disease) Presentation {
	if p, ok := c.Diseases[d]; ok {
		return p
	}
	p := c.Default
	p.Label = string(d)
	return p
}
