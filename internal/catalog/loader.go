package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogRawData []byte

// catalogFile is the top-level structure of the embedded YAML.
type catalogFile struct {
	Resources []Resource `yaml:"resources"`
}

// Catalog provides lazy-loaded access to the resource definitions.
type Catalog struct {
	once      sync.Once
	raw       []byte
	resources []Resource
	byName    map[string]int
	err       error
}

// New creates a Catalog that parses the embedded YAML on first access.
func New() *Catalog {
	return &Catalog{raw: catalogRawData}
}

// Parse creates a Catalog from caller-supplied YAML.
func Parse(data []byte) *Catalog {
	return &Catalog{raw: data}
}

// Resources returns a copy of all catalog entries in file order.
func (c *Catalog) Resources() ([]Resource, error) {
	c.once.Do(c.load)
	if c.err != nil {
		return nil, c.err
	}
	cp := make([]Resource, len(c.resources))
	copy(cp, c.resources)
	return cp, nil
}

// Get returns the named resource or ErrUnknownResource.
func (c *Catalog) Get(name string) (*Resource, error) {
	c.once.Do(c.load)
	if c.err != nil {
		return nil, c.err
	}
	i, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	r := c.resources[i]
	return &r, nil
}

// Names returns every resource name in file order.
func (c *Catalog) Names() ([]string, error) {
	res, err := c.Resources()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(res))
	for i := range res {
		names[i] = res[i].Name
	}
	return names, nil
}

// load parses and validates the YAML catalog data.
func (c *Catalog) load() {
	var f catalogFile
	if err := yaml.Unmarshal(c.raw, &f); err != nil {
		c.err = fmt.Errorf("catalog: parse yaml: %w", err)
		return
	}
	c.byName = make(map[string]int, len(f.Resources))
	for i := range f.Resources {
		r := &f.Resources[i]
		if err := r.validate(); err != nil {
			c.err = fmt.Errorf("catalog: %w", err)
			return
		}
		if _, dup := c.byName[r.Name]; dup {
			c.err = fmt.Errorf("catalog: duplicate resource %q", r.Name)
			return
		}
		if r.Sheet == "" {
			r.Sheet = r.Section
		}
		c.byName[r.Name] = i
	}
	c.resources = f.Resources
}
