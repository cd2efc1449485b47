// Package manifest loads a YAML description of a mapforms project and applies
// it to an engine. Manifests refer to datasets, columns and layers by name;
// Apply creates every entity and reports the IDs it was given.
package manifest

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

// ErrInvalidManifest is returned by Load and Validate for structural
// problems found before anything is written.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest is the root of a manifest file.
type Manifest struct {
	Teamspace string    `yaml:"teamspace"`
	Project   string    `yaml:"project"`
	Datasets  []Dataset `yaml:"datasets"`
	Layers    []Layer   `yaml:"layers"`
	Pages     []Page    `yaml:"pages"`
}

// Dataset declares a dataset, its columns in order and optional seed rows.
// Seed row values are keyed by column name.
type Dataset struct {
	Name    string           `yaml:"name"`
	Columns []Column         `yaml:"columns"`
	Rows    []map[string]any `yaml:"rows,omitempty"`
}

// Column declares one dataset column.
type Column struct {
	Name string     `yaml:"name"`
	Kind types.Kind `yaml:"kind"`
}

// Layer declares a layer over a dataset. Roles name columns of that dataset.
type Layer struct {
	Name    string          `yaml:"name"`
	Dataset string          `yaml:"dataset"`
	Type    types.LayerType `yaml:"type"`
	Roles   types.Roles     `yaml:"roles"`
}

// Page declares one project page, in order.
type Page struct {
	SubmitTo string   `yaml:"submit_to,omitempty"`
	Blocks   []Block  `yaml:"blocks,omitempty"`
	Layers   []string `yaml:"layers,omitempty"`
	Tracks   []Track  `yaml:"tracks,omitempty"`
}

// Block is page content. Column binds an input block to a column of the
// page's submission dataset.
type Block struct {
	Kind    string         `yaml:"kind"`
	Content map[string]any `yaml:"content,omitempty"`
	Column  string         `yaml:"column,omitempty"`
}

// Track reveals the layer at position Layer during steps Start..End.
type Track struct {
	Layer int `yaml:"layer"`
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates manifest YAML.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks names and references. Value grammars and role kinds are
// left to the engine.
func (m *Manifest) Validate() error {
	if m.Teamspace == "" {
		return invalidf("teamspace is required")
	}
	if m.Project == "" && len(m.Pages) > 0 {
		return invalidf("pages need a project name")
	}

	columns := make(map[string]map[string]bool, len(m.Datasets))
	for _, ds := range m.Datasets {
		if ds.Name == "" {
			return invalidf("dataset without a name")
		}
		if _, dup := columns[ds.Name]; dup {
			return invalidf("dataset %q declared twice", ds.Name)
		}
		names := make(map[string]bool, len(ds.Columns))
		for _, c := range ds.Columns {
			if c.Name == "" {
				return invalidf("dataset %q has a column without a name", ds.Name)
			}
			if names[c.Name] {
				return invalidf("dataset %q declares column %q twice", ds.Name, c.Name)
			}
			if !types.ValidKind(c.Kind) {
				return invalidf("column %q has unknown kind %q", c.Name, c.Kind)
			}
			names[c.Name] = true
		}
		for i, row := range ds.Rows {
			for key := range row {
				if !names[key] {
					return invalidf("dataset %q row %d sets unknown column %q", ds.Name, i, key)
				}
			}
		}
		columns[ds.Name] = names
	}

	layers := make(map[string]bool, len(m.Layers))
	for _, l := range m.Layers {
		if l.Name == "" {
			return invalidf("layer without a name")
		}
		if layers[l.Name] {
			return invalidf("layer %q declared twice", l.Name)
		}
		names, ok := columns[l.Dataset]
		if !ok {
			return invalidf("layer %q uses unknown dataset %q", l.Name, l.Dataset)
		}
		for _, b := range l.Roles.Bindings() {
			if !names[b.ColumnID] {
				return invalidf("layer %q binds %s to unknown column %q", l.Name, b.Role, b.ColumnID)
			}
		}
		layers[l.Name] = true
	}

	for i, p := range m.Pages {
		var target map[string]bool
		if p.SubmitTo != "" {
			var ok bool
			if target, ok = columns[p.SubmitTo]; !ok {
				return invalidf("page %d submits to unknown dataset %q", i, p.SubmitTo)
			}
		}
		for _, b := range p.Blocks {
			if b.Kind == "" {
				return invalidf("page %d has a block without a kind", i)
			}
			if b.Column != "" && !target[b.Column] {
				return invalidf("page %d block binds %q, which is not a column of its submission dataset", i, b.Column)
			}
		}
		seen := make(map[string]bool, len(p.Layers))
		for _, name := range p.Layers {
			if !layers[name] {
				return invalidf("page %d attaches unknown layer %q", i, name)
			}
			if seen[name] {
				return invalidf("page %d attaches layer %q twice", i, name)
			}
			seen[name] = true
		}
		for _, t := range p.Tracks {
			if t.Layer < 0 || t.Layer >= len(p.Layers) {
				return invalidf("page %d track targets layer position %d of %d", i, t.Layer, len(p.Layers))
			}
		}
	}
	return nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidManifest, fmt.Sprintf(format, args...))
}
